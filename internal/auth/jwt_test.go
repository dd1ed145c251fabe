package auth

import (
	"testing"
	"time"

	"voiceai-platform/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "user-1", "ws-1", "member")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.WorkspaceID != "ws-1" || claims.Role != "member" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpiredTokenAtGivenTime(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Now().UTC()
	p, err := m.IssuePair(now, "u", "w", "r")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// 10s past expiry is inside the 30s leeway.
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(70*time.Second)); err != nil {
		t.Fatalf("expected leeway to cover 10s skew, got %v", err)
	}
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(10*time.Minute)); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	issue, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "other", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	verify, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "issuer", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})

	now := time.Now().UTC()
	p, err := issue.IssuePair(now, "u", "w", "r")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verify.Verify(p.AccessToken, TokenTypeAccess, now); err == nil {
		t.Fatalf("expected issuer rejection")
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), "u", "w", "r")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}
