package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validConfig() Config {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "voiceai"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	c.applyDefaults()
	return c
}

func TestValidate_EmptyConfigFails(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestApplyDefaults_FillsPipelineAndBreaker(t *testing.T) {
	c := validConfig()
	if c.Pipeline.ChunkFlushCount != 5 || c.Pipeline.HistoryWindow != 20 {
		t.Fatalf("unexpected pipeline defaults %+v", c.Pipeline)
	}
	if c.Pipeline.SessionTTL != 2*time.Hour {
		t.Fatalf("expected 2h session ttl, got %v", c.Pipeline.SessionTTL)
	}
	if c.Breaker.FailureThreshold != 5 || c.Breaker.SuccessThreshold != 3 {
		t.Fatalf("unexpected breaker thresholds %+v", c.Breaker)
	}
	if c.Breaker.RecoveryTimeout != 60*time.Second || c.Breaker.MonitoringWindow != 5*time.Minute {
		t.Fatalf("unexpected breaker windows %+v", c.Breaker)
	}
	if c.Billing.Currency != "USD" {
		t.Fatalf("expected USD default, got %q", c.Billing.Currency)
	}
}

func TestValidate_ProductionRequiresSSLModeAndJWTMetadata(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
	msg := err.Error()
	for _, want := range []string{"DB_SSLMODE", "JWT_ISSUER", "JWT_AUDIENCE"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %s in error, got %q", want, msg)
		}
	}
}

func TestValidate_MarginRateMustBeFraction(t *testing.T) {
	c := validConfig()
	c.Billing.PlatformMarginRate = decimal.NewFromInt(25)
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for percentage-looking margin rate")
	}
	c.Billing.PlatformMarginRate = decimal.RequireFromString("0.25")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	c.Billing.PlatformMarginRate = decimal.RequireFromString("-0.1")
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for negative margin rate")
	}
}

func TestValidate_RefreshTTLMustExceedAccessTTL(t *testing.T) {
	c := validConfig()
	c.Auth.AccessTokenTTL = time.Hour
	c.Auth.RefreshTokenTTL = time.Hour
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for refresh ttl <= access ttl")
	}
}

func TestValidate_RecoveryShorterThanWindow(t *testing.T) {
	c := validConfig()
	c.Breaker.RecoveryTimeout = 10 * time.Minute
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for recovery timeout >= monitoring window")
	}
}

func TestPostgresDSN_DefaultsSSLModeDisable(t *testing.T) {
	c := validConfig()
	dsn := c.PostgresDSN()
	if !strings.Contains(dsn, "sslmode=disable") {
		t.Fatalf("expected sslmode=disable in dsn, got %q", dsn)
	}
}

func TestAddrHelpers(t *testing.T) {
	c := validConfig()
	if got := c.HTTPAddr(); got != ":8080" {
		t.Fatalf("expected :8080, got %q", got)
	}
	if got := c.RedisAddr(); got != "localhost:6379" {
		t.Fatalf("expected localhost:6379, got %q", got)
	}
}
