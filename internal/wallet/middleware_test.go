package wallet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"voiceai-platform/internal/auth"
	"voiceai-platform/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type fakeBalanceService struct {
	bal Balance
	err error
}

func (f fakeBalanceService) GetBalance(ctx context.Context, userID string) (Balance, error) {
	return f.bal, f.err
}

func middlewareRouter(svc BalanceService, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "user-1", "ws", role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireCredit(svc), func(c *gin.Context) {
		c.Status(200)
	})
	return r
}

func TestRequireCredit_BlocksZeroBalance(t *testing.T) {
	svc := fakeBalanceService{bal: Balance{UserID: "user-1", Currency: "USD", Amount: decimal.Zero}}
	r := middlewareRouter(svc, rbac.RoleOwner)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
}

func TestRequireCredit_AllowsPositiveBalance(t *testing.T) {
	svc := fakeBalanceService{bal: Balance{UserID: "user-1", Currency: "USD", Amount: decimal.RequireFromString("0.0001")}}
	r := middlewareRouter(svc, rbac.RoleOwner)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireCredit_AllowsAdminOverride(t *testing.T) {
	svc := fakeBalanceService{bal: Balance{UserID: "user-1", Currency: "USD", Amount: decimal.Zero}}
	r := middlewareRouter(svc, rbac.RoleSuperAdmin)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
