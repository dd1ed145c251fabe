package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"voiceai-platform/internal/assistant"
	"voiceai-platform/internal/audit"
	"voiceai-platform/internal/auth"
	"voiceai-platform/internal/billing"
	"voiceai-platform/internal/orchestrator"
	"voiceai-platform/internal/rates"
	"voiceai-platform/internal/rbac"
	"voiceai-platform/internal/resilience"
	"voiceai-platform/internal/session"
	"voiceai-platform/internal/usage"
	"voiceai-platform/internal/wallet"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{orchestrator.ErrInvalidRequest, http.StatusBadRequest},
		{session.ErrSessionNotFound, http.StatusNotFound},
		{assistant.ErrAssistantNotFound, http.StatusNotFound},
		{billing.ErrInvoiceNotFound, http.StatusNotFound},
		{wallet.ErrInsufficientFunds, http.StatusPaymentRequired},
		{assistant.ErrAssistantInactive, http.StatusConflict},
		{orchestrator.ErrCallNotAccepting, http.StatusConflict},
		{orchestrator.ErrTooManyCalls, http.StatusTooManyRequests},
		{resilience.ErrChainExhausted, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

type fixture struct {
	handlers Handlers
	walletMm *wallet.MemoryStore
	auditMm  *audit.MemoryRepo
	invoices *billing.MemoryInvoiceRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	walletStore := wallet.NewMemoryStore()
	walletSvc := wallet.NewService(walletStore, "USD")
	auditRepo := audit.NewMemoryRepo()
	auditSvc := audit.NewService(auditRepo)
	invoices := billing.NewMemoryInvoiceRepo()
	billingSvc := billing.NewService(
		usage.NewService(usage.NewMemoryRepo()),
		rates.NewService(&rates.MemoryRepo{}),
		walletSvc,
		invoices,
		auditSvc,
		billing.Config{Currency: "USD"},
		nil,
	)
	return &fixture{
		handlers: Handlers{
			Wallet:  walletSvc,
			Billing: billingSvc,
			Audit:   auditSvc,
		},
		walletMm: walletStore,
		auditMm:  auditRepo,
		invoices: invoices,
	}
}

// identityRouter injects an authenticated identity directly, matching what
// auth.RequireAccessToken leaves in the request context.
func identityRouter(userID, role string, register func(*gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, "ws-1", role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	register(r)
	return r
}

func TestGetBalance_ReturnsCallerBalance(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.handlers.Wallet.AddCredits(context.Background(), "user-1", decimal.RequireFromString("25.50"), "topup", "k1"); err != nil {
		t.Fatalf("seed credits: %v", err)
	}
	r := identityRouter("user-1", rbac.RoleAgent, func(r *gin.Engine) {
		r.GET("/balance", f.handlers.GetBalance)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/balance", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("25.5")) {
		t.Fatalf("expected balance in body, got %s", w.Body.String())
	}
}

func TestAddCredits_RecordsAdminAudit(t *testing.T) {
	f := newFixture(t)
	r := identityRouter("admin-1", rbac.RoleFinance, func(r *gin.Engine) {
		r.POST("/credits", f.handlers.AddCredits)
	})

	body := bytes.NewBufferString(`{"user_id":"user-1","amount":"100.00","description":"promo","idempotency_key":"promo-1"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/credits", body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	bal, err := f.handlers.Wallet.GetBalance(context.Background(), "user-1")
	if err != nil || !bal.Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected 100.00 balance, got %v %v", bal.Amount, err)
	}

	events := f.auditMm.Events()
	found := false
	for _, e := range events {
		if e.Type == audit.EventTypeAdminAction && e.ActorUserID == "admin-1" && e.UserID == "user-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected admin_action audit event, got %+v", events)
	}
}

func TestAddCredits_RejectsNonDecimalAmount(t *testing.T) {
	f := newFixture(t)
	r := identityRouter("admin-1", rbac.RoleFinance, func(r *gin.Engine) {
		r.POST("/credits", f.handlers.AddCredits)
	})

	body := bytes.NewBufferString(`{"user_id":"user-1","amount":"lots"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/credits", body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListTransactions_RejectsBadLimit(t *testing.T) {
	f := newFixture(t)
	r := identityRouter("user-1", rbac.RoleAgent, func(r *gin.Engine) {
		r.GET("/transactions", f.handlers.ListTransactions)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/transactions?limit=ten", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetInvoice_HidesOtherUsersInvoices(t *testing.T) {
	f := newFixture(t)
	inv := billing.Invoice{ID: "inv-1", CallID: "call-1", UserID: "user-2", Currency: "USD",
		TotalCost: decimal.RequireFromString("3.0000"), PaymentSuccessful: true}
	if err := f.invoices.Upsert(context.Background(), inv); err != nil {
		t.Fatalf("seed invoice: %v", err)
	}

	register := func(r *gin.Engine) { r.GET("/invoices/:call_id", f.handlers.GetInvoice) }

	w := httptest.NewRecorder()
	identityRouter("user-1", rbac.RoleAgent, register).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/call-1", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign invoice, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	identityRouter("finance-1", rbac.RoleFinance, register).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/call-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for finance role, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	identityRouter("user-2", rbac.RoleAgent, register).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/call-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for invoice owner, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSpendReport_RequiresRFC3339Window(t *testing.T) {
	f := newFixture(t)
	r := identityRouter("user-1", rbac.RoleAnalyst, func(r *gin.Engine) {
		r.GET("/spend", f.handlers.SpendReport)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/spend?from=yesterday&to=now", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSpendReport_BlocksCrossUserForAgents(t *testing.T) {
	f := newFixture(t)
	r := identityRouter("user-1", rbac.RoleAgent, func(r *gin.Engine) {
		r.GET("/spend", f.handlers.SpendReport)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/spend?user_id=user-2&from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
