package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"voiceai-platform/internal/assistant"
	"voiceai-platform/internal/audit"
	"voiceai-platform/internal/auth"
	"voiceai-platform/internal/billing"
	"voiceai-platform/internal/orchestrator"
	"voiceai-platform/internal/rbac"
	"voiceai-platform/internal/reporting"
	"voiceai-platform/internal/resilience"
	"voiceai-platform/internal/session"
	"voiceai-platform/internal/wallet"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth         *auth.Manager
	Orchestrator *orchestrator.Service
	Wallet       *wallet.Service
	Billing      *billing.Service
	Reporting    *reporting.Service
	Audit        *audit.Service
}

// statusFor maps domain errors onto HTTP status codes. Unknown errors are
// internal; domain packages own their sentinel errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest),
		errors.Is(err, reporting.ErrInvalidRequest),
		errors.Is(err, wallet.ErrInvalidArgument),
		errors.Is(err, session.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, assistant.ErrAssistantNotFound),
		errors.Is(err, billing.ErrInvoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, assistant.ErrAssistantInactive),
		errors.Is(err, orchestrator.ErrCallNotAccepting):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrTooManyCalls):
		return http.StatusTooManyRequests
	case errors.Is(err, resilience.ErrChainExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, workspace_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.WorkspaceID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type startCallRequest struct {
	AssistantID string            `json:"assistant_id"`
	PhoneNumber string            `json:"phone_number"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// StartCall opens a new call session for the authenticated user. The response
// carries the initial call context and, when the assistant greets first, the
// synthesized greeting audio.
func (h Handlers) StartCall(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Orchestrator.InitiateCall(c.Request.Context(), orchestrator.InitiateCallRequest{
		UserID:      userID,
		AssistantID: req.AssistantID,
		PhoneNumber: req.PhoneNumber,
		Metadata:    req.Metadata,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"call_id":      res.Context.CallID,
		"status":       res.Context.Status,
		"assistant_id": res.Context.AssistantID,
		"started_at":   res.Context.StartedAt,
		"greeting":     res.Greeting,
	})
}

type pushAudioRequest struct {
	// Audio is a base64-encoded chunk, per encoding/json []byte convention.
	Audio []byte `json:"audio"`
}

// PushAudio feeds one audio chunk into the call pipeline. While the chunk
// buffer fills the response is {"buffered": true}; once a turn runs it carries
// the transcript, the reply text and the synthesized reply audio.
func (h Handlers) PushAudio(c *gin.Context) {
	callID := c.Param("call_id")
	if err := h.authorizeCall(c, callID); err != nil {
		return
	}

	var req pushAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	turn, err := h.Orchestrator.ProcessAudioChunk(c.Request.Context(), callID, req.Audio)
	if err != nil {
		abortWith(c, err)
		return
	}
	if turn == nil {
		c.JSON(http.StatusAccepted, gin.H{"buffered": true})
		return
	}
	c.JSON(http.StatusOK, turn)
}

// EndCall terminates the session and triggers billing. Safe to call twice:
// a second end replays the stored summary.
func (h Handlers) EndCall(c *gin.Context) {
	callID := c.Param("call_id")
	if err := h.authorizeCall(c, callID); err != nil {
		return
	}

	summary, err := h.Orchestrator.EndCall(c.Request.Context(), callID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h Handlers) GetCall(c *gin.Context) {
	callID := c.Param("call_id")
	if err := h.authorizeCall(c, callID); err != nil {
		return
	}

	status, err := h.Orchestrator.GetCallStatus(c.Request.Context(), callID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// authorizeCall hides other users' calls. Privileged roles see everything;
// everyone else gets a 404 for calls they do not own, matching the unknown-ID
// response so call IDs cannot be probed.
func (h Handlers) authorizeCall(c *gin.Context, callID string) error {
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return errors.New("missing call_id")
	}
	role, _ := auth.Role(c.Request.Context())
	if rbac.IsSuperAdmin(role) || role == rbac.RoleOwner {
		return nil
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return errors.New("missing user_id")
	}
	status, err := h.Orchestrator.GetCallStatus(c.Request.Context(), callID)
	if err != nil {
		abortWith(c, err)
		return err
	}
	if status.UserID != userID {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": session.ErrSessionNotFound.Error()})
		return errors.New("call not owned by caller")
	}
	return nil
}

// --- Billing ---

func (h Handlers) GetBalance(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	bal, err := h.Wallet.GetBalance(c.Request.Context(), userID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

type addCreditsRequest struct {
	UserID         string `json:"user_id"`
	Amount         string `json:"amount"`
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AddCredits performs a privileged wallet top-up for any user.
// RBAC: owner, finance or super_admin (enforced at the route).
func (h Handlers) AddCredits(c *gin.Context) {
	var req addCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount must be a decimal string"})
		return
	}

	tx, bal, err := h.Wallet.AddCredits(c.Request.Context(), req.UserID, amount, req.Description, req.IdempotencyKey)
	if err != nil {
		abortWith(c, err)
		return
	}

	if h.Audit != nil {
		actorID, _ := auth.UserID(c.Request.Context())
		actorRole, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogAdminAction(c.Request.Context(), actorID, actorRole, req.UserID,
			"manual credit of "+amount.String(), `{"transaction_id":"`+tx.ID+`"}`)
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "balance": bal})
}

type refundRequest struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
	CallID string `json:"call_id"`
	Reason string `json:"reason"`
}

// Refund returns funds for a disputed call. Idempotent per call: retrying a
// refund replays the original transaction instead of paying twice.
// RBAC: owner, finance or super_admin (enforced at the route).
func (h Handlers) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount must be a decimal string"})
		return
	}

	tx, bal, err := h.Wallet.Refund(c.Request.Context(), req.UserID, amount, req.CallID, req.Reason)
	if err != nil {
		abortWith(c, err)
		return
	}

	if h.Audit != nil {
		actorID, _ := auth.UserID(c.Request.Context())
		actorRole, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogAdminAction(c.Request.Context(), actorID, actorRole, req.UserID,
			"refund of "+amount.String()+" for call "+req.CallID, `{"transaction_id":"`+tx.ID+`"}`)
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "balance": bal})
}

func (h Handlers) ListTransactions(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
	}
	txs, err := h.Wallet.TransactionHistory(c.Request.Context(), userID, limit)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h Handlers) GetInvoice(c *gin.Context) {
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}
	inv, err := h.Billing.GetInvoice(c.Request.Context(), callID)
	if err != nil {
		abortWith(c, err)
		return
	}

	role, _ := auth.Role(c.Request.Context())
	if !rbac.IsSuperAdmin(role) && role != rbac.RoleOwner && role != rbac.RoleFinance {
		userID, err := auth.UserID(c.Request.Context())
		if err != nil || inv.UserID != userID {
			// Same shape as a miss so invoice IDs cannot be probed.
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": billing.ErrInvoiceNotFound.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, inv)
}

// --- Reporting ---

// SpendReport aggregates invoices and ledger activity over [from, to).
// Privileged roles may pass ?user_id= to inspect another user's spend.
func (h Handlers) SpendReport(c *gin.Context) {
	callerID, err := auth.UserID(c.Request.Context())
	if err != nil || callerID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}

	targetID := callerID
	if q := c.Query("user_id"); q != "" && q != callerID {
		role, _ := auth.Role(c.Request.Context())
		if !rbac.IsSuperAdmin(role) && role != rbac.RoleOwner && role != rbac.RoleAnalyst && role != rbac.RoleFinance {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role for cross-user reports"})
			return
		}
		targetID = q
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}

	summary, err := h.Reporting.SpendSummary(c.Request.Context(), reporting.SpendSummaryRequest{
		UserID: targetID,
		Range:  reporting.TimeRange{From: from, To: to},
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
