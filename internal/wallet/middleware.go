package wallet

import (
	"context"
	"net/http"

	"voiceai-platform/internal/auth"
	"voiceai-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// BalanceService is the minimal wallet interface needed by middleware.
type BalanceService interface {
	GetBalance(ctx context.Context, userID string) (Balance, error)
}

// RequireCredit blocks call initiation when the caller's balance is not
// positive. The exact charge is only known at call end; this gate keeps
// obviously unpaid users from opening new sessions.
//
// Admin override: super_admin bypasses.
func RequireCredit(svc BalanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := auth.Role(c.Request.Context())
		if rbac.IsSuperAdmin(role) {
			c.Next()
			return
		}

		userID, err := auth.UserID(c.Request.Context())
		if err != nil || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
			return
		}

		bal, err := svc.GetBalance(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
			return
		}
		if !bal.Amount.IsPositive() {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance"})
			return
		}

		c.Next()
	}
}
