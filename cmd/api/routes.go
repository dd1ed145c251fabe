package main

import (
	"github.com/gin-gonic/gin"

	"voiceai-platform/internal/httpapi"
	"voiceai-platform/internal/rbac"
	"voiceai-platform/internal/wallet"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireWorkspace())
	{
		// CALL routes: the live call lifecycle.
		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleSuperAdmin))
		{
			calls.POST("", wallet.RequireCredit(h.Wallet), h.StartCall)
			calls.POST("/:call_id/audio", h.PushAudio)
			calls.POST("/:call_id/end", h.EndCall)
			calls.GET("/:call_id", h.GetCall)
		}

		// BILLING routes: balance and ledger are self-service; credit and
		// refund mutations are restricted to finance-capable roles.
		billing := v1.Group("/billing")
		{
			billing.GET("/balance", h.GetBalance)
			billing.GET("/transactions", h.ListTransactions)
			billing.GET("/invoices/:call_id", h.GetInvoice)

			admin := billing.Group("")
			admin.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleFinance, rbac.RoleSuperAdmin))
			{
				admin.POST("/credits", h.AddCredits)
				admin.POST("/refunds", h.Refund)
			}
		}

		// REPORTING routes
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleAnalyst, rbac.RoleFinance, rbac.RoleSuperAdmin))
		{
			reports.GET("/spend", h.SpendReport)
		}
	}
}
