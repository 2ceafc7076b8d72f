package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/gridpot/squares-backend/controllers"
	"github.com/gridpot/squares-backend/services"
)

func SetupRoutes(r *gin.Engine, a *controllers.API, hub *services.Hub) {
	api := r.Group("/api")

	// ----------------------
	// Identity routes
	// ----------------------
	api.GET("/identity", a.ResolveIdentity)                   // Resolve caller, minting a guest key if needed
	api.POST("/pools/:id/claim-codes", a.CreateClaimCode)     // Issue a guest-to-account claim code
	api.POST("/claim/:code", a.ClaimByCode)                   // Redeem a claim code
	api.POST("/pools/:id/merge", a.MergeGuestCells)           // Codeless guest-to-account transfer

	// ----------------------
	// Pool routes
	// ----------------------
	api.POST("/pools", a.CreatePool)                          // Create pool (admin)
	api.GET("/pools/:id", a.GetPool)                          // Grid + config
	api.POST("/pools/:id/lock", a.LockPool)                   // Freeze grid, assign digits (admin)
	api.POST("/pools/:id/reserve", a.ReserveCells)            // Claim cells
	api.GET("/pools/:id/participants", a.ListParticipants)    // Per-identity aggregates
	api.GET("/pools/:id/audit", a.ListAudit)                  // Append-only dispute log

	// ----------------------
	// Score + winner routes
	// ----------------------
	api.POST("/pools/:id/scores", a.IngestScore)              // Feed intake
	api.GET("/pools/:id/winners", a.ListWinners)              // Winner records
	api.PATCH("/winners/:id/paid", a.MarkWinnerPaid)          // Toggle paid flag (admin)

	// WebSocket live pool state
	r.GET("/ws/pools/:id", hub.HandleWebSocket)
}
