package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gridpot/squares-backend/config"
	"github.com/gridpot/squares-backend/controllers"
	"github.com/gridpot/squares-backend/routes"
	"github.com/gridpot/squares-backend/services"
	"github.com/gridpot/squares-backend/store"
)

func main() {
	cfg := config.Load()

	db := config.SetupDatabase(cfg.DatabaseURL)
	st := store.NewGormStore(db)

	hub := services.NewHub(st)
	locks := services.NewLockService(st, hub)
	api := &controllers.API{
		Pools:        services.NewPoolService(st),
		Reservations: services.NewReservationService(st, hub),
		Identity:     services.NewIdentityService(st, hub),
		Locks:        locks,
		Payouts:      services.NewPayoutEngine(st, hub),
		Winners:      services.NewWinnerService(st),
		AdminToken:   cfg.AdminToken,
	}

	scheduler := services.NewLockScheduler(st, locks)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("[FATAL] Failed to start auto-lock scheduler: %v", err)
	}
	defer scheduler.Stop()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Account-ID", "X-Guest-Key", "X-Admin-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(r, api, hub)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	log.Printf("squares backend starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("[FATAL] Failed to start server: %v", err)
	}
}
