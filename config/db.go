package config

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gridpot/squares-backend/models"
)

// SetupDatabase connects to postgres and runs migrations. TranslateError is
// required so the store can tell duplicate-key violations apart from other
// failures.
func SetupDatabase(databaseURL string) *gorm.DB {
	if databaseURL == "" {
		log.Fatal("[FATAL] DATABASE_URL is required in .env or environment")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to DB: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Pool{},
		&models.WinnerRecord{},
		&models.ClaimCode{},
		&models.ParticipantIndex{},
		&models.AuditEntry{},
	); err != nil {
		log.Fatalf("[FATAL] Migration failed: %v", err)
	}

	log.Println("database migration completed")
	return db
}
