package db

import (
	"github.com/pixelift/backend/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Artifact{},
		&domain.EnhancementRecord{},
	)
	if err != nil {
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		return err
	}

	return nil
}

func createCustomIndexes(db *gorm.DB) error {
	// History listing is always newest first, usually filtered by status
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_enhancement_records_status_created
		ON enhancement_records (status, created_at DESC)
	`).Error; err != nil {
		return err
	}

	return nil
}
