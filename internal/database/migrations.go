package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/studhelper/studhelper/internal/models"
)

// Models lists every table owned by the service in dependency order.
func Models() []any {
	return []any{
		&models.Student{},
		&models.Team{},
		&models.TeamMembership{},
		&models.SprintReport{},
		&models.Rating{},
		&models.DialogSession{},
		&models.SystemSetting{},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
