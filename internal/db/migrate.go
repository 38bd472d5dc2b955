package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/planyard/internal/models"
)

// AllModels returns every GORM model for migration, parents first.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.PasswordResetToken{},
		&models.Project{},
		&models.ProjectVersion{},
		&models.Attachment{},
		&models.Task{},
		&models.TaskResource{},
		&models.TaskComment{},
		&models.ScheduleVersion{},
		&models.TaskVersionHistory{},
		&models.VersionChangeReport{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedAdmin inserts the bootstrap administrator unless a user with the same
// username already exists. It reports whether a row was created.
func SeedAdmin(db *gorm.DB, username, email, passwordHash string) (bool, error) {
	admin := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		IsFirstLogin: true,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(&admin)
	if result.Error != nil {
		return false, fmt.Errorf("db: seed admin %q: %w", username, result.Error)
	}
	return result.RowsAffected > 0, nil
}
