package config

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
	"p9e.in/reasonsform/pkg/logger"
)

// SeedAdmin creates the bootstrap super admin when ADMIN_USERNAME and
// ADMIN_PASSWORD are set and the account does not exist yet.
func SeedAdmin(db *gorm.DB, username, password string) error {
	if username == "" || password == "" {
		logger.Info("⚠️  ADMIN_USERNAME/ADMIN_PASSWORD not set, skipping admin seeding")
		return nil
	}

	var existing models.AdminUser
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up admin %q: %w", username, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	admin := models.AdminUser{
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin %q: %w", username, err)
	}
	logger.Info("✅ Seeded super admin %s", username)
	return nil
}
