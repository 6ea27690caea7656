package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"p9e.in/reasonsform/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250610_create_claim_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Request{}, &models.Attachment{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.Attachment{}, &models.Request{})
			},
		},
		{
			ID: "20250702_add_admin_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.AdminUser{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.AdminUser{})
			},
		},
		{
			ID: "20250915_add_request_status_logs",
			Migrate: func(tx *gorm.DB) error {
				// requests is listed so its OnDelete:CASCADE constraint is parsed before the log table is created.
				return tx.AutoMigrate(&models.Request{}, &models.RequestStatusLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.RequestStatusLog{})
			},
		},
	})
	return m.Migrate()
}
