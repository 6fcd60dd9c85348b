package database

import (
	"errors"
	"fmt"

	"github.com/ratepoint/core/internal/config"
	"github.com/ratepoint/core/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a MySQL connection and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if autoMigrate {
		if err := migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	return db, nil
}

// migrate runs GORM auto-migration for all models and seeds the role table.
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.RoleModel{},
		&models.UserModel{},
		&models.TemplateModel{},
		&models.TemplateFieldModel{},
		&models.ItemModel{},
		&models.ItemFieldValueModel{},
		&models.RatingModel{},
		&models.DataSourceModel{},
		&models.DataSourceEntryModel{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() == "mysql" {
		if err := db.Exec("ALTER TABLE `template_fields` MODIFY COLUMN `rules` LONGTEXT NULL").Error; err != nil {
			return err
		}
		if err := db.Exec("ALTER TABLE `item_field_values` MODIFY COLUMN `value` LONGTEXT NULL").Error; err != nil {
			return err
		}
	}

	return seedRoles(db)
}

func seedRoles(db *gorm.DB) error {
	for _, name := range []string{models.RoleAdmin, models.RoleEditor, models.RoleViewer} {
		var existing models.RoleModel
		err := db.Where("name = ?", name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&models.RoleModel{Name: name}).Error; err != nil {
			return err
		}
	}
	return nil
}
