package app

import (
	"context"
	"time"

	"github.com/ratepoint/core/internal/models"
	pkgcron "github.com/ratepoint/core/internal/pkg/cron"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs() {
	db := a.db
	log := a.logger.Named("cron")

	a.sched.Register(pkgcron.Job{
		Name:        "statistics_refresh",
		Description: "recompute the dashboard statistics cache",
		Interval:    5 * time.Minute,
		Fn: func(ctx context.Context) error {
			_, err := a.statsSvc.Refresh(ctx)
			if err != nil {
				log.Warn("statistics refresh failed", zap.Error(err))
			}
			return err
		},
	})

	a.sched.Register(pkgcron.Job{
		Name:        "orphan_field_values_cleanup",
		Description: "remove field values whose item or field no longer exists",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			result := db.WithContext(ctx).
				Where("item_id NOT IN (?)", db.Model(&models.ItemModel{}).Select("id")).
				Or("field_id NOT IN (?)", db.Model(&models.TemplateFieldModel{}).Select("id")).
				Delete(&models.ItemFieldValueModel{})
			if result.Error != nil {
				log.Warn("orphan field value cleanup failed", zap.Error(result.Error))
				return result.Error
			}
			if result.RowsAffected > 0 {
				log.Info("removed orphan field values", zap.Int64("count", result.RowsAffected))
			}
			return nil
		},
	})

	// Aggregates are maintained inside the rating transaction; this pass
	// repairs drift from manual database edits.
	a.sched.Register(pkgcron.Job{
		Name:        "rating_aggregates_repair",
		Description: "resync denormalized item rating aggregates",
		Interval:    6 * time.Hour,
		Fn: func(ctx context.Context) error {
			return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				err := tx.Exec(`
					UPDATE items i
					LEFT JOIN (
						SELECT item_id, AVG(rating) AS avg_rating, COUNT(*) AS ratings_count
						FROM ratings
						WHERE deleted_at IS NULL
						GROUP BY item_id
					) r ON r.item_id = i.id
					SET i.avg_rating = COALESCE(r.avg_rating, 0),
						i.ratings_count = COALESCE(r.ratings_count, 0)`).Error
				if err != nil {
					log.Warn("rating aggregate repair failed", zap.Error(err))
				}
				return err
			})
		},
	})
}
