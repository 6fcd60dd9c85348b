// Package statistics aggregates item and rating counts for the
// dashboard's overview screen.
package statistics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ratepoint/core/internal/models"
	redispkg "github.com/ratepoint/core/internal/pkg/redis"
	"github.com/ratepoint/core/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	cacheKey = "rp:statistics:total"
	// Outlives the 5-minute background refresh so reads between job
	// runs hit the cache.
	cacheTTL = 6 * time.Minute
)

type Overall struct {
	AverageRating float64 `json:"averageRating"`
	TotalRatings  int64   `json:"totalRatings"`
}

type Totals struct {
	TotalItems        int64            `json:"totalItems"`
	ItemsByTemplate   map[string]int64 `json:"itemsByTemplate"`
	OverallStatistics Overall          `json:"overallStatistics"`
}

type Service struct {
	db    *gorm.DB
	cache *redispkg.Client
}

// NewService builds the service; cache may be nil, in which case every
// read recomputes.
func NewService(db *gorm.DB, cache *redispkg.Client) *Service {
	return &Service{db: db, cache: cache}
}

// Totals returns the aggregate counts, served from the short-TTL cache
// when present.
func (s *Service) Totals(ctx context.Context) (*Totals, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil && raw != "" {
			var t Totals
			if json.Unmarshal([]byte(raw), &t) == nil {
				return &t, nil
			}
		}
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the aggregates and rewrites the cache entry. The
// background scheduler calls this so interactive reads mostly stay warm.
func (s *Service) Refresh(ctx context.Context) (*Totals, error) {
	t := &Totals{ItemsByTemplate: map[string]int64{}}

	if err := s.db.WithContext(ctx).Model(&models.ItemModel{}).Count(&t.TotalItems).Error; err != nil {
		return nil, err
	}

	var perTemplate []struct {
		Name  string
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.ItemModel{}).
		Select("templates.name AS name, COUNT(items.id) AS count").
		Joins("JOIN templates ON templates.id = items.template_id").
		Group("templates.name").
		Scan(&perTemplate).Error
	if err != nil {
		return nil, err
	}
	for _, row := range perTemplate {
		t.ItemsByTemplate[row.Name] = row.Count
	}

	var overall struct {
		Avg   float64
		Count int64
	}
	err = s.db.WithContext(ctx).Model(&models.RatingModel{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Scan(&overall).Error
	if err != nil {
		return nil, err
	}
	t.OverallStatistics = Overall{AverageRating: overall.Avg, TotalRatings: overall.Count}

	if s.cache != nil {
		if raw, err := json.Marshal(t); err == nil {
			_ = s.cache.Set(ctx, cacheKey, raw, cacheTTL)
		}
	}
	return t, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/statistics", authMW)
	g.GET("/total", h.total)
}

// GET /statistics/total
func (h *Handler) total(c *gin.Context) {
	t, err := h.svc.Totals(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, t)
}
