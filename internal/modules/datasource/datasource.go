// Package datasource manages the external enumerations referenced by
// select and multiselect template fields.
package datasource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ratepoint/core/internal/models"
	"github.com/ratepoint/core/internal/pkg/response"
	"gorm.io/gorm"
)

type EntryDTO struct {
	Value     string `json:"value" binding:"required"`
	Label     string `json:"label"`
	SortOrder int    `json:"sortOrder"`
}

type SaveDataSourceDTO struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Entries     []EntryDTO `json:"entries"`
}

var (
	errSourceNotFound  = errors.New("data source not found")
	errDuplicateSource = errors.New("data source name already exists")
	errSourceInUse     = errors.New("data source is referenced by template fields")
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) List() ([]models.DataSourceModel, error) {
	var sources []models.DataSourceModel
	err := s.db.
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		Order("name ASC").
		Find(&sources).Error
	return sources, err
}

func (s *Service) GetByID(id int64) (*models.DataSourceModel, error) {
	var src models.DataSourceModel
	err := s.db.
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		First(&src, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errSourceNotFound
		}
		return nil, err
	}
	return &src, nil
}

func (s *Service) Entries(id int64) ([]models.DataSourceEntryModel, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}
	var entries []models.DataSourceEntryModel
	err := s.db.Where("data_source_id = ?", id).
		Order("sort_order ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (s *Service) Create(dto *SaveDataSourceDTO) (*models.DataSourceModel, error) {
	if taken, err := s.nameTaken(dto.Name, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, errDuplicateSource
	}

	src := models.DataSourceModel{
		Name:        strings.TrimSpace(dto.Name),
		Description: dto.Description,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&src).Error; err != nil {
			return err
		}
		return writeEntries(tx, src.ID, dto.Entries)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(src.ID)
}

// Update replaces the source's columns and rewrites its entry list.
func (s *Service) Update(id int64, dto *SaveDataSourceDTO) (*models.DataSourceModel, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}
	if taken, err := s.nameTaken(dto.Name, id); err != nil {
		return nil, err
	} else if taken {
		return nil, errDuplicateSource
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"name":        strings.TrimSpace(dto.Name),
			"description": dto.Description,
		}
		if err := tx.Model(&models.DataSourceModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.DataSourceEntryModel{}, "data_source_id = ?", id).Error; err != nil {
			return err
		}
		return writeEntries(tx, id, dto.Entries)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *Service) Delete(id int64) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	var refs int64
	if err := s.db.Model(&models.TemplateFieldModel{}).Where("data_source_id = ?", id).Count(&refs).Error; err != nil {
		return err
	}
	if refs > 0 {
		return errSourceInUse
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.DataSourceEntryModel{}, "data_source_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.DataSourceModel{}, "id = ?", id).Error
	})
}

func (s *Service) nameTaken(name string, excludeID int64) (bool, error) {
	var count int64
	tx := s.db.Model(&models.DataSourceModel{}).Where("name = ?", strings.TrimSpace(name))
	if excludeID > 0 {
		tx = tx.Where("id <> ?", excludeID)
	}
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func writeEntries(tx *gorm.DB, sourceID int64, entries []EntryDTO) error {
	for i, e := range entries {
		sortOrder := e.SortOrder
		if sortOrder == 0 {
			sortOrder = i + 1
		}
		row := models.DataSourceEntryModel{
			DataSourceID: sourceID,
			Value:        e.Value,
			Label:        e.Label,
			SortOrder:    sortOrder,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/data-sources", authMW)

	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/entries", h.entries)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

// GET /data-sources
func (h *Handler) list(c *gin.Context) {
	sources, err := h.svc.List()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, sources)
}

// GET /data-sources/:id
func (h *Handler) get(c *gin.Context) {
	src, err := h.svc.GetByID(sourceID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, src)
}

// GET /data-sources/:id/entries
func (h *Handler) entries(c *gin.Context) {
	entries, err := h.svc.Entries(sourceID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, entries)
}

// POST /data-sources
func (h *Handler) create(c *gin.Context) {
	var dto SaveDataSourceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	src, err := h.svc.Create(&dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, src)
}

// PUT /data-sources/:id
func (h *Handler) update(c *gin.Context) {
	var dto SaveDataSourceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	src, err := h.svc.Update(sourceID(c), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, src)
}

// DELETE /data-sources/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(sourceID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errSourceNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, errDuplicateSource), errors.Is(err, errSourceInUse):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func sourceID(c *gin.Context) int64 {
	var id int64
	fmt.Sscanf(c.Param("id"), "%d", &id)
	return id
}
