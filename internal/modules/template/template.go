// Package template exposes CRUD and lifecycle operations for content
// templates. Incoming payloads pass through the schema package's
// submission pipeline before anything touches the database.
package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ratepoint/core/internal/middleware"
	"github.com/ratepoint/core/internal/models"
	"github.com/ratepoint/core/internal/modules/template/schema"
	"github.com/ratepoint/core/internal/pkg/pagination"
	"github.com/ratepoint/core/internal/pkg/response"
	"gorm.io/gorm"
)

type SaveTemplateDTO struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"displayName"`
	Description string         `json:"description"`
	FullMarks   int            `json:"fullMarks"`
	Fields      []schema.Field `json:"fields"`
}

func (dto *SaveTemplateDTO) toSchema(id int64, published bool) schema.Template {
	fullMarks := dto.FullMarks
	if fullMarks <= 0 {
		fullMarks = schema.Blank().FullMarks
	}
	return schema.Template{
		ID:          id,
		Name:        dto.Name,
		DisplayName: dto.DisplayName,
		Description: dto.Description,
		FullMarks:   fullMarks,
		IsPublished: published,
		Fields:      dto.Fields,
	}
}

type templateResponse struct {
	models.TemplateModel
	CreatorName string `json:"creatorName,omitempty"`
	UpdaterName string `json:"updaterName,omitempty"`
}

var (
	errTemplateNotFound = errors.New("template not found")
	errDuplicateName    = errors.New("template name already exists")
	errTemplateInUse    = errors.New("template has items")
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type ListFilter struct {
	Search string
	Status string // published | draft | "" (all)
}

func (s *Service) List(q pagination.Query, f ListFilter, order string) (pagination.Result[models.TemplateModel], error) {
	tx := s.db.Model(&models.TemplateModel{})
	if f.Search != "" {
		like := "%" + f.Search + "%"
		tx = tx.Where("name LIKE ? OR display_name LIKE ?", like, like)
	}
	switch f.Status {
	case "published":
		tx = tx.Where("is_published = ?", true)
	case "draft":
		tx = tx.Where("is_published = ?", false)
	}
	return pagination.Paginate[models.TemplateModel](tx.Order(order), q)
}

func (s *Service) GetByID(id int64) (*models.TemplateModel, error) {
	var t models.TemplateModel
	err := s.db.
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC") }).
		First(&t, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create runs the submission pipeline over the payload and persists the
// result. Placeholder (negative) field ids from the editing session are
// discarded; the database assigns real ids.
func (s *Service) Create(dto *SaveTemplateDTO, operatorID int64) (*models.TemplateModel, error) {
	sess := schema.NewSession(schema.ModeCreate, dto.toSchema(0, false))
	prepared, err := sess.PrepareForSubmission()
	if err != nil {
		return nil, err
	}
	if taken, err := s.nameTaken(prepared.Name, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, errDuplicateName
	}

	t := models.TemplateModel{
		Name:        prepared.Name,
		DisplayName: prepared.DisplayName,
		Description: prepared.Description,
		FullMarks:   prepared.FullMarks,
	}
	t.CreatedBy = operatorID
	t.UpdatedBy = operatorID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		for _, f := range prepared.Fields {
			row := fieldRow(t.ID, f)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(t.ID)
}

// Update replaces the template's columns and reconciles its field list:
// rows matching a payload field id are updated in place, negative or
// unknown ids become new rows, and rows absent from the payload are
// removed. Field ids survive updates so item values keep their reference.
func (s *Service) Update(id int64, dto *SaveTemplateDTO, operatorID int64) (*models.TemplateModel, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	sess := schema.NewSession(schema.ModeEdit, dto.toSchema(id, existing.IsPublished))
	prepared, err := sess.PrepareForSubmission()
	if err != nil {
		return nil, err
	}
	if taken, err := s.nameTaken(prepared.Name, id); err != nil {
		return nil, err
	} else if taken {
		return nil, errDuplicateName
	}

	keep := make(map[int64]bool, len(prepared.Fields))
	current := make(map[int64]bool, len(existing.Fields))
	for _, f := range existing.Fields {
		current[f.ID] = true
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"name":         prepared.Name,
			"display_name": prepared.DisplayName,
			"description":  prepared.Description,
			"full_marks":   prepared.FullMarks,
			"updated_by":   operatorID,
		}
		if err := tx.Model(&models.TemplateModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		for _, f := range prepared.Fields {
			row := fieldRow(id, f)
			if f.ID > 0 && current[f.ID] {
				row.ID = f.ID
				keep[f.ID] = true
				if err := tx.Model(&models.TemplateFieldModel{}).Where("id = ?", f.ID).
					Select("*").Omit("id", "template_id", "created_at", "deleted_at").
					Updates(&row).Error; err != nil {
					return err
				}
			} else {
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
		}
		for _, f := range existing.Fields {
			if !keep[f.ID] {
				if err := tx.Delete(&models.TemplateFieldModel{}, "id = ?", f.ID).Error; err != nil {
					return err
				}
			}
		}
		return nil
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
	var itemCount int64
	if err := s.db.Model(&models.ItemModel{}).Where("template_id = ?", id).Count(&itemCount).Error; err != nil {
		return err
	}
	if itemCount > 0 {
		return errTemplateInUse
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.TemplateFieldModel{}, "template_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.TemplateModel{}, "id = ?", id).Error
	})
}

// Clone copies a template under a derived unique name. The copy starts
// unpublished and its fields get fresh ids.
func (s *Service) Clone(id int64, operatorID int64) (*models.TemplateModel, error) {
	src, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	name, err := s.cloneName(src.Name)
	if err != nil {
		return nil, err
	}

	t := models.TemplateModel{
		Name:        name,
		DisplayName: src.DisplayName + " (copy)",
		Description: src.Description,
		FullMarks:   src.FullMarks,
	}
	t.CreatedBy = operatorID
	t.UpdatedBy = operatorID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		for _, f := range src.Fields {
			row := fieldRow(t.ID, f.SchemaField())
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(t.ID)
}

func (s *Service) SetPublished(id int64, published bool, operatorID int64) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	return s.db.Model(&models.TemplateModel{}).Where("id = ?", id).
		Updates(map[string]any{"is_published": published, "updated_by": operatorID}).Error
}

func (s *Service) nameTaken(name string, excludeID int64) (bool, error) {
	var count int64
	tx := s.db.Model(&models.TemplateModel{}).Where("name = ?", name)
	if excludeID > 0 {
		tx = tx.Where("id <> ?", excludeID)
	}
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) cloneName(base string) (string, error) {
	name := base + "-copy"
	for i := 2; ; i++ {
		taken, err := s.nameTaken(name, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
		name = fmt.Sprintf("%s-copy-%d", base, i)
	}
}

// operatorNames resolves user ids to usernames in one query.
func (s *Service) operatorNames(ids []int64) map[int64]string {
	out := map[int64]string{}
	if len(ids) == 0 {
		return out
	}
	var users []models.UserModel
	if err := s.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return out
	}
	for _, u := range users {
		out[u.ID] = u.Username
	}
	return out
}

func fieldRow(templateID int64, f schema.Field) models.TemplateFieldModel {
	return models.TemplateFieldModel{
		TemplateID:   templateID,
		Name:         f.Name,
		DisplayName:  f.DisplayName,
		Description:  f.Description,
		FieldType:    f.FieldType,
		IsRequired:   f.IsRequired,
		IsSearchable: f.IsSearchable,
		IsFilterable: f.IsFilterable,
		DisplayOrder: f.DisplayOrder,
		DataSourceID: f.DataSourceID,
		Rules:        f.Rules,
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/templates", authMW)

	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/clone", h.clone)
	g.PATCH("/:id/publish", h.publish)
	g.PATCH("/:id/unpublish", h.unpublish)
}

var templateSortColumns = map[string]string{
	"name":        "name",
	"displayName": "display_name",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"fullMarks":   "full_marks",
}

// GET /templates?search=&status=&sortBy=&sortOrder=
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	filter := ListFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Status: c.Query("status"),
	}
	order := pagination.SortClause(c, "sortBy", "sortOrder", templateSortColumns, "created_at DESC")

	result, err := h.svc.List(q, filter, order)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, pagination.Map(result, h.toResponse))
}

// GET /templates/:id
func (h *Handler) get(c *gin.Context) {
	t, err := h.svc.GetByID(paramID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, h.toResponse(*t))
}

// POST /templates
func (h *Handler) create(c *gin.Context) {
	var dto SaveTemplateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.svc.Create(&dto, middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, h.toResponse(*t))
}

// PUT /templates/:id
func (h *Handler) update(c *gin.Context) {
	var dto SaveTemplateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.svc.Update(paramID(c), &dto, middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, h.toResponse(*t))
}

// DELETE /templates/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(paramID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// POST /templates/:id/clone
func (h *Handler) clone(c *gin.Context) {
	t, err := h.svc.Clone(paramID(c), middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, h.toResponse(*t))
}

// PATCH /templates/:id/publish
func (h *Handler) publish(c *gin.Context) {
	h.setPublished(c, true)
}

// PATCH /templates/:id/unpublish
func (h *Handler) unpublish(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *Handler) setPublished(c *gin.Context, published bool) {
	if err := h.svc.SetPublished(paramID(c), published, middleware.CurrentUserID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) toResponse(t models.TemplateModel) templateResponse {
	names := h.svc.operatorNames([]int64{t.CreatedBy, t.UpdatedBy})
	return templateResponse{
		TemplateModel: t,
		CreatorName:   names[t.CreatedBy],
		UpdaterName:   names[t.UpdatedBy],
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errTemplateNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, errDuplicateName), errors.Is(err, errTemplateInUse):
		response.Conflict(c, err.Error())
	case errors.Is(err, schema.ErrTemplateIncomplete):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func paramID(c *gin.Context) int64 {
	var id int64
	fmt.Sscanf(c.Param("id"), "%d", &id)
	return id
}
