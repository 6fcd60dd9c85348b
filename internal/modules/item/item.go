// Package item manages content records created against published
// templates, and the per-user ratings attached to them.
package item

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ratepoint/core/internal/middleware"
	"github.com/ratepoint/core/internal/models"
	"github.com/ratepoint/core/internal/modules/template/schema"
	"github.com/ratepoint/core/internal/pkg/pagination"
	"github.com/ratepoint/core/internal/pkg/response"
	"gorm.io/gorm"
)

type FieldValueDTO struct {
	FieldID int64 `json:"fieldId" binding:"required"`
	Value   any   `json:"value"`
}

type SaveItemDTO struct {
	Title       string          `json:"title"      binding:"required"`
	Slug        string          `json:"slug"`
	TemplateID  int64           `json:"templateId" binding:"required"`
	FieldValues []FieldValueDTO `json:"fieldValues"`
}

type RateItemDTO struct {
	Rating     int    `json:"rating" binding:"required"`
	ReviewText string `json:"reviewText"`
}

type fieldValueResponse struct {
	FieldID     int64            `json:"fieldId"`
	FieldName   string           `json:"fieldName"`
	DisplayName string           `json:"displayName"`
	FieldType   schema.FieldType `json:"fieldType"`
	Value       any              `json:"value"`
}

type itemResponse struct {
	ID            int64                `json:"id"`
	Title         string               `json:"title"`
	Slug          string               `json:"slug"`
	TemplateID    int64                `json:"templateId"`
	TemplateName  string               `json:"templateName"`
	CreatedBy     int64                `json:"createdBy"`
	CreatedByName string               `json:"createdByName"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
	AvgRating     float64              `json:"avgRating"`
	RatingsCount  int                  `json:"ratingsCount"`
	ViewsCount    int                  `json:"viewsCount"`
	FieldValues   []fieldValueResponse `json:"fieldValues,omitempty"`
}

type ratingResponse struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"itemId"`
	UserID     int64     `json:"userId"`
	Username   string    `json:"username"`
	Rating     int       `json:"rating"`
	ReviewText string    `json:"reviewText"`
	ReviewHTML string    `json:"reviewHtml,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

var (
	errItemNotFound      = errors.New("item not found")
	errDuplicateSlug     = errors.New("item slug already exists")
	errTemplateNotFound  = errors.New("template not found")
	errTemplateDraft     = errors.New("template is not published")
	errRatingOutOfRange  = errors.New("rating out of range")
	errRatingNeedsSignIn = errors.New("rating requires an authenticated user")
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type ListFilter struct {
	Title            string
	TemplateID       int64
	CreatedTimeStart string
	CreatedTimeEnd   string
}

func (s *Service) List(q pagination.Query, f ListFilter, order string) (pagination.Result[models.ItemModel], error) {
	tx := s.db.Model(&models.ItemModel{})
	if f.Title != "" {
		tx = tx.Where("title LIKE ?", "%"+f.Title+"%")
	}
	if f.TemplateID > 0 {
		tx = tx.Where("template_id = ?", f.TemplateID)
	}
	if f.CreatedTimeStart != "" {
		if t, err := parseDate(f.CreatedTimeStart); err == nil {
			tx = tx.Where("created_at >= ?", t)
		}
	}
	if f.CreatedTimeEnd != "" {
		if t, err := parseDate(f.CreatedTimeEnd); err == nil {
			tx = tx.Where("created_at < ?", t.AddDate(0, 0, 1))
		}
	}
	return pagination.Paginate[models.ItemModel](tx.Order(order), q)
}

func (s *Service) GetByID(id int64) (*models.ItemModel, error) {
	var it models.ItemModel
	err := s.db.
		Preload("FieldValues").
		Preload("FieldValues.Field").
		Preload("Template").
		First(&it, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errItemNotFound
		}
		return nil, err
	}
	return &it, nil
}

// Create persists a new item. The target template must be published, and
// every submitted field value must pass the template's rule set.
func (s *Service) Create(dto *SaveItemDTO, operatorID int64) (*models.ItemModel, error) {
	tpl, err := s.loadPublishedTemplate(dto.TemplateID)
	if err != nil {
		return nil, err
	}
	values := dtoValues(dto.FieldValues)
	if err := validateValues(templateFields(tpl), values, s.dataSourceValues); err != nil {
		return nil, err
	}

	slug := dto.Slug
	if strings.TrimSpace(slug) == "" {
		slug = Slugify(dto.Title)
	}
	if taken, err := s.slugTaken(slug, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, errDuplicateSlug
	}

	it := models.ItemModel{
		Title:      strings.TrimSpace(dto.Title),
		Slug:       slug,
		TemplateID: tpl.ID,
	}
	it.CreatedBy = operatorID
	it.UpdatedBy = operatorID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&it).Error; err != nil {
			return err
		}
		return writeFieldValues(tx, it.ID, values)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(it.ID)
}

// Update replaces the item's title, slug and field values. Values are
// rewritten wholesale; nothing else references their row ids.
func (s *Service) Update(id int64, dto *SaveItemDTO, operatorID int64) (*models.ItemModel, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	tpl, err := s.loadPublishedTemplate(existing.TemplateID)
	if err != nil {
		return nil, err
	}
	values := dtoValues(dto.FieldValues)
	if err := validateValues(templateFields(tpl), values, s.dataSourceValues); err != nil {
		return nil, err
	}

	slug := dto.Slug
	if strings.TrimSpace(slug) == "" {
		slug = existing.Slug
	}
	if taken, err := s.slugTaken(slug, id); err != nil {
		return nil, err
	} else if taken {
		return nil, errDuplicateSlug
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"title":      strings.TrimSpace(dto.Title),
			"slug":       slug,
			"updated_by": operatorID,
		}
		if err := tx.Model(&models.ItemModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.ItemFieldValueModel{}, "item_id = ?", id).Error; err != nil {
			return err
		}
		return writeFieldValues(tx, id, values)
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
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ItemFieldValueModel{}, "item_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.RatingModel{}, "item_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ItemModel{}, "id = ?", id).Error
	})
}

func (s *Service) Ratings(itemID int64, q pagination.Query) (pagination.Result[models.RatingModel], error) {
	if _, err := s.GetByID(itemID); err != nil {
		return pagination.Result[models.RatingModel]{}, err
	}
	tx := s.db.Model(&models.RatingModel{}).Where("item_id = ?", itemID).Order("created_at DESC")
	return pagination.Paginate[models.RatingModel](tx, q)
}

// Rate records or replaces a user's rating of an item and refreshes the
// item's denormalized aggregates inside the same transaction. One rating
// per (item, user) pair.
func (s *Service) Rate(itemID, userID int64, dto *RateItemDTO) (*models.RatingModel, error) {
	if userID == 0 {
		return nil, errRatingNeedsSignIn
	}
	it, err := s.GetByID(itemID)
	if err != nil {
		return nil, err
	}
	var tpl models.TemplateModel
	if err := s.db.First(&tpl, "id = ?", it.TemplateID).Error; err != nil {
		return nil, err
	}
	if dto.Rating < 1 || dto.Rating > tpl.FullMarks {
		return nil, fmt.Errorf("%w: must be between 1 and %d", errRatingOutOfRange, tpl.FullMarks)
	}

	var rating models.RatingModel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("item_id = ? AND user_id = ?", itemID, userID).First(&rating).Error
		switch {
		case err == nil:
			rating.Rating = dto.Rating
			rating.ReviewText = dto.ReviewText
			if err := tx.Save(&rating).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			rating = models.RatingModel{
				ItemID:     itemID,
				UserID:     userID,
				Rating:     dto.Rating,
				ReviewText: dto.ReviewText,
			}
			if err := tx.Create(&rating).Error; err != nil {
				return err
			}
		default:
			return err
		}
		return refreshAggregates(tx, itemID)
	})
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func refreshAggregates(tx *gorm.DB, itemID int64) error {
	var agg struct {
		Avg   float64
		Count int64
	}
	err := tx.Model(&models.RatingModel{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Where("item_id = ?", itemID).
		Scan(&agg).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.ItemModel{}).Where("id = ?", itemID).
		Updates(map[string]any{"avg_rating": agg.Avg, "ratings_count": agg.Count}).Error
}

func (s *Service) loadPublishedTemplate(id int64) (*models.TemplateModel, error) {
	var tpl models.TemplateModel
	err := s.db.
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC") }).
		First(&tpl, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errTemplateNotFound
		}
		return nil, err
	}
	if !tpl.IsPublished {
		return nil, errTemplateDraft
	}
	return &tpl, nil
}

func (s *Service) dataSourceValues(dataSourceID int64) ([]string, error) {
	var entries []models.DataSourceEntryModel
	if err := s.db.Where("data_source_id = ?", dataSourceID).Find(&entries).Error; err != nil {
		return nil, err
	}
	values := make([]string, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return values, nil
}

func (s *Service) slugTaken(slug string, excludeID int64) (bool, error) {
	var count int64
	tx := s.db.Model(&models.ItemModel{}).Where("slug = ?", slug)
	if excludeID > 0 {
		tx = tx.Where("id <> ?", excludeID)
	}
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// templateNames resolves template ids to display names in one query.
func (s *Service) templateNames(ids []int64) map[int64]string {
	out := map[int64]string{}
	if len(ids) == 0 {
		return out
	}
	var tpls []models.TemplateModel
	if err := s.db.Where("id IN ?", ids).Find(&tpls).Error; err != nil {
		return out
	}
	for _, t := range tpls {
		out[t.ID] = t.Name
	}
	return out
}

func (s *Service) usernames(ids []int64) map[int64]string {
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

func dtoValues(values []FieldValueDTO) map[int64]any {
	out := make(map[int64]any, len(values))
	for _, v := range values {
		out[v.FieldID] = v.Value
	}
	return out
}

func writeFieldValues(tx *gorm.DB, itemID int64, values map[int64]any) error {
	for fieldID, value := range values {
		if value == nil {
			continue
		}
		row := models.ItemFieldValueModel{ItemID: itemID, FieldID: fieldID, Value: value}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func templateFields(tpl *models.TemplateModel) []schema.Field {
	fields := make([]schema.Field, len(tpl.Fields))
	for i, f := range tpl.Fields {
		fields[i] = f.SchemaField()
	}
	return fields
}

var slugStripPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a title.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStripPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/items", authMW)

	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/ratings", h.ratings)
	g.POST("/:id/ratings", h.rate)
}

var itemSortColumns = map[string]string{
	"title":        "title",
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"avgRating":    "avg_rating",
	"ratingsCount": "ratings_count",
	"viewsCount":   "views_count",
}

// GET /items?title=&templateId=&createdTimeStart=&createdTimeEnd=
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	filter := ListFilter{
		Title:            strings.TrimSpace(c.Query("title")),
		CreatedTimeStart: c.Query("createdTimeStart"),
		CreatedTimeEnd:   c.Query("createdTimeEnd"),
	}
	fmt.Sscanf(c.Query("templateId"), "%d", &filter.TemplateID)
	order := pagination.SortClause(c, "sortField", "sortOrder", itemSortColumns, "created_at DESC")

	result, err := h.svc.List(q, filter, order)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	tplIDs := make([]int64, 0, len(result.List))
	userIDs := make([]int64, 0, len(result.List))
	for _, it := range result.List {
		tplIDs = append(tplIDs, it.TemplateID)
		userIDs = append(userIDs, it.CreatedBy)
	}
	tplNames := h.svc.templateNames(tplIDs)
	userNames := h.svc.usernames(userIDs)

	response.OK(c, pagination.Map(result, func(it models.ItemModel) itemResponse {
		return toItemResponse(&it, tplNames[it.TemplateID], userNames[it.CreatedBy])
	}))
}

// GET /items/:id
func (h *Handler) get(c *gin.Context) {
	it, err := h.svc.GetByID(itemID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	tplName := ""
	if it.Template != nil {
		tplName = it.Template.Name
	}
	names := h.svc.usernames([]int64{it.CreatedBy})
	response.OK(c, toItemResponse(it, tplName, names[it.CreatedBy]))
}

// POST /items
func (h *Handler) create(c *gin.Context) {
	var dto SaveItemDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	it, err := h.svc.Create(&dto, middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	names := h.svc.usernames([]int64{it.CreatedBy})
	tplName := ""
	if it.Template != nil {
		tplName = it.Template.Name
	}
	response.Created(c, toItemResponse(it, tplName, names[it.CreatedBy]))
}

// PUT /items/:id
func (h *Handler) update(c *gin.Context) {
	var dto SaveItemDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	it, err := h.svc.Update(itemID(c), &dto, middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	tplName := ""
	if it.Template != nil {
		tplName = it.Template.Name
	}
	names := h.svc.usernames([]int64{it.CreatedBy})
	response.OK(c, toItemResponse(it, tplName, names[it.CreatedBy]))
}

// DELETE /items/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(itemID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// GET /items/:id/ratings
func (h *Handler) ratings(c *gin.Context) {
	q := pagination.FromContext(c)
	result, err := h.svc.Ratings(itemID(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	userIDs := make([]int64, 0, len(result.List))
	for _, r := range result.List {
		userIDs = append(userIDs, r.UserID)
	}
	names := h.svc.usernames(userIDs)

	response.OK(c, pagination.Map(result, func(r models.RatingModel) ratingResponse {
		return ratingResponse{
			ID:         r.ID,
			ItemID:     r.ItemID,
			UserID:     r.UserID,
			Username:   names[r.UserID],
			Rating:     r.Rating,
			ReviewText: r.ReviewText,
			ReviewHTML: renderReviewHTML(r.ReviewText),
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		}
	}))
}

// POST /items/:id/ratings
func (h *Handler) rate(c *gin.Context) {
	var dto RateItemDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	r, err := h.svc.Rate(itemID(c), middleware.CurrentUserID(c), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	names := h.svc.usernames([]int64{r.UserID})
	response.Created(c, ratingResponse{
		ID:         r.ID,
		ItemID:     r.ItemID,
		UserID:     r.UserID,
		Username:   names[r.UserID],
		Rating:     r.Rating,
		ReviewText: r.ReviewText,
		ReviewHTML: renderReviewHTML(r.ReviewText),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	})
}

func toItemResponse(it *models.ItemModel, templateName, createdByName string) itemResponse {
	out := itemResponse{
		ID:            it.ID,
		Title:         it.Title,
		Slug:          it.Slug,
		TemplateID:    it.TemplateID,
		TemplateName:  templateName,
		CreatedBy:     it.CreatedBy,
		CreatedByName: createdByName,
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
		AvgRating:     it.AvgRating,
		RatingsCount:  it.RatingsCount,
		ViewsCount:    it.ViewsCount,
	}
	for _, fv := range it.FieldValues {
		r := fieldValueResponse{FieldID: fv.FieldID, Value: fv.Value}
		if fv.Field != nil {
			r.FieldName = fv.Field.Name
			r.DisplayName = fv.Field.DisplayName
			r.FieldType = fv.Field.FieldType
		}
		out.FieldValues = append(out.FieldValues, r)
	}
	return out
}

func (h *Handler) fail(c *gin.Context, err error) {
	var verrs ValidationErrors
	switch {
	case errors.Is(err, errItemNotFound), errors.Is(err, errTemplateNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, errDuplicateSlug):
		response.Conflict(c, err.Error())
	case errors.Is(err, errTemplateDraft), errors.Is(err, errRatingOutOfRange):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, errRatingNeedsSignIn):
		response.Unauthorized(c)
	case errors.As(err, &verrs):
		response.UnprocessableEntity(c, verrs.Error())
	default:
		response.InternalError(c, err)
	}
}

func itemID(c *gin.Context) int64 {
	var id int64
	fmt.Sscanf(c.Param("id"), "%d", &id)
	return id
}
