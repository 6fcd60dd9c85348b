// Package user manages dashboard operator accounts and the role lookup.
package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ratepoint/core/internal/middleware"
	"github.com/ratepoint/core/internal/models"
	"github.com/ratepoint/core/internal/pkg/pagination"
	"github.com/ratepoint/core/internal/pkg/response"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CreateUserDTO struct {
	Username string `json:"username" binding:"required,min=3"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	RoleID   int64  `json:"roleId"   binding:"required"`
	Avatar   string `json:"avatar"`
}

type UpdateUserDTO struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	RoleID   *int64  `json:"roleId"`
	Avatar   *string `json:"avatar"`
}

// userResponse keeps the time keys the dashboard's user screens read
// (createdTime/updatedTime rather than the createdAt used elsewhere).
type userResponse struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	RoleID      int64     `json:"roleId"`
	RoleName    string    `json:"roleName"`
	Avatar      string    `json:"avatar"`
	CreatedTime time.Time `json:"createdTime"`
	UpdatedTime time.Time `json:"updatedTime"`
}

var (
	errUserNotFound   = errors.New("user not found")
	errDuplicateUser  = errors.New("username or email already exists")
	errUnknownRole    = errors.New("unknown role")
	errSelfDeletion   = errors.New("cannot delete the signed-in account")
	errWeakPassword   = errors.New("password must be at least 6 characters")
	errNothingToApply = errors.New("no fields to update")
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type ListFilter struct {
	Username         string
	Email            string
	RoleID           int64
	CreatedTimeStart string
	CreatedTimeEnd   string
}

func (s *Service) List(q pagination.Query, f ListFilter) (pagination.Result[models.UserModel], error) {
	tx := s.db.Model(&models.UserModel{}).Order("created_at DESC")
	if f.Username != "" {
		tx = tx.Where("username LIKE ?", "%"+f.Username+"%")
	}
	if f.Email != "" {
		tx = tx.Where("email LIKE ?", "%"+f.Email+"%")
	}
	if f.RoleID > 0 {
		tx = tx.Where("role_id = ?", f.RoleID)
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
	return pagination.Paginate[models.UserModel](tx, q)
}

func (s *Service) GetByID(id int64) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) Roles() ([]models.RoleModel, error) {
	var roles []models.RoleModel
	return roles, s.db.Order("id ASC").Find(&roles).Error
}

func (s *Service) Create(dto *CreateUserDTO) (*models.UserModel, error) {
	if err := s.checkRole(dto.RoleID); err != nil {
		return nil, err
	}
	if taken, err := s.identityTaken(dto.Username, dto.Email, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, errDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := models.UserModel{
		Username: strings.TrimSpace(dto.Username),
		Email:    strings.TrimSpace(dto.Email),
		Password: string(hash),
		RoleID:   dto.RoleID,
		Avatar:   dto.Avatar,
	}
	return &u, s.db.Create(&u).Error
}

func (s *Service) Update(id int64, dto *UpdateUserDTO) (*models.UserModel, error) {
	u, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if dto.Username != nil {
		updates["username"] = strings.TrimSpace(*dto.Username)
	}
	if dto.Email != nil {
		updates["email"] = strings.TrimSpace(*dto.Email)
	}
	if dto.RoleID != nil {
		if err := s.checkRole(*dto.RoleID); err != nil {
			return nil, err
		}
		updates["role_id"] = *dto.RoleID
	}
	if dto.Avatar != nil {
		updates["avatar"] = *dto.Avatar
	}
	if dto.Password != nil {
		if len(*dto.Password) < 6 {
			return nil, errWeakPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*dto.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hash)
	}
	if len(updates) == 0 {
		return nil, errNothingToApply
	}

	username := u.Username
	email := u.Email
	if dto.Username != nil {
		username = strings.TrimSpace(*dto.Username)
	}
	if dto.Email != nil {
		email = strings.TrimSpace(*dto.Email)
	}
	if taken, err := s.identityTaken(username, email, id); err != nil {
		return nil, err
	} else if taken {
		return nil, errDuplicateUser
	}

	if err := s.db.Model(u).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *Service) Delete(id, operatorID int64) error {
	if id == operatorID {
		return errSelfDeletion
	}
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	return s.db.Delete(&models.UserModel{}, "id = ?", id).Error
}

func (s *Service) checkRole(roleID int64) error {
	var count int64
	if err := s.db.Model(&models.RoleModel{}).Where("id = ?", roleID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errUnknownRole
	}
	return nil
}

func (s *Service) identityTaken(username, email string, excludeID int64) (bool, error) {
	var count int64
	tx := s.db.Model(&models.UserModel{}).Where("username = ? OR email = ?", username, email)
	if excludeID > 0 {
		tx = tx.Where("id <> ?", excludeID)
	}
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) roleNames() map[int64]string {
	out := map[int64]string{}
	roles, err := s.Roles()
	if err != nil {
		return out
	}
	for _, r := range roles {
		out[r.ID] = r.Name
	}
	return out
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/users", authMW)

	g.GET("/me", h.me)
	g.GET("/roles", h.roles)
	g.GET("", h.list)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

// GET /users/me
func (h *Handler) me(c *gin.Context) {
	u, err := h.svc.GetByID(middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, h.toResponse(*u, h.svc.roleNames()))
}

// GET /users/roles
func (h *Handler) roles(c *gin.Context) {
	roles, err := h.svc.Roles()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, roles)
}

// GET /users?username=&email=&roleId=&createdTimeStart=&createdTimeEnd=
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	filter := ListFilter{
		Username:         strings.TrimSpace(c.Query("username")),
		Email:            strings.TrimSpace(c.Query("email")),
		CreatedTimeStart: c.Query("createdTimeStart"),
		CreatedTimeEnd:   c.Query("createdTimeEnd"),
	}
	fmt.Sscanf(c.Query("roleId"), "%d", &filter.RoleID)

	result, err := h.svc.List(q, filter)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	names := h.svc.roleNames()
	response.OK(c, pagination.Map(result, func(u models.UserModel) userResponse {
		return h.toResponse(u, names)
	}))
}

// POST /users
func (h *Handler) create(c *gin.Context) {
	var dto CreateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.Create(&dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, h.toResponse(*u, h.svc.roleNames()))
}

// PUT /users/:id
func (h *Handler) update(c *gin.Context) {
	var dto UpdateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.Update(userID(c), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, h.toResponse(*u, h.svc.roleNames()))
}

// DELETE /users/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(userID(c), middleware.CurrentUserID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) toResponse(u models.UserModel, roleNames map[int64]string) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		RoleID:      u.RoleID,
		RoleName:    roleNames[u.RoleID],
		Avatar:      u.Avatar,
		CreatedTime: u.CreatedAt,
		UpdatedTime: u.UpdatedAt,
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errUserNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, errDuplicateUser):
		response.Conflict(c, err.Error())
	case errors.Is(err, errUnknownRole), errors.Is(err, errWeakPassword),
		errors.Is(err, errSelfDeletion), errors.Is(err, errNothingToApply):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func userID(c *gin.Context) int64 {
	var id int64
	fmt.Sscanf(c.Param("id"), "%d", &id)
	return id
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
