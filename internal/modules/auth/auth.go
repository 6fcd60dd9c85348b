// Package auth issues access tokens for dashboard operators.
package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ratepoint/core/internal/models"
	jwtpkg "github.com/ratepoint/core/internal/pkg/jwt"
	"github.com/ratepoint/core/internal/pkg/response"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenDTO arrives as application/x-www-form-urlencoded, the shape the
// dashboard's login form posts.
type TokenDTO struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

const tokenTTL = 7 * 24 * time.Hour

var errBadCredentials = errors.New("invalid username or password")

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Login verifies the credentials and returns a signed bearer token.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(username, password string) (string, error) {
	var u models.UserModel
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errBadCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return "", errBadCredentials
	}
	return jwtpkg.Sign(u.ID, u.RoleID, u.Username, tokenTTL)
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	g.POST("/token", h.token)
}

// POST /auth/token
func (h *Handler) token(c *gin.Context) {
	var dto TokenDTO
	if err := c.ShouldBind(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, err := h.svc.Login(dto.Username, dto.Password)
	if err != nil {
		if errors.Is(err, errBadCredentials) {
			response.Unauthorized(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
