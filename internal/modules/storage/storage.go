// Package storage handles uploads for image fields. Objects go to S3
// when configured, otherwise to the local static directory served by
// the app itself.
package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ratepoint/core/internal/config"
	"github.com/ratepoint/core/internal/pkg/response"
)

// allowed upload type prefixes; anything else is rejected before
// touching a path.
var uploadTypes = map[string]bool{
	"image":  true,
	"file":   true,
	"avatar": true,
}

type UploadResult struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Storage string `json:"storage"`
}

type Service struct {
	opts      config.S3Options
	staticDir string
	s3Client  *s3.Client
}

func NewService(opts config.S3Options, staticDir string) *Service {
	s := &Service{opts: opts, staticDir: staticDir}
	if opts.Enabled() {
		cfg := aws.Config{
			Region:      opts.Region,
			Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		}
		s.s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if opts.Endpoint != "" {
				o.BaseEndpoint = aws.String(opts.Endpoint)
				o.UsePathStyle = true
			}
		})
	}
	return s
}

// Upload stores the file under a type-scoped key and returns its URL.
func (s *Service) Upload(ctx context.Context, typ string, header *multipart.FileHeader) (*UploadResult, error) {
	name := buildObjectName(header.Filename)
	if s.s3Client != nil {
		return s.uploadS3(ctx, typ, name, header)
	}
	return s.uploadLocal(typ, name, header)
}

func (s *Service) uploadS3(ctx context.Context, typ, name string, header *multipart.FileHeader) (*UploadResult, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	key := typ + "/" + name
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(header.Size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put object: %w", err)
	}

	return &UploadResult{URL: s.publicURL(key), Name: name, Storage: "s3"}, nil
}

func (s *Service) uploadLocal(typ, name string, header *multipart.FileHeader) (*UploadResult, error) {
	dir := filepath.Join(s.staticDir, typ)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	defer dst.Close()
	if _, err := dst.ReadFrom(src); err != nil {
		return nil, err
	}

	return &UploadResult{URL: "/static/" + typ + "/" + name, Name: name, Storage: "local"}, nil
}

func (s *Service) publicURL(key string) string {
	if s.opts.CustomDomain != "" {
		return strings.TrimRight(s.opts.CustomDomain, "/") + "/" + key
	}
	if s.opts.Endpoint != "" {
		return strings.TrimRight(s.opts.Endpoint, "/") + "/" + s.opts.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
}

func buildObjectName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/files", authMW)
	g.POST("/upload", h.upload)
}

// POST /files/upload?type=image
func (h *Handler) upload(c *gin.Context) {
	typ := c.DefaultQuery("type", "file")
	if !uploadTypes[typ] {
		response.BadRequest(c, "invalid upload type")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}

	result, err := h.svc.Upload(c.Request.Context(), typ, header)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, result)
}
