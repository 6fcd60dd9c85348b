package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	apiCachePrefix      = "rp:api-cache:"
	defaultHTTPCacheTTL = 15 * time.Second
	httpCacheMaxBody    = 1 << 20 // 1 MiB
)

// HTTPCacheOptions configures the response cache.
type HTTPCacheOptions struct {
	TTL       time.Duration
	Disable   bool
	SkipPaths []string
}

type cachedHTTPResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	BodyBase64  string `json:"body_base64"`
	Body        []byte `json:"-"`
}

type cacheBodyWriter struct {
	gin.ResponseWriter
	body     []byte
	overflow bool
}

func (w *cacheBodyWriter) Write(data []byte) (int, error) {
	w.capture(data)
	return w.ResponseWriter.Write(data)
}

func (w *cacheBodyWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *cacheBodyWriter) capture(data []byte) {
	if w.overflow || len(data) == 0 {
		return
	}
	remaining := httpCacheMaxBody - len(w.body)
	if remaining <= 0 || len(data) > remaining {
		w.overflow = true
		return
	}
	w.body = append(w.body, data...)
}

// HTTPCache caches successful anonymous GET responses in Redis for a short
// TTL. Authenticated requests bypass the cache so operators always see
// fresh data after a write.
func HTTPCache(rdb *redis.Client, opts HTTPCacheOptions) gin.HandlerFunc {
	if opts.TTL <= 0 {
		opts.TTL = defaultHTTPCacheTTL
	}
	return func(c *gin.Context) {
		if opts.Disable || rdb == nil || c.Request.Method != http.MethodGet || IsAuthenticated(c) {
			c.Next()
			return
		}
		for _, skip := range opts.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, skip) {
				c.Next()
				return
			}
		}

		cacheKey := apiCachePrefix + c.Request.URL.RequestURI()
		if payload, ok := readCachedResponse(c.Request.Context(), rdb, cacheKey); ok {
			c.Header("X-Api-Cache", "hit")
			c.Data(payload.Status, payload.ContentType, payload.Body)
			c.Abort()
			return
		}

		buffer := &cacheBodyWriter{ResponseWriter: c.Writer}
		c.Writer = buffer
		c.Next()

		status := c.Writer.Status()
		if status != http.StatusOK || buffer.overflow || len(buffer.body) == 0 {
			return
		}
		entry := cachedHTTPResponse{
			Status:      status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			BodyBase64:  base64.StdEncoding.EncodeToString(buffer.body),
		}
		if raw, err := json.Marshal(entry); err == nil {
			rdb.Set(c.Request.Context(), cacheKey, raw, opts.TTL)
		}
	}
}

// PurgeHTTPCache removes every cached API response. Called after writes
// that must be visible to anonymous readers immediately.
func PurgeHTTPCache(ctx context.Context, rdb *redis.Client) (int64, error) {
	var deleted int64
	iter := rdb.Scan(ctx, 0, apiCachePrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		if err := rdb.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	return deleted, iter.Err()
}

func readCachedResponse(ctx context.Context, rdb *redis.Client, key string) (*cachedHTTPResponse, bool) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var entry cachedHTTPResponse
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	body, err := base64.StdEncoding.DecodeString(entry.BodyBase64)
	if err != nil {
		return nil, false
	}
	entry.Body = body
	if entry.ContentType == "" {
		entry.ContentType = "application/json; charset=utf-8"
	}
	return &entry, true
}
