// Package upstream re-proxies dashboard requests to a legacy admin API.
// The upstream answers some calls with a redirect whose Location points
// at a path the public edge does not serve, so redirects are followed
// manually with the Location rewritten first.
package upstream

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ratepoint/core/internal/config"
	"github.com/ratepoint/core/internal/pkg/response"
	"go.uber.org/zap"
)

const forwardedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// maxBody bounds how much of a request body is buffered for replay
// across retries and the redirect hop.
const maxBody = 10 << 20

type Handler struct {
	opts   config.UpstreamOptions
	client *http.Client
	logger *zap.Logger
}

func NewHandler(opts config.UpstreamOptions, logger *zap.Logger) *Handler {
	return &Handler{
		opts: opts,
		client: &http.Client{
			Timeout: opts.Timeout.Std(),
			// Redirects are resolved by hand so the Location can be
			// rewritten before the second hop.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// RegisterRoutes mounts the re-proxy at the root, outside /api/v1.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.Any("/proxy/api/*path", h.proxy)
}

// ANY /proxy/api/*path
func (h *Handler) proxy(c *gin.Context) {
	target := strings.TrimRight(h.opts.BaseURL, "/") + c.Param("path")
	if raw := c.Request.URL.RawQuery; raw != "" {
		target += "?" + raw
	}

	var body []byte
	if hasBody(c.Request.Method) {
		var err error
		body, err = io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
		if err != nil {
			response.BadRequest(c, "unreadable request body")
			return
		}
	}

	resp, err := h.send(c, target, body)
	if err != nil {
		h.logger.Warn("upstream unreachable", zap.String("url", target), zap.Error(err))
		response.Error(c, http.StatusBadGateway, "upstream unreachable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		location := resp.Header.Get("Location")
		if location != "" {
			followed, err := h.send(c, h.rewriteLocation(location), body)
			if err != nil {
				h.logger.Warn("upstream redirect hop failed", zap.String("location", location), zap.Error(err))
				response.Error(c, http.StatusBadGateway, "upstream unreachable")
				return
			}
			defer followed.Body.Close()
			relay(c, followed)
			return
		}
	}

	relay(c, resp)
}

// send issues one upstream request, retrying network failures up to the
// configured count. HTTP error statuses are relayed, never retried.
func (h *Handler) send(c *gin.Context, target string, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= h.opts.Retries; attempt++ {
		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", forwardedUserAgent)
		if auth := c.GetHeader("Authorization"); auth != "" {
			req.Header.Set("Authorization", auth)
		}

		resp, err := h.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt < h.opts.Retries {
			time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
		}
	}
	return nil, lastErr
}

// rewriteLocation patches a redirect target whose prefix the upstream
// rewrote to a path the edge does not expose.
func (h *Handler) rewriteLocation(location string) string {
	if h.opts.RewriteFrom != "" && strings.HasPrefix(location, h.opts.RewriteFrom) {
		return h.opts.RewriteTo + strings.TrimPrefix(location, h.opts.RewriteFrom)
	}
	return location
}

// relay copies the upstream status, headers and raw bytes through
// untouched. The payload is not an envelope; the dashboard's proxy
// client parses the upstream's own format.
func relay(c *gin.Context, resp *http.Response) {
	for name, values := range resp.Header {
		if strings.EqualFold(name, "Transfer-Encoding") || strings.EqualFold(name, "Connection") {
			continue
		}
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}
	c.Status(resp.StatusCode)
	_, _ = io.Copy(c.Writer, resp.Body)
}

func hasBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}
