package upstream

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ratepoint/core/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newProxyRouter(t *testing.T, opts config.UpstreamOptions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if opts.Timeout == 0 {
		opts.Timeout = config.Duration(5 * time.Second)
	}
	r := gin.New()
	NewHandler(opts, zap.NewNop()).RegisterRoutes(r)
	return r
}

func TestProxyForwardsMethodBodyAndAuth(t *testing.T) {
	var got struct {
		method string
		path   string
		query  string
		auth   string
		body   string
	}
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.auth = r.Header.Get("Authorization")
		got.body = string(body)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer up.Close()

	r := newProxyRouter(t, config.UpstreamOptions{BaseURL: up.URL + "/admin-api/api"})

	req := httptest.NewRequest(http.MethodPost, "/proxy/api/v1/items?pageNo=2", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/admin-api/api/v1/items", got.path)
	assert.Equal(t, "pageNo=2", got.query)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Equal(t, `{"title":"x"}`, got.body)

	// Status, headers and body relayed untouched.
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))
	assert.Equal(t, `{"ok":true}`, w.Body.String())
}

func TestProxyFollowsOneRedirectWithRewrite(t *testing.T) {
	hops := 0
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		switch r.URL.Path {
		case "/admin-api/api/v1/templates":
			// The edge would answer this Location with 404; the proxy must
			// rewrite it back onto the admin-api prefix.
			w.Header().Set("Location", "/api/v1/templates/final")
			w.WriteHeader(http.StatusFound)
		case "/admin-api/api/v1/templates/final":
			w.Write([]byte("resolved"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer up.Close()

	r := newProxyRouter(t, config.UpstreamOptions{
		BaseURL:     up.URL + "/admin-api/api",
		RewriteFrom: "/api/",
		RewriteTo:   up.URL + "/admin-api/api/",
	})

	req := httptest.NewRequest(http.MethodGet, "/proxy/api/v1/templates", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 2, hops)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resolved", w.Body.String())
}

func TestProxyRetriesNetworkFailures(t *testing.T) {
	attempts := 0
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			// Drop the connection without a response.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte("finally"))
	}))
	defer up.Close()

	r := newProxyRouter(t, config.UpstreamOptions{BaseURL: up.URL, Retries: 2})

	req := httptest.NewRequest(http.MethodGet, "/proxy/api/v1/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "finally", w.Body.String())
}

func TestProxyUnreachableUpstreamIs502(t *testing.T) {
	r := newProxyRouter(t, config.UpstreamOptions{
		BaseURL: "http://127.0.0.1:1",
		Timeout: config.Duration(500 * time.Millisecond),
	})

	req := httptest.NewRequest(http.MethodGet, "/proxy/api/v1/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"502"`)
}

func TestProxyErrorStatusesAreNotRetried(t *testing.T) {
	attempts := 0
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer up.Close()

	r := newProxyRouter(t, config.UpstreamOptions{BaseURL: up.URL, Retries: 2})

	req := httptest.NewRequest(http.MethodGet, "/proxy/api/v1/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 1, attempts)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
