package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ratepoint/core/internal/middleware"
	"github.com/ratepoint/core/internal/modules/auth"
	"github.com/ratepoint/core/internal/modules/datasource"
	"github.com/ratepoint/core/internal/modules/item"
	"github.com/ratepoint/core/internal/modules/statistics"
	"github.com/ratepoint/core/internal/modules/storage"
	"github.com/ratepoint/core/internal/modules/template"
	"github.com/ratepoint/core/internal/modules/upstream"
	"github.com/ratepoint/core/internal/modules/user"
	pkgredis "github.com/ratepoint/core/internal/pkg/redis"
	"github.com/ratepoint/core/internal/pkg/response"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes(rc *pkgredis.Client) {
	r := a.router
	db := a.db
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "")
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	// Rate limiting and idempotence run on every route (requires Redis).
	r.Use(middleware.RateLimit(rc.Raw()))
	r.Use(middleware.Idempotence(rc.Raw()))

	// Root-level endpoints: metrics, uploaded files, the legacy re-proxy.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/static", a.cfg.StaticDir)
	if a.cfg.Upstream.Enabled() {
		upstream.NewHandler(a.cfg.Upstream, a.logger.Named("upstream")).RegisterRoutes(r)
	}

	// Versioned API
	api := r.Group(apiPrefix)
	api.Use(middleware.OptionalAuth())
	api.Use(middleware.HTTPCache(rc.Raw(), middleware.HTTPCacheOptions{
		TTL:       15 * time.Second,
		Disable:   a.cfg.IsDev(),
		SkipPaths: httpCacheSkipPaths(),
	}))

	api.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": "pong"})
	})
	api.GET("/jobs", authMW, func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	api.GET("/clean_cache", authMW, func(c *gin.Context) {
		deleted, err := middleware.PurgeHTTPCache(c.Request.Context(), rc.Raw())
		if err != nil {
			response.InternalError(c, err)
			return
		}
		response.OK(c, gin.H{"deleted": deleted})
	})

	auth.NewHandler(auth.NewService(db)).RegisterRoutes(api)
	user.NewHandler(user.NewService(db)).RegisterRoutes(api, authMW)

	template.NewHandler(template.NewService(db)).RegisterRoutes(api, authMW)
	item.NewHandler(item.NewService(db)).RegisterRoutes(api, authMW)
	datasource.NewHandler(datasource.NewService(db)).RegisterRoutes(api, authMW)

	statistics.NewHandler(a.statsSvc).RegisterRoutes(api, authMW)

	storageSvc := storage.NewService(a.cfg.S3, a.cfg.StaticDir)
	storage.NewHandler(storageSvc).RegisterRoutes(api, authMW)
}

func httpCacheSkipPaths() []string {
	return []string{
		apiPrefix + "/auth/token",
		apiPrefix + "/users/me",
		apiPrefix + "/jobs",
		apiPrefix + "/clean_cache",
	}
}
