package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/siswa-gateway/internal/handler"
	"github.com/noah-isme/siswa-gateway/internal/middleware"
	"github.com/noah-isme/siswa-gateway/internal/models"
	"github.com/noah-isme/siswa-gateway/internal/selection"
	"github.com/noah-isme/siswa-gateway/internal/service"
	"github.com/noah-isme/siswa-gateway/pkg/config"
	"github.com/noah-isme/siswa-gateway/pkg/logger"
	corsmiddleware "github.com/noah-isme/siswa-gateway/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/siswa-gateway/pkg/middleware/requestid"
)

type routeDeps struct {
	metrics  *service.MetricsService
	tokens   middleware.TokenValidator
	views    *handler.ViewHandler
	actions  *handler.ActionHandler
	siswa    *handler.SiswaHandler
	observer *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.observer.Health)
	r.GET("/ready", deps.observer.Ready)
	r.GET("/metrics", deps.observer.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	if cfg.JWT.Enabled {
		api.Use(middleware.JWT(deps.tokens))
	} else {
		api.Use(middleware.OptionalJWT(deps.tokens))
	}

	api.GET("/metrics/summary", deps.observer.Summary)

	views := api.Group("/views")
	views.POST("", deps.views.Create)
	views.GET("/:id", deps.views.Get)
	views.DELETE("/:id", deps.views.Delete)
	views.PATCH("/:id/query", deps.views.UpdateQuery)
	views.POST("/:id/refresh", deps.views.Refresh)
	views.POST("/:id/ids/refresh", deps.views.RefreshIDs)

	views.POST("/:id/selection/toggle", deps.views.ToggleRow)
	views.POST("/:id/selection/toggle-visible", deps.views.ToggleVisible)
	views.POST("/:id/selection/select-all", deps.views.SelectAllMatching)
	views.DELETE("/:id/selection", deps.views.ClearSelection)

	deleteGuard := func(c *gin.Context) { c.Next() }
	if cfg.JWT.Enabled {
		deleteGuard = middleware.RequireRolesForAction(string(selection.KindDelete), models.RoleAdmin, models.RoleSuperAdmin)
	}
	views.GET("/:id/actions", deps.actions.History)
	views.POST("/:id/actions/:action", deleteGuard, deps.actions.Request)
	views.POST("/:id/actions/:action/confirm", deleteGuard, deps.actions.Confirm)
	views.POST("/:id/actions/:action/cancel", deps.actions.Cancel)
	views.POST("/:id/export", deps.actions.Export)

	api.GET("/siswa/:id", deps.siswa.Detail)
	api.PUT("/siswa/:id", deps.siswa.Update)
	api.GET("/references/:kind", deps.siswa.References)

	return r
}
