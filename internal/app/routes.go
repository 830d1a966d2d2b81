package app

import (
	"time"

	"github.com/campusdocs/portal/internal/middleware"
	"github.com/campusdocs/portal/internal/modules/auth"
	"github.com/campusdocs/portal/internal/modules/files"
	"github.com/campusdocs/portal/internal/modules/notify"
	"github.com/campusdocs/portal/internal/modules/snapshot"
	"github.com/campusdocs/portal/internal/modules/users"
	"github.com/campusdocs/portal/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *App) registerRoutes(deliveryLog *notify.DeliveryLog) {
	a.router.GET("/ping", func(c *gin.Context) {
		response.OK(c, gin.H{"pong": true, "time": time.Now().In(a.loc)})
	})
	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := a.router.Group("/api/v1")
	authMW := middleware.Auth(a.db)
	adminMW := middleware.RequireAdmin()
	limitMW := middleware.RateLimit(a.rdb, middleware.DefaultRateLimitMax, middleware.DefaultRateLimitWindow, a.logger)

	usersSvc := users.NewService(a.db, a.notifier, a.cfg.Mail.From, a.logger)
	auth.NewHandler(a.db, usersSvc, a.logger).RegisterRoutes(api, authMW, limitMW)
	users.NewHandler(usersSvc).RegisterRoutes(api, authMW, adminMW)

	filesSvc := files.NewService(a.db, a.store, a.loc, a.logger)
	files.NewHandler(filesSvc, a.cfg.Storage.MaxConcurrentUploads, a.cfg.MaxUploadBytes(), a.logger).
		RegisterRoutes(api, authMW, adminMW)

	notify.NewHandler(deliveryLog, a.notifier, a.cfg.Mail.From).RegisterRoutes(api, authMW, adminMW)
	snapshot.NewHandler(a.snapshots, a.logger).RegisterRoutes(api, authMW, adminMW)

	api.GET("/cron", authMW, adminMW, func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	api.POST("/cron/:name/run", authMW, adminMW, a.runCronJob)
}
