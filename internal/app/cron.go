package app

import (
	"context"
	"errors"
	"time"

	pkgcron "github.com/campusdocs/portal/internal/pkg/cron"
	"github.com/campusdocs/portal/internal/pkg/response"
	"github.com/campusdocs/portal/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionRetention = 24 * time.Hour

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs() {
	cronLogger := a.logger.Named("CronService")

	a.sched.Register(pkgcron.Job{
		Name:        "purge_sessions",
		Description: "Delete sessions that expired or were revoked more than a day ago",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := session.PurgeExpired(ctx, a.db, time.Now().Add(-sessionRetention))
			if err != nil {
				cronLogger.Warn("purge sessions failed", zap.Error(err))
				return err
			}
			cronLogger.Info("sessions purged", zap.Int64("count", n))
			return nil
		},
	})

	if !a.cfg.Snapshot.Enable {
		return
	}
	a.sched.Register(pkgcron.Job{
		Name:        "snapshot",
		Description: "Archive users, files and delivery logs",
		Interval:    a.cfg.Snapshot.Interval,
		Fn: func(ctx context.Context) error {
			item, err := a.snapshots.Create(ctx)
			if err != nil {
				cronLogger.Warn("snapshot failed", zap.Error(err))
				return err
			}
			cronLogger.Info("snapshot stored", zap.String("name", item.Name))
			return nil
		},
	})
}

func (a *App) runCronJob(c *gin.Context) {
	err := a.sched.Run(c.Request.Context(), c.Param("name"))
	switch {
	case err == nil:
		response.NoContent(c)
	case errors.Is(err, pkgcron.ErrJobNotFound):
		response.NotFoundMsg(c, "job not found")
	case errors.Is(err, pkgcron.ErrJobRunning):
		response.Conflict(c, "job is already running")
	default:
		response.InternalError(c, err)
	}
}
