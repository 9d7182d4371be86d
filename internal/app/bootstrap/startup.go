// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/filesmanager/internal/app/store/audit"
	filestore "github.com/dalemusser/filesmanager/internal/app/store/files"
	userstore "github.com/dalemusser/filesmanager/internal/app/store/users"
	"github.com/dalemusser/filesmanager/internal/app/system/jobrunner"
	"github.com/dalemusser/filesmanager/internal/app/system/tasks"
	"github.com/dalemusser/filesmanager/internal/app/system/thumbnails"
	"github.com/dalemusser/filesmanager/internal/app/system/timeouts"
	"github.com/dalemusser/filesmanager/internal/app/system/welcome"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// queueDepthInterval is how often queue depth is logged.
const queueDepthInterval = 5 * time.Minute

// Startup runs once after DB connections and schema setup are complete,
// but before the HTTP handler is built. It registers the job handlers and
// housekeeping tasks and starts both runners.
//
// Returning a non-nil error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	timeouts.Configure(timeouts.Config{
		Ping:     appCfg.TimeoutPing,
		Short:    appCfg.TimeoutShort,
		Medium:   appCfg.TimeoutMedium,
		Transfer: appCfg.TimeoutTransfer,
	})

	// Thumbnail pipeline
	gen := thumbnails.New(filestore.New(db), deps.FileStorage, logger)
	deps.JobRunner.Handle(thumbnails.Queue, thumbnails.JobType, gen.Handle)

	// Welcome job. The mailer is passed as an interface only when enabled,
	// so a disabled mailer stays a nil Sender.
	var sender welcome.Sender
	if deps.Mailer != nil {
		sender = deps.Mailer
	}
	greeter := welcome.New(userstore.New(db), sender, appName(appCfg), logger)
	deps.JobRunner.Handle(welcome.Queue, welcome.JobType, greeter.Handle)

	if err := deps.JobRunner.Start(); err != nil {
		logger.Error("failed to start job runner", zap.Error(err))
		return err
	}

	// Housekeeping
	if appCfg.AuditLogRetention > 0 {
		deps.Housekeeping.Register(tasks.AuditRetentionTask(audit.New(db), appCfg.AuditLogRetention, logger))
	}
	deps.Housekeeping.Register(tasks.JobMaintenanceTask(deps.Jobs, staleAfter(appCfg), appCfg.JobRetention, logger))
	deps.Housekeeping.Register(tasks.QueueDepthTask(deps.Jobs, []string{thumbnails.Queue, welcome.Queue}, queueDepthInterval, logger))
	deps.Housekeeping.Start()

	return nil
}

// staleAfter is how long a job may stay running before it is presumed
// abandoned by a crashed worker.
func staleAfter(appCfg AppConfig) time.Duration {
	if appCfg.JobTimeout > 0 {
		return 2 * appCfg.JobTimeout
	}
	return 2 * jobrunner.DefaultConfig().JobTimeout
}

func appName(appCfg AppConfig) string {
	if appCfg.MailFromName != "" {
		return appCfg.MailFromName
	}
	return "Files Manager"
}
