package cron

import (
	"context"
	"time"

	"rapidcare/config"
	syncsvc "rapidcare/services/sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartResyncCron schedules the periodic full-reconciliation sweep: every
// synced hospital gets a forced resource and pending-booking fetch outside
// the regular poll cadence, catching anything a missed notification left
// stale. Returns the scheduler so main can stop it on shutdown.
func StartResyncCron(orch *syncsvc.Orchestrator, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(config.AppConfig.ResyncSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		started := time.Now()
		orch.ForceResync(ctx)
		logger.Info("resync sweep finished", zap.Duration("took", time.Since(started)))
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	logger.Info("resync cron started", zap.String("spec", config.AppConfig.ResyncSpec))
	return c, nil
}
