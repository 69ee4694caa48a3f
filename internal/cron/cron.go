package cron

import (
	"context"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/partsvault/approvalstack/config"
	"github.com/partsvault/approvalstack/interfaces"
	cron_config "github.com/partsvault/approvalstack/internal/cron/config"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
	"github.com/partsvault/approvalstack/services/connectivity"
)

// CronManager owns the periodic triggers of the monitor. Jobs never do work
// themselves, they only probe connectivity or enqueue a scan trigger; the
// monitor's single worker does the rest.
type CronManager struct {
	cfg          *config.Config
	log          logger.Logger
	cron         *cronv3.Cron
	stopCh       chan struct{}
	jobIDs       map[string]cronv3.EntryID
	connectivity *connectivity.Monitor
	monitor      interfaces.MonitorService
}

func NewCronManager(cfg *config.Config, log logger.Logger, conn *connectivity.Monitor, monitor interfaces.MonitorService) *CronManager {
	return &CronManager{
		cfg:          cfg,
		log:          log,
		stopCh:       make(chan struct{}),
		jobIDs:       make(map[string]cronv3.EntryID),
		connectivity: conn,
		monitor:      monitor,
	}
}

// Start initializes and starts the cron scheduler.
func (cm *CronManager) Start() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// Stop gracefully stops the cron manager.
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler.
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleConnectivityProbe != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleConnectivityProbe, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.probeConnectivity()
		})
		if err != nil {
			cm.log.Fatalf("Could not add connectivity probe cron job: %v", err)
		}
		cm.jobIDs["connectivity_probe"] = id
		cm.log.Infof("Registered connectivity probe job with schedule: %s", cronConfig.CronScheduleConnectivityProbe)
	}

	if cronConfig.CronScheduleMailboxPoll != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleMailboxPoll, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.monitor.TriggerScan()
		})
		if err != nil {
			cm.log.Fatalf("Could not add mailbox poll cron job: %v", err)
		}
		cm.jobIDs["mailbox_poll"] = id
		cm.log.Infof("Registered mailbox poll job with schedule: %s", cronConfig.CronScheduleMailboxPoll)
	}

	if cronConfig.CronScheduleFullScanSweep != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleFullScanSweep, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Info("Running scheduled full-scan sweep")
			cm.monitor.TriggerFullScan()
		})
		if err != nil {
			cm.log.Fatalf("Could not add full-scan sweep cron job: %v", err)
		}
		cm.jobIDs["full_scan_sweep"] = id
		cm.log.Infof("Registered full-scan sweep job with schedule: %s", cronConfig.CronScheduleFullScanSweep)
	}
}

func (cm *CronManager) probeConnectivity() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.probeConnectivity")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	cm.connectivity.Check(ctx)
}
