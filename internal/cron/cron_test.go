package cron

import (
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"

	"github.com/partsvault/approvalstack/config"
	"github.com/partsvault/approvalstack/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig: &config.AppConfig{
			Logger: &logger.Config{
				LogLevel: "info",
			},
		},
	}
}

func TestNewCronManager(t *testing.T) {
	// Arrange
	cfg := testConfig()
	log := getLogger()

	// Act
	cm := NewCronManager(cfg, log, nil, nil)

	// Assert
	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	t.Setenv("CRON_SCHEDULE_CONNECTIVITY_PROBE", "*/30 * * * * *")
	t.Setenv("CRON_SCHEDULE_MAILBOX_POLL", "*/30 * * * * *")
	t.Setenv("CRON_SCHEDULE_FULL_SCAN_SWEEP", "0 0 3 * * *")

	// Arrange
	cm := NewCronManager(testConfig(), getLogger(), nil, nil)
	mockCron := cronv3.New(cronv3.WithSeconds())

	// Act - register jobs manually with the configured schedules
	probeID, err := mockCron.AddFunc("*/30 * * * * *", func() {})
	assert.NoError(t, err)
	cm.jobIDs["connectivity_probe"] = probeID

	pollID, err := mockCron.AddFunc("*/30 * * * * *", func() {})
	assert.NoError(t, err)
	cm.jobIDs["mailbox_poll"] = pollID

	sweepID, err := mockCron.AddFunc("0 0 3 * * *", func() {})
	assert.NoError(t, err)
	cm.jobIDs["full_scan_sweep"] = sweepID

	cm.cron = mockCron

	// Assert
	assert.NotNil(t, cm.cron)
	assert.Equal(t, 3, len(cm.jobIDs))
}

func TestCronManager_Stop(t *testing.T) {
	// Arrange
	cm := NewCronManager(testConfig(), getLogger(), nil, nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	// Act
	cm.Stop()

	// Assert
	select {
	case <-cm.stopCh:
		// Channel is closed as expected
	default:
		t.Error("Stop channel was not closed")
	}
}
