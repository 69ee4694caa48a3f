package cron_config

type Config struct {
	// Network reachability probe, every 30 seconds
	CronScheduleConnectivityProbe string `env:"CRON_SCHEDULE_CONNECTIVITY_PROBE" envDefault:"*/30 * * * * *"`
	// Mailbox poll for new approval replies, every 30 seconds
	CronScheduleMailboxPoll string `env:"CRON_SCHEDULE_MAILBOX_POLL" envDefault:"*/30 * * * * *"`
	// Daily full-scan sweep over the lookback window, at 03:00
	CronScheduleFullScanSweep string `env:"CRON_SCHEDULE_FULL_SCAN_SWEEP" envDefault:"0 0 3 * * *"`
}
