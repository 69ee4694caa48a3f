package services

import (
	"time"

	"github.com/partsvault/approvalstack/config"
	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/repository"
	"github.com/partsvault/approvalstack/services/connectivity"
	"github.com/partsvault/approvalstack/services/events"
	"github.com/partsvault/approvalstack/services/imap"
	"github.com/partsvault/approvalstack/services/reconciler"
	"github.com/partsvault/approvalstack/services/rerouter"
	"github.com/partsvault/approvalstack/services/smtp"
	"github.com/partsvault/approvalstack/services/storage"
)

type Services struct {
	EventPublisher      interfaces.EventPublisher
	StorageService      interfaces.StorageService
	EmailSender         interfaces.EmailSender
	RerouterService     *rerouter.Service
	ReconcilerService   *reconciler.Service
	ConnectivityMonitor *connectivity.Monitor
	MonitorService      interfaces.MonitorService
	MailboxWatcher      *imap.Watcher
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	services := &Services{}

	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, nil)
		if err != nil {
			return nil, err
		}
		services.EventPublisher = publisher
	} else {
		log.Warn("RABBITMQ_URL not set, status change events will not be published")
	}

	if cfg.R2StorageConfig.AccountID != "" {
		services.StorageService = storage.NewR2StorageService(cfg.R2StorageConfig)
	} else {
		log.Warn("R2 storage not configured, reroute notifications will carry no attachments")
	}

	services.EmailSender = smtp.NewClient(cfg.SMTPConfig)

	services.RerouterService = rerouter.NewService(
		cfg.RerouteConfig,
		cfg.SMTPConfig.FromAddress,
		repos,
		services.EmailSender,
		services.StorageService,
		log,
	)

	services.ReconcilerService = reconciler.NewService(
		repos,
		services.EventPublisher,
		services.RerouterService,
		cfg.MonitorConfig.AuthorizedApprovers,
		log,
	)

	services.ConnectivityMonitor = connectivity.NewMonitor(cfg.IMAPConfig.Server, cfg.IMAPConfig.Port, log)

	dialer := imap.NewDialer(cfg.IMAPConfig, log)
	session := imap.NewSession(dialer, cfg.IMAPConfig.Mailbox, log)
	reconnect := imap.NewReconnectionSupervisor(session, services.ConnectivityMonitor, cfg.MonitorConfig, log)
	scanner := imap.NewScanner(cfg.MonitorConfig, log)
	marker := imap.NewMarker(cfg.MonitorConfig.ProcessedFolder, log)

	monitor := imap.NewMonitor(session, reconnect, scanner, marker, services.ReconcilerService, log)
	services.MonitorService = monitor

	// A dedicated IDLE connection so a new reply triggers a scan immediately;
	// the cron poll stays in place as the fallback schedule.
	services.MailboxWatcher = imap.NewWatcher(dialer, cfg.IMAPConfig.Mailbox, services.ConnectivityMonitor, log, monitor.TriggerScan)

	// An outage recovery runs a full scan over the lookback window.
	services.ConnectivityMonitor.SetRestoredHandler(func(downtime time.Duration) {
		log.Infof("connectivity restored after %s, scheduling full scan", downtime)
		monitor.TriggerFullScan()
	})

	return services, nil
}
