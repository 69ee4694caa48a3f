package config

import (
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
)

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"12400"`
	APIKey      string `env:"API_KEY"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	Logger      *logger.Config
	Tracing     *tracing.JaegerConfig
}

type DatabaseConfig struct {
	Host            string `env:"APPROVALSTACK_POSTGRES_HOST,required"`
	Port            string `env:"APPROVALSTACK_POSTGRES_PORT,required"`
	User            string `env:"APPROVALSTACK_POSTGRES_USER,required"`
	DBName          string `env:"APPROVALSTACK_POSTGRES_DB_NAME,required"`
	Password        string `env:"APPROVALSTACK_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"APPROVALSTACK_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"APPROVALSTACK_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"APPROVALSTACK_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"APPROVALSTACK_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"APPROVALSTACK_POSTGRES_SSL_MODE"`
}

type IMAPConfig struct {
	Server   string `env:"IMAP_SERVER,required"`
	Port     int    `env:"IMAP_PORT" envDefault:"993"`
	Username string `env:"IMAP_USERNAME,required"`
	Password string `env:"IMAP_PASSWORD,required"`
	Security string `env:"IMAP_SECURITY" envDefault:"tls"`
	Mailbox  string `env:"IMAP_MAILBOX" envDefault:"INBOX"`
}

type MonitorConfig struct {
	FullScanLookbackDays int      `env:"MONITOR_FULL_SCAN_LOOKBACK_DAYS" envDefault:"7"`
	ProcessedFolder      string   `env:"MONITOR_PROCESSED_FOLDER" envDefault:"Processed"`
	ReconnectBaseDelay   int      `env:"MONITOR_RECONNECT_BASE_DELAY_MS" envDefault:"1000"`
	ReconnectMaxDelay    int      `env:"MONITOR_RECONNECT_MAX_DELAY_MS" envDefault:"30000"`
	ReconnectMaxAttempts int      `env:"MONITOR_RECONNECT_MAX_ATTEMPTS" envDefault:"5"`
	AuthorizedApprovers  []string `env:"MONITOR_AUTHORIZED_APPROVERS" envSeparator:","`
}

type RerouteConfig struct {
	Enabled         bool   `env:"REROUTE_ENABLED" envDefault:"true"`
	Recipient       string `env:"REROUTE_RECIPIENT"`
	SubjectPrefix   string `env:"REROUTE_SUBJECT_PREFIX" envDefault:"[APPROVED PO]"`
	CooldownMinutes int    `env:"REROUTE_COOLDOWN_MINUTES" envDefault:"60"`
}

type SMTPConfig struct {
	Server      string `env:"SMTP_SERVER"`
	Port        int    `env:"SMTP_PORT" envDefault:"587"`
	Username    string `env:"SMTP_USERNAME"`
	Password    string `env:"SMTP_PASSWORD"`
	Security    string `env:"SMTP_SECURITY" envDefault:"startTLS"`
	FromAddress string `env:"SMTP_FROM_ADDRESS"`
	FromName    string `env:"SMTP_FROM_NAME"`
}

type R2StorageConfig struct {
	AccountID       string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	DocumentBucket  string `env:"BUCKET_NAME_PO_DOCUMENTS" envDefault:"po-documents"`
}
