package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting read from the environment.
type Config struct {
	DBHost         string `envconfig:"DB_HOST" required:"true"`
	DBPort         int    `envconfig:"DB_PORT" default:"5432"`
	DBUser         string `envconfig:"DB_USER" required:"true"`
	DBPassword     string `envconfig:"DB_PASSWORD" required:"true"`
	DBName         string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode      string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	DBMaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	ORCIDBaseURL string        `envconfig:"ORCID_BASE_URL" default:"https://pub.orcid.org/v3.0"`
	ORCIDTimeout time.Duration `envconfig:"ORCID_TIMEOUT" default:"30s"`

	// Scheduling of the update check
	CronEnabled       bool   `envconfig:"CRON_ENABLED" default:"true"`
	CronSchedule      string `envconfig:"CRON_SCHEDULE" default:"0 8 * * *"`
	CronTimezone      string `envconfig:"CRON_TIMEZONE" default:"America/Sao_Paulo"`
	CronSecret        string `envconfig:"CRON_SECRET"`
	UpdateConcurrency int    `envconfig:"UPDATE_CONCURRENCY" default:"1"`
	RunLockPath       string `envconfig:"RUN_LOCK_PATH"`

	// Notification channels, comma separated: email,push
	NotifyChannels string `envconfig:"NOTIFY_CHANNELS" default:"email,push"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `envconfig:"MAIL_FROM"`
	MailFromName string `envconfig:"MAIL_FROM_NAME" default:"Projeto Orquídea"`

	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `envconfig:"VAPID_SUBJECT"`
	PushTTL         int    `envconfig:"PUSH_TTL" default:"86400"`

	// Optional snapshot archive; disabled while S3_BUCKET is empty.
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// ChannelEnabled reports whether the named notification channel is listed in NOTIFY_CHANNELS.
func (c *Config) ChannelEnabled(name string) bool {
	for _, ch := range strings.Split(c.NotifyChannels, ",") {
		if strings.EqualFold(strings.TrimSpace(ch), name) {
			return true
		}
	}
	return false
}

// ArchiveEnabled reports whether fresh work snapshots should be uploaded to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// Load reads the configuration from the environment, honoring a local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
