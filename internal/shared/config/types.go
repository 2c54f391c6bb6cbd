package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// Timezone used when rendering dates in customer-facing notifications.
	Timezone string `mapstructure:"timezone"`
	// AdminToken guards /api; the admin API is disabled when empty.
	AdminToken string `mapstructure:"admin_token"`
	// Per-client request budget for /api; zero disables the window.
	AdminRateLimitPerMinute int `mapstructure:"admin_rate_limit_per_minute"`
	AdminRateLimitPerHour   int `mapstructure:"admin_rate_limit_per_hour"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&collation=utf8mb4_general_ci&parseTime=true&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type EmailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
}

// StripeConfig holds the payment provider credentials.
type StripeConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	RequestTimeout int    `mapstructure:"request_timeout_seconds"`
	// APIBase overrides the API endpoint, e.g. for stripe-mock.
	APIBase string `mapstructure:"api_base"`
}

func (s *StripeConfig) GetRequestTimeout() time.Duration {
	if s.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.RequestTimeout) * time.Second
}

// SchedulerConfig controls background job cadence.
type SchedulerConfig struct {
	GracePeriodSweepMinutes     int `mapstructure:"grace_period_sweep_minutes"`
	OutboxRelaySeconds          int `mapstructure:"outbox_relay_seconds"`
	OutboxBatchSize             int `mapstructure:"outbox_batch_size"`
	ProcessedEventRetentionDays int `mapstructure:"processed_event_retention_days"`
}

func (s *SchedulerConfig) GetSweepInterval() time.Duration {
	return time.Duration(s.GracePeriodSweepMinutes) * time.Minute
}

func (s *SchedulerConfig) GetRelayInterval() time.Duration {
	return time.Duration(s.OutboxRelaySeconds) * time.Second
}

// SubscriptionSettings is the billing policy surface consumed by the lifecycle engine.
type SubscriptionSettings struct {
	MaxPaymentRetries             int    `mapstructure:"max_payment_retries" validate:"gte=1"`
	GracePeriodDays               int    `mapstructure:"grace_period_days" validate:"gte=0"`
	UseIntelligentGracePeriod     bool   `mapstructure:"use_intelligent_grace_period"`
	StripeRetryPeriodDays         int    `mapstructure:"stripe_retry_period_days" validate:"gte=0"`
	RetryAttemptGracePeriodHours  int    `mapstructure:"retry_attempt_grace_period_hours" validate:"gte=0"`
	AutoDowngradeAfterGracePeriod bool   `mapstructure:"auto_downgrade_after_grace_period"`
	AutoDowngradeAfterMaxRetries  bool   `mapstructure:"auto_downgrade_after_max_retries"`
	DefaultDowngradePlanName      string `mapstructure:"default_downgrade_plan_name" validate:"required"`
}
