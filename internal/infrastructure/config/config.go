package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	sharedConfig "chatdesk/internal/shared/config"
)

type Config struct {
	Server       sharedConfig.ServerConfig         `mapstructure:"server"`
	Database     sharedConfig.DatabaseConfig       `mapstructure:"database"`
	Logger       sharedConfig.LoggerConfig         `mapstructure:"logger"`
	Redis        sharedConfig.RedisConfig          `mapstructure:"redis"`
	Email        sharedConfig.EmailConfig          `mapstructure:"email"`
	Stripe       sharedConfig.StripeConfig         `mapstructure:"stripe"`
	Scheduler    sharedConfig.SchedulerConfig      `mapstructure:"scheduler"`
	Subscription sharedConfig.SubscriptionSettings `mapstructure:"subscription"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	v.SetEnvPrefix("CHATDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Defaults plus environment are enough to run; only a broken file is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", env)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Validate checks the sections whose values drive billing decisions.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg.Subscription); err != nil {
		return fmt.Errorf("invalid subscription settings: %w", err)
	}
	return nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.timezone", "UTC")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.admin_rate_limit_per_minute", 60)
	v.SetDefault("server.admin_rate_limit_per_hour", 1000)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "chatdesk_billing")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("email.smtp_host", "localhost")
	v.SetDefault("email.smtp_port", 1025)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_password", "")
	v.SetDefault("email.from_address", "billing@chatdesk.local")
	v.SetDefault("email.from_name", "Chatdesk Billing")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.request_timeout_seconds", 10)
	v.SetDefault("stripe.api_base", "")

	v.SetDefault("scheduler.grace_period_sweep_minutes", 5)
	v.SetDefault("scheduler.outbox_relay_seconds", 30)
	v.SetDefault("scheduler.outbox_batch_size", 100)
	v.SetDefault("scheduler.processed_event_retention_days", 30)

	v.SetDefault("subscription.max_payment_retries", 4)
	v.SetDefault("subscription.grace_period_days", 7)
	v.SetDefault("subscription.use_intelligent_grace_period", true)
	v.SetDefault("subscription.stripe_retry_period_days", 25)
	v.SetDefault("subscription.retry_attempt_grace_period_hours", 24)
	v.SetDefault("subscription.auto_downgrade_after_grace_period", true)
	v.SetDefault("subscription.auto_downgrade_after_max_retries", true)
	v.SetDefault("subscription.default_downgrade_plan_name", "Free")
}
