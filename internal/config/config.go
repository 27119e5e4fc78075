package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Payment     PaymentConfig     `yaml:"payment"`
	Fulfillment FulfillmentConfig `yaml:"fulfillment"`
	Orders      OrdersConfig      `yaml:"orders"`
	SendGrid    SendGridConfig    `yaml:"sendgrid"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Inbox       InboxConfig       `yaml:"inbox"`
	Storage     StorageConfig     `yaml:"storage"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// ServerConfig contains the HTTP API and gRPC health listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// DatabaseConfig contains PostgreSQL connection settings. Driver "memory"
// runs on the in-process store and ignores the rest.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres" or "memory"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	Issuer            string `yaml:"issuer"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `yaml:"format"` // "json" or "text"
	File       string `yaml:"file"`   // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// PricingConfig holds the tariff, in cents unless noted
type PricingConfig struct {
	InsuranceBasicPerDayCents   int64 `yaml:"insurance_basic_per_day_cents"`
	InsurancePremiumPerDayCents int64 `yaml:"insurance_premium_per_day_cents"`
	CrossBranchFeeCents         int64 `yaml:"cross_branch_fee_cents"`
	OverageHourDivisor          int64 `yaml:"overage_hour_divisor"`
	LoyaltyPointDivisor         int64 `yaml:"loyalty_point_divisor"`
}

// PaymentConfig contains the Alipay gateway credentials
type PaymentConfig struct {
	AppID          string `yaml:"app_id"`
	GatewayURL     string `yaml:"gateway_url"`
	PrivateKey     string `yaml:"private_key"`
	PublicKey      string `yaml:"public_key"`
	NotifyURL      string `yaml:"notify_url"`
	ReturnURL      string `yaml:"return_url"`
	FrontendURL    string `yaml:"frontend_url"`
	SubjectPrefix  string `yaml:"subject_prefix"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// FulfillmentConfig tunes the store counter
type FulfillmentConfig struct {
	RequirePickupCode bool  `yaml:"require_pickup_code"`
	ReviewPoints      int64 `yaml:"review_points"`
}

// OrdersConfig contains order lifecycle timing
type OrdersConfig struct {
	UnpaidExpiryMinutes   int `yaml:"unpaid_expiry_minutes"`
	ReconcileAfterMinutes int `yaml:"reconcile_after_minutes"`
}

// SendGridConfig contains email delivery settings. An empty API key disables email.
type SendGridConfig struct {
	APIKey     string `yaml:"api_key"`
	FromEmail  string `yaml:"from_email"`
	FromName   string `yaml:"from_name"`
	Workers    int    `yaml:"workers"`
	QueueSize  int    `yaml:"queue_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// RedisConfig contains status cache and notify dedup settings. An empty
// address disables both.
type RedisConfig struct {
	Addr             string `yaml:"addr"`
	Password         string `yaml:"password"`
	DB               int    `yaml:"db"`
	StatusTTLSeconds int    `yaml:"status_ttl_seconds"`
	DedupTTLHours    int    `yaml:"dedup_ttl_hours"`
}

// KafkaConfig contains order event settings. No brokers disables publishing.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	Producer   string   `yaml:"producer"`
	BufferSize int      `yaml:"buffer_size"`
}

// MQTTConfig contains vehicle telematics settings. An empty broker disables it.
type MQTTConfig struct {
	BrokerURL   string `yaml:"broker_url"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// InboxConfig contains the gateway callback journal settings
type InboxConfig struct {
	Path                string `yaml:"path"`
	MaxReplayAttempts   int    `yaml:"max_replay_attempts"`
	StalledAfterMinutes int    `yaml:"stalled_after_minutes"`
	RetentionDays       int    `yaml:"retention_days"`
}

// StorageConfig contains evidence upload settings
type StorageConfig struct {
	Dir       string `yaml:"dir"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReconcilePayments string `yaml:"reconcile_payments"`
	ExpireUnpaid      string `yaml:"expire_unpaid"`
	MarkOverdue       string `yaml:"mark_overdue"`
	ExpireGrants      string `yaml:"expire_grants"`
	ReplayCallbacks   string `yaml:"replay_callbacks"`
	PruneInbox        string `yaml:"prune_inbox"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a validated Config from YAML bytes and the environment
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Payment gateway
	if val := os.Getenv("ALIPAY_APP_ID"); val != "" {
		c.Payment.AppID = val
	}
	if val := os.Getenv("ALIPAY_PRIVATE_KEY"); val != "" {
		c.Payment.PrivateKey = val
	}
	if val := os.Getenv("ALIPAY_PUBLIC_KEY"); val != "" {
		c.Payment.PublicKey = val
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// Kafka
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = strings.Split(val, ",")
	}

	// MQTT
	if val := os.Getenv("MQTT_BROKER_URL"); val != "" {
		c.MQTT.BrokerURL = val
	}
	if val := os.Getenv("MQTT_PASSWORD"); val != "" {
		c.MQTT.Password = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	// Database validation
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Payment validation
	if c.Payment.AppID == "" {
		return fmt.Errorf("payment app id is required")
	}
	if c.Payment.GatewayURL == "" {
		return fmt.Errorf("payment gateway url is required")
	}
	if c.Payment.PrivateKey == "" || c.Payment.PublicKey == "" {
		return fmt.Errorf("payment private and public keys are required")
	}
	if c.Payment.FrontendURL == "" {
		return fmt.Errorf("payment frontend url is required")
	}
	if c.Payment.TimeoutSeconds == 0 {
		c.Payment.TimeoutSeconds = 10
	}

	// Pricing defaults
	if c.Pricing.InsuranceBasicPerDayCents == 0 {
		c.Pricing.InsuranceBasicPerDayCents = 3000
	}
	if c.Pricing.InsurancePremiumPerDayCents == 0 {
		c.Pricing.InsurancePremiumPerDayCents = 6000
	}
	if c.Pricing.CrossBranchFeeCents == 0 {
		c.Pricing.CrossBranchFeeCents = 20000
	}
	if c.Pricing.OverageHourDivisor == 0 {
		c.Pricing.OverageHourDivisor = 24
	}
	if c.Pricing.LoyaltyPointDivisor == 0 {
		c.Pricing.LoyaltyPointDivisor = 10
	}
	if c.Pricing.OverageHourDivisor < 0 || c.Pricing.LoyaltyPointDivisor < 0 {
		return fmt.Errorf("pricing divisors must be positive")
	}

	// Fulfillment defaults
	if c.Fulfillment.ReviewPoints == 0 {
		c.Fulfillment.ReviewPoints = 10
	}

	// Order timing defaults
	if c.Orders.UnpaidExpiryMinutes == 0 {
		c.Orders.UnpaidExpiryMinutes = 30
	}
	if c.Orders.ReconcileAfterMinutes == 0 {
		c.Orders.ReconcileAfterMinutes = 5
	}
	if c.Orders.ReconcileAfterMinutes >= c.Orders.UnpaidExpiryMinutes {
		return fmt.Errorf("reconcile_after_minutes must be below unpaid_expiry_minutes")
	}

	// SendGrid defaults
	if c.SendGrid.APIKey != "" && c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid from_email is required when api_key is set")
	}
	if c.SendGrid.Workers == 0 {
		c.SendGrid.Workers = 2
	}
	if c.SendGrid.QueueSize == 0 {
		c.SendGrid.QueueSize = 256
	}
	if c.SendGrid.MaxRetries == 0 {
		c.SendGrid.MaxRetries = 3
	}

	// Redis defaults
	if c.Redis.StatusTTLSeconds == 0 {
		c.Redis.StatusTTLSeconds = 300
	}
	if c.Redis.DedupTTLHours == 0 {
		c.Redis.DedupTTLHours = 48
	}

	// Kafka defaults
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "orders.events"
	}
	if c.Kafka.Producer == "" {
		c.Kafka.Producer = "carrental-backend"
	}

	// MQTT defaults
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "carrental-backend"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "fleet"
	}
	if c.MQTT.QoS == 0 {
		c.MQTT.QoS = 1
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos: %d", c.MQTT.QoS)
	}

	// Inbox defaults
	if c.Inbox.Path == "" {
		c.Inbox.Path = "data/callbacks.db"
	}
	if c.Inbox.MaxReplayAttempts == 0 {
		c.Inbox.MaxReplayAttempts = 10
	}
	if c.Inbox.StalledAfterMinutes == 0 {
		c.Inbox.StalledAfterMinutes = 10
	}
	if c.Inbox.RetentionDays == 0 {
		c.Inbox.RetentionDays = 30
	}

	// Storage defaults
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data/uploads"
	}
	if c.Storage.MaxSizeMB == 0 {
		c.Storage.MaxSizeMB = 10
	}

	// Scheduler defaults
	if c.Scheduler.ReconcilePayments == "" {
		c.Scheduler.ReconcilePayments = "0 */5 * * * *" // every 5 minutes
	}
	if c.Scheduler.ExpireUnpaid == "" {
		c.Scheduler.ExpireUnpaid = "30 */5 * * * *" // every 5 minutes, after reconciliation
	}
	if c.Scheduler.MarkOverdue == "" {
		c.Scheduler.MarkOverdue = "0 */15 * * * *" // every 15 minutes
	}
	if c.Scheduler.ExpireGrants == "" {
		c.Scheduler.ExpireGrants = "0 0 1 * * *" // 1 AM UTC
	}
	if c.Scheduler.ReplayCallbacks == "" {
		c.Scheduler.ReplayCallbacks = "0 * * * * *" // every minute
	}
	if c.Scheduler.PruneInbox == "" {
		c.Scheduler.PruneInbox = "0 30 3 * * *" // 3:30 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP API address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC health address, or "" when disabled
func (c *Config) GetGRPCAddress() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// AccessTokenTTL returns the configured access token lifetime
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpiry) * time.Minute
}

// PaymentTimeout returns the gateway HTTP timeout
func (c *Config) PaymentTimeout() time.Duration {
	return time.Duration(c.Payment.TimeoutSeconds) * time.Second
}
