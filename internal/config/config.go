package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"boxrental-backend/internal/pricing"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	JWT       JWTConfig       `yaml:"jwt"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Inventory InventoryConfig `yaml:"inventory"`
	Email     EmailConfig     `yaml:"email"`
	Push      PushConfig      `yaml:"push"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
	GRPCPort int    `yaml:"grpc_port"`
	// TrustProxy makes the tracking rate limiter key on X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Type string `yaml:"type"` // "postgres" or "memory"
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// JWTConfig contains staff token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
	Issuer            string `yaml:"issuer"`
}

// PricingConfig overrides the published price list. Empty maps keep the
// defaults.
type PricingConfig struct {
	DepositPerBox int64 `yaml:"deposit_per_box"`
	// Boxes maps days -> box count -> price.
	Boxes map[int32]map[int32]int64 `yaml:"boxes"`
	// Products maps product name -> days -> unit price.
	Products map[string]map[int32]int64 `yaml:"products"`
}

// TrackingConfig contains tracking code and public lookup settings
type TrackingConfig struct {
	CodeLength          int     `yaml:"code_length"`
	LookupRatePerMinute float64 `yaml:"lookup_rate_per_minute"`
	LookupBurst         int     `yaml:"lookup_burst"`
	URL                 string  `yaml:"url"`
}

// InventoryConfig contains allocation settings
type InventoryConfig struct {
	CountPendingAsCommitted bool `yaml:"count_pending_as_committed"`
	AllocationTimeoutMs     int  `yaml:"allocation_timeout_ms"`
}

// EmailConfig contains SendGrid settings. No API key disables email.
type EmailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
}

// PushConfig contains Firebase Cloud Messaging settings. No credentials file
// disables push.
type PushConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	DispatchTopic   string `yaml:"dispatch_topic"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReconcileInventory  string `yaml:"reconcile_inventory"`
	ExpireStalePending  string `yaml:"expire_stale_pending"`
	SendReturnReminders string `yaml:"send_return_reminders"`
	StalePendingHours   int    `yaml:"stale_pending_hours"`
	ReminderLeadHours   int    `yaml:"reminder_lead_hours"`
}

// Load reads configuration from a YAML file. A .env file in the working
// directory is loaded into the environment first if present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
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

	// Store
	if val := os.Getenv("STORE_TYPE"); val != "" {
		c.Store.Type = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("HTTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.HTTPPort)
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.GRPCPort)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Notifications
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGridAPIKey = val
	}
	if val := os.Getenv("FIREBASE_CREDENTIALS"); val != "" {
		c.Push.CredentialsFile = val
	}

	// Inventory
	if val := os.Getenv("COUNT_PENDING_AS_COMMITTED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Inventory.CountPendingAsCommitted = b
		}
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 50051
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	// Store validation
	switch c.Store.Type {
	case "":
		c.Store.Type = "postgres"
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}

	// Database validation
	if c.Store.Type == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
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
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "boxrental"
	}

	// Pricing validation
	if c.Pricing.DepositPerBox < 0 {
		return fmt.Errorf("deposit per box must not be negative")
	}
	if c.Pricing.DepositPerBox == 0 {
		c.Pricing.DepositPerBox = pricing.DefaultDepositPerBox
	}

	// Tracking defaults
	if c.Tracking.CodeLength == 0 {
		c.Tracking.CodeLength = 10
	}
	if c.Tracking.CodeLength < 8 {
		return fmt.Errorf("tracking code length must be at least 8, got %d", c.Tracking.CodeLength)
	}
	if c.Tracking.LookupRatePerMinute == 0 {
		c.Tracking.LookupRatePerMinute = 10
	}
	if c.Tracking.LookupBurst == 0 {
		c.Tracking.LookupBurst = 5
	}

	// Inventory defaults
	if c.Inventory.AllocationTimeoutMs == 0 {
		c.Inventory.AllocationTimeoutMs = 5000
	}

	// Notification defaults
	if c.Email.SendGridAPIKey != "" && c.Email.FromEmail == "" {
		return fmt.Errorf("email from address is required when sendgrid is enabled")
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "Box Rental"
	}
	if c.Push.DispatchTopic == "" {
		c.Push.DispatchTopic = "dispatch"
	}

	// Scheduler defaults
	if c.Scheduler.ReconcileInventory == "" {
		c.Scheduler.ReconcileInventory = "0 0 1 * * *" // 1 AM UTC
	}
	if c.Scheduler.ExpireStalePending == "" {
		c.Scheduler.ExpireStalePending = "0 15 * * * *" // Hourly at :15
	}
	if c.Scheduler.SendReturnReminders == "" {
		c.Scheduler.SendReturnReminders = "0 0 8 * * *" // 8 AM UTC
	}
	if c.Scheduler.StalePendingHours == 0 {
		c.Scheduler.StalePendingHours = 24
	}
	if c.Scheduler.ReminderLeadHours == 0 {
		c.Scheduler.ReminderLeadHours = 24
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

// GetHTTPAddress returns the REST listener address
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// GetGRPCAddress returns the gRPC listener address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func (c *Config) AllocationTimeout() time.Duration {
	return time.Duration(c.Inventory.AllocationTimeoutMs) * time.Millisecond
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpiry) * time.Minute
}

// PricingTable builds the price list, starting from the defaults and
// replacing whatever the file overrides.
func (c *Config) PricingTable() (*pricing.Table, error) {
	if len(c.Pricing.Boxes) == 0 && len(c.Pricing.Products) == 0 &&
		c.Pricing.DepositPerBox == pricing.DefaultDepositPerBox {
		return pricing.DefaultTable(), nil
	}
	boxes, products := pricing.DefaultPrices()
	if len(c.Pricing.Boxes) > 0 {
		boxes = c.Pricing.Boxes
	}
	if len(c.Pricing.Products) > 0 {
		products = c.Pricing.Products
	}
	return pricing.NewTable(boxes, products, c.Pricing.DepositPerBox)
}
