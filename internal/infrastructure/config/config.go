package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Admin     AdminConfig
	Bridge    BridgeConfig
	Catalog   CatalogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration // 0 keeps SSE streams open
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration
	StreamHeartbeat   time.Duration
	StreamMaxClients  int
	StreamClientQueue int
	CORSAllowOrigins  []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// An empty Host disables Redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	MetricsEnabled    bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// AdminConfig holds settings for the admin REST API client
type AdminConfig struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	PageSize         int
	MaxResponseBytes int64
	RateLimit        float64 // requests per second, 0 disables
	RateBurst        int
	BreakerFailures  uint32
	BreakerTimeout   time.Duration
}

// BridgeConfig holds the admin integration bridge settings
type BridgeConfig struct {
	PushEnabled          bool
	PollEnabled          bool
	SubscriptionURL      string
	OrderTopic           string
	DeliveryTopic        string
	PollInterval         time.Duration
	PolledStatuses       []string
	BackoffBase          float64 // seconds
	BackoffCap           time.Duration
	PersistFailurePolicy string // log, retry, drop
	PersistRetryAttempts int
	SinkMode             string // local, redis
}

// CatalogConfig holds catalog mirror settings
type CatalogConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
}

// Sink modes
const (
	SinkModeLocal = "local"
	SinkModeRedis = "redis"
)

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STOREFRONT_ prefix (e.g., STOREFRONT_BRIDGE_POLL_ENABLED)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/storefront")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			ShutdownTimeout:   v.GetDuration("http.shutdown_timeout"),
			StreamHeartbeat:   v.GetDuration("http.stream_heartbeat"),
			StreamMaxClients:  v.GetInt("http.stream_max_clients"),
			StreamClientQueue: v.GetInt("http.stream_client_queue"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Admin: AdminConfig{
			BaseURL:          v.GetString("admin.base_url"),
			Token:            v.GetString("admin.token"),
			Timeout:          v.GetDuration("admin.timeout"),
			PageSize:         v.GetInt("admin.page_size"),
			MaxResponseBytes: v.GetInt64("admin.max_response_bytes"),
			RateLimit:        v.GetFloat64("admin.rate_limit"),
			RateBurst:        v.GetInt("admin.rate_burst"),
			BreakerFailures:  v.GetUint32("admin.breaker_failures"),
			BreakerTimeout:   v.GetDuration("admin.breaker_timeout"),
		},
		Bridge: BridgeConfig{
			PushEnabled:          v.GetBool("bridge.push_enabled"),
			PollEnabled:          v.GetBool("bridge.poll_enabled"),
			SubscriptionURL:      v.GetString("bridge.subscription_url"),
			OrderTopic:           v.GetString("bridge.order_topic"),
			DeliveryTopic:        v.GetString("bridge.delivery_topic"),
			PollInterval:         v.GetDuration("bridge.poll_interval"),
			PolledStatuses:       splitList(v.GetStringSlice("bridge.polled_statuses")),
			BackoffBase:          v.GetFloat64("bridge.backoff_base"),
			BackoffCap:           v.GetDuration("bridge.backoff_cap"),
			PersistFailurePolicy: strings.ToLower(v.GetString("bridge.persist_failure_policy")),
			PersistRetryAttempts: v.GetInt("bridge.persist_retry_attempts"),
			SinkMode:             strings.ToLower(v.GetString("bridge.sink_mode")),
		},
		Catalog: CatalogConfig{
			Enabled:  v.GetBool("catalog.enabled"),
			Interval: v.GetDuration("catalog.interval"),
			Timeout:  v.GetDuration("catalog.timeout"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers built-in defaults with viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront-backend")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 0)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.max_header_bytes", 1<<20)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.stream_heartbeat", 30*time.Second)
	v.SetDefault("http.stream_max_clients", 1000)
	v.SetDefault("http.stream_client_queue", 16)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "storefront")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "storefront.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.conn_max_idle_time", 30)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.channel", "storefront:bridge:outbound")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "storefront-backend")
	v.SetDefault("telemetry.metrics_interval", 60*time.Second)
	v.SetDefault("telemetry.db_slow_query_threshold", 200*time.Millisecond)

	v.SetDefault("admin.base_url", "http://localhost:8081/api")
	v.SetDefault("admin.timeout", 10*time.Second)
	v.SetDefault("admin.page_size", 100)
	v.SetDefault("admin.max_response_bytes", 10<<20)
	v.SetDefault("admin.rate_limit", 10.0)
	v.SetDefault("admin.rate_burst", 5)
	v.SetDefault("admin.breaker_failures", 5)
	v.SetDefault("admin.breaker_timeout", 30*time.Second)

	v.SetDefault("bridge.push_enabled", true)
	v.SetDefault("bridge.poll_enabled", false)
	v.SetDefault("bridge.subscription_url", "ws://localhost:8081/ws")
	v.SetDefault("bridge.order_topic", "/topic/admin/orders")
	v.SetDefault("bridge.delivery_topic", "/topic/admin/deliveries")
	v.SetDefault("bridge.poll_interval", 30*time.Second)
	v.SetDefault("bridge.polled_statuses", []string{"PENDING", "CONFIRMED", "PROCESSING", "SHIPPED", "OUT_FOR_DELIVERY"})
	v.SetDefault("bridge.backoff_base", 2.0)
	v.SetDefault("bridge.backoff_cap", 60*time.Second)
	v.SetDefault("bridge.persist_failure_policy", "log")
	v.SetDefault("bridge.persist_retry_attempts", 3)
	v.SetDefault("bridge.sink_mode", SinkModeLocal)

	v.SetDefault("catalog.enabled", false)
	v.SetDefault("catalog.interval", 15*time.Minute)
	v.SetDefault("catalog.timeout", 5*time.Minute)
}

// splitList accepts both TOML arrays and comma separated env values
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, strings.ToUpper(p))
			}
		}
	}
	return out
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.Bridge.PushEnabled && c.Bridge.SubscriptionURL == "" {
		return fmt.Errorf("bridge.subscription_url is required when push is enabled")
	}
	if c.Bridge.PushEnabled && c.Bridge.OrderTopic == "" {
		return fmt.Errorf("bridge.order_topic is required when push is enabled")
	}
	if c.Bridge.PollEnabled {
		if c.Bridge.PollInterval <= 0 {
			return fmt.Errorf("bridge.poll_interval must be positive")
		}
		if len(c.Bridge.PolledStatuses) == 0 {
			return fmt.Errorf("bridge.polled_statuses cannot be empty when polling is enabled")
		}
	}
	if c.Bridge.BackoffBase <= 1 {
		return fmt.Errorf("bridge.backoff_base must be greater than 1, got %v", c.Bridge.BackoffBase)
	}
	if c.Bridge.BackoffCap < time.Duration(c.Bridge.BackoffBase*float64(time.Second)) {
		return fmt.Errorf("bridge.backoff_cap (%s) cannot be lower than bridge.backoff_base", c.Bridge.BackoffCap)
	}
	switch c.Bridge.PersistFailurePolicy {
	case "log", "retry", "drop":
	default:
		return fmt.Errorf("bridge.persist_failure_policy must be log, retry or drop, got %q", c.Bridge.PersistFailurePolicy)
	}
	if c.Bridge.PersistRetryAttempts < 0 {
		return fmt.Errorf("bridge.persist_retry_attempts cannot be negative")
	}
	switch c.Bridge.SinkMode {
	case SinkModeLocal:
	case SinkModeRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("bridge.sink_mode=redis requires redis.host")
		}
	default:
		return fmt.Errorf("bridge.sink_mode must be local or redis, got %q", c.Bridge.SinkMode)
	}

	if (c.Bridge.PollEnabled || c.Catalog.Enabled) && c.Admin.BaseURL == "" {
		return fmt.Errorf("admin.base_url is required when polling or catalog sync is enabled")
	}
	if c.Admin.Timeout <= 0 {
		return fmt.Errorf("admin.timeout must be positive")
	}
	if c.Catalog.Enabled && c.Catalog.Interval <= 0 {
		return fmt.Errorf("catalog.interval must be positive")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether Redis is configured
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}
