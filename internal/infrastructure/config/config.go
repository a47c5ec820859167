package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Provider    ProviderConfig  `mapstructure:"provider"`
	Engine      EngineConfig    `mapstructure:"engine"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// ProviderConfig configures the upstream price data source.
type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RetryBackoffMs int    `mapstructure:"retry_backoff_ms"`
}

// EngineConfig carries the computation policy. The rolling window length,
// the nearest-date match tolerance and the coverage threshold are policy
// choices kept configurable on purpose.
type EngineConfig struct {
	FetchTimeoutSeconds int     `mapstructure:"fetch_timeout_seconds"`
	MatchToleranceDays  int     `mapstructure:"match_tolerance_days"`
	RollingWindowDays   int     `mapstructure:"rolling_window_days"`
	CoverageThreshold   float64 `mapstructure:"coverage_threshold"`
	LumpsumAmount       float64 `mapstructure:"lumpsum_amount"`
	SIPMonthlyAmount    float64 `mapstructure:"sip_monthly_amount"`
}

type SchedulerConfig struct {
	Schedule             string `mapstructure:"schedule"`
	Timezone             string `mapstructure:"timezone"`
	InterBasketDelayMs   int    `mapstructure:"inter_basket_delay_ms"`
	StartupDelaySeconds  int    `mapstructure:"startup_delay_seconds"`
	StartupPassEnabled   bool   `mapstructure:"startup_pass_enabled"`
	RunTimeoutMinutes    int    `mapstructure:"run_timeout_minutes"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "folio_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.enabled", true)

	viper.SetDefault("provider.base_url", "https://api.mfapi.in")
	viper.SetDefault("provider.timeout_seconds", 15)
	viper.SetDefault("provider.max_retries", 3)
	viper.SetDefault("provider.retry_backoff_ms", 2000)

	viper.SetDefault("engine.fetch_timeout_seconds", 15)
	viper.SetDefault("engine.match_tolerance_days", 7)
	viper.SetDefault("engine.rolling_window_days", 1095)
	viper.SetDefault("engine.coverage_threshold", 0.99)
	viper.SetDefault("engine.lumpsum_amount", 100000)
	viper.SetDefault("engine.sip_monthly_amount", 10000)

	viper.SetDefault("scheduler.schedule", "30 2 * * *")
	viper.SetDefault("scheduler.timezone", "UTC")
	viper.SetDefault("scheduler.inter_basket_delay_ms", 1000)
	viper.SetDefault("scheduler.startup_delay_seconds", 120)
	viper.SetDefault("scheduler.startup_pass_enabled", true)
	viper.SetDefault("scheduler.run_timeout_minutes", 120)
}

func validate(config *Config) error {
	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}
	if config.Provider.BaseURL == "" {
		return fmt.Errorf("price provider base URL is required")
	}
	if config.Engine.RollingWindowDays <= 0 {
		return fmt.Errorf("rolling window must be positive")
	}
	if config.Engine.CoverageThreshold <= 0 || config.Engine.CoverageThreshold > 1 {
		return fmt.Errorf("coverage threshold must be in (0, 1]")
	}
	return nil
}

// FetchTimeout returns the per-instrument fetch bound as a Duration.
func (e EngineConfig) FetchTimeout() time.Duration {
	return time.Duration(e.FetchTimeoutSeconds) * time.Second
}
