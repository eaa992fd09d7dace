package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "TWX"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Exchange  ExchangeConfig  `yaml:"exchange" envconfig:"EXCHANGE"`
	Prices    PricesConfig    `yaml:"prices" envconfig:"PRICES"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"5m"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	ExportTimeout   time.Duration `yaml:"export_timeout" envconfig:"EXPORT_TIMEOUT" default:"4m"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig limits inbound API requests
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"5"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"10"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	LogsDir string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// ExchangeConfig configures the TWSE daily institutional trading endpoint.
//
// InsecureSkipVerify defaults to true: the exchange's certificate chain is
// missing an intermediate that most Go trust stores cannot complete.
type ExchangeConfig struct {
	BaseURL            string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://www.twse.com.tw"`
	UserAgent          string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	RequestDelay       time.Duration `yaml:"request_delay" envconfig:"REQUEST_DELAY" default:"1s"`
	RequestTimeout     time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"20s"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" envconfig:"INSECURE_SKIP_VERIFY" default:"true"`
}

// PricesConfig configures the price-data provider.
type PricesConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://query1.finance.yahoo.com"`
	UserAgent      string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"20s"`
	RetryCount     int           `yaml:"retry_count" envconfig:"RETRY_COUNT" default:"2"`
}

// ExportConfig holds the request limits applied before an export runs.
type ExportConfig struct {
	InstitutionalMaxDays  int    `yaml:"institutional_max_days" envconfig:"INSTITUTIONAL_MAX_DAYS" default:"60"`
	InstitutionalWarnDays int    `yaml:"institutional_warn_days" envconfig:"INSTITUTIONAL_WARN_DAYS" default:"30"`
	WidenDays             int    `yaml:"widen_days" envconfig:"WIDEN_DAYS" default:"7"`
	PreviewRows           int    `yaml:"preview_rows" envconfig:"PREVIEW_ROWS" default:"10"`
	Timezone              string `yaml:"timezone" envconfig:"TIMEZONE" default:"Asia/Taipei"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile loads configuration from environment variables, overlaid on the
// YAML file at path when it exists. Environment values win.
func LoadFile(path string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileConfig, err := loadFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileConfig, cfg)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs fills values that the environment left at their defaults
// from the file config. An environment variable that is explicitly set
// always takes precedence.
func mergeConfigs(fileConfig, envConfig Config) Config {
	def := Default()

	pickInt := func(env, file, d int, key string) int {
		if envSet(key) || file == 0 {
			return env
		}
		if env == d {
			return file
		}
		return env
	}
	pickDur := func(env, file, d time.Duration, key string) time.Duration {
		if envSet(key) || file == 0 {
			return env
		}
		if env == d {
			return file
		}
		return env
	}
	pickStr := func(env, file, d string, key string) string {
		if envSet(key) || file == "" {
			return env
		}
		if env == d {
			return file
		}
		return env
	}

	envConfig.Server.Port = pickInt(envConfig.Server.Port, fileConfig.Server.Port, def.Server.Port, "SERVER_PORT")
	envConfig.Server.ReadTimeout = pickDur(envConfig.Server.ReadTimeout, fileConfig.Server.ReadTimeout, def.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	envConfig.Server.WriteTimeout = pickDur(envConfig.Server.WriteTimeout, fileConfig.Server.WriteTimeout, def.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	envConfig.Server.ExportTimeout = pickDur(envConfig.Server.ExportTimeout, fileConfig.Server.ExportTimeout, def.Server.ExportTimeout, "SERVER_EXPORT_TIMEOUT")

	envConfig.Logging.Level = pickStr(envConfig.Logging.Level, fileConfig.Logging.Level, def.Logging.Level, "LOGGING_LEVEL")
	envConfig.Logging.Output = pickStr(envConfig.Logging.Output, fileConfig.Logging.Output, def.Logging.Output, "LOGGING_OUTPUT")
	envConfig.Logging.FilePath = pickStr(envConfig.Logging.FilePath, fileConfig.Logging.FilePath, def.Logging.FilePath, "LOGGING_FILE_PATH")

	envConfig.Paths.DataDir = pickStr(envConfig.Paths.DataDir, fileConfig.Paths.DataDir, def.Paths.DataDir, "PATHS_DATA_DIR")
	envConfig.Paths.LogsDir = pickStr(envConfig.Paths.LogsDir, fileConfig.Paths.LogsDir, def.Paths.LogsDir, "PATHS_LOGS_DIR")

	envConfig.Exchange.BaseURL = pickStr(envConfig.Exchange.BaseURL, fileConfig.Exchange.BaseURL, def.Exchange.BaseURL, "EXCHANGE_BASE_URL")
	envConfig.Exchange.UserAgent = pickStr(envConfig.Exchange.UserAgent, fileConfig.Exchange.UserAgent, def.Exchange.UserAgent, "EXCHANGE_USER_AGENT")
	envConfig.Exchange.RequestDelay = pickDur(envConfig.Exchange.RequestDelay, fileConfig.Exchange.RequestDelay, def.Exchange.RequestDelay, "EXCHANGE_REQUEST_DELAY")
	envConfig.Exchange.RequestTimeout = pickDur(envConfig.Exchange.RequestTimeout, fileConfig.Exchange.RequestTimeout, def.Exchange.RequestTimeout, "EXCHANGE_REQUEST_TIMEOUT")

	envConfig.Prices.BaseURL = pickStr(envConfig.Prices.BaseURL, fileConfig.Prices.BaseURL, def.Prices.BaseURL, "PRICES_BASE_URL")
	envConfig.Prices.RequestTimeout = pickDur(envConfig.Prices.RequestTimeout, fileConfig.Prices.RequestTimeout, def.Prices.RequestTimeout, "PRICES_REQUEST_TIMEOUT")

	envConfig.Export.InstitutionalMaxDays = pickInt(envConfig.Export.InstitutionalMaxDays, fileConfig.Export.InstitutionalMaxDays, def.Export.InstitutionalMaxDays, "EXPORT_INSTITUTIONAL_MAX_DAYS")
	envConfig.Export.InstitutionalWarnDays = pickInt(envConfig.Export.InstitutionalWarnDays, fileConfig.Export.InstitutionalWarnDays, def.Export.InstitutionalWarnDays, "EXPORT_INSTITUTIONAL_WARN_DAYS")

	envConfig.Telemetry.TraceExporter = pickStr(envConfig.Telemetry.TraceExporter, fileConfig.Telemetry.TraceExporter, def.Telemetry.TraceExporter, "TELEMETRY_TRACE_EXPORTER")
	envConfig.Telemetry.MetricExporter = pickStr(envConfig.Telemetry.MetricExporter, fileConfig.Telemetry.MetricExporter, def.Telemetry.MetricExporter, "TELEMETRY_METRIC_EXPORTER")

	return envConfig
}

func envSet(key string) bool {
	_, ok := os.LookupEnv(EnvPrefix + "_" + key)
	return ok
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if c.Exchange.UserAgent == "" {
		c.Exchange.UserAgent = DefaultUserAgent
	}
	if c.Prices.UserAgent == "" {
		c.Prices.UserAgent = DefaultUserAgent
	}

	// The exchange throttles clients that poll faster than this.
	if c.Exchange.RequestDelay < MinExchangeRequestDelay {
		c.Exchange.RequestDelay = MinExchangeRequestDelay
	}

	if c.Exchange.RequestTimeout <= 0 {
		return fmt.Errorf("exchange request timeout must be positive")
	}

	if c.Export.InstitutionalMaxDays <= 0 {
		return fmt.Errorf("export institutional_max_days must be positive")
	}
	if c.Export.InstitutionalWarnDays > c.Export.InstitutionalMaxDays {
		c.Export.InstitutionalWarnDays = c.Export.InstitutionalMaxDays
	}
	if c.Export.WidenDays < 0 {
		c.Export.WidenDays = 0
	}
	if c.Export.PreviewRows <= 0 {
		c.Export.PreviewRows = 10
	}

	if _, err := time.LoadLocation(c.Export.Timezone); err != nil {
		return fmt.Errorf("invalid export timezone %q: %w", c.Export.Timezone, err)
	}

	return nil
}

// Location returns the configured market timezone, falling back to a fixed
// UTC+8 zone when tzdata is unavailable.
func (c *Config) Location() *time.Location {
	return LoadLocation(c.Export.Timezone)
}

// LoadLocation resolves name, falling back to a fixed UTC+8 zone.
func LoadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			ExportTimeout:   4 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     5,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir: "data",
			LogsDir: "logs",
		},
		Exchange: ExchangeConfig{
			BaseURL:            "https://www.twse.com.tw",
			UserAgent:          DefaultUserAgent,
			RequestDelay:       time.Second,
			RequestTimeout:     20 * time.Second,
			InsecureSkipVerify: true,
		},
		Prices: PricesConfig{
			BaseURL:        "https://query1.finance.yahoo.com",
			UserAgent:      DefaultUserAgent,
			RequestTimeout: 20 * time.Second,
			RetryCount:     2,
		},
		Export: ExportConfig{
			InstitutionalMaxDays:  60,
			InstitutionalWarnDays: 30,
			WidenDays:             7,
			PreviewRows:           10,
			Timezone:              "Asia/Taipei",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1,
			Environment:    "development",
		},
	}
}
