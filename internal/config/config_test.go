package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad tests the Load function with various scenarios
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, time.Second, cfg.Exchange.RequestDelay)
				assert.True(t, cfg.Exchange.InsecureSkipVerify)
				assert.Equal(t, DefaultUserAgent, cfg.Exchange.UserAgent)
				assert.Equal(t, 60, cfg.Export.InstitutionalMaxDays)
				assert.Equal(t, 30, cfg.Export.InstitutionalWarnDays)
				assert.Equal(t, "Asia/Taipei", cfg.Export.Timezone)
			},
		},
		{
			name: "environment overrides",
			envVars: map[string]string{
				"TWX_SERVER_PORT":                   "9090",
				"TWX_LOGGING_LEVEL":                 "debug",
				"TWX_EXCHANGE_REQUEST_DELAY":        "2s",
				"TWX_EXCHANGE_INSECURE_SKIP_VERIFY": "false",
				"TWX_PRICES_RETRY_COUNT":            "4",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, 2*time.Second, cfg.Exchange.RequestDelay)
				assert.False(t, cfg.Exchange.InsecureSkipVerify)
				assert.Equal(t, 4, cfg.Prices.RetryCount)
			},
		},
		{
			name:    "request delay is clamped",
			envVars: map[string]string{"TWX_EXCHANGE_REQUEST_DELAY": "100ms"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, MinExchangeRequestDelay, cfg.Exchange.RequestDelay)
			},
		},
		{
			name:    "invalid port",
			envVars: map[string]string{"TWX_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "unparsable duration",
			envVars: map[string]string{"TWX_SERVER_READ_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "unknown timezone",
			envVars: map[string]string{"TWX_EXPORT_TIMEZONE": "Mars/Olympus"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := LoadFile("")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name        string
		fileContent string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "valid YAML config",
			fileContent: `
server:
  port: 9000
  read_timeout: 25s
logging:
  level: debug
exchange:
  request_delay: 3s
  insecure_skip_verify: false
export:
  institutional_max_days: 45
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, 25*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, 3*time.Second, cfg.Exchange.RequestDelay)
				assert.False(t, cfg.Exchange.InsecureSkipVerify)
				assert.Equal(t, 45, cfg.Export.InstitutionalMaxDays)
			},
		},
		{
			name:        "invalid YAML syntax",
			fileContent: "invalid: yaml: content: [unclosed",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(configFile, []byte(tt.fileContent), 0o644))

			cfg, err := loadFromFile(configFile)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}

	t.Run("non-existent file", func(t *testing.T) {
		_, err := loadFromFile("/non/existent/file.yaml")
		assert.Error(t, err)
	})
}

func TestLoadFile_FileAndEnvironment(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
server:
  port: 7000
exchange:
  request_delay: 2s
logging:
  level: warn
`), 0o644))

	t.Setenv("TWX_LOGGING_LEVEL", "error")

	cfg, err := LoadFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port, "file value replaces default")
	assert.Equal(t, 2*time.Second, cfg.Exchange.RequestDelay)
	assert.Equal(t, "error", cfg.Logging.Level, "environment wins over file")
}

func TestMergeConfigs(t *testing.T) {
	def := Default()

	fileConfig := Config{
		Server:   ServerConfig{Port: 6060, ReadTimeout: 20 * time.Second},
		Exchange: ExchangeConfig{BaseURL: "http://file.example.com"},
	}
	envConfig := *def
	envConfig.Server.ReadTimeout = 40 * time.Second

	merged := mergeConfigs(fileConfig, envConfig)

	assert.Equal(t, 6060, merged.Server.Port)
	assert.Equal(t, 40*time.Second, merged.Server.ReadTimeout, "non-default env value kept")
	assert.Equal(t, "http://file.example.com", merged.Exchange.BaseURL)
	assert.Equal(t, def.Prices.BaseURL, merged.Prices.BaseURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{name: "default is valid", modify: func(*Config) {}},
		{name: "zero port", modify: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "zero read timeout", modify: func(c *Config) { c.Server.ReadTimeout = 0 }, wantErr: true},
		{name: "zero exchange timeout", modify: func(c *Config) { c.Exchange.RequestTimeout = 0 }, wantErr: true},
		{name: "zero max days", modify: func(c *Config) { c.Export.InstitutionalMaxDays = 0 }, wantErr: true},
		{
			name:   "warn days capped by max days",
			modify: func(c *Config) { c.Export.InstitutionalWarnDays = 90 },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, c.Export.InstitutionalMaxDays, c.Export.InstitutionalWarnDays)
			},
		},
		{
			name:   "empty user agent defaulted",
			modify: func(c *Config) { c.Exchange.UserAgent = "" },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, DefaultUserAgent, c.Exchange.UserAgent)
			},
		},
		{
			name:   "format forced to json",
			modify: func(c *Config) { c.Logging.Format = "text" },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "json", c.Logging.Format)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := Default()
	loc := cfg.Location()
	_, offset := time.Date(2024, 9, 12, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 8*3600, offset)

	_, offset = time.Date(2024, 9, 12, 0, 0, 0, 0, LoadLocation("Nowhere/Nothing")).Zone()
	assert.Equal(t, 8*3600, offset)
}

func TestPaths(t *testing.T) {
	base := t.TempDir()
	p := NewPaths(base, PathsConfig{DataDir: "data", LogsDir: "logs"})

	assert.Equal(t, filepath.Join(base, "data"), p.DataDir)
	assert.Equal(t, filepath.Join(base, "data", "exports"), p.ExportsDir)
	assert.Equal(t, filepath.Join(base, "data", "exports", "a.xlsx"), p.GetExportPath("a.xlsx"))
	assert.Equal(t, filepath.Join(base, "logs", "app.log"), p.GetLogPath("app.log"))

	require.NoError(t, p.EnsureDirectories())
	assert.True(t, FileExists(p.ExportsDir))
	assert.True(t, FileExists(p.LogsDir))

	abs := filepath.Join(base, "elsewhere")
	assert.Equal(t, abs, NewPaths(base, PathsConfig{DataDir: abs}).DataDir)
}
