// Package config provides configuration loading for the exporter.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. config.yaml in the working directory or configs/
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern TWX_<SECTION>_<FIELD>:
//
//	TWX_SERVER_PORT=8080
//	TWX_LOGGING_LEVEL=debug
//	TWX_EXCHANGE_REQUEST_DELAY=1500ms
//	TWX_EXCHANGE_INSECURE_SKIP_VERIFY=false
//	TWX_PRICES_RETRY_COUNT=3
//	TWX_EXPORT_INSTITUTIONAL_MAX_DAYS=60
//
// # Validation
//
// Load rejects invalid ports, timeouts and timezones. The exchange request
// delay is clamped to MinExchangeRequestDelay.
//
// # Path Management
//
// Paths resolves the data, export and log directories:
//
//	paths, err := cfg.ResolvePaths()
//	if err := paths.EnsureDirectories(); err != nil { ... }
//	out := paths.GetExportPath("2330_2024-09-12_2024-09-13.xlsx")
package config
