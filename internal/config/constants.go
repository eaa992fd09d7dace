package config

import "time"

// Application constants
const (
	AppName    = "TW Stock Exporter"
	AppVersion = "1.0.0"

	// DefaultUserAgent identifies outbound requests as a desktop browser.
	// The exchange rejects requests carrying Go's default agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// MinExchangeRequestDelay is the smallest allowed pause between two
	// daily requests to the exchange.
	MinExchangeRequestDelay = 500 * time.Millisecond

	// InstitutionalDataFloor is the first date the exchange serves the
	// daily institutional report in its current form.
	InstitutionalDataFloor = "2015-01-01"

	// File names
	DefaultLogFile = "app.log"
)
