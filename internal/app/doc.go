// Package app wires the exporter's HTTP server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from the YAML file and TWX_ environment variables
//	2. Resolve the exports directory and initialize the logger
//	3. Initialize OpenTelemetry metrics and tracing
//	4. Create the websocket hub, price provider, T86 fetcher and export service
//	5. Mount middleware, the /api routes, /ws and the optional frontend
//
// Price and institutional sources can be replaced with WithPriceProvider and
// WithInstitutionalFetcher, which is how the tests run without network access.
//
// # Usage
//
//	application, err := app.NewApplication(app.WithFrontend(frontendFS))
//	if err != nil {
//	    os.Exit(1)
//	}
//	if err := application.Run(); err != nil {
//	    os.Exit(1)
//	}
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests within
// Server.ShutdownTimeout, closes websocket clients and flushes telemetry.
// Errors are returned to the caller; the package never calls os.Exit.
package app
