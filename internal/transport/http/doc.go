// Package http implements the HTTP handlers of the export service. Handlers
// decode requests, call the services layer and render its results; they hold
// no export logic of their own.
//
// # Routes
//
//	POST /api/v1/exports          workbook download (?format=csv for CSV)
//	POST /api/v1/exports/preview  JSON preview of the merged table
//	POST /api/v1/exports/validate validation result and warnings only
//	GET  /api/health              health, ready, live
//	GET  /api/version             build information
//
// # Errors
//
// Every failure is rendered as RFC 7807 problem details by the shared
// ErrorHandler:
//
//	{
//	    "type": "/errors/export/no-price-data",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "No price data found. Check the security ID, the market and the date range",
//	    "instance": "/api/v1/exports",
//	    "error_code": "NO_PRICE_DATA"
//	}
//
// # Testing
//
// Handlers are tested with httptest and testify mocks of the service
// interfaces in interfaces.go.
package http
