// Package services implements the business logic layer of the exporter.
// HTTP handlers and the command-line tool both go through it.
//
// # Export flow
//
// ExportService.Export runs one export:
//
//	1. Validate the request (struct tags, date rules, institutional limits)
//	2. Fetch prices and institutional data concurrently with errgroup
//	3. Retry once with a widened end date when the price series is empty
//	4. Merge on the canonical date, falling back to price-only on merge errors
//	5. Build the workbook
//
// Prepare runs steps 1 to 4 only and backs the preview endpoint.
//
// # Errors
//
// Every returned error is an *apierrors.APIError wrapping one of the
// sentinels in errors.go, so handlers render it directly and callers can
// still test it with errors.Is:
//
//	res, err := svc.Export(ctx, req)
//	if errors.Is(err, services.ErrNoPriceData) {
//	    // exit code 2
//	}
//
// Context errors are returned unwrapped.
package services
