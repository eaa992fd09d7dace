package services

import "errors"

// Export service errors. Returned errors are *apierrors.APIError values
// wrapping one of these, so both errors.Is and errors.As apply.
var (
	// ErrInvalidRequest marks a request rejected before any fetch.
	ErrInvalidRequest = errors.New("invalid export request")

	// ErrNoPriceData marks an empty price series after the widened retry.
	ErrNoPriceData = errors.New("no price data found")

	// ErrPriceFetch marks a failed price provider call.
	ErrPriceFetch = errors.New("price fetch failed")

	// ErrExportFailed marks a failure to assemble the combined table or workbook.
	ErrExportFailed = errors.New("export failed")
)
