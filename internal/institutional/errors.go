package institutional

import "errors"

var (
	// ErrInvalidRange is returned when start is after end.
	ErrInvalidRange = errors.New("start date is after end date")

	// ErrBeforeDataFloor is returned for ranges starting before the report
	// existed in its current form.
	ErrBeforeDataFloor = errors.New("institutional data is not available before 2015-01-01")

	// ErrEmptyReport marks a body with no data table, typically a holiday.
	ErrEmptyReport = errors.New("report contains no data table")

	// ErrMissingColumn marks a report without the security id column.
	ErrMissingColumn = errors.New("report is missing a required column")
)
