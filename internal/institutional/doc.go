// Package institutional downloads the exchange's daily three-major-institutional
// investors report (T86) for a single security over a date range.
//
// The report is published once per trading day as a CSV export covering every
// listed security. Fetcher issues one request per weekday, cleans the
// spreadsheet-style cells ("=\"2330\"", "\"12,345\""), keeps the rows of the
// requested security and coerces the numeric columns to decimals.
//
// Requests are sequential and throttled. A failure on one day never aborts the
// range; each day is reported as a DayOutcome so callers can tell a holiday
// from a network error.
package institutional
