package dbtime

import "time"

// Now returns the current UTC time at the precision the database keeps.
// All timestamps written to the store go through here so that a value
// read back compares equal to the value written.
func Now() time.Time {
	return Time(time.Now().UTC())
}

// Time truncates t to microsecond precision, matching Postgres timestamp
// columns.
func Time(t time.Time) time.Time {
	return t.Round(time.Microsecond)
}
