package timeutil

import "time"

// Now returns the current time in UTC.
// Transaction timestamps and reference prefixes are computed from it.
func Now() time.Time {
	return time.Now().UTC()
}
