package logging

import "time"

// logTimestampLayout is the local wall-clock layout used on the console,
// both for the record header and for time-valued fields.
const logTimestampLayout = time.DateTime

// formatTimestamp renders ts in local time. A zero ts means "now", so a
// record built without a time still gets a header stamp.
func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.Local().Format(logTimestampLayout)
}
