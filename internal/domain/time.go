package domain

import "time"

// timestampLayouts covers the forms snapshot producers are known to emit:
// RFC 3339 with and without sub-second precision, and the zone-less
// ISO-8601 the original capture scripts wrote.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an ISO-8601 document timestamp. Returns (t, true)
// if any known layout matched.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders a document timestamp in the canonical form used
// for documents this pipeline writes.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
