package ingest

import (
	"strings"
	"time"
)

// dateLayouts covers the formats the upstream feed has been seen to use
// for posted/response/archive dates. ISO first, it is the common case.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
}

// canonicalDate normalizes a raw date string to YYYY-MM-DD. Unparseable
// input is kept as trimmed raw text rather than dropped: a wrong-looking
// date is still more useful to an analyst than an empty cell.
func canonicalDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
