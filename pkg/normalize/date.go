package normalize

import (
	"strings"
	"time"
)

// ISODate is the canonical date layout.
const ISODate = "2006-01-02"

// DefaultDateFormats lists accepted source layouts in priority order:
// month-first, then ISO, then day-first. Single-digit months and days are accepted.
var DefaultDateFormats = []string{
	"1/2/2006",
	"1/2/06",
	"2006-1-2",
	"2/1/2006",
	"1-2-2006",
}

// ParseDate returns raw as YYYY-MM-DD using the first layout that matches.
// When no layout matches, raw is returned unchanged.
func ParseDate(raw string, formats ...string) string {
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}

	s := strings.TrimSpace(raw)
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate)
		}
	}
	return raw
}
