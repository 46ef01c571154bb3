package content

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseDate returns the entry's publish time in UTC. The bool is false when
// the date was missing or unparsable and now was substituted.
func ParseDate(raw string, parsed *time.Time, now time.Time) (time.Time, bool) {
	if parsed != nil && !parsed.IsZero() {
		return parsed.UTC(), true
	}

	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	return now.UTC(), false
}
