package params

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

const (
	// DateLayout is the accepted expiry date format, e.g. "26 Feb 2021".
	DateLayout = "2 Jan 2006"
	// TimeLayout is the accepted expiry time-of-day format, e.g. "16:00".
	TimeLayout = "15:04"
)

// ParseExpiry combines a date and a time of day into an absolute instant in
// the named IANA timezone. An empty timezone means UTC.
func ParseExpiry(date, clock, timezone string) (time.Time, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("params: %w: timezone %q: %v", domain.ErrConfiguration, tz, err)
		}
		loc = l
	}

	value := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("params: %w: expiry %q (want %q): %v",
			domain.ErrConfiguration, value, DateLayout+" "+TimeLayout, err)
	}
	return t, nil
}

// Humanize describes t relative to now, e.g. "in 2 days" or "3 hours ago".
func Humanize(t, now time.Time) string {
	d := t.Sub(now)
	future := d >= 0
	if !future {
		d = -d
	}

	var s string
	switch {
	case d < 10*time.Second:
		return "just now"
	case d < 45*time.Second:
		s = plural(int(d/time.Second), "second")
	case d < 90*time.Second:
		s = "a minute"
	case d < 45*time.Minute:
		s = plural(roundDiv(d, time.Minute), "minute")
	case d < 90*time.Minute:
		s = "an hour"
	case d < 22*time.Hour:
		s = plural(roundDiv(d, time.Hour), "hour")
	case d < 36*time.Hour:
		s = "a day"
	case d < 26*24*time.Hour:
		s = plural(roundDiv(d, 24*time.Hour), "day")
	case d < 45*24*time.Hour:
		s = "a month"
	case d < 320*24*time.Hour:
		s = plural(roundDiv(d, 30*24*time.Hour), "month")
	case d < 548*24*time.Hour:
		s = "a year"
	default:
		s = plural(roundDiv(d, 365*24*time.Hour), "year")
	}

	if future {
		return "in " + s
	}
	return s + " ago"
}

func roundDiv(d, unit time.Duration) int {
	return int(math.Round(float64(d) / float64(unit)))
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
