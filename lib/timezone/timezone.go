package timezone

import (
	"fmt"
	"strings"
	"time"
)

// SiteLayout is the date format the giveaway form accepts, "Jan 2, 2006 3:04 pm".
const SiteLayout = "Jan 2, 2006 3:04 pm"

// Clock returns the current time, components take one so tests can pin it.
type Clock func() time.Time

func Format(t time.Time) string {
	return t.Format(SiteLayout)
}

// Parse reads a site formatted date in loc. It accepts either case for the
// meridiem and tolerates zero padded hours and days.
func Parse(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	layouts := []string{
		"Jan 2, 2006 3:04 PM",
		"Jan 2, 2006 03:04 PM",
		"Jan 02, 2006 3:04 PM",
		"Jan 2, 2006 15:04",
	}
	upper := strings.ToUpper(value[max(0, len(value)-2):])
	normalized := value[:max(0, len(value)-2)] + upper
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, normalized, loc)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid site date %q", value)
}

// OffsetMinutes mirrors the browser getTimezoneOffset value the creation
// form submits: minutes behind UTC, so UTC+2 is -120.
func OffsetMinutes(t time.Time) int {
	_, offset := t.Zone()
	return -offset / 60
}
