package normalize

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts are the explicit formats the portal and the open-data API
// emit, tried in order before falling back to day-first inference.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
}

// Date parses a date string against the known layouts, falling back to
// lenient day-first inference. Unparsable input yields nil.
func Date(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}

	return inferDayFirst(s)
}

// inferDayFirst handles irregular numeric dates by splitting on the
// separator and assuming day-month-year order unless the first group is a
// four-digit year.
func inferDayFirst(s string) *time.Time {
	// Strip a trailing time component if present.
	if idx := strings.IndexByte(s, ' '); idx > 0 {
		s = s[:idx]
	}

	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return nil
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil
		}
		nums[i] = n
	}

	var year, month, day int
	if len(parts[0]) == 4 {
		year, month, day = nums[0], nums[1], nums[2]
	} else {
		day, month, year = nums[0], nums[1], nums[2]
	}

	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 {
		return nil
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
