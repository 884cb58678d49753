package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// leadingNonNumeric strips currency prefixes ($, COP, stray labels) up to
// the first digit or sign.
var leadingNonNumeric = regexp.MustCompile(`^[^\d\-]*`)

// Money parses a currency string in the Latin convention, where "." is a
// thousands separator and "," introduces the fractional part:
//
//	$1.234.567.890 -> 1234567890
//	$1.234.567,89  -> 1234567.89
//	COP 1.234.567  -> 1234567
//	1234567        -> 1234567
//
// With only dots present, the last dot-delimited group is treated as
// fractional only when it has at most two digits; otherwise every dot is a
// thousands separator. Unparsable input yields nil, never an error: values
// are degraded, not dropped.
func Money(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	s = leadingNonNumeric.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil
	}

	if idx := strings.LastIndex(s, ","); idx >= 0 {
		whole := strings.ReplaceAll(s[:idx], ".", "")
		frac := s[idx+1:]
		if frac == "" {
			frac = "0"
		}
		return parseFloat(whole + "." + frac)
	}

	if strings.Contains(s, ".") {
		parts := strings.Split(s, ".")
		last := parts[len(parts)-1]
		if len(last) <= 2 && len(parts) > 1 {
			return parseFloat(strings.Join(parts[:len(parts)-1], "") + "." + last)
		}
		return parseFloat(strings.ReplaceAll(s, ".", ""))
	}

	return parseFloat(s)
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
