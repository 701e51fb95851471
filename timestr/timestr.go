// Package timestr converts between human-readable time strings and seconds.
//
// Accepted input forms for ToSeconds:
//
//   - a plain number, interpreted as seconds: "90", "1.5"
//   - compact unit tokens: "1min 30s", "500ms", "1d 2h"
//   - verbose unit tokens: "2 hours 1 minute", "1 day"
//
// Units are case-insensitive and whitespace between tokens is optional.
// FromSeconds produces the compact form, which is also the canonical form a
// parsed spec is normalized to before appearing in user-facing messages.
package timestr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports an unparsable time string. The offending input is kept so
// callers can include it in user-facing messages.
type ParseError struct {
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid time string '%s'", e.Text)
}

const (
	secsPerDay    = 24 * 60 * 60
	secsPerHour   = 60 * 60
	secsPerMinute = 60
)

// Longer unit names must come first so "milliseconds" is not consumed as
// "mi" + garbage and "ms" is not shadowed by minutes.
var unitFactors = []struct {
	name   string
	factor float64
}{
	{"milliseconds", 0.001},
	{"millisecond", 0.001},
	{"millis", 0.001},
	{"ms", 0.001},
	{"seconds", 1},
	{"second", 1},
	{"secs", 1},
	{"sec", 1},
	{"s", 1},
	{"minutes", secsPerMinute},
	{"minute", secsPerMinute},
	{"mins", secsPerMinute},
	{"min", secsPerMinute},
	{"m", secsPerMinute},
	{"hours", secsPerHour},
	{"hour", secsPerHour},
	{"h", secsPerHour},
	{"days", secsPerDay},
	{"day", secsPerDay},
	{"d", secsPerDay},
}

var tokenPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?|\.\d+)([a-z]*)`)

// ToSeconds parses a time string into seconds. Negative amounts and
// unrecognized text yield a *ParseError carrying the original input.
func ToSeconds(text string) (float64, error) {
	original := text

	normalized := strings.ToLower(strings.Join(strings.Fields(text), ""))
	if normalized == "" || strings.HasPrefix(normalized, "-") {
		return 0, &ParseError{Text: original}
	}

	// Plain numbers are seconds.
	if secs, err := strconv.ParseFloat(normalized, 64); err == nil {
		return secs, nil
	}

	var total float64

	rest := normalized
	for len(rest) > 0 {
		match := tokenPattern.FindStringSubmatch(rest)
		if match == nil {
			return 0, &ParseError{Text: original}
		}

		amount, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, &ParseError{Text: original}
		}

		factor, ok := lookupUnit(match[2])
		if !ok {
			return 0, &ParseError{Text: original}
		}

		total += amount * factor
		rest = rest[len(match[0]):]
	}

	return total, nil
}

func lookupUnit(unit string) (float64, bool) {
	for _, u := range unitFactors {
		if u.name == unit {
			return u.factor, true
		}
	}

	return 0, false
}

// FromSeconds formats seconds as a compact human-readable time string, e.g.
// "1min 30s" or "500ms". The value is rounded to millisecond precision first;
// zero and sub-millisecond values render as "0s".
func FromSeconds(secs float64) string {
	if secs < 0 {
		return "-" + FromSeconds(-secs)
	}

	millis := int64(math.Round(secs * 1000))
	if millis == 0 {
		return "0s"
	}

	var parts []string

	appendPart := func(amount int64, unit string) {
		if amount > 0 {
			parts = append(parts, strconv.FormatInt(amount, 10)+unit)
		}
	}

	appendPart(millis/(secsPerDay*1000), "d")
	millis %= secsPerDay * 1000
	appendPart(millis/(secsPerHour*1000), "h")
	millis %= secsPerHour * 1000
	appendPart(millis/(secsPerMinute*1000), "min")
	millis %= secsPerMinute * 1000
	appendPart(millis/1000, "s")
	appendPart(millis%1000, "ms")

	return strings.Join(parts, " ")
}
