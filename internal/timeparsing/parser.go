// Package timeparsing provides layered parsing for the time expressions
// accepted on the command line.
//
// Layers, tried in order:
//  1. Compact offset (+25m, -1h, 2d ago is spelled -2d)
//  2. Absolute timestamp (15:04, 2006-01-02 15:04, RFC3339)
//  3. Natural language (yesterday 9am, last friday) via olebedev/when
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactOffsetRe matches compact offset patterns: [+-]?(\d+)([mhdw])
// Examples: +25m, -1h, 2d, -1w
var compactOffsetRe = regexp.MustCompile(`^([+-]?)(\d+)([mhdw])$`)

// absoluteLayouts are tried in order. Clock-only layouts are anchored to
// the reference day.
var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"15:04:05",
	"15:04",
}

var nlParser = func() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}()

// Parse resolves a time expression against now. An empty expression means
// now itself.
func Parse(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "now") {
		return now, nil
	}

	if IsCompactOffset(s) {
		return ParseCompactOffset(s, now)
	}
	if t, err := parseAbsolute(s, now); err == nil {
		return t, nil
	}

	res, err := nlParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %w", s, err)
	}
	if res == nil {
		return time.Time{}, fmt.Errorf("unrecognized time expression %q", s)
	}
	return res.Time, nil
}

// ParseCompactOffset parses compact offset syntax relative to now.
//
// Units: m = minutes, h = hours, d = days, w = weeks. No sign means a
// positive offset, so "-25m" is twenty-five minutes ago.
func ParseCompactOffset(s string, now time.Time) (time.Time, error) {
	matches := compactOffsetRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact offset: %q", s)
	}

	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid offset amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}

	switch matches[3] {
	case "m":
		return now.Add(time.Duration(amount) * time.Minute), nil
	case "h":
		return now.Add(time.Duration(amount) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, amount), nil
	case "w":
		return now.AddDate(0, 0, amount*7), nil
	}
	return now, nil
}

// IsCompactOffset reports whether s matches compact offset syntax.
func IsCompactOffset(s string) bool {
	return compactOffsetRe.MatchString(s)
}

func parseAbsolute(s string, now time.Time) (time.Time, error) {
	for _, layout := range absoluteLayouts {
		t, err := time.ParseInLocation(layout, s, now.Location())
		if err != nil {
			continue
		}
		// Clock-only layouts parse onto year zero; anchor them to the
		// reference day instead.
		if t.Year() == 0 {
			t = time.Date(now.Year(), now.Month(), now.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, now.Location())
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("not an absolute timestamp: %q", s)
}
