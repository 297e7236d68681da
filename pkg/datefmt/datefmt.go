package datefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
)

// Placeholder is rendered in place of a missing or unparsable date.
const Placeholder = "—"

var (
	isoPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dottedPattern = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)
)

// Date is a calendar date without time or zone. The zero Date means "no date"
// and serializes as an empty string.
type Date struct {
	civil.Date
}

// New builds a Date from calendar components using local calendar semantics,
// so out-of-range components roll over (Feb 30 becomes Mar 1 or 2).
func New(year int, month time.Month, day int) Date {
	return Date{civil.DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.Local))}
}

// Today returns the calendar date of now in now's location.
func Today(now time.Time) Date {
	return Date{civil.DateOf(now)}
}

// Parse accepts YYYY-MM-DD, DD.MM.YYYY, or any generic date/time text.
// It reports false for empty or unrecognized input.
func Parse(text string) (Date, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Date{}, false
	}

	switch {
	case isoPattern.MatchString(text):
		parts := strings.Split(text, "-")
		return fromParts(parts[0], parts[1], parts[2])
	case dottedPattern.MatchString(text):
		parts := strings.Split(text, ".")
		return fromParts(parts[2], parts[1], parts[0])
	}

	t, err := dateparse.ParseLocal(text)
	if err != nil {
		return Date{}, false
	}
	return Date{civil.DateOf(t.In(time.Local))}, true
}

func fromParts(year, month, day string) (Date, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return Date{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return Date{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return Date{}, false
	}
	return New(y, time.Month(m), d), true
}

// Format renders d as DD.MM.YYYY, or Placeholder when d is zero or invalid.
func Format(d Date) string {
	if d.IsZero() || !d.IsValid() {
		return Placeholder
	}
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, int(d.Month), d.Year)
}

// Display parses text and formats the result.
func Display(text string) string {
	d, _ := Parse(text)
	return Format(d)
}

// IsZero reports whether d is the "no date" value.
func (d Date) IsZero() bool {
	return d.Date == civil.Date{}
}

// String returns YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Date.String()
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts either textual encoding. Unparsable text yields the
// zero Date rather than an error so one bad field never discards a record.
func (d *Date) UnmarshalText(data []byte) error {
	parsed, ok := Parse(string(data))
	if !ok {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

// Compare returns -1, 0 or +1 depending on whether a is before, equal to or
// after b.
func Compare(a, b Date) int {
	switch {
	case a.Date.Before(b.Date):
		return -1
	case a.Date.After(b.Date):
		return 1
	default:
		return 0
	}
}
