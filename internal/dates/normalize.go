// Package dates turns the date encodings used by tender sources into UTC
// timestamps. Every parser returns nil for input it cannot read; callers
// treat nil as "unknown", never as an error.
package dates

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Format selects how a raw value is interpreted.
type Format int

const (
	// Auto picks a parser from the value's shape.
	Auto Format = iota
	// FreeText is any human or ISO-ish date string.
	FreeText
	// WireMillis is the "/Date(<millis>)/" token.
	WireMillis
	// ExcelSerial is a spreadsheet serial-day number.
	ExcelSerial
	// DayMonthYear is dd/mm/yyyy with an optional hh:mm.
	DayMonthYear
)

// excelEpoch is day zero for spreadsheet serial numbers.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxSerial keeps the conversion inside time.Duration's range (year 2173).
const maxSerial = 100000

var wireToken = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

var dayMonthLayouts = []string{
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02/01/2006",
	"2/1/2006",
}

// Normalize parses raw according to f.
func Normalize(raw any, f Format) *time.Time {
	switch v := raw.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		t := v.UTC()
		return &t
	case float64:
		if f == Auto || f == ExcelSerial {
			return FromExcelSerial(v)
		}
		if f == WireMillis {
			return fromMillis(v)
		}
		return nil
	case int:
		return Normalize(float64(v), f)
	case int64:
		return Normalize(float64(v), f)
	case string:
		return normalizeString(strings.TrimSpace(v), f)
	default:
		return nil
	}
}

func normalizeString(s string, f Format) *time.Time {
	if s == "" {
		return nil
	}
	switch f {
	case WireMillis:
		return FromWire(s)
	case FreeText:
		return FromText(s)
	case DayMonthYear:
		return FromDayMonthYear(s)
	case ExcelSerial:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return FromExcelSerial(n)
	}

	if strings.HasPrefix(s, "/Date(") {
		return FromWire(s)
	}
	if t := FromDayMonthYear(s); t != nil {
		return t
	}
	return FromText(s)
}

// FromWire parses "/Date(1749216600000)/", ignoring any offset suffix since
// the millisecond count is already relative to the Unix epoch.
func FromWire(s string) *time.Time {
	m := wireToken.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// FromText parses free-form date text as UTC.
func FromText(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// FromDayMonthYear parses the day-first layouts used by provincial exports.
func FromDayMonthYear(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dayMonthLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// FromExcelSerial converts a serial-day number. The fractional part is the
// time of day, rounded to the millisecond.
func FromExcelSerial(n float64) *time.Time {
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 || n > maxSerial {
		return nil
	}
	ms := math.Round(n * 86400000)
	t := excelEpoch.Add(time.Duration(ms) * time.Millisecond)
	return &t
}

func fromMillis(ms float64) *time.Time {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return nil
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}
