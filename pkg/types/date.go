package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage form of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without time-of-day or zone. The zero value means "unset".
type Date struct {
	t time.Time
}

// NewDate builds a Date from its calendar parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day in the timestamp's own zone.
func DateOf(ts time.Time) Date {
	if ts.IsZero() {
		return Date{}
	}
	y, m, d := ts.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts YYYY-MM-DD as well as full RFC 3339 timestamps.
func ParseDate(value string) (Date, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return Date{}, fmt.Errorf("date is empty")
	}
	if ts, err := time.Parse(DateLayout, clean); err == nil {
		return DateOf(ts), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, clean); err == nil {
			return DateOf(ts), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", value)
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Time() time.Time { return d.t }

func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

func (d Date) After(other Date) bool { return d.t.After(other.t) }

func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as YYYY-MM-DD so both Postgres date columns and sqlite
// text comparisons order correctly.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v.UTC())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("types.Date: unsupported Scan type %T", src)
	}
}

func (d *Date) scanString(value string) error {
	if len(value) >= len(DateLayout) {
		if parsed, err := time.Parse(DateLayout, value[:len(DateLayout)]); err == nil {
			*d = DateOf(parsed)
			return nil
		}
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is a half-open interval [Start, End) of calendar days.
type DateRange struct {
	Start Date `json:"start_time"`
	End   Date `json:"end_time"`
}

// Days is the number of calendar days the range covers.
func (r DateRange) Days() int {
	if r.Start.IsZero() || r.End.IsZero() || !r.Start.Before(r.End) {
		return 0
	}
	return int(r.End.t.Sub(r.Start.t).Hours() / 24)
}

// Overlaps reports whether two half-open ranges share at least one day.
// Adjacent ranges ([a,b) and [b,c)) do not overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

func (r DateRange) Equal(other DateRange) bool {
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End)
}
