// Package time contains time related helpers
package time

import (
	"bytes"
	"strconv"
	"time"
)

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// layouts upstream services are known to emit, most common first
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Parse reads s with the first layout that fits; zone-less values are UTC
func Parse(s string) (time.Time, bool) {
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Flex is a timestamp that decodes from any known layout, unix seconds or unix millis
// Unparseable input decodes to the zero time instead of failing the whole payload
type Flex time.Time

// Time returns the value as time.Time
func (f Flex) Time() time.Time { return time.Time(f) }

// UnmarshalJSON implements json.Unmarshaler
func (f *Flex) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = Flex{}
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			*f = Flex{}
			return nil
		}
		t, _ := Parse(s)
		*f = Flex(t)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		*f = Flex{}
		return nil
	}
	// millis once the value is past year 2286 in seconds
	if n > 1e10 {
		*f = Flex(time.UnixMilli(n).UTC())
	} else {
		*f = Flex(time.Unix(n, 0).UTC())
	}
	return nil
}

// MarshalJSON writes RFC3339, or null for the zero time
func (f Flex) MarshalJSON() ([]byte, error) {
	t := time.Time(f)
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.UTC().Format(time.RFC3339Nano))), nil
}
