package codec

import (
	"encoding/base64"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

var (
	timeScalar = &textScalar{
		name:   "time",
		format: "date-time",
		accept: func(v any) (any, bool) {
			t, ok := v.(time.Time)
			return t, ok
		},
		render: func(v any) string { return formatRFC3339Canonical(v.(time.Time)) },
		parse:  func(s string) (any, error) { return parseRFC3339(s) },
	}
	dateScalar = &textScalar{
		name:   "date",
		format: "date",
		accept: func(v any) (any, bool) {
			t, ok := v.(time.Time)
			if !ok {
				return nil, false
			}
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		},
		render: func(v any) string { return v.(time.Time).Format(dateLayout) },
		parse:  func(s string) (any, error) { return time.Parse(dateLayout, s) },
	}
	durationScalar = &textScalar{
		name:   "duration",
		format: "duration",
		accept: func(v any) (any, bool) {
			d, ok := v.(time.Duration)
			return d, ok
		},
		render: func(v any) string { return v.(time.Duration).String() },
		parse:  func(s string) (any, error) { return time.ParseDuration(s) },
	}
	bytesScalar = &textScalar{
		name:   "bytes",
		format: "byte",
		accept: func(v any) (any, bool) {
			b, ok := v.([]byte)
			return b, ok
		},
		render: func(v any) string { return base64.StdEncoding.EncodeToString(v.([]byte)) },
		parse:  func(s string) (any, error) { return base64.StdEncoding.DecodeString(s) },
	}
	uuidScalar = &textScalar{
		name:   "uuid",
		format: "uuid",
		accept: func(v any) (any, bool) {
			switch u := v.(type) {
			case uuid.UUID:
				return u, true
			case [16]byte:
				return uuid.UUID(u), true
			}
			return nil, false
		},
		render: func(v any) string { return v.(uuid.UUID).String() },
		parse:  func(s string) (any, error) { return uuid.Parse(s) },
	}
	ipScalar = &textScalar{
		name:   "ip",
		format: "ip",
		accept: func(v any) (any, bool) {
			a, ok := v.(netip.Addr)
			if !ok || !a.IsValid() {
				return nil, false
			}
			return a, true
		},
		render: func(v any) string { return v.(netip.Addr).String() },
		parse:  func(s string) (any, error) { return netip.ParseAddr(s) },
	}
)

// Time returns the scalar for time.Time carried as an RFC 3339 string.
// Output is normalized to UTC.
func Time() Scalar { return timeScalar }

// Date returns the scalar for calendar dates ("2006-01-02"). The domain form is a
// time.Time at midnight UTC.
func Date() Scalar { return dateScalar }

// Duration returns the scalar for time.Duration carried as a Go duration string.
func Duration() Scalar { return durationScalar }

// Bytes returns the scalar for []byte carried as standard base64.
func Bytes() Scalar { return bytesScalar }

// UUID returns the scalar for uuid.UUID carried in canonical string form.
func UUID() Scalar { return uuidScalar }

// IP returns the scalar for netip.Addr.
func IP() Scalar { return ipScalar }

func parseRFC3339(s string) (time.Time, error) {
	// Accept RFC3339Nano (trailing zeros optional)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

func formatRFC3339Canonical(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
