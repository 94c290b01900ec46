package codec

import (
	"encoding/json"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTime_Roundtrip(t *testing.T) {
	s := Time()
	in := "2025-01-01T00:00:00Z"
	got, err := s.FromJSON(in)
	if err != nil {
		t.Fatalf("from json err: %v", err)
	}
	if !got.(time.Time).Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", got)
	}
	out, err := s.ToJSON(got)
	if err != nil {
		t.Fatalf("to json err: %v", err)
	}
	if out != in {
		t.Fatalf("roundtrip mismatch: %v != %s", out, in)
	}
}

func TestTime_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	out, err := Time().ToJSON(time.Date(2025, 1, 1, 9, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("to json err: %v", err)
	}
	if out != "2025-01-01T00:00:00Z" {
		t.Fatalf("expected UTC output, got %v", out)
	}
}

func TestTime_Invalid(t *testing.T) {
	if _, err := Time().FromJSON("yesterday"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
	if _, err := Time().FromJSON(12); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch for non-string, got %v", err)
	}
}

func TestInt_FromJSON(t *testing.T) {
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{json.Number("42"), 42, true},
		{json.Number("4e1"), 40, true},
		{json.Number("1.5"), 0, false},
		{float64(7), 7, true},
		{float64(7.25), 0, false},
		{int64(-3), -3, true},
		{"7", 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, err := Int().FromJSON(c.in)
		if c.ok {
			if err != nil || got != c.want {
				t.Fatalf("FromJSON(%#v) = %v, %v; want %d", c.in, got, err, c.want)
			}
			continue
		}
		if err == nil {
			t.Fatalf("FromJSON(%#v) expected error, got %v", c.in, got)
		}
	}
}

func TestInt_AcceptsNormalizes(t *testing.T) {
	for _, v := range []any{int(5), int8(5), int32(5), uint16(5), uint64(5)} {
		got, ok := Int().Accepts(v)
		if !ok || got != int64(5) {
			t.Fatalf("Accepts(%T) = %v, %v", v, got, ok)
		}
	}
	if _, ok := Int().Accepts(5.0); ok {
		t.Fatalf("float must not be accepted as an int domain value")
	}
}

func TestFloat_RejectsNaN(t *testing.T) {
	if _, err := Float().ToJSON(nanValue()); err == nil {
		t.Fatalf("expected error for NaN")
	}
	got, err := Float().FromJSON(json.Number("2.5"))
	if err != nil || got != 2.5 {
		t.Fatalf("FromJSON = %v, %v", got, err)
	}
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}

func TestTextScalars(t *testing.T) {
	id := uuid.MustParse("2f1c4d1e-8a3b-4c2d-9e0f-1a2b3c4d5e6f")
	cases := []struct {
		s      Scalar
		domain any
		wire   string
	}{
		{UUID(), id, "2f1c4d1e-8a3b-4c2d-9e0f-1a2b3c4d5e6f"},
		{Bytes(), []byte("hi"), "aGk="},
		{Duration(), 90 * time.Second, "1m30s"},
		{IP(), netip.MustParseAddr("10.0.0.1"), "10.0.0.1"},
		{Date(), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), "2024-02-29"},
	}
	for _, c := range cases {
		out, err := c.s.ToJSON(c.domain)
		if err != nil || out != c.wire {
			t.Fatalf("%s ToJSON = %v, %v; want %s", c.s.Name(), out, err, c.wire)
		}
		back, err := c.s.FromJSON(out)
		if err != nil {
			t.Fatalf("%s FromJSON err: %v", c.s.Name(), err)
		}
		again, err := c.s.ToJSON(back)
		if err != nil || again != c.wire {
			t.Fatalf("%s second ToJSON = %v, %v", c.s.Name(), again, err)
		}
	}
}

func TestRegistry_Lookup(t *testing.T) {
	for _, n := range []string{"string", "int", "float", "bool", "time", "date", "duration", "bytes", "uuid", "ip"} {
		s, ok := Lookup(n)
		if !ok || s.Name() != n {
			t.Fatalf("Lookup(%q) = %v, %v", n, s, ok)
		}
	}
	if _, ok := Lookup("decimal"); ok {
		t.Fatalf("unexpected scalar")
	}
	if len(Names()) < 10 {
		t.Fatalf("expected builtin names, got %v", Names())
	}
}
