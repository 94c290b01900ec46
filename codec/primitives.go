package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// String returns the scalar for Go strings.
func String() Scalar { return stringScalar{} }

// Int returns the scalar for integers. The domain form is int64.
func Int() Scalar { return intScalar{} }

// Float returns the scalar for floating point numbers. The domain form is float64.
func Float() Scalar { return floatScalar{} }

// Bool returns the scalar for booleans.
func Bool() Scalar { return boolScalar{} }

type stringScalar struct{}

func (stringScalar) Name() string       { return "string" }
func (stringScalar) JSONType() string   { return "string" }
func (stringScalar) JSONFormat() string { return "" }

func (stringScalar) Accepts(v any) (any, bool) {
	s, ok := v.(string)
	return s, ok
}

func (s stringScalar) ToJSON(v any) (any, error) {
	if out, ok := s.Accepts(v); ok {
		return out, nil
	}
	return nil, mismatch("string", v)
}

func (s stringScalar) FromJSON(v any) (any, error) {
	if out, ok := s.Accepts(v); ok {
		return out, nil
	}
	return nil, mismatch("string", v)
}

type intScalar struct{}

func (intScalar) Name() string       { return "int" }
func (intScalar) JSONType() string   { return "integer" }
func (intScalar) JSONFormat() string { return "" }

func (intScalar) Accepts(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return nil, false
}

func (s intScalar) ToJSON(v any) (any, error) {
	if out, ok := s.Accepts(v); ok {
		return out, nil
	}
	return nil, mismatch("integer", v)
}

func (s intScalar) FromJSON(v any) (any, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrMismatch, string(n))
		}
		return integral(f, v)
	case float64:
		return integral(n, v)
	case float32:
		return integral(float64(n), v)
	}
	if out, ok := s.Accepts(v); ok {
		return out, nil
	}
	return nil, mismatch("integer", v)
}

func integral(f float64, orig any) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("%w: %v is not an integer", ErrMismatch, orig)
	}
	return int64(f), nil
}

type floatScalar struct{}

func (floatScalar) Name() string       { return "float" }
func (floatScalar) JSONType() string   { return "number" }
func (floatScalar) JSONFormat() string { return "" }

func (floatScalar) Accepts(v any) (any, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := (intScalar{}).Accepts(v); ok {
		return float64(i.(int64)), true
	}
	return nil, false
}

func (s floatScalar) ToJSON(v any) (any, error) {
	out, ok := s.Accepts(v)
	if !ok {
		return nil, mismatch("number", v)
	}
	if f := out.(float64); math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v has no JSON form", ErrMismatch, f)
	}
	return out, nil
}

func (s floatScalar) FromJSON(v any) (any, error) {
	if n, ok := v.(json.Number); ok {
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrMismatch, string(n))
		}
		return f, nil
	}
	if out, ok := s.Accepts(v); ok {
		return out, nil
	}
	return nil, mismatch("number", v)
}

type boolScalar struct{}

func (boolScalar) Name() string       { return "bool" }
func (boolScalar) JSONType() string   { return "boolean" }
func (boolScalar) JSONFormat() string { return "" }

func (boolScalar) Accepts(v any) (any, bool) {
	b, ok := v.(bool)
	return b, ok
}

func (s boolScalar) ToJSON(v any) (any, error) {
	if out, ok := s.Accepts(v); ok {
		return out, nil
	}
	return nil, mismatch("boolean", v)
}

func (s boolScalar) FromJSON(v any) (any, error) {
	if out, ok := s.Accepts(v); ok {
		return out, nil
	}
	return nil, mismatch("boolean", v)
}

// textScalar covers domain types that travel as JSON strings.
type textScalar struct {
	name   string
	format string
	accept func(any) (any, bool)
	render func(any) string
	parse  func(string) (any, error)
}

func (t *textScalar) Name() string       { return t.name }
func (t *textScalar) JSONType() string   { return "string" }
func (t *textScalar) JSONFormat() string { return t.format }

func (t *textScalar) Accepts(v any) (any, bool) { return t.accept(v) }

func (t *textScalar) ToJSON(v any) (any, error) {
	out, ok := t.accept(v)
	if !ok {
		return nil, mismatch(t.name, v)
	}
	return t.render(out), nil
}

func (t *textScalar) FromJSON(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, mismatch(t.name+" string", v)
	}
	out, err := t.parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q: %v", ErrMismatch, t.name, s, err)
	}
	return out, nil
}
