package jsonproto_test

import (
	"errors"
	"testing"
	"time"

	"github.com/whatamithinking/jsonproto"
)

func TestConstraints(t *testing.T) {
	cases := []struct {
		name string
		c    jsonproto.Constraint
		pass []any
		fail []any
	}{
		{"length runes", jsonproto.Length(jsonproto.Le, 3), []any{"abc", "äöü", []any{1, 2}}, []any{"abcd", []byte("abcd"), 12}},
		{"length exact", jsonproto.Length(jsonproto.Eq, 2), []any{map[string]any{"a": 1, "b": 2}}, []any{[]int{1}}},
		{"compare int", jsonproto.Compare(jsonproto.Ge, 0), []any{int64(0), int64(5), 2.5}, []any{int64(-1), -0.5, "0"}},
		{"compare float limit", jsonproto.Compare(jsonproto.Lt, 1.5), []any{int64(1)}, []any{int64(2), 1.5}},
		{"compare time", jsonproto.Compare(jsonproto.Gt, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
			[]any{time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)}, []any{time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{"compare duration", jsonproto.Compare(jsonproto.Le, time.Minute), []any{time.Second}, []any{time.Hour, int64(1)}},
		{"compare ne", jsonproto.Compare(jsonproto.Ne, "x"), []any{"y"}, []any{"x"}},
		{"enum", jsonproto.OneOf("red", "green"), []any{"red"}, []any{"blue", 1}},
		{"enum numbers", jsonproto.OneOf(int64(1), int64(2)), []any{int64(2), 1.0}, []any{int64(3)}},
		{"pattern is anchored", jsonproto.Pattern(`[a-z]+`), []any{"abc"}, []any{"abc1", "1abc", 5}},
		{"email", jsonproto.FormatOf("email"), []any{"ada@example.com"}, []any{"Ada <ada@example.com>", "nope"}},
		{"ipv4", jsonproto.FormatOf("ipv4"), []any{"10.0.0.1"}, []any{"::1", "10.0.0"}},
		{"ipv6", jsonproto.FormatOf("ipv6"), []any{"::1"}, []any{"10.0.0.1"}},
		{"uuid", jsonproto.FormatOf("uuid"), []any{"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}, []any{"6ba7b8109dad11d180b400c04fd430c8"}},
		{"uri", jsonproto.FormatOf("uri"), []any{"https://example.com/x"}, []any{"/relative"}},
		{"date", jsonproto.FormatOf("date"), []any{"2024-02-29"}, []any{"2023-02-29"}},
		{"hostname", jsonproto.FormatOf("hostname"), []any{"api.example.com"}, []any{"-bad.example.com"}},
		{"expr", jsonproto.Expr(`value % 2 == 0`), []any{int64(4)}, []any{int64(3), "x"}},
		{"expr strings", jsonproto.Expr(`value startsWith "v"`), []any{"v1"}, []any{"1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, v := range tc.pass {
				if viol := tc.c.Check(v); viol != nil {
					t.Fatalf("%#v should pass %s: %s", v, tc.c.Kind(), viol.Message)
				}
			}
			for _, v := range tc.fail {
				viol := tc.c.Check(v)
				if viol == nil {
					t.Fatalf("%#v should fail %s", v, tc.c.Kind())
				}
				if viol.Constraint != tc.c.Kind() || viol.Message == "" {
					t.Fatalf("incomplete violation %+v", viol)
				}
			}
		})
	}
}

func TestConstraints_CompileErrors(t *testing.T) {
	if _, err := jsonproto.NewPattern(`(`); !errors.Is(err, jsonproto.ErrInvalidDeclaration) {
		t.Fatalf("bad pattern: %v", err)
	}
	if _, err := jsonproto.NewFormat("color"); !errors.Is(err, jsonproto.ErrInvalidDeclaration) {
		t.Fatalf("unknown format: %v", err)
	}
	if _, err := jsonproto.NewExpr(`value ==`); !errors.Is(err, jsonproto.ErrInvalidDeclaration) {
		t.Fatalf("bad expression: %v", err)
	}
	for _, src := range []string{`1 + 2`, `"value"`, `len("abc")`} {
		if _, err := jsonproto.NewExpr(src); !errors.Is(err, jsonproto.ErrInvalidDeclaration) {
			t.Fatalf("non-boolean expression %q should not compile, got %v", src, err)
		}
	}
}

func TestParseOp(t *testing.T) {
	for in, want := range map[string]jsonproto.Op{
		"==": jsonproto.Eq, "ne": jsonproto.Ne, "<": jsonproto.Lt,
		"le": jsonproto.Le, ">": jsonproto.Gt, ">=": jsonproto.Ge,
	} {
		got, err := jsonproto.ParseOp(in)
		if err != nil || got != want {
			t.Fatalf("ParseOp(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := jsonproto.ParseOp("~="); err == nil {
		t.Fatalf("expected an error for an unknown operator")
	}
	if jsonproto.Le.String() != "<=" {
		t.Fatalf("Le.String() = %q", jsonproto.Le.String())
	}
}
