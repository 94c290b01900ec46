package jsontext

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode_Tree(t *testing.T) {
	v, iss, err := Decode([]byte(`{"a":[1,"x",true,null],"b":{"c":2.5}}`), Options{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(iss) != 0 {
		t.Fatalf("unexpected issues: %v", iss)
	}
	want := map[string]any{
		"a": []any{json.Number("1"), "x", true, nil},
		"b": map[string]any{"c": json.Number("2.5")},
	}
	if d := cmp.Diff(want, v); d != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", d)
	}
}

func TestDecode_DuplicateKeys(t *testing.T) {
	in := []byte(`{"a":{"b":1,"b":2}}`)

	v, iss, err := Decode(in, Options{OnDuplicate: DupWarn})
	if err != nil {
		t.Fatalf("warn should not fail: %v", err)
	}
	if len(iss) != 1 || iss[0].Code != "duplicate_key" || iss[0].Path != "a.b" {
		t.Fatalf("unexpected issues: %+v", iss)
	}
	if got := v.(map[string]any)["a"].(map[string]any)["b"]; got != json.Number("2") {
		t.Fatalf("last key should win, got %v", got)
	}

	_, _, err = Decode(in, Options{OnDuplicate: DupError})
	var ie *IssueError
	if !errors.As(err, &ie) || ie.Issues[0].Code != "duplicate_key" {
		t.Fatalf("expected duplicate_key IssueError, got %v", err)
	}

	if _, iss, err := Decode(in, Options{}); err != nil || len(iss) != 0 {
		t.Fatalf("ignore mode: iss=%v err=%v", iss, err)
	}
}

func TestDecode_MaxDepth(t *testing.T) {
	in := []byte(`{"a":{"b":{"c":1}}}`)
	if _, _, err := Decode(in, Options{MaxDepth: 3}); err != nil {
		t.Fatalf("depth 3 should pass: %v", err)
	}
	_, _, err := Decode(in, Options{MaxDepth: 2})
	var ie *IssueError
	if !errors.As(err, &ie) || ie.Issues[0].Path != "a.b" {
		t.Fatalf("expected depth issue at a.b, got %v", err)
	}
}

func TestDecode_Syntax(t *testing.T) {
	for _, in := range []string{
		``, `{"a":`, `[1,2`, `{"a":1} x`,
		`[1 2]`, `{"a" 1}`, `{"a":1,}`, `[1,]`, `[,1]`, `{"a":1 "b":2}`,
	} {
		if _, _, err := Decode([]byte(in), Options{}); !errors.Is(err, ErrSyntax) {
			t.Fatalf("Decode(%q) expected ErrSyntax, got %v", in, err)
		}
	}
}

func TestMarshal_SortedKeys(t *testing.T) {
	b, err := Marshal(map[string]any{"b": 1, "a": []any{"x"}, "c": nil})
	if err != nil {
		t.Fatalf("marshal err: %v", err)
	}
	if string(b) != `{"a":["x"],"b":1,"c":null}` {
		t.Fatalf("unexpected output: %s", b)
	}
}
