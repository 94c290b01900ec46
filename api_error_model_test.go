package jsonproto_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/whatamithinking/jsonproto"
)

func declareABC(t *testing.T) *jsonproto.Shape {
	t.Helper()
	return jsonproto.NewRegistry().Declare("ABC", func() []jsonproto.Field {
		return []jsonproto.Field{
			{Name: "a", Type: jsonproto.String(), Required: true},
			{Name: "b", Type: jsonproto.String(), Required: true},
			{Name: "c", Type: jsonproto.String(), Required: true},
		}
	})
}

type issueKey struct {
	Code, Path, Constraint string
}

func keysOf(iss jsonproto.Issues) []issueKey {
	out := make([]issueKey, len(iss))
	for i, it := range iss {
		out[i] = issueKey{it.Code, it.Path, it.Constraint}
	}
	return out
}

// TestErrorModel_DeterministicOrder checks that missing fields come in
// declaration order, followed by extra keys sorted by name.
func TestErrorModel_DeterministicOrder(t *testing.T) {
	sh := declareABC(t)
	_, err := jsonproto.Execute(context.Background(), `{"zzz":1,"yyy":2}`, jsonproto.Options{
		Type:   jsonproto.ModelOf(sh),
		Target: jsonproto.FormatStruct,
	})
	iss, ok := jsonproto.AsIssues(err)
	if !ok {
		t.Fatalf("expected Issues, got %v", err)
	}
	want := []issueKey{
		{jsonproto.CodeMissingRequiredField, "a", ""},
		{jsonproto.CodeMissingRequiredField, "b", ""},
		{jsonproto.CodeMissingRequiredField, "c", ""},
		{jsonproto.CodeExtraField, "yyy", ""},
		{jsonproto.CodeExtraField, "zzz", ""},
	}
	if diff := cmp.Diff(want, keysOf(iss)); diff != "" {
		t.Fatalf("issues (-want +got):\n%s", diff)
	}
}

// TestErrorModel_CollectVsFailFast compares collecting every issue with
// stopping at the first, set either by option or by context.
func TestErrorModel_CollectVsFailFast(t *testing.T) {
	sh := declareABC(t)
	in := []byte(`{"zzz": true}`)
	opt := jsonproto.Options{Type: jsonproto.ModelOf(sh), Target: jsonproto.FormatStruct}

	_, err := jsonproto.Execute(context.Background(), in, opt)
	var iss jsonproto.Issues
	if !errors.As(err, &iss) {
		t.Fatalf("expected errors.As to extract Issues, got: %v", err)
	}
	if len(iss) != 4 {
		t.Fatalf("expected 4 issues, got %v", iss)
	}

	fast := opt
	fast.FailFast = true
	_, err = jsonproto.Execute(context.Background(), in, fast)
	iss, ok := jsonproto.AsIssues(err)
	if !ok || len(iss) != 1 || iss[0].Path != "a" {
		t.Fatalf("expected only the first issue, got %v", err)
	}

	ctx := jsonproto.WithFailFast(context.Background(), true)
	if !jsonproto.IsFailFast(ctx) {
		t.Fatalf("IsFailFast should see the context flag")
	}
	_, err = jsonproto.Execute(ctx, in, opt)
	iss, ok = jsonproto.AsIssues(err)
	if !ok || len(iss) != 1 {
		t.Fatalf("expected fail-fast through the context, got %v", err)
	}
}

func TestErrorModel_ConstraintAggregation(t *testing.T) {
	sh := jsonproto.NewRegistry().Declare("Person", func() []jsonproto.Field {
		return []jsonproto.Field{
			{Name: "name", Type: jsonproto.String(), Constraints: []jsonproto.Constraint{
				jsonproto.Length(jsonproto.Le, 3),
				jsonproto.Pattern(`[a-z]+`),
			}},
			{Name: "age", Type: jsonproto.Int(), Constraints: []jsonproto.Constraint{jsonproto.Compare(jsonproto.Ge, 0)}},
		}
	})
	rec := sh.New().Set("name", "Abcd").Set("age", -1)

	_, err := jsonproto.Execute(context.Background(), rec, jsonproto.Options{Target: jsonproto.FormatJSONStr})
	iss, ok := jsonproto.AsIssues(err)
	if !ok {
		t.Fatalf("expected Issues, got %v", err)
	}
	want := []issueKey{
		{jsonproto.CodeConstraintViolation, "name", "length"},
		{jsonproto.CodeConstraintViolation, "name", "pattern"},
		{jsonproto.CodeConstraintViolation, "age", "value"},
	}
	if diff := cmp.Diff(want, keysOf(iss)); diff != "" {
		t.Fatalf("issues (-want +got):\n%s", diff)
	}
	if !errors.Is(err, jsonproto.ErrConstraintViolation) {
		t.Fatalf("errors.Is should match constraint_violation")
	}
	if iss[2].Params["limit"] != 0 {
		t.Fatalf("compare params should carry the limit, got %v", iss[2].Params)
	}
}

// TestErrorModel_TypeErrorKeepsSiblingIssues checks that a field that fails to
// convert from JSON does not hide the other fields' issues, whatever the source.
func TestErrorModel_TypeErrorKeepsSiblingIssues(t *testing.T) {
	sh := jsonproto.NewRegistry().Declare("Reading", func() []jsonproto.Field {
		return []jsonproto.Field{
			{Name: "n", Type: jsonproto.Int(), Constraints: []jsonproto.Constraint{jsonproto.Compare(jsonproto.Ge, 0)}},
			{Name: "bad", Type: jsonproto.Int()},
			{Name: "label", Type: jsonproto.String(), Constraints: []jsonproto.Constraint{jsonproto.Length(jsonproto.Le, 3)}},
			{Name: "unit", Type: jsonproto.String(), Required: true},
		}
	})
	text := `{"n":-1,"bad":"x","label":"toolong","extra":1}`
	want := []issueKey{
		{jsonproto.CodeConstraintViolation, "n", "value"},
		{jsonproto.CodeTypeMismatch, "bad", ""},
		{jsonproto.CodeConstraintViolation, "label", "length"},
		{jsonproto.CodeMissingRequiredField, "unit", ""},
		{jsonproto.CodeExtraField, "extra", ""},
	}
	sources := map[string]struct {
		in     any
		source jsonproto.Format
	}{
		"unstruct":  {map[string]any{"n": int64(-1), "bad": "x", "label": "toolong", "extra": 1}, jsonproto.FormatUnstruct},
		"json":      {map[string]any{"n": int64(-1), "bad": "x", "label": "toolong", "extra": 1}, jsonproto.FormatJSON},
		"jsonstr":   {text, jsonproto.FormatJSONStr},
		"jsonbytes": {[]byte(text), jsonproto.FormatJSONBytes},
	}
	for name, tc := range sources {
		t.Run(name, func(t *testing.T) {
			for _, target := range []jsonproto.Format{jsonproto.FormatStruct, jsonproto.FormatUnstruct, tc.source} {
				_, err := jsonproto.Execute(context.Background(), tc.in, jsonproto.Options{
					Type:   jsonproto.ModelOf(sh),
					Source: tc.source,
					Target: target,
				})
				iss, ok := jsonproto.AsIssues(err)
				if !ok {
					t.Fatalf("target %s: expected Issues, got %v", target, err)
				}
				if diff := cmp.Diff(want, keysOf(iss)); diff != "" {
					t.Fatalf("target %s: issues (-want +got):\n%s", target, diff)
				}
			}
		})
	}

	// Fail-fast still stops at the first issue.
	_, err := jsonproto.Execute(context.Background(), text, jsonproto.Options{
		Type:     jsonproto.ModelOf(sh),
		Target:   jsonproto.FormatStruct,
		FailFast: true,
	})
	iss, ok := jsonproto.AsIssues(err)
	if !ok || len(iss) != 1 {
		t.Fatalf("expected one issue, got %v", err)
	}
}

func TestErrorModel_ExtrasAndAliases(t *testing.T) {
	ctx := context.Background()
	sh := jsonproto.NewRegistry().Declare("Account", func() []jsonproto.Field {
		return []jsonproto.Field{
			{Name: "user_id", Type: jsonproto.Int(), Required: true},
			{Name: "kind", Alias: "@type", Type: jsonproto.String()},
		}
	})
	opt := jsonproto.Options{Type: jsonproto.ModelOf(sh), Target: jsonproto.FormatUnstruct}

	out, err := jsonproto.Execute(ctx, `{"userId": 3, "@type": "admin"}`, opt)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"user_id": int64(3), "kind": "admin"}, out); diff != "" {
		t.Fatalf("aliases (-want +got):\n%s", diff)
	}

	out, err = jsonproto.Execute(ctx, `{"user_id": 3}`, opt)
	if err != nil {
		t.Fatalf("field names should be accepted in json input: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"user_id": int64(3)}, out); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}

	_, err = jsonproto.Execute(ctx, `{"user_id": 3, "userId": 4}`, opt)
	if !errors.Is(err, jsonproto.ErrDuplicateKey) {
		t.Fatalf("name and alias together should collide, got %v", err)
	}

	_, err = jsonproto.Execute(ctx, `{"userId": 3, "extra": 1}`, opt)
	iss, ok := jsonproto.AsIssues(err)
	if !ok || len(iss) != 1 || iss[0].Code != jsonproto.CodeExtraField || iss[0].Path != "extra" {
		t.Fatalf("expected extra_field at extra, got %v", err)
	}

	drop := opt
	drop.Extras = jsonproto.ExtrasDrop
	out, err = jsonproto.Execute(ctx, `{"userId": 3, "extra": 1}`, drop)
	if err != nil {
		t.Fatalf("dropped extras should not fail: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"user_id": int64(3)}, out); diff != "" {
		t.Fatalf("drop (-want +got):\n%s", diff)
	}

	_, err = jsonproto.Execute(ctx, map[string]any{"user_id": 1, "bogus": true}, jsonproto.Options{
		Type:   jsonproto.ModelOf(sh),
		Source: jsonproto.FormatUnstruct,
		Target: jsonproto.FormatJSON,
	})
	if !errors.Is(err, jsonproto.ErrExtraField) {
		t.Fatalf("unstruct extras should be checked on the struct probe, got %v", err)
	}

	b, err := jsonproto.Execute(ctx, sh.New().Set("user_id", 9).Set("kind", "x"), jsonproto.Options{Target: jsonproto.FormatJSONStr})
	if err != nil {
		t.Fatal(err)
	}
	if b != `{"@type":"x","userId":9}` {
		t.Fatalf("json keys should be aliases, got %v", b)
	}
}

func TestErrorModel_Union(t *testing.T) {
	ctx := context.Background()
	sh := jsonproto.NewRegistry().Declare("Setting", func() []jsonproto.Field {
		return []jsonproto.Field{
			{Name: "value", Type: jsonproto.UnionOf(jsonproto.Int(), jsonproto.String()), Required: true},
		}
	})
	opt := jsonproto.Options{Type: jsonproto.ModelOf(sh), Target: jsonproto.FormatUnstruct}

	out, err := jsonproto.Execute(ctx, `{"value": "on"}`, opt)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"value": "on"}, out); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	_, err = jsonproto.Execute(ctx, `{"value": true}`, opt)
	iss, ok := jsonproto.AsIssues(err)
	if !ok || len(iss) != 1 || iss[0].Code != jsonproto.CodeTypeMismatch || iss[0].Path != "value" {
		t.Fatalf("expected one type_mismatch at value, got %v", err)
	}
}
