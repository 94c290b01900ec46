package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/whatamithinking/jsonproto"
	"github.com/whatamithinking/jsonproto/internal/jsontext"
	"github.com/whatamithinking/jsonproto/middleware"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	sh := jsonproto.NewRegistry().Declare("Signup", func() []jsonproto.Field {
		return []jsonproto.Field{
			{Name: "email", Type: jsonproto.String(), Required: true, Constraints: []jsonproto.Constraint{jsonproto.FormatOf("email")}},
			{Name: "display_name", Type: jsonproto.String()},
		}
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := middleware.RecordFromContext(r.Context())
		if !ok {
			t.Fatalf("record missing from context")
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(rec.String()))
	})
	return middleware.Decode(middleware.DefaultOptions(sh), middleware.Config{})(next)
}

func TestDecode_ValidBody(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"ada@example.com","displayName":"ada"}`))
	newHandler(t).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if got, want := rr.Body.String(), `Signup{email="ada@example.com", display_name="ada"}`; got != want {
		t.Fatalf("record = %s, want %s", got, want)
	}
}

func TestDecode_InvalidBody(t *testing.T) {
	cases := map[string]struct {
		body  string
		codes []string
	}{
		"missing field":  {`{}`, []string{jsonproto.CodeMissingRequiredField}},
		"bad format":     {`{"email":"nope"}`, []string{jsonproto.CodeConstraintViolation}},
		"duplicate keys": {`{"email":"a@b.co","email":"c@d.co"}`, []string{jsonproto.CodeDuplicateKey}},
		"malformed":      {`{"email":`, []string{jsonproto.CodeParseError}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(tc.body))
			newHandler(t).ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("content type = %q", ct)
			}
			v, _, err := jsontext.Decode(rr.Body.Bytes(), jsontext.Options{})
			if err != nil {
				t.Fatal(err)
			}
			var codes []string
			for _, it := range v.(map[string]any)["issues"].([]any) {
				codes = append(codes, it.(map[string]any)["code"].(string))
			}
			if diff := cmp.Diff(tc.codes, codes); diff != "" {
				t.Fatalf("codes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_NonModelType(t *testing.T) {
	sh := jsonproto.NewRegistry().Declare("Line", func() []jsonproto.Field {
		return []jsonproto.Field{{Name: "sku", Type: jsonproto.String(), Required: true}}
	})
	opt := middleware.DefaultOptions(sh)
	opt.Type = jsonproto.SeqOf(jsonproto.ModelOf(sh))
	called := false
	h := middleware.Decode(opt, middleware.Config{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/lines", strings.NewReader(`[{"sku":"A"}]`)))
	if rr.Code != http.StatusInternalServerError || called {
		t.Fatalf("status = %d, next called = %v", rr.Code, called)
	}
}

func TestErrorPayload(t *testing.T) {
	iss := jsonproto.Issues{{Path: "a", Code: jsonproto.CodeConstraintViolation, Message: "too long", Constraint: "length"}}
	want := map[string]any{"issues": []map[string]any{
		{"path": "a", "code": "constraint_violation", "message": "too long", "constraint": "length"},
	}}
	if diff := cmp.Diff(want, middleware.ErrorPayload(iss)); diff != "" {
		t.Fatalf("issues (-want +got):\n%s", diff)
	}
}
