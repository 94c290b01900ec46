// Package middleware validates JSON request bodies against a model at the
// HTTP boundary and hands the resulting record to the next handler.
package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/whatamithinking/jsonproto"
	"github.com/whatamithinking/jsonproto/internal/jsontext"
)

type ctxKeyRecord struct{}

// ContextWithRecord attaches a decoded record to the context.
func ContextWithRecord(ctx context.Context, r *jsonproto.Record) context.Context {
	return context.WithValue(ctx, ctxKeyRecord{}, r)
}

// RecordFromContext retrieves the record attached by Decode.
func RecordFromContext(ctx context.Context) (*jsonproto.Record, bool) {
	r, ok := ctx.Value(ctxKeyRecord{}).(*jsonproto.Record)
	return r, ok
}

// DefaultOptions returns a recommended default for HTTP JSON boundaries.
// - Duplicate keys are errors
// - Nesting is bounded
func DefaultOptions(sh *jsonproto.Shape) jsonproto.Options {
	return jsonproto.Options{
		Type:       jsonproto.ModelOf(sh),
		Source:     jsonproto.FormatJSONBytes,
		Target:     jsonproto.FormatStruct,
		Strictness: jsonproto.Strictness{OnDuplicateKey: jsonproto.Error},
		MaxDepth:   64,
	}
}

// ErrorPayload shapes Issues for JSON responses.
func ErrorPayload(issues jsonproto.Issues) map[string]any {
	out := make([]map[string]any, len(issues))
	for i, it := range issues {
		m := map[string]any{"path": it.Path, "code": it.Code, "message": it.Message}
		if it.Constraint != "" {
			m["constraint"] = it.Constraint
		}
		if len(it.Params) > 0 {
			m["params"] = it.Params
		}
		out[i] = m
	}
	return map[string]any{"issues": out}
}

// Config configures Decode.
type Config struct {
	// Codec runs the conversion; nil uses jsonproto.Default().
	Codec *jsonproto.Codec
	// MaxBytes caps the request body; 0 means 1 MiB.
	MaxBytes int64
}

// Decode returns middleware that converts the request body to a record of
// opt.Type. Invalid bodies are answered with 400 and an issue list; valid
// ones reach next with the record in the request context. opt.Type must be a
// model type; any other result is answered with 500.
func Decode(opt jsonproto.Options, cfg Config) func(http.Handler) http.Handler {
	codec := cfg.Codec
	if codec == nil {
		codec = jsonproto.Default()
	}
	limit := cfg.MaxBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	opt.Source, opt.Target = jsonproto.FormatJSONBytes, jsonproto.FormatStruct
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, limit))
			if err != nil {
				http.Error(w, "request body too large or unreadable", http.StatusRequestEntityTooLarge)
				return
			}
			out, err := codec.Execute(req.Context(), body, opt)
			if err != nil {
				iss, ok := jsonproto.AsIssues(err)
				if !ok {
					codec.Logger().Error("decode request", zap.String("path", req.URL.Path), zap.Error(err))
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				codec.Logger().Debug("rejected request", zap.String("path", req.URL.Path), zap.Int("issues", len(iss)))
				writeJSON(w, http.StatusBadRequest, ErrorPayload(iss))
				return
			}
			rec, ok := out.(*jsonproto.Record)
			if !ok {
				codec.Logger().Error("decode request", zap.String("path", req.URL.Path), zap.String("result", fmt.Sprintf("%T", out)))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, req.WithContext(ContextWithRecord(req.Context(), rec)))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := jsontext.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
