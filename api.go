package jsonproto

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// ExtrasMode selects how unknown keys are treated when building a record.
type ExtrasMode uint8

const (
	// ExtrasForbid reports every unknown key as extra_field.
	ExtrasForbid ExtrasMode = iota
	// ExtrasDrop silently discards unknown keys.
	ExtrasDrop
)

// Options configures one conversion. When several are passed, the last one
// wins.
type Options struct {
	// Type is the type hint. It may be omitted when the value is a *Record.
	Type *Type
	// Source and Target formats; FormatUnset means infer.
	Source Format
	Target Format

	Extras ExtrasMode
	// ExcludeNone drops null-valued fields when leaving the struct format.
	ExcludeNone bool
	// FailFast stops at the first issue.
	FailFast bool

	// Strictness and MaxDepth apply when parsing JSON text.
	Strictness Strictness
	MaxDepth   int

	// Patch is an RFC 6902 JSON Patch applied to a json, jsonstr or jsonbytes
	// source before any validation.
	Patch []byte
}

// Config configures a Codec.
type Config struct {
	// Driver is the JSON text codec; nil selects GoJSONDriver.
	Driver JSONDriver
	// Logger receives debug traces and duplicate-key warnings; nil disables
	// logging.
	Logger *zap.Logger
}

// Codec executes conversions. It holds no per-call state and is safe for
// concurrent use.
type Codec struct {
	driver JSONDriver
	log    *zap.Logger
}

// New returns a Codec.
func New(cfg Config) *Codec {
	c := &Codec{driver: cfg.Driver, log: cfg.Logger}
	if c.driver == nil {
		c.driver = GoJSONDriver()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Driver returns the JSON driver in use.
func (c *Codec) Driver() JSONDriver { return c.driver }

// Logger returns the codec's logger.
func (c *Codec) Logger() *zap.Logger { return c.log }

var defaultCodec atomic.Pointer[Codec]

func init() { defaultCodec.Store(New(Config{})) }

// Default returns the Codec used by the package-level Execute.
func Default() *Codec { return defaultCodec.Load() }

// SetDefault replaces the package-level Codec; nil values are ignored.
func SetDefault(c *Codec) {
	if c == nil {
		return
	}
	defaultCodec.Store(c)
}

// Execute converts v with the default Codec.
//
//	rec := User.New().Set("id", 7).Set("name", "ada")
//	s, err := jsonproto.Execute(ctx, rec, jsonproto.Options{Target: jsonproto.FormatJSONStr})
func Execute(ctx context.Context, v any, opts ...Options) (any, error) {
	return Default().Execute(ctx, v, opts...)
}

// Convert is Execute with the result asserted to T.
func Convert[T any](ctx context.Context, v any, opts ...Options) (T, error) {
	return ConvertWith[T](ctx, Default(), v, opts...)
}

// ConvertWith is Convert on a specific Codec.
func ConvertWith[T any](ctx context.Context, c *Codec, v any, opts ...Options) (T, error) {
	var zero T
	out, err := c.Execute(ctx, v, opts...)
	if err != nil {
		return zero, err
	}
	t, ok := out.(T)
	if !ok {
		return zero, singleIssue(CodeTypeMismatch, message(CodeTypeMismatch, fmt.Sprintf("result is %T, not %T", out, zero)))
	}
	return t, nil
}

// Execute converts v from its source format to the target format, validating
// every field exactly once at the struct/unstruct boundary. Failures are
// returned as Issues.
func (c *Codec) Execute(ctx context.Context, v any, opts ...Options) (any, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	if IsFailFast(ctx) {
		opt.FailFast = true
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.run(ctx, v, opt)
}

// ---- context options ----

type contextKey int

const (
	_ctxKeyFailFast contextKey = iota
)

// WithFailFast returns a child context that makes every conversion under it
// stop at the first issue.
func WithFailFast(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, _ctxKeyFailFast, enabled)
}

// IsFailFast reports whether conversions under ctx stop at the first issue.
func IsFailFast(ctx context.Context) bool {
	v := ctx.Value(_ctxKeyFailFast)
	b, _ := v.(bool)
	return b
}
