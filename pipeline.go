package jsonproto

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	jsonpatch "github.com/evanphx/json-patch"
	"go.uber.org/zap"
)

// run executes one resolved conversion.
//
// Constraints live at the struct/unstruct edge. A walk that does not cross
// it first walks the source down to struct form and discards the result, so
// every request is validated exactly once.
func (c *Codec) run(ctx context.Context, v any, opt Options) (any, error) {
	res, err := Infer(v, opt.Type, opt.Source, opt.Target)
	if err != nil {
		return nil, err
	}
	if len(opt.Patch) > 0 {
		if v, err = c.applyPatch(v, res.Source, opt); err != nil {
			return nil, err
		}
	}
	c.log.Debug("conversion resolved",
		zap.Stringer("type", res.Type),
		zap.Stringer("source", res.Source),
		zap.Stringer("target", res.Target),
	)
	w := &chainWalk{codec: c, ctx: ctx, opt: opt, t: res.Type}
	src, dst := res.Source, res.Target
	switch {
	case src == dst:
		probe := FormatStruct
		if src == FormatStruct {
			probe = FormatUnstruct
		}
		if _, err := w.walk(v, src, probe); err != nil {
			return nil, err
		}
		return v, nil
	case src == FormatStruct || dst == FormatStruct:
		return w.walk(v, src, dst)
	case dst.position() < src.position():
		// The walk down to struct passes through dst.
		w.keep = dst
		if _, err := w.walk(v, src, FormatStruct); err != nil {
			return nil, err
		}
		return w.kept, nil
	default:
		if _, err := w.walk(v, src, FormatStruct); err != nil {
			return nil, err
		}
		return w.walk(v, src, dst)
	}
}

// chainWalk moves a value along the format chain one edge at a time.
type chainWalk struct {
	codec *Codec
	ctx   context.Context
	opt   Options
	t     *Type

	keep Format
	kept any
}

func (w *chainWalk) walk(v any, from, to Format) (any, error) {
	step := 1
	if to.position() < from.position() {
		step = -1
	}
	for f := from; f != to; {
		if err := w.ctx.Err(); err != nil {
			return nil, err
		}
		next := Format(int(f) + step)
		out, err := w.step(v, f, next)
		if err != nil {
			return nil, err
		}
		v, f = out, next
		if f == w.keep {
			w.kept = v
		}
	}
	return v, nil
}

func (w *chainWalk) step(v any, from, to Format) (any, error) {
	switch {
	case from == FormatStruct && to == FormatUnstruct:
		return w.coerce(dirUnwrap, v)
	case from == FormatUnstruct && to == FormatStruct:
		return w.coerce(dirWrap, v)
	case from == FormatUnstruct && to == FormatJSON:
		return w.coerce(dirLower, v)
	case from == FormatJSON && to == FormatUnstruct:
		return w.coerce(dirLift, v)
	case from == FormatJSON && to == FormatJSONStr:
		b, err := w.codec.driver.Marshal(v)
		if err != nil {
			return nil, singleIssue(CodeSerializationError, message(CodeSerializationError, err.Error()))
		}
		return string(b), nil
	case from == FormatJSONStr && to == FormatJSON:
		s, ok := v.(string)
		if !ok {
			return nil, wrongGoType(from, "string", v)
		}
		return w.codec.decode([]byte(s), w.opt)
	case from == FormatJSONStr && to == FormatJSONBytes:
		s, ok := v.(string)
		if !ok {
			return nil, wrongGoType(from, "string", v)
		}
		return []byte(s), nil
	case from == FormatJSONBytes && to == FormatJSONStr:
		b, ok := v.([]byte)
		if !ok {
			return nil, wrongGoType(from, "[]byte", v)
		}
		if !utf8.Valid(b) {
			return nil, singleIssue(CodeParseError, message(CodeParseError, "input is not valid UTF-8"))
		}
		return string(b), nil
	}
	return nil, singleIssue(CodeUnsupportedConversion, message(CodeUnsupportedConversion, fmt.Sprintf("%s -> %s", from, to)))
}

func (w *chainWalk) coerce(dir direction, v any) (any, error) {
	// Every lift in a walk is followed by a wrap, which reports parked issues.
	cv := &conv{opt: w.opt, log: w.codec.log, failFast: w.opt.FailFast, deferLift: dir == dirLift}
	out, ok := cv.walk(dir, w.t, v, Root())
	if len(cv.issues) > 0 {
		return nil, cv.issues
	}
	if !ok {
		// Union scratch walks may fail without reporting at this level.
		return nil, singleIssue(CodeTypeMismatch, message(CodeTypeMismatch, fmt.Sprintf("cannot convert %T to %s", v, w.t)))
	}
	return out, nil
}

// decode parses JSON text through the driver, logging warnings.
func (c *Codec) decode(b []byte, opt Options) (any, error) {
	v, warns, err := c.driver.Unmarshal(b, DecodeOpt{Strictness: opt.Strictness, MaxDepth: opt.MaxDepth})
	for _, it := range warns {
		c.log.Warn("json input", zap.String("code", it.Code), zap.String("path", it.Path), zap.String("message", it.Message))
	}
	if err != nil {
		var iss Issues
		if errors.As(err, &iss) {
			return nil, iss
		}
		return nil, singleIssue(CodeParseError, message(CodeParseError, err.Error()))
	}
	return v, nil
}

// applyPatch applies opt.Patch to a json-family source and returns the
// patched value in the same format.
func (c *Codec) applyPatch(v any, source Format, opt Options) (any, error) {
	var doc []byte
	switch source {
	case FormatJSONBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, wrongGoType(source, "[]byte", v)
		}
		doc = b
	case FormatJSONStr:
		s, ok := v.(string)
		if !ok {
			return nil, wrongGoType(source, "string", v)
		}
		doc = []byte(s)
	case FormatJSON:
		b, err := c.driver.Marshal(v)
		if err != nil {
			return nil, singleIssue(CodeSerializationError, message(CodeSerializationError, err.Error()))
		}
		doc = b
	default:
		return nil, singleIssue(CodeUnsupportedConversion, message(CodeUnsupportedConversion, "patches apply to json, jsonstr or jsonbytes sources, not "+source.String()))
	}
	patch, err := jsonpatch.DecodePatch(opt.Patch)
	if err != nil {
		return nil, singleIssue(CodeParseError, message(CodeParseError, "patch: "+err.Error()))
	}
	out, err := patch.Apply(doc)
	if err != nil {
		return nil, singleIssue(CodeParseError, message(CodeParseError, "patch: "+err.Error()))
	}
	c.log.Debug("patch applied", zap.Int("operations", len(patch)), zap.Stringer("source", source))
	switch source {
	case FormatJSONBytes:
		return out, nil
	case FormatJSONStr:
		return string(out), nil
	}
	return c.decode(out, opt)
}

func wrongGoType(f Format, want string, v any) error {
	return singleIssue(CodeTypeMismatch, message(CodeTypeMismatch, fmt.Sprintf("%s input must be a %s, got %T", f, want, v)))
}
