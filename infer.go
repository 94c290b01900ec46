package jsonproto

import (
	"fmt"
	"reflect"
)

// Resolution is the outcome of format inference.
type Resolution struct {
	Type   *Type
	Source Format
	Target Format
}

// Infer resolves the type hint and the source and target formats of a
// conversion request. FormatUnset arguments are inferred:
//
//   - a *Record value supplies its model as the hint and struct as the source;
//   - a string with a model hint is jsonstr; a []byte is jsonbytes;
//   - a map or slice is ambiguous (it may be unstruct or json) and needs an
//     explicit source;
//   - the target defaults to the source.
//
// Infer has no side effects and fails with a single-issue Issues error.
func Infer(v any, hint *Type, source, target Format) (Resolution, error) {
	for _, f := range []Format{source, target} {
		if f != FormatUnset && !f.Valid() {
			return Resolution{}, singleIssue(CodeUnsupportedConversion, message(CodeUnsupportedConversion, fmt.Sprintf("unknown format %s", f)))
		}
	}
	rec, isRecord := v.(*Record)
	if hint == nil {
		if !isRecord || rec == nil {
			return Resolution{}, singleIssue(CodeTypeHintRequired, message(CodeTypeHintRequired, fmt.Sprintf("cannot infer a type for %T", v)))
		}
		hint = ModelOf(rec.Shape())
	}
	if source == FormatUnset {
		s, err := inferSource(v, hint)
		if err != nil {
			return Resolution{}, err
		}
		source = s
	}
	if target == FormatUnset {
		target = source
	}
	return Resolution{Type: hint, Source: source, Target: target}, nil
}

func inferSource(v any, hint *Type) (Format, error) {
	switch v.(type) {
	case *Record:
		return FormatStruct, nil
	case []byte:
		return FormatJSONBytes, nil
	case string:
		if hint.stripNullable().kind == KindModel {
			return FormatJSONStr, nil
		}
	}
	if v != nil {
		switch reflect.ValueOf(v).Kind() {
		case reflect.Map, reflect.Slice, reflect.Array:
			return FormatUnset, singleIssue(CodeAmbiguousSource, message(CodeAmbiguousSource, fmt.Sprintf("%T may be unstruct or json", v)))
		}
	}
	return FormatUnset, singleIssue(CodeSourceRequired, message(CodeSourceRequired, fmt.Sprintf("cannot infer the format of %T", v)))
}
