package jsonproto

import (
	"errors"

	"github.com/whatamithinking/jsonproto/internal/jsontext"
)

// Strictness configures enforcement while parsing JSON text.
type Strictness struct {
	OnDuplicateKey Severity // Ignore (last key wins), Warn (logged) or Error.
}

// Severity expresses the severity level for issues.
type Severity int

const (
	Ignore Severity = iota
	Warn
	Error
)

// DecodeOpt is passed to JSONDriver.Unmarshal.
type DecodeOpt struct {
	Strictness Strictness
	// MaxDepth bounds container nesting; 0 means unlimited.
	MaxDepth int
}

// JSONDriver is the text codec behind the json <-> jsonstr edge. The default
// driver is backed by goccy/go-json; it may be replaced through Config.Driver.
type JSONDriver interface {
	Name() string
	// Marshal encodes a JSON-native tree.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes JSON text into map[string]any, []any, string,
	// json.Number, bool and nil. Warnings are non-fatal issues (for example
	// duplicate keys under Warn). Fatal enforcement failures are returned as
	// Issues; any other error is treated as a parse error.
	Unmarshal(data []byte, opt DecodeOpt) (v any, warnings Issues, err error)
}

// GoJSONDriver returns the default driver.
func GoJSONDriver() JSONDriver { return goJSONDriver{} }

type goJSONDriver struct{}

func (goJSONDriver) Name() string { return "go-json" }

func (goJSONDriver) Marshal(v any) ([]byte, error) { return jsontext.Marshal(v) }

func (goJSONDriver) Unmarshal(data []byte, opt DecodeOpt) (any, Issues, error) {
	v, warns, err := jsontext.Decode(data, jsontext.Options{
		OnDuplicate: toDup(opt.Strictness.OnDuplicateKey),
		MaxDepth:    opt.MaxDepth,
	})
	if err != nil {
		var ie *jsontext.IssueError
		if errors.As(err, &ie) && len(ie.Issues) > 0 {
			return nil, nil, fromSimple(ie.Issues)
		}
		return nil, nil, err
	}
	return v, fromSimple(warns), nil
}

func toDup(s Severity) jsontext.DuplicateStrictness {
	switch s {
	case Warn:
		return jsontext.DupWarn
	case Error:
		return jsontext.DupError
	default:
		return jsontext.DupIgnore
	}
}

func fromSimple(in []jsontext.SimpleIssue) Issues {
	if len(in) == 0 {
		return nil
	}
	out := make(Issues, 0, len(in))
	for _, si := range in {
		out = append(out, Issue{Path: si.Path, Code: si.Code, Message: message(si.Code, si.Message)})
	}
	return out
}
