package jsontext

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	j "github.com/goccy/go-json"
)

// DuplicateStrictness controls duplicate key handling.
type DuplicateStrictness int

const (
	DupIgnore DuplicateStrictness = iota
	DupWarn
	DupError
)

// SimpleIssue is a minimal issue representation produced while decoding.
type SimpleIssue struct {
	Code    string
	Path    string
	Message string
}

// Options configures Decode.
type Options struct {
	OnDuplicate DuplicateStrictness
	// MaxDepth bounds container nesting; 0 means unlimited.
	MaxDepth int
}

// ErrSyntax wraps every malformed-input failure returned by Decode.
var ErrSyntax = errors.New("jsontext: syntax error")

// IssueError aborts decoding with enforcement issues (duplicate key, depth).
type IssueError struct {
	Issues []SimpleIssue
}

func (e *IssueError) Error() string {
	if len(e.Issues) == 0 {
		return "jsontext: enforcement failed"
	}
	it := e.Issues[0]
	return fmt.Sprintf("%s at %q: %s", it.Code, it.Path, it.Message)
}

type decoder struct {
	src    TokenSource
	opt    Options
	depth  int
	issues []SimpleIssue
}

// Decode builds a tree of map[string]any, []any, string, json.Number, bool and
// nil from JSON text. Warn-level duplicate keys are returned as issues; the last
// occurrence wins. Error-level duplicates and depth overruns fail with *IssueError.
func Decode(data []byte, opt Options) (any, []SimpleIssue, error) {
	// The token stream does not check separators, so reject malformed text first.
	if !j.Valid(data) {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil, fmt.Errorf("%w: empty input", ErrSyntax)
		}
		return nil, nil, fmt.Errorf("%w: invalid JSON text", ErrSyntax)
	}
	d := &decoder{src: NewBytes(data), opt: opt}
	tok, err := d.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty input", ErrSyntax)
		}
		return nil, nil, err
	}
	v, err := d.value(tok, "")
	if err != nil {
		return nil, d.issues, err
	}
	if _, err := d.src.NextToken(); !errors.Is(err, io.EOF) {
		return nil, d.issues, fmt.Errorf("%w: trailing data after top-level value", ErrSyntax)
	}
	return v, d.issues, nil
}

func (d *decoder) next() (Token, error) {
	tok, err := d.src.NextToken()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Token{}, err
		}
		return Token{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return tok, nil
}

// within returns next(), mapping EOF inside a container to a syntax error.
func (d *decoder) within() (Token, error) {
	tok, err := d.next()
	if errors.Is(err, io.EOF) {
		return Token{}, fmt.Errorf("%w: %v", ErrSyntax, io.ErrUnexpectedEOF)
	}
	return tok, err
}

func (d *decoder) value(tok Token, path string) (any, error) {
	switch tok.Kind {
	case KindBeginObject:
		return d.object(path)
	case KindBeginArray:
		return d.array(path)
	case KindString:
		return tok.String, nil
	case KindNumber:
		return json.Number(tok.Number), nil
	case KindBool:
		return tok.Bool, nil
	case KindNull:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unexpected token at %q", ErrSyntax, path)
	}
}

func (d *decoder) enter(path string) error {
	d.depth++
	if d.opt.MaxDepth > 0 && d.depth > d.opt.MaxDepth {
		si := SimpleIssue{Code: "parse_error", Path: path, Message: "max depth exceeded"}
		d.issues = append(d.issues, si)
		return &IssueError{Issues: []SimpleIssue{si}}
	}
	return nil
}

func (d *decoder) object(path string) (any, error) {
	if err := d.enter(path); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()
	m := make(map[string]any)
	for {
		tok, err := d.within()
		if err != nil {
			return nil, err
		}
		if tok.Kind == KindEndObject {
			return m, nil
		}
		if tok.Kind != KindKey {
			return nil, fmt.Errorf("%w: expected object key at %q", ErrSyntax, path)
		}
		npath := joinKey(path, tok.String)
		if _, dup := m[tok.String]; dup && d.opt.OnDuplicate != DupIgnore {
			si := SimpleIssue{Code: "duplicate_key", Path: npath, Message: "key '" + tok.String + "' duplicated"}
			d.issues = append(d.issues, si)
			if d.opt.OnDuplicate == DupError {
				return nil, &IssueError{Issues: []SimpleIssue{si}}
			}
		}
		vt, err := d.within()
		if err != nil {
			return nil, err
		}
		v, err := d.value(vt, npath)
		if err != nil {
			return nil, err
		}
		m[tok.String] = v
	}
}

func (d *decoder) array(path string) (any, error) {
	if err := d.enter(path); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()
	arr := []any{}
	for {
		tok, err := d.within()
		if err != nil {
			return nil, err
		}
		if tok.Kind == KindEndArray {
			return arr, nil
		}
		v, err := d.value(tok, path+"["+strconv.Itoa(len(arr))+"]")
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
