package jsonproto

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes.
const (
	// Format inference
	CodeTypeHintRequired      = "type_hint_required"
	CodeAmbiguousSource       = "ambiguous_source"
	CodeSourceRequired        = "source_required"
	CodeUnsupportedConversion = "unsupported_conversion"
	// Field resolution and validation
	CodeMissingRequiredField = "missing_required_field"
	CodeNullNotAllowed       = "null_not_allowed"
	CodeTypeMismatch         = "type_mismatch"
	CodeConstraintViolation  = "constraint_violation"
	CodeExtraField           = "extra_field"
	// JSON text
	CodeSerializationError = "serialization_error"
	CodeParseError         = "parse_error"
	CodeDuplicateKey       = "duplicate_key"
)

// Sentinel errors matched by Issues.Is against the code of any contained issue.
var (
	ErrTypeHintRequired      = errors.New("jsonproto: type hint required")
	ErrAmbiguousSource       = errors.New("jsonproto: ambiguous source format")
	ErrSourceRequired        = errors.New("jsonproto: source format required")
	ErrUnsupportedConversion = errors.New("jsonproto: unsupported conversion")
	ErrMissingRequiredField  = errors.New("jsonproto: missing required field")
	ErrNullNotAllowed        = errors.New("jsonproto: null not allowed")
	ErrTypeMismatch          = errors.New("jsonproto: type mismatch")
	ErrConstraintViolation   = errors.New("jsonproto: constraint violation")
	ErrExtraField            = errors.New("jsonproto: extra field")
	ErrSerialization         = errors.New("jsonproto: serialization error")
	ErrParse                 = errors.New("jsonproto: parse error")
	ErrDuplicateKey          = errors.New("jsonproto: duplicate key")

	// ErrInvalidDeclaration is returned when a model cannot be built from its
	// field declarations.
	ErrInvalidDeclaration = errors.New("jsonproto: invalid declaration")
)

var codeSentinels = map[string]error{
	CodeTypeHintRequired:      ErrTypeHintRequired,
	CodeAmbiguousSource:       ErrAmbiguousSource,
	CodeSourceRequired:        ErrSourceRequired,
	CodeUnsupportedConversion: ErrUnsupportedConversion,
	CodeMissingRequiredField:  ErrMissingRequiredField,
	CodeNullNotAllowed:        ErrNullNotAllowed,
	CodeTypeMismatch:          ErrTypeMismatch,
	CodeConstraintViolation:   ErrConstraintViolation,
	CodeExtraField:            ErrExtraField,
	CodeSerializationError:    ErrSerialization,
	CodeParseError:            ErrParse,
	CodeDuplicateKey:          ErrDuplicateKey,
}

// Issue represents a single conversion or validation failure.
type Issue struct {
	Path    string // Dotted field path (for example: items[2].price); "" is the root.
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints, format names, etc.
	// Constraint names the failed constraint kind for constraint_violation.
	Constraint string
	// Params carries structured parameters (e.g., {"limit":10, "op":"<="})
	// for i18n and observability.
	Params map[string]any
	Cause  error // Optional: underlying error.
}

// Issues is a collection of failures that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		path := it.Path
		if path == "" {
			path = "<root>"
		}
		// e.g. constraint_violation(length) at tags[1]
		if it.Constraint != "" {
			fmt.Fprintf(b, "%s(%s) at %s", it.Code, it.Constraint, path)
		} else {
			fmt.Fprintf(b, "%s at %s", it.Code, path)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Is reports whether any issue carries the code of the target sentinel.
func (iss Issues) Is(target error) bool {
	for _, it := range iss {
		if s, ok := codeSentinels[it.Code]; ok && s == target {
			return true
		}
	}
	return false
}

// Codes lists the issue codes in order.
func (iss Issues) Codes() []string {
	out := make([]string, len(iss))
	for i, it := range iss {
		out[i] = it.Code
	}
	return out
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

func singleIssue(code, msg string) Issues {
	return Issues{{Code: code, Message: msg}}
}

func declError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDeclaration, fmt.Sprintf(format, args...))
}
