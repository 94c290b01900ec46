package jsonproto

import (
	"fmt"
	"net/mail"
	"net/netip"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"

	"github.com/whatamithinking/jsonproto/jsonschema"
)

// Pattern requires a string to match pattern in full. It panics if pattern
// does not compile; NewPattern returns the error instead.
func Pattern(pattern string) Constraint {
	c, err := NewPattern(pattern)
	if err != nil {
		panic(err)
	}
	return c
}

// NewPattern compiles a full-match pattern constraint.
func NewPattern(pattern string) (Constraint, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidDeclaration, pattern, err)
	}
	return patternConstraint{src: pattern, re: re}, nil
}

type patternConstraint struct {
	src string
	re  *regexp.Regexp
}

func (patternConstraint) Kind() string { return "pattern" }

func (c patternConstraint) Check(v any) *Violation {
	s, ok := v.(string)
	if !ok {
		return &Violation{Constraint: "pattern", Message: fmt.Sprintf("pattern applies to strings, got %T", v)}
	}
	if c.re.MatchString(s) {
		return nil
	}
	return &Violation{
		Constraint: "pattern",
		Message:    fmt.Sprintf("%q does not match %q", s, c.src),
		Params:     map[string]any{"pattern": c.src},
	}
}

func (c patternConstraint) Annotate(s *jsonschema.Schema) { s.Pattern = c.re.String() }

var hostnameRE = regexp.MustCompile(`^(?i:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)(?:\.(?i:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?))*$`)

var stringFormats = map[string]func(string) bool{
	"email": func(s string) bool {
		a, err := mail.ParseAddress(s)
		return err == nil && a.Address == s
	},
	"hostname": func(s string) bool { return len(s) <= 253 && hostnameRE.MatchString(s) },
	"ipv4": func(s string) bool {
		a, err := netip.ParseAddr(s)
		return err == nil && a.Is4()
	},
	"ipv6": func(s string) bool {
		a, err := netip.ParseAddr(s)
		return err == nil && a.Is6()
	},
	"uri": func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && u.Scheme != ""
	},
	"uuid": func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil && len(s) == 36
	},
	"date-time": func(s string) bool {
		_, err := time.Parse(time.RFC3339Nano, s)
		return err == nil
	},
	"date": func(s string) bool {
		_, err := time.Parse("2006-01-02", s)
		return err == nil
	},
	"time": func(s string) bool {
		_, err := time.Parse("15:04:05", s)
		return err == nil
	},
}

// FormatNames lists the names accepted by FormatOf.
func FormatNames() []string {
	out := make([]string, 0, len(stringFormats))
	for n := range stringFormats {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// FormatOf requires a string in a named format: email, hostname, ipv4, ipv6,
// uri, uuid, date-time, date or time. It panics on an unknown name; NewFormat
// returns the error instead.
func FormatOf(name string) Constraint {
	c, err := NewFormat(name)
	if err != nil {
		panic(err)
	}
	return c
}

// NewFormat returns the named format constraint.
func NewFormat(name string) (Constraint, error) {
	fn, ok := stringFormats[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown format %q (known: %s)", ErrInvalidDeclaration, name, strings.Join(FormatNames(), ", "))
	}
	return formatConstraint{name: name, valid: fn}, nil
}

type formatConstraint struct {
	name  string
	valid func(string) bool
}

func (formatConstraint) Kind() string { return "format" }

func (c formatConstraint) Check(v any) *Violation {
	s, ok := v.(string)
	if ok && c.valid(s) {
		return nil
	}
	return &Violation{
		Constraint: "format",
		Message:    fmt.Sprintf("%v is not a valid %s", v, c.name),
		Params:     map[string]any{"format": c.name},
	}
}

func (c formatConstraint) Annotate(s *jsonschema.Schema) { s.Format = c.name }

// Expr checks a boolean expr-lang expression over the variable value, for
// example `value % 2 == 0`. It panics if src does not compile; NewExpr returns
// the error instead.
func Expr(src string) Constraint {
	c, err := NewExpr(src)
	if err != nil {
		panic(err)
	}
	return c
}

// NewExpr compiles an expression constraint.
func NewExpr(src string) (Constraint, error) {
	prg, err := expr.Compile(src, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: expression %q: %v", ErrInvalidDeclaration, src, err)
	}
	return exprConstraint{src: src, prg: prg}, nil
}

type exprConstraint struct {
	src string
	prg *vm.Program
}

func (exprConstraint) Kind() string { return "expr" }

func (c exprConstraint) Check(v any) *Violation {
	out, err := vm.Run(c.prg, map[string]any{"value": v})
	if err != nil {
		return &Violation{Constraint: "expr", Message: fmt.Sprintf("expression %q failed: %v", c.src, err), Params: map[string]any{"expr": c.src}}
	}
	if ok, isBool := out.(bool); isBool && ok {
		return nil
	}
	return &Violation{
		Constraint: "expr",
		Message:    fmt.Sprintf("%v does not satisfy %s", v, c.src),
		Params:     map[string]any{"expr": c.src},
	}
}
