package jsonproto

import (
	"fmt"
	"strconv"
	"strings"
)

// Path identifies a location inside a value. It renders as a dotted field
// path: "customer.addresses[2].zip". Mapping keys render in brackets. The
// zero Path is the root and renders as "".
//
// Paths are immutable linked segments, so extending a Path never copies its
// parent.
type Path struct {
	seg *pathSeg
}

type pathSeg struct {
	parent *pathSeg
	field  string
	index  int
	key    string
	kind   uint8
}

const (
	segField uint8 = iota
	segIndex
	segKey
)

// Root returns the empty path.
func Root() Path { return Path{} }

// Field extends the path with a record field name.
func (p Path) Field(name string) Path {
	if name == "" {
		return p
	}
	return Path{seg: &pathSeg{parent: p.seg, field: name, kind: segField}}
}

// Index extends the path with a sequence index.
func (p Path) Index(i int) Path {
	return Path{seg: &pathSeg{parent: p.seg, index: i, kind: segIndex}}
}

// Key extends the path with a mapping key.
func (p Path) Key(k any) Path {
	return Path{seg: &pathSeg{parent: p.seg, key: fmt.Sprint(k), kind: segKey}}
}

// IsRoot reports whether p has no segments.
func (p Path) IsRoot() bool { return p.seg == nil }

// String renders the path.
func (p Path) String() string {
	if p.seg == nil {
		return ""
	}
	var segs []*pathSeg
	for s := p.seg; s != nil; s = s.parent {
		segs = append(segs, s)
	}
	b := &strings.Builder{}
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		switch s.kind {
		case segField:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.field)
		case segIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.index))
			b.WriteByte(']')
		case segKey:
			b.WriteByte('[')
			b.WriteString(s.key)
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Issue creates an Issue at this path. kv is read as key/value pairs for Params.
func (p Path) Issue(code, msg string, kv ...any) Issue {
	var m map[string]any
	if len(kv) > 1 {
		m = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			m[fmt.Sprint(kv[i])] = kv[i+1]
		}
	}
	return Issue{Path: p.String(), Code: code, Message: msg, Params: m}
}

// JoinPath prefixes a rendered relative path with p.
func (p Path) JoinPath(rel string) string {
	base := p.String()
	switch {
	case rel == "":
		return base
	case base == "":
		return rel
	case rel[0] == '[':
		return base + rel
	default:
		return base + "." + rel
	}
}
