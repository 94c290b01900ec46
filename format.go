package jsonproto

import "fmt"

// Format names one of the five representations a value can take.
//
// The formats form a chain; conversions walk it one edge at a time:
//
//	struct <-> unstruct <-> json <-> jsonstr <-> jsonbytes
type Format uint8

const (
	// FormatUnset means "not supplied"; Infer resolves it.
	FormatUnset Format = iota
	// FormatStruct is a *Record (or containers of records for non-model types).
	FormatStruct
	// FormatUnstruct is a native tree keyed by field name holding domain scalars.
	FormatUnstruct
	// FormatJSON is a JSON-native tree keyed by alias.
	FormatJSON
	// FormatJSONStr is JSON text as a string.
	FormatJSONStr
	// FormatJSONBytes is UTF-8 encoded JSON text.
	FormatJSONBytes

	formatEnd
)

var formatNames = [...]string{
	FormatUnset:     "",
	FormatStruct:    "struct",
	FormatUnstruct:  "unstruct",
	FormatJSON:      "json",
	FormatJSONStr:   "jsonstr",
	FormatJSONBytes: "jsonbytes",
}

func (f Format) String() string {
	if f < formatEnd {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Valid reports whether f is one of the five chain formats.
func (f Format) Valid() bool { return f > FormatUnset && f < formatEnd }

// position is the index in the chain; struct is 0.
func (f Format) position() int { return int(f) - 1 }

// ParseFormat resolves a lowercase format name.
func ParseFormat(s string) (Format, error) {
	for f := FormatStruct; f < formatEnd; f++ {
		if formatNames[f] == s {
			return f, nil
		}
	}
	return FormatUnset, fmt.Errorf("%w: unknown format %q", ErrUnsupportedConversion, s)
}
