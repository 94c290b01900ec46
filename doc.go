// Package jsonproto declares record models and converts values between five
// representations of them, validating every field exactly once on the way.
//
// The formats form a chain:
//
//	struct <-> unstruct <-> json <-> jsonstr <-> jsonbytes
//
//   - struct: a *Record holding one three-state Value (Empty, Null, Set) per field;
//   - unstruct: map[string]any keyed by field name, holding domain scalars
//     (time.Time, uuid.UUID, netip.Addr, ...);
//   - json: a JSON-native tree keyed by field alias;
//   - jsonstr and jsonbytes: JSON text.
//
// Field defaults, requiredness, nullability, constraints and model rules are
// applied at the struct/unstruct edge. Conversions that never touch struct
// form are still validated against it.
//
// Failures are reported as Issues, a slice of path-addressed Issue values
// that implements error and matches the Err* sentinels with errors.Is.
//
// Models are declared on a Registry, in Go or from YAML with package
// yamlschema:
//
//	var User = jsonproto.Declare("User", func() []jsonproto.Field {
//		return []jsonproto.Field{
//			{Name: "id", Type: jsonproto.Int(), Required: true},
//			{Name: "display_name", Type: jsonproto.String(),
//				Constraints: []jsonproto.Constraint{jsonproto.Length(jsonproto.Le, 64)}},
//			{Name: "manager", Type: jsonproto.Nullable(jsonproto.Ref("User"))},
//		}
//	})
//
//	rec, err := jsonproto.Convert[*jsonproto.Record](ctx, data,
//		jsonproto.Options{Type: jsonproto.ModelOf(User), Target: jsonproto.FormatStruct})
//
// Field rules shared between fields (dependent and disjoint groups,
// conditionals, uniqueness) live in package rules; JSON Schema export is
// Model.JSONSchema.
package jsonproto
