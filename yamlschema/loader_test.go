package yamlschema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatamithinking/jsonproto"
)

const shapes = `
models:
  - name: Address
    fields:
      - {name: city, type: string, required: true}
      - {name: zip_code, type: string, constraints: [{pattern: "[0-9]{5}"}]}
  - name: User
    fields:
      - {name: id, type: int, required: true, constraints: [{minimum: 1}]}
      - name: email
        type: string
        nullable: true
        default: null
        constraints:
          - format: email
          - maxLength: 40
      - {name: role, type: string, default: member, constraints: [{enum: [member, admin]}]}
      - {name: born, type: date}
      - {name: tags, type: {seq: string}, default: []}
      - {name: scores, type: {map: {key: string, value: float}}}
      - {name: home, type: Address}
      - {name: work, type: {nullable: {ref: Address}}, default: {city: Paris}}
      - {name: level, type: int, constraints: [{expr: "value % 2 == 0"}]}
    rules:
      - if: {field: role, op: "==", value: admin, then: [{require: [email]}]}
`

func TestParse_DeclaresModels(t *testing.T) {
	reg, err := Parse([]byte(shapes))
	require.NoError(t, err)
	assert.Equal(t, []string{"Address", "User"}, reg.Names())

	user, ok := reg.Lookup("User")
	require.True(t, ok)
	m, err := user.Model()
	require.NoError(t, err)

	email, ok := m.Field("email")
	require.True(t, ok)
	assert.True(t, email.Nullable)
	assert.True(t, email.Default.IsNull(), "explicit null default")

	zip, ok := func() (jsonproto.Field, bool) {
		a, _ := reg.Lookup("Address")
		am, err := a.Model()
		require.NoError(t, err)
		return am.FieldByAlias("zipCode")
	}()
	require.True(t, ok)
	assert.Equal(t, "zip_code", zip.Name)

	born, _ := m.Field("born")
	assert.False(t, born.HasDefault())
}

func TestParse_DefaultsAndConversion(t *testing.T) {
	reg, err := Parse([]byte(shapes))
	require.NoError(t, err)
	user, _ := reg.Lookup("User")

	out, err := jsonproto.Execute(context.Background(), `{"id": 3, "born": "1990-05-17", "home": {"city": "Oslo"}}`, jsonproto.Options{
		Type:   jsonproto.ModelOf(user),
		Target: jsonproto.FormatStruct,
	})
	require.NoError(t, err)
	rec := out.(*jsonproto.Record)

	assert.True(t, rec.Get("email").IsNull())
	role, _ := rec.Get("role").Get()
	assert.Equal(t, "member", role)
	tags, _ := rec.Get("tags").Get()
	assert.Equal(t, []any{}, tags)
	born, _ := rec.Get("born").Get()
	assert.True(t, time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC).Equal(born.(time.Time)), "born = %v", born)

	work, ok := rec.Get("work").Get()
	require.True(t, ok)
	city, _ := work.(*jsonproto.Record).Get("city").Get()
	assert.Equal(t, "Paris", city)
}

func TestParse_ConstraintsAndRules(t *testing.T) {
	reg, err := Parse([]byte(shapes))
	require.NoError(t, err)
	user, _ := reg.Lookup("User")

	_, err = jsonproto.Execute(context.Background(), `{"id": 0, "role": "admin", "level": 3, "home": {"city": "x", "zipCode": "12"}}`, jsonproto.Options{
		Type:   jsonproto.ModelOf(user),
		Target: jsonproto.FormatStruct,
	})
	iss, ok := jsonproto.AsIssues(err)
	require.True(t, ok, "%v", err)

	got := map[string]string{}
	for _, it := range iss {
		got[it.Path] = it.Constraint
	}
	// issue paths use field names, not aliases
	assert.Equal(t, map[string]string{
		"id":            "value",
		"level":         "expr",
		"home.zip_code": "pattern",
	}, got)
}

func TestParse_RuleFiresAfterFieldsPass(t *testing.T) {
	reg, err := Parse([]byte(shapes))
	require.NoError(t, err)
	user, _ := reg.Lookup("User")

	_, err = jsonproto.Execute(context.Background(), `{"id": 1, "role": "admin"}`, jsonproto.Options{
		Type:   jsonproto.ModelOf(user),
		Target: jsonproto.FormatStruct,
	})
	iss, ok := jsonproto.AsIssues(err)
	require.True(t, ok, "%v", err)
	require.Len(t, iss, 1)
	assert.Equal(t, "required", iss[0].Constraint)
	assert.Equal(t, "email", iss[0].Path)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown key":        "models: [{name: A, fields: [{name: a, type: int, colour: red}]}]",
		"unknown ref":        "models: [{name: A, fields: [{name: a, type: Missing}]}]",
		"bad constraint":     "models: [{name: A, fields: [{name: a, type: int, constraints: [{shiny: true}]}]}]",
		"bad default":        "models: [{name: A, fields: [{name: a, type: int, default: abc}]}]",
		"null default":       "models: [{name: A, fields: [{name: a, type: int, default: null}]}]",
		"required default":   "models: [{name: A, fields: [{name: a, type: int, required: true, default: 1}]}]",
		"bad pattern":        "models: [{name: A, fields: [{name: a, type: string, constraints: [{pattern: '('}]}]}]",
		"bad model default":  "models: [{name: B, fields: [{name: x, type: int, required: true}]}, {name: A, fields: [{name: b, type: B, default: {}}]}]",
		"duplicate key":      "models: [{name: A, fields: [{name: a, type: int, type: string}]}]",
		"duplicate model":    "models: [{name: A, fields: []}, {name: A, fields: []}]",
		"missing type":       "models: [{name: A, fields: [{name: a}]}]",
		"map key not scalar": "models: [{name: A, fields: [{name: a, type: {map: {key: {seq: int}, value: int}}}]}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, jsonproto.ErrInvalidDeclaration), "%v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shapes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shapes), 0o600))
	reg, err := LoadFile(path)
	require.NoError(t, err)
	_, ok := reg.Lookup("Address")
	assert.True(t, ok)

	_, err = LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
