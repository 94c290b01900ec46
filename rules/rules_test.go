package rules_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatamithinking/jsonproto"
	"github.com/whatamithinking/jsonproto/rules"
)

func contactShape(t *testing.T, rs ...jsonproto.ModelConstraint) *jsonproto.Shape {
	t.Helper()
	reg := jsonproto.NewRegistry()
	return reg.Declare("Contact", func() []jsonproto.Field {
		return []jsonproto.Field{
			{Name: "email", Type: jsonproto.String()},
			{Name: "phone", Type: jsonproto.String()},
			{Name: "fax", Type: jsonproto.Nullable(jsonproto.String())},
			{Name: "country", Type: jsonproto.String()},
			{Name: "zip", Type: jsonproto.String()},
		}
	}, rs...)
}

func TestDependent(t *testing.T) {
	s := contactShape(t, rules.Dependent("email", "phone"))
	rule := s.New().Model().Rules()[0]

	assert.Empty(t, rule.CheckRecord(s.New()))
	assert.Empty(t, rule.CheckRecord(s.New().Set("email", "a@b.c").Set("phone", "1")))

	v := rule.CheckRecord(s.New().Set("email", "a@b.c"))
	require.Len(t, v, 1)
	assert.Equal(t, "dependent", v[0].Constraint)
	assert.Equal(t, []string{"email"}, v[0].Params["given"])
}

func TestDependent_NullCountsAsGiven(t *testing.T) {
	s := contactShape(t, rules.Dependent("fax", "phone"))
	rule := s.New().Model().Rules()[0]
	require.Len(t, rule.CheckRecord(s.New().SetNull("fax")), 1)
}

func TestDependent_MergesTransitively(t *testing.T) {
	s := contactShape(t, rules.Dependent("email", "phone"), rules.Dependent("phone", "fax"), rules.Dependent("country", "zip"))
	m, err := s.Model()
	require.NoError(t, err)
	require.Len(t, m.Rules(), 2)

	fr, ok := m.Rules()[0].(jsonproto.FieldReferrer)
	require.True(t, ok)
	assert.Equal(t, []string{"email", "fax", "phone"}, fr.FieldNames())

	// email alone now requires fax too
	v := m.Rules()[0].CheckRecord(s.New().Set("email", "a@b.c").Set("phone", "1"))
	require.Len(t, v, 1)
}

func TestDependent_ConflictsWithDisjoint(t *testing.T) {
	s := contactShape(t, rules.Dependent("email", "phone"), rules.Disjoint("email", "phone", "fax"))
	_, err := s.Model()
	require.Error(t, err)
	assert.True(t, errors.Is(err, jsonproto.ErrInvalidDeclaration))
}

func TestDisjoint(t *testing.T) {
	s := contactShape(t, rules.Disjoint("email", "phone", "fax"))
	rule := s.New().Model().Rules()[0]

	assert.Empty(t, rule.CheckRecord(s.New().Set("phone", "1")))
	v := rule.CheckRecord(s.New().Set("phone", "1").SetNull("fax"))
	require.Len(t, v, 1)
	assert.Equal(t, []string{"fax", "phone"}, v[0].Params["given"])
}

func TestUnknownFieldIsDeclarationError(t *testing.T) {
	s := contactShape(t, rules.Disjoint("email", "pager"))
	_, err := s.Model()
	require.ErrorIs(t, err, jsonproto.ErrInvalidDeclaration)
	assert.Contains(t, err.Error(), "pager")
}

func orderShape(t *testing.T, rs ...jsonproto.ModelConstraint) *jsonproto.Shape {
	t.Helper()
	reg := jsonproto.NewRegistry()
	reg.Declare("Item", func() []jsonproto.Field {
		return []jsonproto.Field{
			{Name: "sku", Type: jsonproto.String(), Required: true},
			{Name: "qty", Type: jsonproto.Int()},
		}
	})
	return reg.Declare("Order", func() []jsonproto.Field {
		return []jsonproto.Field{
			{Name: "status", Type: jsonproto.String()},
			{Name: "items", Type: jsonproto.SeqOf(reg.Ref("Item"))},
			{Name: "note", Type: jsonproto.String()},
			{Name: "total", Type: jsonproto.Int()},
		}
	}, rs...)
}

func TestAtLeastOne(t *testing.T) {
	s := orderShape(t, rules.AtLeastOne("items"))
	rule := s.New().Model().Rules()[0]

	assert.Empty(t, rule.CheckRecord(s.New()), "empty field is not judged")
	v := rule.CheckRecord(s.New().Set("items", []any{}))
	require.Len(t, v, 1)
	assert.Equal(t, "items", v[0].Path)
}

func TestUniqueBy_ThroughExecute(t *testing.T) {
	s := orderShape(t, rules.UniqueBy("items", "sku"))
	in := map[string]any{
		"items": []any{
			map[string]any{"sku": "a"},
			map[string]any{"sku": "b"},
			map[string]any{"sku": "a"},
		},
	}
	_, err := jsonproto.Execute(context.Background(), in, jsonproto.Options{
		Type:   jsonproto.ModelOf(s),
		Source: jsonproto.FormatUnstruct,
		Target: jsonproto.FormatStruct,
	})
	iss, ok := jsonproto.AsIssues(err)
	require.True(t, ok, "want Issues, got %v", err)
	require.Len(t, iss, 1)
	assert.Equal(t, jsonproto.CodeConstraintViolation, iss[0].Code)
	assert.Equal(t, "unique", iss[0].Constraint)
	assert.Equal(t, "items[2].sku", iss[0].Path)
}

func TestIfThen(t *testing.T) {
	rule := rules.If("status", rules.Eq, "shipped").Then(rules.Require("note"))
	s := orderShape(t, rule)
	m := s.New().Model()
	r := m.Rules()[0]

	assert.Empty(t, r.CheckRecord(s.New().Set("status", "open")))
	v := r.CheckRecord(s.New().Set("status", "shipped"))
	require.Len(t, v, 1)
	assert.Equal(t, "note", v[0].Path)
	assert.Empty(t, r.CheckRecord(s.New().Set("status", "shipped").Set("note", "ok")))
}

func TestIfAllIfAny(t *testing.T) {
	big := rules.If("total", rules.Gt, 100)
	shipped := rules.If("status", rules.Eq, "shipped")
	s := orderShape(t,
		big.And(shipped).Then(rules.Require("note")),
		rules.IfAny(big, shipped).Then(rules.AtLeastOne("items")),
	)
	m := s.New().Model()
	both, anyOf := m.Rules()[0], m.Rules()[1]

	r := s.New().Set("total", 500).Set("status", "open").Set("items", []any{})
	assert.Empty(t, both.CheckRecord(r))
	assert.Len(t, anyOf.CheckRecord(r), 1)

	r.Set("status", "shipped")
	assert.Len(t, both.CheckRecord(r), 1)
}

func TestOr_ReportsSmallestBranch(t *testing.T) {
	s := orderShape(t)
	r := s.New()
	or := rules.Or(rules.Require("status", "note"), rules.Require("total"))
	v := or.CheckRecord(r)
	require.Len(t, v, 1)
	assert.Equal(t, "total", v[0].Path)

	r.Set("total", 1)
	assert.Empty(t, or.CheckRecord(r))
}

func TestAnd_Concatenates(t *testing.T) {
	s := orderShape(t)
	v := rules.And(rules.Require("status"), nil, rules.Require("note")).CheckRecord(s.New())
	assert.Len(t, v, 2)
}
