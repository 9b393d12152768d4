package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarNormalisesPrefix(t *testing.T) {
	assert.Equal(t, Term{Value: "$t", Variable: true}, Var("t"))
	assert.Equal(t, Term{Value: "$t", Variable: true}, Var("$t"))
	assert.Equal(t, Term{Value: "t"}, Lit("t"))
}

func TestPatternMatch(t *testing.T) {
	triple := Triple{Subject: "Red_Fort", Predicate: "hasToken", Object: "token_red"}

	tests := []struct {
		name    string
		pattern Pattern
		want    Binding
		ok      bool
	}{
		{"object variable", NewPattern("Red_Fort", "hasToken", "$t"), Binding{"$t": "token_red"}, true},
		{"all literal", NewPattern("Red_Fort", "hasToken", "token_red"), Binding{}, true},
		{"literal mismatch", NewPattern("Red_Fort", "hasToken", "token_blue"), nil, false},
		{"case differs", NewPattern("Red_Fort", "hastoken", "$t"), nil, false},
		{"subject variable", NewPattern("$p", "hasToken", "token_red"), Binding{"$p": "Red_Fort"}, true},
		{"repeated variable mismatch", NewPattern("$x", "hasToken", "$x"), nil, false},
		{"all variables", NewPattern("$s", "$p", "$o"), Binding{"$s": "Red_Fort", "$p": "hasToken", "$o": "token_red"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.pattern.Match(triple)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPatternVariables(t *testing.T) {
	assert.Equal(t, []string{"$x", "$o"}, NewPattern("$x", "$x", "$o").Variables())
	assert.Nil(t, NewPattern("a", "b", "c").Variables())
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		text string
		want Pattern
	}{
		{"(hasToken Red_Fort $t)", Pattern{Subject: Lit("Red_Fort"), Predicate: Lit("hasToken"), Object: Var("t")}},
		{"hasToken Red_Fort $t", Pattern{Subject: Lit("Red_Fort"), Predicate: Lit("hasToken"), Object: Var("t")}},
		{"  (belongsToGroup $city Group_A_Heritage)  ", Pattern{Subject: Var("city"), Predicate: Lit("belongsToGroup"), Object: Lit("Group_A_Heritage")}},
		{`(investmentValue Red_Fort "a b")`, Pattern{Subject: Lit("Red_Fort"), Predicate: Lit("investmentValue"), Object: Lit("a b")}},
		{`(note x "$literal")`, Pattern{Subject: Lit("x"), Predicate: Lit("note"), Object: Lit("$literal")}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParsePattern(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePatternInvalid(t *testing.T) {
	for _, text := range []string{
		"",
		"()",
		"(hasToken Red_Fort)",
		"(a b c d)",
		"(hasToken Red_Fort $t",
		"((hasToken) Red_Fort $t)",
		`(hasToken Red_Fort "open)`,
		`(hasToken "" $t)`,
		"(hasToken $ $t)",
	} {
		t.Run(text, func(t *testing.T) {
			_, err := ParsePattern(text)
			assert.ErrorIs(t, err, ErrInvalidPattern)
		})
	}
}

func TestMustParsePatternPanics(t *testing.T) {
	assert.Panics(t, func() { MustParsePattern("nope") })
	assert.NotPanics(t, func() { MustParsePattern("(yields token_red $y)") })
}

func TestPatternStringRoundTrips(t *testing.T) {
	p := Pattern{Subject: Lit("Red_Fort"), Predicate: Lit("investmentValue"), Object: Var("v")}
	assert.Equal(t, "(investmentValue Red_Fort $v)", p.String())

	parsed, err := ParsePattern(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestTripleString(t *testing.T) {
	tr := Triple{Subject: "Red_Fort", Predicate: "investmentValue", Object: "premium tourism"}
	assert.Equal(t, `(investmentValue Red_Fort "premium tourism")`, tr.String())
	assert.Equal(t, []Triple{tr}, ParseProgram(tr.String()))
}

func TestValues(t *testing.T) {
	bindings := []Binding{{"$t": "a"}, {"$x": "b"}, {"$t": "c"}}
	assert.Equal(t, []string{"a", "c"}, Values(bindings, "$t"))
	assert.Empty(t, Values(nil, "$t"))
}
