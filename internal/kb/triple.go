// Package kb holds the subject-predicate-object fact model shared by every
// knowledge backend: triples, query patterns, bindings, the textual program
// format, and the linear-scan store used when no richer engine is configured.
package kb

import (
	"errors"
	"fmt"
	"strings"
)

// VariablePrefix marks a pattern slot as a variable ("$token").
const VariablePrefix = "$"

// ErrInvalidPattern is returned when a textual pattern cannot be parsed.
var ErrInvalidPattern = errors.New("invalid pattern")

// Triple is a single fact. Triples are immutable once added to a store.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// String renders the triple in program format: (predicate subject object).
func (t Triple) String() string {
	return fmt.Sprintf("(%s %s %s)", quoteToken(t.Predicate), quoteToken(t.Subject), quoteToken(t.Object))
}

// Term is one slot of a Pattern: either a literal or a named variable.
type Term struct {
	Value    string
	Variable bool
}

// Var returns a variable term. The name is normalised to carry the "$" prefix.
func Var(name string) Term {
	if !strings.HasPrefix(name, VariablePrefix) {
		name = VariablePrefix + name
	}
	return Term{Value: name, Variable: true}
}

// Lit returns a literal term.
func Lit(value string) Term {
	return Term{Value: value}
}

// ParseTerm treats "$"-prefixed strings as variables and everything else as literals.
func ParseTerm(s string) Term {
	if strings.HasPrefix(s, VariablePrefix) {
		return Term{Value: s, Variable: true}
	}
	return Lit(s)
}

func (t Term) String() string {
	if t.Variable {
		return t.Value
	}
	return quoteToken(t.Value)
}

// Binding maps variable names (including the "$" prefix) to matched values.
type Binding map[string]string

// Pattern is a three-slot query template.
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// NewPattern builds a pattern from raw slot strings using ParseTerm.
func NewPattern(subject, predicate, object string) Pattern {
	return Pattern{
		Subject:   ParseTerm(subject),
		Predicate: ParseTerm(predicate),
		Object:    ParseTerm(object),
	}
}

// String renders the pattern in program order: (predicate subject object).
func (p Pattern) String() string {
	return fmt.Sprintf("(%s %s %s)", p.Predicate, p.Subject, p.Object)
}

// Variables lists the distinct variable names of the pattern in slot order.
func (p Pattern) Variables() []string {
	var vars []string
	seen := make(map[string]bool, 3)
	for _, term := range p.terms() {
		if term.Variable && !seen[term.Value] {
			seen[term.Value] = true
			vars = append(vars, term.Value)
		}
	}
	return vars
}

func (p Pattern) terms() [3]Term {
	return [3]Term{p.Subject, p.Predicate, p.Object}
}

// Match reports whether the triple satisfies the pattern and, if so, the
// binding for its variable slots. Literal slots compare case-sensitively.
// A variable used in more than one slot must bind the same value each time.
func (p Pattern) Match(t Triple) (Binding, bool) {
	values := [3]string{t.Subject, t.Predicate, t.Object}
	binding := Binding{}
	for i, term := range p.terms() {
		if !term.Variable {
			if term.Value != values[i] {
				return nil, false
			}
			continue
		}
		if prev, ok := binding[term.Value]; ok && prev != values[i] {
			return nil, false
		}
		binding[term.Value] = values[i]
	}
	return binding, true
}

// ParsePattern parses a textual pattern in program order, with or without
// the surrounding parentheses: "(hasToken Red_Fort $t)" or "hasToken Red_Fort $t".
// Anything else fails with ErrInvalidPattern.
func ParsePattern(text string) (Pattern, error) {
	clean := strings.TrimSpace(text)
	if !strings.HasPrefix(clean, "(") {
		clean = "(" + clean + ")"
	}

	tokens, ok := splitRecord(clean)
	if !ok || len(tokens) != 3 {
		return Pattern{}, fmt.Errorf("%w: %q (want \"(predicate subject object)\")", ErrInvalidPattern, text)
	}
	for _, tok := range tokens {
		if tok.text == "" || (!tok.quoted && tok.text == VariablePrefix) {
			return Pattern{}, fmt.Errorf("%w: %q has an empty slot", ErrInvalidPattern, text)
		}
	}

	term := func(tok token) Term {
		if tok.quoted {
			return Lit(tok.text)
		}
		return ParseTerm(tok.text)
	}
	return Pattern{
		Predicate: term(tokens[0]),
		Subject:   term(tokens[1]),
		Object:    term(tokens[2]),
	}, nil
}

// MustParsePattern is like ParsePattern but panics on error. For fixed,
// compile-time patterns only.
func MustParsePattern(text string) Pattern {
	p, err := ParsePattern(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Values extracts the value bound to variable from each binding, in order.
// Bindings that do not carry the variable are skipped.
func Values(bindings []Binding, variable string) []string {
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if v, ok := b[variable]; ok {
			out = append(out, v)
		}
	}
	return out
}

func quoteToken(s string) string {
	if s == "" || strings.ContainsAny(s, " \t()\"") || strings.HasPrefix(s, VariablePrefix) {
		return `"` + s + `"`
	}
	return s
}
