// Package tutor is the Multipoly domain layer: typed lookups over the shared
// fact store and the advisory reports composed from them.
//
// Every lookup returns a list. An empty list means "no data", whether the
// entity is unknown or no backend is deployed.
package tutor

import (
	"sort"
	"strings"

	"multipoly/internal/core"
	"multipoly/internal/kb"
	"multipoly/internal/logging"
)

// Relation names used by the seed ontology.
const (
	RelHasToken        = "hasToken"
	RelYields          = "yields"
	RelInvestmentValue = "investmentValue"
	RelRiskLevel       = "riskLevel"
	RelTokenCount      = "tokenCount"
	RelStrategy        = "strategy"
	RelBelongsToGroup  = "belongsToGroup"
	RelFineType        = "fineType"
	RelAvoidance       = "avoidance"
)

// valueVar is the variable every single-slot lookup binds.
const valueVar = "$v"

// mechanic is one row of the mechanic table: a pattern and the variable whose
// bindings are returned.
type mechanic struct {
	pattern kb.Pattern
	result  string
}

var mechanics = map[string]mechanic{
	"starting":  {kb.MustParsePattern("(startingPosition $game $pos)"), "$pos"},
	"dice":      {kb.MustParsePattern("(diceRange $game $range)"), "$range"},
	"tokens":    {kb.MustParsePattern("(initialTokens $player $rule)"), "$rule"},
	"purchase":  {kb.MustParsePattern("(purchaseRule $type $rule)"), "$rule"},
	"staking":   {kb.MustParsePattern("(stakingRule $property $rule)"), "$rule"},
	"airdrop":   {kb.MustParsePattern("(airdropRule $trigger $reward)"), "$reward"},
	"community": {kb.MustParsePattern("(communityChest $mech $desc)"), "$desc"},
	"tutor":     {kb.MustParsePattern("(aiTutor $feat $desc)"), "$desc"},
}

// Mechanics lists the names QueryMechanic understands, sorted.
func Mechanics() []string {
	names := make([]string, 0, len(mechanics))
	for name := range mechanics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// relationLookups maps the short relation kinds accepted by QueryRelation to
// the typed helpers.
var relationLookups = map[string]func(*Tutor, string) []string{
	"token":      (*Tutor).QueryCategory,
	"investment": (*Tutor).QueryInvestmentValue,
	"risk":       (*Tutor).QueryRiskLevel,
	"yield":      (*Tutor).QueryYield,
	"strategy":   (*Tutor).QueryStrategy,
}

// RelationKinds lists the kinds QueryRelation understands, sorted.
func RelationKinds() []string {
	kinds := make([]string, 0, len(relationLookups))
	for kind := range relationLookups {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Tutor answers domain questions against a kernel's store.
type Tutor struct {
	kernel *core.Kernel
	store  kb.Store
}

// New returns a tutor bound to kernel.
func New(kernel *core.Kernel) *Tutor {
	return &Tutor{kernel: kernel, store: kernel.Store()}
}

// Backend names the backend answering queries.
func (t *Tutor) Backend() string { return t.store.Name() }

// cleanKey strips surrounding double quotes from caller-supplied text.
func cleanKey(s string) string {
	return strings.Trim(s, `"`)
}

// objects returns every object of (key predicate ?) in insertion order. The
// key is always a literal, even if it starts with the variable prefix.
func (t *Tutor) objects(key, predicate string) []string {
	p := kb.Pattern{Subject: kb.Lit(cleanKey(key)), Predicate: kb.Lit(predicate), Object: kb.Var(valueVar)}
	out := kb.Values(t.store.Query(p), valueVar)
	logging.TutorDebug("%s -> %v", p, out)
	return out
}

// subjects returns every subject of (? predicate key).
func (t *Tutor) subjects(predicate, key string) []string {
	p := kb.Pattern{Subject: kb.Var(valueVar), Predicate: kb.Lit(predicate), Object: kb.Lit(cleanKey(key))}
	out := kb.Values(t.store.Query(p), valueVar)
	logging.TutorDebug("%s -> %v", p, out)
	return out
}

// QueryCategory returns the category tokens of an entity.
func (t *Tutor) QueryCategory(entity string) []string {
	return t.objects(entity, RelHasToken)
}

// QueryYield returns the yield tiers of a category.
func (t *Tutor) QueryYield(category string) []string {
	return t.objects(category, RelYields)
}

// QueryInvestmentValue returns the investment commentary for an entity.
func (t *Tutor) QueryInvestmentValue(entity string) []string {
	return t.objects(entity, RelInvestmentValue)
}

// QueryRiskLevel returns the risk tiers of an entity.
func (t *Tutor) QueryRiskLevel(entity string) []string {
	return t.objects(entity, RelRiskLevel)
}

// QueryGroupMembers returns every entity carrying the category.
func (t *Tutor) QueryGroupMembers(category string) []string {
	return t.subjects(RelHasToken, category)
}

// QueryCategoryCount returns the token supply recorded for a category.
func (t *Tutor) QueryCategoryCount(category string) []string {
	return t.objects(category, RelTokenCount)
}

// QueryStrategy returns the strategy text for a game phase.
func (t *Tutor) QueryStrategy(phase string) []string {
	return t.objects(phase, RelStrategy)
}

// QueryGroup returns the group label of an entity.
func (t *Tutor) QueryGroup(entity string) []string {
	return t.objects(entity, RelBelongsToGroup)
}

// QueryFineAvoidance returns the avoidance advice for a fine type.
func (t *Tutor) QueryFineAvoidance(fineType string) []string {
	return t.objects(fineType, RelAvoidance)
}

// QueryMechanic looks a game mechanic up by name, case-insensitively.
// Unknown names return an empty list.
func (t *Tutor) QueryMechanic(name string) []string {
	m, ok := mechanics[strings.ToLower(cleanKey(name))]
	if !ok {
		logging.TutorDebug("unknown mechanic %q", name)
		return []string{}
	}
	return kb.Values(t.store.Query(m.pattern), m.result)
}

// QueryRelation dispatches a short relation kind (token, investment, risk,
// yield, strategy) to its helper. Unknown kinds return an empty list.
func (t *Tutor) QueryRelation(kind, subject string) []string {
	lookup, ok := relationLookups[strings.ToLower(cleanKey(kind))]
	if !ok {
		return []string{}
	}
	return lookup(t, subject)
}

func first(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}
