package tutor

import (
	"fmt"
	"strings"

	"multipoly/internal/kb"
	"multipoly/internal/logging"
	"multipoly/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// Defaults applied to a GameState with empty fields.
const (
	DefaultPhase    = "early_game"
	DefaultPosition = "start"
)

const (
	noAdvice   = "no specific advice"
	noRisk     = "unknown risk"
	noStrategy = "no specific strategy"
)

// GameState is the player context a report is built from.
type GameState struct {
	Phase         string         `json:"phase,omitempty"`
	Position      string         `json:"position,omitempty"`
	OwnedEntities []string       `json:"owned_properties,omitempty"`
	Tokens        map[string]int `json:"tokens,omitempty"`
}

func (s GameState) withDefaults() GameState {
	if s.Phase == "" {
		s.Phase = DefaultPhase
	}
	if s.Position == "" {
		s.Position = DefaultPosition
	}
	return s
}

// AnalyzePurchaseOpportunity decides whether holdings allow buying entity.
func (t *Tutor) AnalyzePurchaseOpportunity(entity string, holdings map[string]int) string {
	metrics.RecordReport("purchase")
	entity = cleanKey(entity)
	categories := t.QueryCategory(entity)
	if len(categories) == 0 {
		return fmt.Sprintf("Unknown property: %s", entity)
	}
	category := categories[0]

	advice := first(t.QueryInvestmentValue(entity), noAdvice)
	risk := first(t.QueryRiskLevel(entity), noRisk)

	var decision string
	if held := holdings[category]; held > 0 {
		decision = fmt.Sprintf("CAN PURCHASE: You have %d %s tokens", held, category)
	} else {
		decision = fmt.Sprintf("CANNOT PURCHASE: Need %s tokens (consider token swapping)", category)
	}

	return fmt.Sprintf("%s Analysis:\n%s\nInvestment Value: %s\nRisk Level: %s\nRequired Token: %s",
		entity, decision, advice, risk, category)
}

// GetBestMoveAdvice chains category, yield, investment value and risk for
// the entity at position. A "high" yield is a strong buy; anything else
// calls for care.
func (t *Tutor) GetBestMoveAdvice(position string) string {
	metrics.RecordReport("best_move")
	position = cleanKey(position)
	categories := t.QueryCategory(position)
	if len(categories) == 0 {
		return fmt.Sprintf("No information available for position %s", position)
	}
	category := categories[0]

	yields := t.QueryYield(category)
	if len(yields) == 0 {
		return fmt.Sprintf("Position %s has token %s but yield unknown", position, category)
	}
	yield := yields[0]

	advice := first(t.QueryInvestmentValue(position), noAdvice)
	risk := first(t.QueryRiskLevel(position), noRisk)

	recommendation := "Consider carefully"
	if yield == "high" {
		recommendation = "Strong buy"
	}

	return fmt.Sprintf("Position %s: Token %s yields %s returns. Investment analysis: %s. Risk level: %s. Recommendation: %s.",
		position, category, yield, advice, risk, recommendation)
}

// GetStrategicRecommendations builds the multi-part strategy report. The
// parts are looked up concurrently; each is best effort and none holds a
// lock across another, so the report is not a single snapshot.
func (t *Tutor) GetStrategicRecommendations(state GameState) string {
	metrics.RecordReport("strategic")
	state = state.withDefaults()
	timer := logging.StartTimer(logging.CategoryTutor, "strategic recommendations")
	defer timer.Stop()

	var strategy, portfolio, position string
	var g errgroup.Group
	g.Go(func() error {
		strategy = first(t.QueryStrategy(state.Phase), noStrategy)
		return nil
	})
	g.Go(func() error {
		portfolio = t.portfolioSummary(state.OwnedEntities)
		return nil
	})
	if state.Position != DefaultPosition {
		g.Go(func() error {
			position = t.GetBestMoveAdvice(state.Position)
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	b.WriteString("Strategic Analysis:\n\n")
	fmt.Fprintf(&b, "Phase Strategy (%s): %s\n\n", state.Phase, strategy)
	fmt.Fprintf(&b, "Portfolio: %s", portfolio)
	if state.Position != DefaultPosition {
		fmt.Fprintf(&b, "\n\nCurrent Position Analysis:\n%s", position)
	}
	return b.String()
}

// portfolioSummary counts owned entities and the distinct categories among them.
func (t *Tutor) portfolioSummary(owned []string) string {
	summary := fmt.Sprintf("Owned Properties: %d properties", len(owned))
	if len(owned) == 0 {
		return summary
	}

	groups := make(map[string]struct{})
	for _, entity := range owned {
		if categories := t.QueryCategory(entity); len(categories) > 0 {
			groups[categories[0]] = struct{}{}
		}
	}
	return fmt.Sprintf("%s across %d different groups", summary, len(groups))
}

// Advise is the full tutor answer for a game state: the strategic report,
// a purchase analysis when the player stands on a property holding tokens,
// and the airdrop rule when the player is on start. ok is false when the
// state carries no position or no knowledge backend is deployed, so the
// caller should answer some other way. An unknown position still gets a
// report.
func (t *Tutor) Advise(state GameState) (string, bool) {
	state.Position = cleanKey(state.Position)
	if state.Position == "" {
		return "", false
	}
	if !kb.Available(t.store) {
		logging.TutorDebug("no knowledge backend, declining to advise")
		return "", false
	}
	state = state.withDefaults()
	metrics.RecordReport("advise")

	var b strings.Builder
	b.WriteString(t.GetStrategicRecommendations(state))

	if state.Position != DefaultPosition && len(state.Tokens) > 0 {
		b.WriteString("\n\nPurchase Analysis:\n")
		b.WriteString(t.AnalyzePurchaseOpportunity(state.Position, state.Tokens))
	}
	if state.Position == DefaultPosition {
		if airdrop := t.QueryMechanic("airdrop"); len(airdrop) > 0 {
			fmt.Fprintf(&b, "\n\nAirdrop: %s", airdrop[0])
		}
	}
	return b.String(), true
}

// AddDynamicKnowledge appends (subject relation value) at runtime. Any
// relation name is accepted. The returned text confirms or reports the add.
func (t *Tutor) AddDynamicKnowledge(relation, subject, value string) string {
	metrics.RecordReport("add")
	relation, subject, value = cleanKey(relation), cleanKey(subject), cleanKey(value)
	fact := fmt.Sprintf("%s(%s, %s)", relation, subject, value)

	err := t.store.Add(subject, relation, value)
	t.kernel.Audit().KnowledgeAdded(relation, subject, value, err)
	if err != nil {
		logging.Get(logging.CategoryTutor).Warn("failed to add %s: %v", fact, err)
		return fmt.Sprintf("Failed to add to %s: %s: %v", t.Backend(), fact, err)
	}
	return fmt.Sprintf("Added to %s: %s", t.Backend(), fact)
}
