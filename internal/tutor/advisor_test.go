package tutor

import (
	"fmt"
	"sync"
	"testing"

	"multipoly/internal/config"
	"multipoly/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAnalyzePurchaseOpportunity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, tu *Tutor) {
		cannot := tu.AnalyzePurchaseOpportunity("Red_Fort", map[string]int{"token_red": 0})
		assert.Contains(t, cannot, "CANNOT PURCHASE: Need token_red tokens (consider token swapping)")

		can := tu.AnalyzePurchaseOpportunity("Red_Fort", map[string]int{"token_red": 2})
		assert.Equal(t, "Red_Fort Analysis:\n"+
			"CAN PURCHASE: You have 2 token_red tokens\n"+
			"Investment Value: UNESCO World Heritage site - premium tourism investment\n"+
			"Risk Level: low\n"+
			"Required Token: token_red", can)

		missing := tu.AnalyzePurchaseOpportunity("JNU", nil)
		assert.Contains(t, missing, "CANNOT PURCHASE: Need token_green tokens")

		assert.Equal(t, "Unknown property: Atlantis", tu.AnalyzePurchaseOpportunity("Atlantis", map[string]int{"token_red": 5}))
	})
}

func TestAnalyzePurchaseFallbackText(t *testing.T) {
	tu := newTutor(t, config.BackendScan)
	tu.AddDynamicKnowledge("hasToken", "Bare_Plot", "token_blue")

	got := tu.AnalyzePurchaseOpportunity("Bare_Plot", map[string]int{"token_blue": 1})
	assert.Contains(t, got, "Investment Value: no specific advice")
	assert.Contains(t, got, "Risk Level: unknown risk")
}

func TestGetBestMoveAdvice(t *testing.T) {
	forEachBackend(t, func(t *testing.T, tu *Tutor) {
		assert.Equal(t, "Position Red_Fort: Token token_red yields high returns. "+
			"Investment analysis: UNESCO World Heritage site - premium tourism investment. "+
			"Risk level: low. Recommendation: Strong buy.", tu.GetBestMoveAdvice("Red_Fort"))

		assert.Contains(t, tu.GetBestMoveAdvice("Connaught_Place"), "Strong buy")
		assert.Contains(t, tu.GetBestMoveAdvice("JNU"), "Consider carefully")
		assert.Contains(t, tu.GetBestMoveAdvice("Chandni_Chowk"), "Consider carefully")

		assert.Equal(t, "No information available for position Atlantis", tu.GetBestMoveAdvice("Atlantis"))

		tu.AddDynamicKnowledge("hasToken", "Mystery_Lane", "token_purple")
		assert.Equal(t, "Position Mystery_Lane has token token_purple but yield unknown", tu.GetBestMoveAdvice("Mystery_Lane"))
	})
}

func TestBestMoveThresholdIsExactlyHigh(t *testing.T) {
	tu := newTutor(t, config.BackendScan)
	tu.AddDynamicKnowledge("hasToken", "Odd_Corner", "token_odd")
	tu.AddDynamicKnowledge("yields", "token_odd", "very_high")

	assert.Contains(t, tu.GetBestMoveAdvice("Odd_Corner"), "Consider carefully")
}

func TestGetStrategicRecommendations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, tu *Tutor) {
		atStart := tu.GetStrategicRecommendations(GameState{})
		assert.Equal(t, "Strategic Analysis:\n\n"+
			"Phase Strategy (early_game): Focus on Heritage sites and Business hubs for stable returns\n\n"+
			"Portfolio: Owned Properties: 0 properties", atStart)
		assert.NotContains(t, atStart, "Current Position Analysis")

		report := tu.GetStrategicRecommendations(GameState{
			Phase:         "late_game",
			Position:      "JNU",
			OwnedEntities: []string{"Red_Fort", "India_Gate", "JNU", "Atlantis"},
		})
		assert.Contains(t, report, "Phase Strategy (late_game): Maximize rent")
		assert.Contains(t, report, "Portfolio: Owned Properties: 4 properties across 2 different groups")
		assert.Contains(t, report, "Current Position Analysis:\nPosition JNU: Token token_green")
		assert.Contains(t, report, "Consider carefully")

		unknown := tu.GetStrategicRecommendations(GameState{Phase: "endgame", Position: "Atlantis"})
		assert.Contains(t, unknown, "Phase Strategy (endgame): no specific strategy")
		assert.Contains(t, unknown, "No information available for position Atlantis")
	})
}

func TestAdvise(t *testing.T) {
	forEachBackend(t, func(t *testing.T, tu *Tutor) {
		_, ok := tu.Advise(GameState{Phase: "mid_game"})
		assert.False(t, ok)

		start, ok := tu.Advise(GameState{Position: "start", Tokens: map[string]int{"token_red": 1}})
		require.True(t, ok)
		assert.Contains(t, start, "Airdrop: receive_airdrop_every_round")
		assert.NotContains(t, start, "Purchase Analysis")

		onProperty, ok := tu.Advise(GameState{Position: `"Red_Fort"`, Tokens: map[string]int{"token_red": 3}})
		require.True(t, ok)
		assert.Contains(t, onProperty, "Current Position Analysis:\nPosition Red_Fort")
		assert.Contains(t, onProperty, "Purchase Analysis:\nRed_Fort Analysis:\nCAN PURCHASE: You have 3 token_red tokens")
		assert.NotContains(t, onProperty, "Airdrop")

		noTokens, ok := tu.Advise(GameState{Position: "Red_Fort"})
		require.True(t, ok)
		assert.NotContains(t, noTokens, "Purchase Analysis")
	})
}

func TestAddDynamicKnowledge(t *testing.T) {
	forEachBackend(t, func(t *testing.T, tu *Tutor) {
		msg := tu.AddDynamicKnowledge("riskLevel", "Red_Fort", `"very_low"`)
		assert.Equal(t, fmt.Sprintf("Added to %s: riskLevel(Red_Fort, very_low)", tu.Backend()), msg)
		assert.Equal(t, []string{"low", "very_low"}, tu.QueryRiskLevel("Red_Fort"))

		tu.AddDynamicKnowledge("favouriteSnack", "India_Gate", "chaat")
		assert.Equal(t, []string{"chaat"}, tu.objects("India_Gate", "favouriteSnack"))
	})
}

func TestAddDynamicKnowledgeConcurrent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, tu *Tutor) {
		const n = 100
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tu.AddDynamicKnowledge("hasToken", fmt.Sprintf("Plot_%d", i), "token_blue")
			}(i)
		}
		wg.Wait()

		for i := 0; i < n; i++ {
			assert.Equal(t, []string{"token_blue"}, tu.QueryCategory(fmt.Sprintf("Plot_%d", i)))
		}
		assert.Len(t, tu.QueryGroupMembers("token_blue"), 6+n)
	})
}

func TestAddDynamicKnowledgeRefused(t *testing.T) {
	observed, logs := observer.New(zap.InfoLevel)
	logging.Use(zap.New(observed), config.LoggingConfig{})
	defer logging.Reset()

	cfg := config.DefaultConfig()
	cfg.KB.Backend = config.BackendMangle
	cfg.KB.FactLimit = 124
	tu := newTutorWithConfig(t, cfg)

	msg := tu.AddDynamicKnowledge("riskLevel", "Red_Fort", "none")
	assert.Contains(t, msg, "Failed to add to mangle: riskLevel(Red_Fort, none)")
	assert.Equal(t, []string{"low"}, tu.QueryRiskLevel("Red_Fort"))

	failed := logs.FilterMessage(string(logging.AuditKnowledgeFailed)).All()
	require.Len(t, failed, 1)
	assert.Equal(t, "Red_Fort", failed[0].ContextMap()["target"])
}

func TestUnavailableBackendDegrades(t *testing.T) {
	tu := newTutor(t, config.BackendOff)

	assert.Empty(t, tu.QueryCategory("Red_Fort"))
	assert.Empty(t, tu.QueryMechanic("dice"))
	assert.Equal(t, "Unknown property: Red_Fort", tu.AnalyzePurchaseOpportunity("Red_Fort", map[string]int{"token_red": 2}))
	assert.Equal(t, "No information available for position Red_Fort", tu.GetBestMoveAdvice("Red_Fort"))
	assert.Contains(t, tu.GetStrategicRecommendations(GameState{}), "no specific strategy")

	assert.Equal(t, "Added to off: hasToken(Home, token_red)", tu.AddDynamicKnowledge("hasToken", "Home", "token_red"))
	assert.Empty(t, tu.QueryCategory("Home"))

	for _, position := range []string{"start", "Red_Fort"} {
		advice, ok := tu.Advise(GameState{Position: position, Tokens: map[string]int{"token_red": 1}})
		assert.False(t, ok, position)
		assert.Empty(t, advice, position)
	}
}

func TestAdviseUnknownPositionStillReports(t *testing.T) {
	tu := newTutor(t, config.BackendScan)
	advice, ok := tu.Advise(GameState{Position: "Atlantis"})
	require.True(t, ok)
	assert.Contains(t, advice, "No information available for position Atlantis")
}

