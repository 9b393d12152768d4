package tutor

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

func TestReportsGolden(t *testing.T) {
	cases := []struct {
		name   string
		report func(tu *Tutor) string
	}{
		{"advise_red_fort", func(tu *Tutor) string {
			out, _ := tu.Advise(GameState{
				Phase:         "mid_game",
				Position:      "Red_Fort",
				OwnedEntities: []string{"Red_Fort", "Connaught_Place"},
				Tokens:        map[string]int{"token_red": 1},
			})
			return out
		}},
		{"advise_start", func(tu *Tutor) string {
			out, _ := tu.Advise(GameState{Position: "start"})
			return out
		}},
		{"strategic_late_jnu", func(tu *Tutor) string {
			return tu.GetStrategicRecommendations(GameState{
				Phase:         "late_game",
				Position:      "JNU",
				OwnedEntities: []string{"JNU", "IIT_Delhi", "Red_Fort"},
			})
		}},
	}

	forEachBackend(t, func(t *testing.T, tu *Tutor) {
		g := goldie.New(t,
			goldie.WithFixtureDir("testdata/golden"),
			goldie.WithNameSuffix(".golden"),
		)
		for _, tc := range cases {
			g.Assert(t, tc.name, []byte(tc.report(tu)))
		}
	})
}
