package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"multipoly/internal/kb"
	"multipoly/internal/logging"
	"multipoly/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return runApp(t, &app{}, stdin, args...)
}

func runApp(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, env := range []string{"MULTIPOLY_BACKEND", "MULTIPOLY_SEED", "MULTIPOLY_PROGRAM_DIR", "MULTIPOLY_PROGRAM_PATTERN", "MULTIPOLY_FACT_LIMIT", "MULTIPOLY_LOG_LEVEL"} {
		t.Setenv(env, "")
	}
	t.Cleanup(logging.Reset)

	cmd := a.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "multipoly.yaml")}, args...))
	err := a.executeCmd(cmd)
	return out.String(), err
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	require.NoError(t, err)
	return out
}

func TestQueryCommand(t *testing.T) {
	assert.Equal(t, "$t=token_red\n", execute(t, "query", "(hasToken Red_Fort $t)"))
	assert.Equal(t, "yes\n", execute(t, "query", "(hasToken Red_Fort token_red)"))
	assert.Equal(t, "No matches\n", execute(t, "query", "(hasToken Atlantis $t)"))

	members := execute(t, "--backend", "scan", "query", "(hasToken $place token_red)")
	assert.Equal(t, 6, strings.Count(members, "$place="))
	assert.True(t, strings.HasPrefix(members, "$place=Red_Fort\n"))
}

func TestQueryCommandJSON(t *testing.T) {
	var got []kb.Binding
	require.NoError(t, json.Unmarshal([]byte(execute(t, "query", "--json", "(yields $c high)")), &got))
	assert.Equal(t, []kb.Binding{{"$c": "token_red"}, {"$c": "token_blue"}}, got)
}

func TestQueryCommandInvalidPattern(t *testing.T) {
	_, err := run(t, "", "query", "(hasToken Red_Fort)")
	assert.ErrorIs(t, err, kb.ErrInvalidPattern)
}

func TestRelationCommand(t *testing.T) {
	var got relationResult
	require.NoError(t, json.Unmarshal([]byte(execute(t, "relation", "risk", "JNU")), &got))
	assert.Equal(t, relationResult{Relation: "risk", Subject: "JNU", Results: []string{"low-medium"}, Count: 1}, got)

	require.NoError(t, json.Unmarshal([]byte(execute(t, "relation", "colour", "JNU")), &got))
	assert.Equal(t, 0, got.Count)
	assert.Empty(t, got.Results)
}

func TestMechanicCommand(t *testing.T) {
	assert.Equal(t, "1-6_VRF_roll\n", execute(t, "mechanic", "Dice"))
	assert.Contains(t, execute(t, "mechanic", "not_a_mechanic"), "No mechanic named")
}

func TestPurchaseCommand(t *testing.T) {
	out := execute(t, "purchase", "Red_Fort", "--tokens", "token_red=2,token_blue=1")
	assert.Contains(t, out, "CAN PURCHASE: You have 2 token_red tokens")

	out = execute(t, "purchase", "Red_Fort")
	assert.Contains(t, out, "CANNOT PURCHASE: Need token_red tokens")
}

func TestBestMoveCommand(t *testing.T) {
	assert.Contains(t, execute(t, "best-move", "Red_Fort"), "Recommendation: Strong buy.")
	assert.Contains(t, execute(t, "best-move", "Raj_Ghat"), "Recommendation: Consider carefully.")
}

func TestRecommendCommand(t *testing.T) {
	out := execute(t, "recommend", "--phase", "mid_game", "--position", "JNU", "--owned", "Red_Fort,Khan_Market")
	assert.Contains(t, out, "Phase Strategy (mid_game): Balance portfolio")
	assert.Contains(t, out, "2 properties across 2 different groups")
	assert.Contains(t, out, "Current Position Analysis:")
}

func TestAdviseCommand(t *testing.T) {
	assert.Contains(t, execute(t, "advise", "--position", "start"), "Airdrop: receive_airdrop_every_round")
	assert.Contains(t, execute(t, "advise"), "nothing to advise")

	out := execute(t, "advise", "--position", "Connaught_Place", "--tokens", "token_blue=1")
	assert.Contains(t, out, "Purchase Analysis:\nConnaught_Place Analysis:\nCAN PURCHASE")
}

func TestAdviseCommandCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "advice.db")
	t.Setenv("MULTIPOLY_CACHE_DB", dbPath)

	first := execute(t, "advise", "--cache", "--position", "Red_Fort", "--tokens", "token_red=1")
	second := execute(t, "advise", "--cache", "--tokens", "token_red=1", "--position", "Red_Fort")
	assert.Equal(t, first, second)
	assert.Contains(t, first, "Strong buy")

	cache, err := store.OpenAdviceCache(dbPath, time.Hour)
	require.NoError(t, err)
	defer cache.Close()
	n, err := cache.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAddCommand(t *testing.T) {
	assert.Equal(t, "Added to mangle: riskLevel(Red_Fort, very_low)\n", execute(t, "add", "riskLevel", "Red_Fort", "very_low"))
	assert.Equal(t, "Added to scan: riskLevel(Red_Fort, very_low)\n", execute(t, "-b", "scan", "add", "riskLevel", "Red_Fort", "very_low"))
}

func TestLoadCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.kb")
	require.NoError(t, os.WriteFile(path, []byte("(hasToken Home token_red)\nbroken line\n(yields token_red high)\n"), 0644))

	out := execute(t, "load", path, path)
	assert.Contains(t, out, "Loaded 2 triples from "+path)
	assert.Contains(t, out, path+": already loaded")
}

func TestProgramDirFlag(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "home.kb"), []byte("(hasToken Home token_green)\n"), 0644))

	assert.Equal(t, "$t=token_green\n", execute(t, "--program-dir", dir, "query", "(hasToken Home $t)"))
}

func TestFingerprintCommand(t *testing.T) {
	a := execute(t, "fingerprint", `{"b":2,"a":1}`)
	b := execute(t, "fingerprint", `{"a":1, "b":2}`)
	assert.Equal(t, a, b)
	assert.Len(t, strings.TrimSpace(a), 64)

	fromStdin, err := run(t, `{"a":1,"b":2}`, "fingerprint", "-")
	require.NoError(t, err)
	assert.Equal(t, a, fromStdin)

	_, err = run(t, "", "fingerprint", "{not json")
	assert.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	out := execute(t, "--backend", "scan", "stats")
	assert.Contains(t, out, "scan")
	assert.Contains(t, out, "124")
	assert.Contains(t, out, "hasToken")
	assert.Contains(t, out, "investmentValue")
}

func TestStatsCommandMetrics(t *testing.T) {
	out := execute(t, "--backend", "scan", "stats", "--metrics")
	assert.Contains(t, out, "Metrics")
	assert.Contains(t, out, "kb_programs_loaded_total{source=seed}")
	assert.Contains(t, out, "kb_adds_total{backend=scan,outcome=ok}")

	assert.NotContains(t, execute(t, "--backend", "scan", "stats"), "Metrics")
}

func TestOffBackendDegrades(t *testing.T) {
	assert.Equal(t, "No matches\n", execute(t, "--backend", "off", "query", "(hasToken Red_Fort $t)"))
	assert.Contains(t, execute(t, "--backend", "off", "purchase", "Red_Fort"), "Unknown property: Red_Fort")
	assert.Contains(t, execute(t, "--backend", "off", "advise", "--position", "Red_Fort"), "nothing to advise")
}

func TestInvalidBackend(t *testing.T) {
	_, err := run(t, "", "--backend", "hyperon", "stats")
	assert.Error(t, err)
}

func TestWatchRequiresProgramDir(t *testing.T) {
	_, err := run(t, "", "watch")
	assert.Error(t, err)

	_, err = run(t, "", "--watch", "stats")
	assert.Error(t, err)
}

func TestShutdownAfterFailedCommand(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	a := &app{}
	_, err := runApp(t, a, "", "--watch", "--program-dir", dir, "load", filepath.Join(dir, "missing.kb"))
	require.Error(t, err)

	assert.Nil(t, a.watcher)
	assert.Nil(t, a.kernel)
}

func TestShutdownAfterFailedBoot(t *testing.T) {
	a := &app{}
	_, err := runApp(t, a, "", "--watch", "stats")
	require.Error(t, err)
	assert.Nil(t, a.kernel)
}

func TestPrettyRendering(t *testing.T) {
	out := execute(t, "--pretty", "recommend")
	assert.Contains(t, out, "Strategic Analysis")
	assert.Contains(t, out, "Focus on Heritage sites")
}

func TestReportMarkdown(t *testing.T) {
	got := reportMarkdown("Strategic Analysis:\n\nPhase Strategy (early_game): x\n\nPurchase Analysis:\nRed_Fort Analysis:\nRisk Level: low")
	assert.Equal(t, "### Strategic Analysis\n\n\n"+
		"Phase Strategy (early_game): x  \n\n"+
		"### Purchase Analysis\n\n"+
		"Red_Fort Analysis:  \nRisk Level: low  \n", got)
}
