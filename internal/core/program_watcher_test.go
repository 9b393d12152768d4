package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"multipoly/internal/kb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestWatcher(t *testing.T) (*ProgramWatcher, *Kernel, string) {
	t.Helper()
	dir := t.TempDir()
	k := NewKernelWithStore(nil, kb.NewScanStore())
	pw, err := NewProgramWatcher(dir, k)
	require.NoError(t, err)
	pw.debounceDur = 20 * time.Millisecond
	return pw, k, dir
}

func TestProgramWatcherLoadsNewPrograms(t *testing.T) {
	defer goleak.VerifyNone(t)

	pw, k, dir := newTestWatcher(t)
	require.NoError(t, pw.Start(context.Background()))
	defer pw.Stop()
	assert.True(t, pw.IsWatching())

	writeProgram(t, dir, "extra.kb", "(hasToken Home token_red)\n(yields token_red high)\n")
	writeProgram(t, dir, "ignored.txt", "(hasToken Other token_red)\n")

	require.Eventually(t, func() bool {
		return len(k.Store().Query(kb.NewPattern("Home", "hasToken", "$t"))) == 1
	}, 5*time.Second, 20*time.Millisecond)

	stats := pw.GetStats()
	assert.Equal(t, 1, stats.ProgramsLoaded)
	assert.Equal(t, 2, stats.TriplesLoaded)
	assert.Empty(t, k.Store().Query(kb.NewPattern("Other", "hasToken", "$t")))
}

func TestProgramWatcherIgnoresEditsToLoadedPrograms(t *testing.T) {
	defer goleak.VerifyNone(t)

	pw, k, dir := newTestWatcher(t)
	path := writeProgram(t, dir, "extra.kb", "(hasToken Home token_red)\n")
	_, err := k.LoadProgramDir(dir)
	require.NoError(t, err)

	require.NoError(t, pw.Start(context.Background()))
	defer pw.Stop()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("(riskLevel Home low)\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return pw.GetStats().Ignored >= 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, k.Store().Len())
}

func TestProgramWatcherStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	pw, _, _ := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pw.Start(ctx))

	cancel()
	pw.Stop()
	pw.Stop()
	assert.False(t, pw.IsWatching())
}

func TestProgramWatcherMissingDirIsCreated(t *testing.T) {
	defer goleak.VerifyNone(t)

	k := NewKernelWithStore(nil, kb.NewScanStore())
	dir := filepath.Join(t.TempDir(), "programs")
	pw, err := NewProgramWatcher(dir, k)
	require.NoError(t, err)

	require.NoError(t, pw.Start(context.Background()))
	pw.Stop()

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}
