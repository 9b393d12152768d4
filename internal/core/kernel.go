// Package core owns the process-wide knowledge base: backend selection, the
// Kernel handle that collaborators share, and the program directory watcher.
package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"multipoly/internal/config"
	"multipoly/internal/kb"
	"multipoly/internal/logging"
	"multipoly/internal/metrics"
	"multipoly/internal/seed"

	"github.com/gobwas/glob"
)

// Kernel is the handle to the single shared fact store. It is created once at
// startup and passed to every collaborator.
type Kernel struct {
	cfg      *config.Config
	store    kb.Store
	audit    *logging.AuditLogger
	programs glob.Glob

	mu    sync.Mutex
	files map[string]int // program files already loaded -> triples appended
}

// NewKernel selects the backend, loads the seed program, then loads every
// program in cfg.KB.ProgramDir.
func NewKernel(cfg *config.Config) (*Kernel, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	timer := logging.StartTimer(logging.CategoryBoot, "kernel start")
	defer timer.StopWithInfo()

	store, err := SelectBackend(cfg.KB)
	if err != nil {
		return nil, err
	}

	k := NewKernelWithStore(cfg, store)
	k.audit.BackendSelected(cfg.KB.Backend)
	logging.Boot("knowledge backend: %s (requested %s)", store.Name(), cfg.KB.Backend)

	if err := k.loadSeed(); err != nil {
		return nil, err
	}

	if cfg.KB.ProgramDir != "" {
		if _, err := k.LoadProgramDir(cfg.KB.ProgramDir); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// NewKernelWithStore wraps an existing store without loading anything.
func NewKernelWithStore(cfg *config.Config, store kb.Store) *Kernel {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	programs, err := glob.Compile(cfg.KB.ProgramPatternOrDefault())
	if err != nil {
		logging.KernelWarn("bad program pattern %q, using %s: %v", cfg.KB.ProgramPattern, config.DefaultProgramPattern, err)
		programs = glob.MustCompile(config.DefaultProgramPattern)
	}
	return &Kernel{
		cfg:      cfg,
		store:    instrument(store),
		audit:    logging.Audit(store.Name()),
		programs: programs,
		files:    make(map[string]int),
	}
}

// IsProgram reports whether a file name matches the program pattern.
func (k *Kernel) IsProgram(name string) bool {
	return k.programs.Match(filepath.Base(name))
}

func (k *Kernel) loadSeed() error {
	source, program := seed.Name, seed.Program
	if path := k.cfg.KB.SeedPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read seed program: %w", err)
		}
		source, program = path, string(data)
	}

	n := k.store.LoadProgram(program)
	metrics.RecordProgramLoad("seed")
	k.audit.ProgramLoaded(source, n)
	logging.Kernel("seed %s: %d triples", source, n)
	return nil
}

// Store returns the shared fact store.
func (k *Kernel) Store() kb.Store { return k.store }

// Backend names the active backend.
func (k *Kernel) Backend() string { return k.store.Name() }

// Config returns the configuration the kernel was built with.
func (k *Kernel) Config() *config.Config { return k.cfg }

// Audit returns the kernel's audit logger.
func (k *Kernel) Audit() *logging.AuditLogger { return k.audit }

// LoadFile loads a program file. Files already loaded are skipped and report
// loaded=false, since the store is append-only and a reload would duplicate.
func (k *Kernel) LoadFile(path string) (n int, loaded bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, seen := k.files[abs]; seen {
		logging.KernelDebug("program %s already loaded, skipping", abs)
		return 0, false, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read program: %w", err)
	}

	n = k.store.LoadProgram(string(data))
	metrics.RecordProgramLoad("file")
	k.files[abs] = n
	k.audit.ProgramLoaded(abs, n)
	logging.Kernel("loaded %s: %d triples", filepath.Base(abs), n)
	return n, true, nil
}

// LoadProgramDir loads every program file in dir in lexical order and
// returns the total number of triples appended.
func (k *Kernel) LoadProgramDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.KernelDebug("program dir %s does not exist", dir)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read program dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && k.IsProgram(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		n, _, err := k.LoadFile(filepath.Join(dir, name))
		if err != nil {
			logging.KernelWarn("skipping %s: %v", name, err)
			continue
		}
		total += n
	}
	return total, nil
}

// LoadedFiles returns the program files loaded so far, sorted.
func (k *Kernel) LoadedFiles() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, 0, len(k.files))
	for path := range k.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Close releases backend resources.
func (k *Kernel) Close() error {
	if c, ok := k.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
