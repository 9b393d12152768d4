package config

// Backend names accepted by KBConfig.Backend.
const (
	BackendAuto   = "auto"   // mangle, falling back to scan
	BackendMangle = "mangle" // google/mangle fact store, required
	BackendScan   = "scan"   // linear scan
	BackendOff    = "off"    // no backend; every query is empty
)

// DefaultProgramPattern selects program files in KBConfig.ProgramDir.
const DefaultProgramPattern = "*.kb"

// ValidBackends lists all supported knowledge backends.
var ValidBackends = []string{BackendAuto, BackendMangle, BackendScan, BackendOff}

// KBConfig configures the knowledge base.
type KBConfig struct {
	Backend    string `yaml:"backend"`     // auto, mangle, scan, off
	SeedPath   string `yaml:"seed_path"`   // program file replacing the embedded seed
	FactLimit  int    `yaml:"fact_limit"`  // mangle only; 0 = unlimited
	ProgramDir string `yaml:"program_dir"` // directory of extra programs

	// Glob matched against file names in ProgramDir (default "*.kb").
	ProgramPattern string `yaml:"program_pattern"`
}

// ProgramPatternOrDefault returns ProgramPattern, or the default when unset.
func (c KBConfig) ProgramPatternOrDefault() string {
	if c.ProgramPattern == "" {
		return DefaultProgramPattern
	}
	return c.ProgramPattern
}

// CacheConfig configures the optional advice cache.
type CacheConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
	TTL          string `yaml:"ttl"`
}

func isValidBackend(name string) bool {
	for _, b := range ValidBackends {
		if b == name {
			return true
		}
	}
	return false
}
