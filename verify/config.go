package verify

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/hoare/internal/smt/smtlib"
)

// DefaultConfigFile is the configuration read when no path is given.
const DefaultConfigFile = ".hoare.yaml"

// Config is the content of a .hoare.yaml file.
type Config struct {
	Name   string       `yaml:"name"`
	Solver SolverConfig `yaml:"solver"`
	// Jobs bounds how many functions of a file are verified at once.
	Jobs  int         `yaml:"jobs"`
	Cache CacheConfig `yaml:"cache"`
}

// SolverConfig selects the solver backend.
type SolverConfig struct {
	Backend string        `yaml:"backend"`
	Path    string        `yaml:"path,omitempty"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	// Dir defaults to a hoare directory under the user cache directory.
	Dir      string        `yaml:"dir,omitempty"`
	MaxAge   time.Duration `yaml:"max_age"`
	Disabled bool          `yaml:"disabled,omitempty"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() Config {
	return Config{
		Name: "hoare",
		Solver: SolverConfig{
			Backend: smtlib.Name,
			Path:    smtlib.DefaultSolver,
			Timeout: 10 * time.Second,
		},
		Jobs:  1,
		Cache: CacheConfig{MaxAge: 24 * time.Hour},
	}
}

// LoadConfig reads the configuration at path over the defaults. An empty
// path yields the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&config); err != nil {
		return config, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Validate rejects settings no run can use.
func (c Config) Validate() error {
	if c.Solver.Timeout < 0 {
		return fmt.Errorf("solver.timeout must not be negative")
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative")
	}
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must not be negative")
	}
	return nil
}

// WriteConfig writes c as YAML to path.
func WriteConfig(path string, c Config) error {
	d, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}

// fingerprint identifies the settings a cached report depends on.
func (c Config) fingerprint() string {
	return fmt.Sprintf("%s|%s|%q|%s", c.Solver.Backend, c.Solver.Path, c.Solver.Args, c.Solver.Timeout)
}
