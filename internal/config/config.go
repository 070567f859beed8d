// Package config loads the sources configuration: where session data comes
// from, and how remote paths map onto local ones.
//
// Configuration lives in TOML at ~/.config/agentsearch/sources.toml:
//
//	[[sources]]
//	name = "laptop"
//	type = "ssh"
//	host = "user@laptop.local"
//	paths = ["~/.claude/projects"]
//
//	[[sources.path_mappings]]
//	from = "/home/user/projects"
//	to = "/Users/me/projects"
//	agents = ["claude_code"]
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// ErrValidation wraps all configuration validation failures.
var ErrValidation = errors.New("invalid source configuration")

// SourcesConfig is the root configuration document.
type SourcesConfig struct {
	Sources []SourceDefinition `toml:"sources"`
}

// SourceDefinition describes one place session data comes from.
type SourceDefinition struct {
	// Name is the source identifier used in provenance. Must not contain
	// path separators; it becomes a staging directory name.
	Name string `toml:"name"`

	// Type is "local" or "ssh". Empty means local.
	Type string `toml:"type"`

	// Host is the SSH target for remote sources.
	Host string `toml:"host"`

	// Paths are the data roots to scan (remote paths for SSH sources).
	Paths []string `toml:"paths"`

	// PathMappings rewrite remote workspace paths to local equivalents.
	PathMappings []PathMapping `toml:"path_mappings"`
}

// PathMapping rewrites one path prefix.
type PathMapping struct {
	From string `toml:"from"`
	To   string `toml:"to"`

	// Agents restricts the mapping. Nil applies to every agent; an
	// explicitly empty list applies to none.
	Agents []string `toml:"agents"`
}

// AppliesToAgent reports whether this mapping is in force for the agent.
// An empty agent matches any restriction.
func (m *PathMapping) AppliesToAgent(agent string) bool {
	if m.Agents == nil || agent == "" {
		return true
	}
	for _, a := range m.Agents {
		if a == agent {
			return true
		}
	}
	return false
}

// Apply rewrites the path when it carries the mapping's prefix.
func (m *PathMapping) Apply(path string) (string, bool) {
	if !strings.HasPrefix(path, m.From) {
		return "", false
	}
	return m.To + path[len(m.From):], true
}

// IsRemote reports whether the source needs SSH connectivity.
func (s *SourceDefinition) IsRemote() bool {
	return s.Type == "ssh"
}

// Validate rejects definitions that would break staging or provenance.
func (s *SourceDefinition) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: source name cannot be empty", ErrValidation)
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("%w: source name %q cannot contain path separators", ErrValidation, s.Name)
	}
	if s.Name == "." || s.Name == ".." {
		return fmt.Errorf("%w: source name cannot be %q", ErrValidation, s.Name)
	}
	if s.IsRemote() && s.Host == "" {
		return fmt.Errorf("%w: ssh source %q requires a host", ErrValidation, s.Name)
	}
	return nil
}

// RewritePathForAgent applies the longest matching prefix mapping in force
// for the agent, or returns the path unchanged.
func (s *SourceDefinition) RewritePathForAgent(path, agent string) string {
	mappings := make([]PathMapping, 0, len(s.PathMappings))
	for _, m := range s.PathMappings {
		if m.AppliesToAgent(agent) {
			mappings = append(mappings, m)
		}
	}
	sort.SliceStable(mappings, func(i, j int) bool {
		return len(mappings[i].From) > len(mappings[j].From)
	})
	for _, m := range mappings {
		if rewritten, ok := m.Apply(path); ok {
			return rewritten
		}
	}
	return path
}

// Provenance describes results originating from this source.
func (s *SourceDefinition) Provenance() types.Provenance {
	kind := types.SourceLocal
	if s.IsRemote() {
		kind = types.SourceRemote
	}
	return types.Provenance{Source: s.Name, Kind: kind, Host: s.Host}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	return filepath.Join(dir, "agentsearch", "sources.toml"), nil
}

// Load reads and validates a sources config. A missing file yields an empty
// config, not an error: a fresh install has only implicit local sources.
func Load(path string) (*SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &SourcesConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg SourcesConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for i := range cfg.Sources {
		if err := cfg.Sources[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Save writes the config, creating parent directories as needed.
func Save(path string, cfg *SourcesConfig) error {
	for i := range cfg.Sources {
		if err := cfg.Sources[i].Validate(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ProvenanceResolver builds the lookup the query engine uses to classify
// source paths. Paths under a remote source's staging prefix resolve to that
// source; everything else is local.
func (c *SourcesConfig) ProvenanceResolver(stagingRoot string) func(sourcePath string) types.Provenance {
	type staged struct {
		prefix string
		prov   types.Provenance
	}
	var remotes []staged
	for i := range c.Sources {
		src := &c.Sources[i]
		if !src.IsRemote() {
			continue
		}
		remotes = append(remotes, staged{
			prefix: filepath.Join(stagingRoot, src.Name) + string(filepath.Separator),
			prov:   src.Provenance(),
		})
	}
	return func(sourcePath string) types.Provenance {
		for _, r := range remotes {
			if strings.HasPrefix(sourcePath, r.prefix) {
				return r.prov
			}
		}
		return types.Provenance{Source: "local", Kind: types.SourceLocal}
	}
}
