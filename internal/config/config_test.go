package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

func TestLoadMissingFileYieldsEmptyConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Empty(t, cfg.Sources)
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.toml")
	cfg := &SourcesConfig{Sources: []SourceDefinition{
		{
			Name:  "laptop",
			Type:  "ssh",
			Host:  "user@laptop.local",
			Paths: []string{"~/.claude/projects"},
			PathMappings: []PathMapping{
				{From: "/home/user", To: "/Users/me"},
			},
		},
	}}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Sources, 1)
	require.Equal(t, "laptop", loaded.Sources[0].Name)
	require.True(t, loaded.Sources[0].IsRemote())
	require.Len(t, loaded.Sources[0].PathMappings, 1)
}

func TestLoadRejectsInvalidSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[sources]]
name = "remote"
type = "ssh"
`), 0o644))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrValidation)
}

func TestValidateNames(t *testing.T) {
	tests := []struct {
		name    string
		src     SourceDefinition
		wantErr bool
	}{
		{"empty", SourceDefinition{}, true},
		{"separator", SourceDefinition{Name: "a/b"}, true},
		{"dotdot", SourceDefinition{Name: ".."}, true},
		{"ok local", SourceDefinition{Name: "laptop"}, false},
		{"ssh no host", SourceDefinition{Name: "r", Type: "ssh"}, true},
		{"ssh with host", SourceDefinition{Name: "r", Type: "ssh", Host: "u@h"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRewritePathLongestPrefixWins(t *testing.T) {
	src := SourceDefinition{
		Name: "ws",
		PathMappings: []PathMapping{
			{From: "/home", To: "/Users"},
			{From: "/home/user/projects", To: "/Volumes/Work"},
		},
	}
	got := src.RewritePathForAgent("/home/user/projects/api", "")
	require.Equal(t, "/Volumes/Work/api", got)

	got = src.RewritePathForAgent("/home/other", "")
	require.Equal(t, "/Users/other", got)

	got = src.RewritePathForAgent("/opt/elsewhere", "")
	require.Equal(t, "/opt/elsewhere", got)
}

func TestPathMappingAgentRestriction(t *testing.T) {
	all := PathMapping{From: "/a", To: "/b"}
	require.True(t, all.AppliesToAgent("claude_code"))

	restricted := PathMapping{From: "/a", To: "/b", Agents: []string{"codex"}}
	require.True(t, restricted.AppliesToAgent("codex"))
	require.False(t, restricted.AppliesToAgent("claude_code"))
	require.True(t, restricted.AppliesToAgent(""), "no agent context matches any restriction")

	// An explicitly empty list applies to no agent at all.
	none := PathMapping{From: "/a", To: "/b", Agents: []string{}}
	require.False(t, none.AppliesToAgent("codex"))
}

func TestProvenanceResolver(t *testing.T) {
	cfg := &SourcesConfig{Sources: []SourceDefinition{
		{Name: "laptop", Type: "ssh", Host: "u@laptop"},
	}}
	resolve := cfg.ProvenanceResolver("/data/staging")

	prov := resolve("/data/staging/laptop/projects/x.jsonl")
	require.Equal(t, types.SourceRemote, prov.Kind)
	require.Equal(t, "laptop", prov.Source)
	require.Equal(t, "u@laptop", prov.Host)

	prov = resolve("/home/u/.claude/projects/x.jsonl")
	require.Equal(t, types.SourceLocal, prov.Kind)
}
