package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraiseql/specql-sub006/internal/cli/config"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name        string
		setupDir    func(t *testing.T, dir string)
		args        []string
		wantErr     bool
		wantFiles   []string
		wantDomains int
	}{
		{
			name: "init empty directory",
			wantFiles: []string{
				"specql.yaml",
				".gitignore",
				"registry/domain_registry.yaml",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "specql.yaml"), []byte("existing"), 0o600)
			},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "specql.yaml"), []byte("existing"), 0o600)
			},
			args:      []string{"--force"},
			wantFiles: []string{"specql.yaml", "registry/domain_registry.yaml"},
		},
		{
			name: "force replaces a malformed registry",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "registry"), 0o755))
				_ = os.WriteFile(filepath.Join(dir, "registry", "domain_registry.yaml"), []byte("domains: [oops"), 0o600)
			},
			args:      []string{"--force"},
			wantFiles: []string{"registry/domain_registry.yaml"},
		},
		{
			name:        "init with example",
			args:        []string{"--example"},
			wantFiles:   []string{"specql.yaml", "entities.yaml", "registry/domain_registry.yaml"},
			wantDomains: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config.ResetConfig()
			t.Cleanup(config.ResetConfig)

			tmpDir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			_, err := execute(t, NewInitCommand(), append([]string{tmpDir}, tt.args...)...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				assert.FileExists(t, filepath.Join(tmpDir, filepath.FromSlash(f)))
			}
			reg := loadRegistry(t, tmpDir)
			assert.Len(t, reg.Domains(), tt.wantDomains)
		})
	}
}

func TestInitKeepsExistingRegistry(t *testing.T) {
	dir := setupProject(t, "")
	before := loadRegistry(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "specql.yaml")))

	out, err := execute(t, NewInitCommand(), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "kept existing registry")

	after := loadRegistry(t, dir)
	assert.Equal(t, before.Revision, after.Revision)
	_, ok := after.GetEntity("Company")
	assert.True(t, ok, "registered entities should survive init")
}

func TestInitWritesConfiguredEncoding(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	dir := t.TempDir()
	cmd := NewInitCommand()
	cmd.Flags().String("encoding", "", "")
	require.NoError(t, cmd.Flags().Set("encoding", "hex"))
	_, err := config.LoadConfig("", "", cmd.Flags())
	require.NoError(t, err)

	_, err = execute(t, cmd, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "specql.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "encoding: hex")
	assert.Equal(t, "hex", loadRegistry(t, dir).Encoding)
}
