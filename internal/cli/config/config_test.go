package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "specql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "verbose: false\n")
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, "", nil)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, DefaultRegistryPath), cfg.RegistryPath)
	assert.Equal(t, filepath.Join(root, DefaultOutputDir), cfg.OutputDir)
	assert.Equal(t, "decimal", cfg.Encoding)
	assert.Equal(t, "yaml", cfg.Store.Backend)
	assert.Equal(t, DefaultLockTimeout, cfg.Store.LockTimeout)
	assert.Equal(t, DefaultServerAddr, cfg.GetServerConfig().Addr)
	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FileValues(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, `registry_path: reg.yaml
output_dir: /abs/out
encoding: hex
workers: 4
store:
  backend: sqlite
  dsn: state/registry.db
  lock_timeout: 2s
server:
  addr: ":9000"
`)
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, "", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "reg.yaml"), cfg.RegistryPath)
	assert.Equal(t, "/abs/out", cfg.OutputDir)
	assert.Equal(t, "hex", cfg.Encoding)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, filepath.Join(root, "state/registry.db"), cfg.Store.DSN)
	assert.Equal(t, 2*time.Second, cfg.Store.LockTimeout)
	assert.Equal(t, ":9000", cfg.GetServerConfig().Addr)

	sc := cfg.StateConfig()
	assert.Equal(t, "sqlite", sc.Backend)
	assert.Equal(t, cfg.RegistryPath, sc.RegistryPath)
}

func TestLoadConfig_Environments(t *testing.T) {
	content := `store:
  backend: yaml
environments:
  ci:
    registry_path: ci/registry.yaml
    store:
      backend: postgres
      dsn: postgres://specql:${SPECQL_TEST_PASSWORD}@db/specql
`
	t.Setenv("SPECQL_TEST_PASSWORD", "secret")

	t.Run("selected", func(t *testing.T) {
		ResetConfig()
		cfgPath := writeConfig(t, content)

		cfg, err := LoadConfig(cfgPath, "ci", nil)
		require.NoError(t, err)

		assert.Equal(t, "ci", cfg.Environment)
		assert.Equal(t, "postgres", cfg.Store.Backend)
		assert.Equal(t, "postgres://specql:secret@db/specql", cfg.Store.DSN)
		assert.Equal(t, filepath.Join(filepath.Dir(cfgPath), "ci/registry.yaml"), cfg.RegistryPath)
	})

	t.Run("nonexistent falls back to base", func(t *testing.T) {
		ResetConfig()
		cfgPath := writeConfig(t, content)

		cfg, err := LoadConfig(cfgPath, "staging", nil)
		require.NoError(t, err)
		assert.Equal(t, "yaml", cfg.Store.Backend)
	})
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{"unknown encoding", "encoding: base36\n", "unknown encoding"},
		{"unknown backend", "store:\n  backend: redis\n", "unknown store backend"},
		{"postgres without dsn", "store:\n  backend: postgres\n", "store.dsn is required"},
		{"negative workers", "workers: -1\n", "workers must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.content), "", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	ResetConfig()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "encoding: decimal\nstore:\n  backend: yaml\n")

	t.Setenv("SPECQL_ENCODING", "hex")
	t.Setenv("SPECQL_STORE_BACKEND", "sqlite")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("encoding", "", "code encoding")
	flags.String("store", "", "store backend")
	flags.String("registry", "", "registry path")
	require.NoError(t, flags.Set("store", "yaml"))
	require.NoError(t, flags.Set("registry", "from_flag.yaml"))

	cfg, err := LoadConfig(cfgPath, "", flags)
	require.NoError(t, err)

	assert.Equal(t, "hex", cfg.Encoding, "env var should override config file")
	assert.Equal(t, "yaml", cfg.Store.Backend, "flag should override env var")

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "from_flag.yaml"), cfg.RegistryPath, "flag paths resolve against CWD")
}

func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "output_dir: from_file\n")
	t.Setenv("SPECQL_OUTPUT_DIR", "/from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output-dir", "", "output directory")

	cfg, err := LoadConfig(cfgPath, "", flags)
	require.NoError(t, err)
	assert.Equal(t, "/from_env", cfg.OutputDir)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SPECQL_REGISTRY_PATH":      "registry_path",
		"SPECQL_STORE_BACKEND":      "store.backend",
		"SPECQL_STORE_LOCK_TIMEOUT": "store.lock_timeout",
		"SPECQL_SERVER_ADDR":        "server.addr",
		"SPECQL_OUTPUT_DIR":         "output_dir",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SPECQL_TEST_ONE", "one")

	assert.Equal(t, "a-one-b", expandEnvVars("a-${SPECQL_TEST_ONE}-b"))
	assert.Equal(t, "${SPECQL_TEST_UNSET}", expandEnvVars("${SPECQL_TEST_UNSET}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestMergeStoreConfig(t *testing.T) {
	base := &StoreConfig{Backend: "sqlite", DSN: "local.db", LockTimeout: time.Second}

	assert.Same(t, base, MergeStoreConfig(base, nil))

	override := &StoreConfig{LockTimeout: 3 * time.Second}
	assert.Same(t, override, MergeStoreConfig(nil, override))

	merged := MergeStoreConfig(base, override)
	assert.Equal(t, &StoreConfig{Backend: "sqlite", DSN: "local.db", LockTimeout: 3 * time.Second}, merged)

	merged = MergeStoreConfig(base, &StoreConfig{Backend: "yaml"})
	assert.Equal(t, "yaml", merged.Backend)
	assert.Empty(t, merged.DSN, "a new backend does not inherit the connection string")
	assert.Equal(t, "local.db", base.DSN, "base is not modified")
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := &Config{RegistryPath: "registry.yaml"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty registry_path", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry_path is required")
	})
}
