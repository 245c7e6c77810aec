package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/fraiseql/specql-sub006/internal/cli/config"
	clitestutil "github.com/fraiseql/specql-sub006/internal/cli/testutil"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
)

// setupProject writes the shared test registry and a specql.yaml into a
// temporary project and loads it as the current configuration. extra is
// appended to the config file.
func setupProject(t *testing.T, extra string) string {
	t.Helper()
	dir := clitestutil.SetupTestProject(t, "output: json\n"+extra)

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	_, err := config.LoadConfig(filepath.Join(dir, config.DefaultConfigFile), "", nil)
	require.NoError(t, err)
	return dir
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decode unmarshals JSON command output into v.
func decode(t *testing.T, out string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), "output: %s", out)
}

// loadRegistry reads the project's registry file.
func loadRegistry(t *testing.T, dir string) *registry.Registry {
	t.Helper()
	reg, err := state.NewFileStore(filepath.Join(dir, "registry", "domain_registry.yaml")).Load(t.Context())
	require.NoError(t, err)
	return reg
}
