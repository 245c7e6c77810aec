package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// envPrefix is the prefix of configuration environment variables.
const envPrefix = "SPECQL_"

var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// configNames lists the config file names searched in a directory.
var configNames = []string{"specql.yaml", "specql.yml"}

// configExistsIn checks if a specql config file exists in the directory.
func configExistsIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a specql config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Directory of an explicit --config file
//  2. Explicit --project-dir flag
//  3. Search upward from CWD for specql.yaml
//  4. Current working directory
func inferProjectRoot(cfgFile string, flags *pflag.FlagSet) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
		return filepath.Dir(cfgFile)
	}

	if flags != nil && flags.Changed("project-dir") {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" {
			if abs, err := filepath.Abs(projectDir); err == nil {
				return abs
			}
			return filepath.Clean(projectDir)
		}
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// envKey maps SPECQL_STORE_BACKEND to store.backend and SPECQL_OUTPUT_DIR to
// output_dir.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range []string{"store_", "server_"} {
		if rest, ok := strings.CutPrefix(key, section); ok {
			return strings.TrimSuffix(section, "_") + "." + rest
		}
	}
	return key
}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"registry": "registry_path",
	"store":    "store.backend",
	"dsn":      "store.dsn",
	"addr":     "server.addr",
}

// LoadConfig loads configuration from defaults, file, environment variables
// and flags, in increasing order of precedence. env selects an entry of the
// environments section and overrides the environment key.
func LoadConfig(cfgFile, envOverride string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	projectRoot := inferProjectRoot(cfgFile, flags)

	// Flag paths are relative to CWD, not to the project root.
	var flagRegistry, flagOutputDir string
	if flags != nil {
		if flags.Changed("registry") {
			if v, _ := flags.GetString("registry"); v != "" {
				flagRegistry, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("output-dir") {
			if v, _ := flags.GetString("output-dir"); v != "" {
				flagOutputDir, _ = filepath.Abs(v)
			}
		}
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"registry_path":      DefaultRegistryPath,
		"output_dir":         DefaultOutputDir,
		"encoding":           DefaultEncoding,
		"workers":            0,
		"environment":        DefaultEnv,
		"verbose":            false,
		"output":             DefaultOutput,
		"store.backend":      "yaml",
		"store.lock_timeout": DefaultLockTimeout.String(),
		"server.addr":        DefaultServerAddr,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = configExistsIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Explicitly set flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	envName := cfg.Environment
	if envOverride != "" {
		envName = envOverride
		cfg.Environment = envOverride
	}
	if envCfg, ok := cfg.Environments[envName]; ok {
		if envCfg.RegistryPath != "" && flagRegistry == "" {
			cfg.RegistryPath = envCfg.RegistryPath
		}
		if envCfg.OutputDir != "" && flagOutputDir == "" {
			cfg.OutputDir = envCfg.OutputDir
		}
		if envCfg.Store != nil {
			cfg.Store = MergeStoreConfig(cfg.Store, envCfg.Store)
		}
	}
	if cfg.Store == nil {
		cfg.Store = &StoreConfig{Backend: "yaml", LockTimeout: DefaultLockTimeout}
	}
	cfg.Store.DSN = expandEnvVars(cfg.Store.DSN)

	if flagRegistry != "" {
		cfg.RegistryPath = flagRegistry
	} else {
		cfg.RegistryPath = resolvePathRelativeTo(cfg.RegistryPath, projectRoot)
	}
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	} else {
		cfg.OutputDir = resolvePathRelativeTo(cfg.OutputDir, projectRoot)
	}
	if cfg.Store.Backend == "sqlite" && cfg.Store.DSN != "" && cfg.Store.DSN != ":memory:" {
		cfg.Store.DSN = resolvePathRelativeTo(cfg.Store.DSN, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by the last LoadConfig.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// MergeStoreConfig merges two store configs, with override taking precedence.
func MergeStoreConfig(base, override *StoreConfig) *StoreConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}
	merged := *base
	if override.Backend != "" {
		merged.Backend = override.Backend
		// A different backend does not inherit the base connection string.
		if override.Backend != base.Backend {
			merged.DSN = ""
		}
	}
	if override.DSN != "" {
		merged.DSN = override.DSN
	}
	if override.LockTimeout != 0 {
		merged.LockTimeout = override.LockTimeout
	}
	return &merged
}
