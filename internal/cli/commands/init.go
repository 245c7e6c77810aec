package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fraiseql/specql-sub006/internal/cli/config"
	"github.com/fraiseql/specql-sub006/internal/cli/output"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new specql project",
		Long: `Initialize a new specql project with a configuration file and a registry.

This creates:
  - specql.yaml configuration file
  - registry/domain_registry.yaml, an empty domain registry
  - .gitignore for generated output and store files

Use --example to seed the registry with sample crm and catalog domains and
to add an entities.yaml manifest that 'specql generate' can run against.`,
		Example: `  # Initialize in current directory
  specql init

  # Initialize with sample domains and a manifest
  specql init --example

  # Initialize a hexadecimal registry in a new directory
  specql init my-project --encoding hex`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			enc, ok := numbering.EncodingByName(cfg.Encoding)
			if !ok {
				return fmt.Errorf("unknown encoding %q", cfg.Encoding)
			}
			return runInit(cmd.Context(), r, dir, enc, force, example)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration and registry")
	cmd.Flags().BoolVar(&example, "example", false, "Seed sample domains and an example manifest")

	return cmd
}

func runInit(ctx context.Context, r *output.Renderer, dir string, enc numbering.Encoding, force, example bool) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.DefaultConfigFile)
	}

	data := templateData{Encoding: enc.Name()}
	files, err := copyTemplate("project", dir, data, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	if example {
		more, err := copyTemplate("example", dir, data, force)
		if err != nil {
			return fmt.Errorf("failed to write example files: %w", err)
		}
		files = append(files, more...)
	}

	registryPath := filepath.Join(dir, config.DefaultRegistryPath)
	wrote, err := seedRegistryFile(ctx, registryPath, enc, example, force)
	if err != nil {
		return err
	}
	if wrote {
		files = append(files, config.DefaultRegistryPath)
	}

	for _, f := range files {
		r.StatusLine(f, "success", "")
	}
	if !wrote {
		r.StatusLine(config.DefaultRegistryPath, "warning", "kept existing registry")
	}

	r.Println("")
	r.Success("specql project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if example {
		r.Println("  1. Run 'specql registry list-domains' to see the sample taxonomy")
		r.Println("  2. Run 'specql generate entities.yaml --dry-run' to preview paths")
		r.Println("  3. Run 'specql generate entities.yaml' to write the tree")
	} else {
		r.Println("  1. Add a domain with 'specql registry add-domain <code> <name>'")
		r.Println("  2. Add subdomains with 'specql registry add-subdomain <domain> <code> <name>'")
		r.Println("  3. Allocate codes with 'specql allocate entity <name> <domain> <subdomain>'")
	}
	return nil
}

// seedRegistryFile writes a fresh registry unless one exists and force is
// unset. It reports whether the file was written.
func seedRegistryFile(ctx context.Context, path string, enc numbering.Encoding, example, force bool) (bool, error) {
	store := state.NewFileStore(path)

	existing, err := store.Load(ctx)
	switch {
	case err == nil && !force:
		return false, nil
	case err != nil && !errors.Is(err, state.ErrNotFound):
		if !force {
			return false, err
		}
		if err := os.Remove(path); err != nil {
			return false, fmt.Errorf("failed to replace registry: %w", err)
		}
		existing = nil
	}

	reg, err := seedRegistry(enc, example)
	if err != nil {
		return false, err
	}
	if existing != nil {
		reg.Revision = existing.Revision
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return false, fmt.Errorf("failed to create registry directory: %w", err)
	}
	if err := store.Save(ctx, reg); err != nil {
		return false, fmt.Errorf("failed to write registry: %w", err)
	}
	return true, nil
}

func seedRegistry(enc numbering.Encoding, example bool) (*registry.Registry, error) {
	reg := registry.New()
	if enc.Name() != numbering.Decimal.Name() {
		reg.Encoding = enc.Name()
	}
	if !example {
		return reg, nil
	}

	steps := []func() error{
		func() error {
			_, err := reg.AddDomain("2", "crm", "Customer relationship management", true, "management")
			return err
		},
		func() error {
			_, err := reg.AddSubdomain("crm", "03", "customer", "Customer contact entities")
			return err
		},
		func() error {
			_, err := reg.AddDomain("3", "catalog", "Products and manufacturers", false)
			return err
		},
		func() error {
			_, err := reg.AddSubdomain("catalog", "01", "manufacturer", "Manufacturers and brands")
			return err
		},
		func() error {
			_, err := reg.AddSubdomain("catalog", "02", "product", "Product definitions")
			return err
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("failed to seed example registry: %w", err)
		}
	}
	return reg, nil
}
