package commands

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/fraiseql/specql-sub006/internal/cli/output"
	"github.com/fraiseql/specql-sub006/internal/fsutil"
	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/spf13/cobra"
)

// NewRegistryCommand creates the registry command group.
func NewRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "registry",
		Aliases: []string{"reg"},
		Short:   "Inspect and seed the domain registry",
		Long: `Inspect and seed the domain registry.

Domains and subdomains are only ever created here; allocation never
creates taxonomy nodes on its own.`,
	}

	cmd.AddCommand(
		newListDomainsCommand(),
		newListSubdomainsCommand(),
		newShowEntityCommand(),
		newAddDomainCommand(),
		newAddSubdomainCommand(),
		newValidateCommand(),
		newExportCommand(),
		newImportCommand(),
		newHistoryCommand(),
		newWatchCommand(),
	)
	return cmd
}

func newListDomainsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-domains",
		Short: "List all domains",
		Example: `  specql registry list-domains
  specql registry list-domains --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reg, err := cc.Load(cmd)
			if err != nil {
				return err
			}
			return renderDomains(cc.Renderer, reg)
		},
	}
}

func renderDomains(r *output.Renderer, reg *registry.Registry) error {
	domains := reg.Domains()

	if r.EffectiveMode() == output.ModeJSON {
		infos := make([]output.DomainInfo, 0, len(domains))
		for _, d := range domains {
			info := domainInfo(d)
			for _, s := range d.SortedSubdomains() {
				info.Subdomains = append(info.Subdomains, subdomainInfo(s))
			}
			infos = append(infos, info)
		}
		return r.JSON(infos)
	}

	r.Header(1, fmt.Sprintf("Domains (%d total)", len(domains)))
	rows := make([][]string, 0, len(domains))
	for _, d := range domains {
		rows = append(rows, []string{
			d.Code,
			d.Name,
			strings.Join(d.Aliases, ", "),
			strconv.FormatBool(d.MultiTenant),
			strconv.Itoa(len(d.Subdomains)),
		})
	}
	r.Table([]string{"Code", "Name", "Aliases", "Multi-tenant", "Subdomains"}, rows)
	return nil
}

func newListSubdomainsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-subdomains <domain>",
		Short: "List the subdomains of a domain",
		Long: `List the subdomains of a domain with their counters.

The domain may be given by code, name or alias.`,
		Example: `  specql registry list-subdomains crm
  specql registry list-subdomains 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reg, err := cc.Load(cmd)
			if err != nil {
				return err
			}
			d, ok := reg.GetDomain(args[0])
			if !ok {
				return registry.NewUnknownDomainError(args[0])
			}
			return renderSubdomains(cc.Renderer, d)
		},
	}
}

func renderSubdomains(r *output.Renderer, d *registry.Domain) error {
	subs := d.SortedSubdomains()

	if r.EffectiveMode() == output.ModeJSON {
		infos := make([]output.SubdomainInfo, 0, len(subs))
		for _, s := range subs {
			infos = append(infos, subdomainInfo(s))
		}
		return r.JSON(infos)
	}

	r.Header(1, fmt.Sprintf("Subdomains of %s (%s)", d.Name, d.Code))
	rows := make([][]string, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, []string{
			s.Code,
			s.Name,
			strconv.Itoa(s.NextEntitySequence),
			strconv.Itoa(len(s.Entities)),
			strconv.Itoa(s.NextReadEntity),
			strconv.Itoa(len(s.ReadEntities)),
		})
	}
	r.Table([]string{"Code", "Name", "Next Entity", "Entities", "Next Read", "Read Entities"}, rows)
	return nil
}

func newShowEntityCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show-entity <name>",
		Short: "Show an entity registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reg, err := cc.Load(cmd)
			if err != nil {
				return err
			}
			e, ok := reg.GetEntity(args[0])
			if !ok {
				return registry.NewUnknownEntityError(args[0])
			}

			info := output.EntityInfo{
				Name:       e.Name,
				TableCode:  e.TableCode,
				Domain:     e.Domain,
				Subdomain:  e.Subdomain,
				AssignedAt: e.AssignedAt,
				Artifacts:  e.Artifacts,
			}
			gen := pathgen.NewWriteSide(reg, pathgen.WithLogger(cc.Logger))
			if fp, err := gen.GeneratePath(e.TableCode, e.Name); err == nil {
				info.Path = fp.Path
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}

			r.Header(1, "Entity "+info.Name)
			r.KeyValue("Table code", info.TableCode)
			r.KeyValue("Domain", info.Domain)
			r.KeyValue("Subdomain", info.Subdomain)
			r.KeyValue("Assigned at", info.AssignedAt.Format("2006-01-02 15:04:05"))
			if info.Path != "" {
				r.KeyValue("Path", info.Path)
			}
			if len(info.Artifacts) > 0 {
				r.Println("")
				r.Header(2, "Artifacts")
				keys := make([]string, 0, len(info.Artifacts))
				for k := range info.Artifacts {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				rows := make([][]string, 0, len(keys))
				for _, k := range keys {
					rows = append(rows, []string{k, info.Artifacts[k]})
				}
				r.Table([]string{"Artifact", "Code"}, rows)
			}
			return nil
		},
	}
}

func newAddDomainCommand() *cobra.Command {
	var description string
	var multiTenant bool
	var aliases []string

	cmd := &cobra.Command{
		Use:   "add-domain <code> <name>",
		Short: "Add a domain to the registry",
		Example: `  specql registry add-domain 2 crm --description "Customer relationship management"
  specql registry add-domain 4 billing --alias finance --multi-tenant`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var added *registry.Domain
			err = cc.Store.Update(cmd.Context(), func(reg *registry.Registry) error {
				d, err := reg.AddDomain(args[0], args[1], description, multiTenant, aliases...)
				added = d
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to add domain: %w", err)
			}
			cc.Renderer.Success(fmt.Sprintf("Added domain %s (%s)", added.Code, added.Name))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Domain description")
	cmd.Flags().BoolVar(&multiTenant, "multi-tenant", false, "Mark the domain as multi-tenant")
	cmd.Flags().StringSliceVar(&aliases, "alias", nil, "Alternative names (repeatable)")
	return cmd
}

func newAddSubdomainCommand() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:     "add-subdomain <domain> <code> <name>",
		Short:   "Add a subdomain to a domain",
		Example: `  specql registry add-subdomain crm 03 customer --description "Customer contact entities"`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var added *registry.Subdomain
			err = cc.Store.Update(cmd.Context(), func(reg *registry.Registry) error {
				s, err := reg.AddSubdomain(args[0], args[1], args[2], description)
				added = s
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to add subdomain: %w", err)
			}
			cc.Renderer.Success(fmt.Sprintf("Added subdomain %s (%s) to %s", added.Code, added.Name, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Subdomain description")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the registry for structural problems",
		Long: `Check the registry for structural problems and counter inconsistencies.

Exits with an error when any issue has error severity; warnings are
reported but do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reg, err := cc.Load(cmd)
			if err != nil {
				return err
			}
			return renderValidation(cc.Renderer, reg.Validate())
		},
	}
}

var errRegistryInvalid = errors.New("registry has validation errors")

func renderValidation(r *output.Renderer, issues []registry.Issue) error {
	valid := !registry.HasErrors(issues)

	if r.EffectiveMode() == output.ModeJSON {
		out := output.ValidateOutput{Valid: valid, Issues: make([]output.IssueInfo, 0, len(issues))}
		for _, i := range issues {
			out.Issues = append(out.Issues, output.IssueInfo{
				Severity: string(i.Severity),
				Path:     i.Path,
				Message:  i.Message,
			})
		}
		if err := r.JSON(out); err != nil {
			return err
		}
	} else {
		for _, i := range issues {
			status := "warning"
			if i.Severity == registry.SeverityError {
				status = "error"
			}
			r.StatusLine(i.Path, status, i.Message)
		}
		if valid {
			r.Success(fmt.Sprintf("Registry is valid (%d warnings)", len(issues)))
		}
	}

	if !valid {
		return errRegistryInvalid
	}
	return nil
}

func newExportCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the registry document as YAML",
		Long: `Write the registry document as YAML to stdout or a file.

Useful to move a registry from the SQL stores back to a reviewable file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reg, err := cc.Load(cmd)
			if err != nil {
				return err
			}
			data, err := reg.Marshal()
			if err != nil {
				return err
			}
			if outFile == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := fsutil.WriteFileAtomic(outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}
			cc.Renderer.Success("Exported registry to " + outFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}

func newImportCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a YAML registry document into the configured store",
		Long: `Load a YAML registry document into the configured store.

This seeds the sqlite and postgres backends from a registry file. An
existing document is only replaced with --force.`,
		Example: `  specql registry import registry/domain_registry.yaml --store sqlite`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			reg, err := registry.Unmarshal(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if issues := reg.Validate(); registry.HasErrors(issues) {
				for _, i := range issues {
					cc.Renderer.Warning(i.String())
				}
				return errRegistryInvalid
			}

			existing, err := cc.Store.Load(cmd.Context())
			switch {
			case err == nil:
				if !force {
					return fmt.Errorf("store already holds a registry (revision %d). Use --force to replace it", existing.Revision)
				}
				reg.Revision = existing.Revision
			case errors.Is(err, state.ErrNotFound):
				reg.Revision = 0
			default:
				return fmt.Errorf("failed to load registry: %w", err)
			}

			if err := cc.Store.Save(cmd.Context(), reg); err != nil {
				return fmt.Errorf("failed to save registry: %w", err)
			}
			cc.Renderer.Success(fmt.Sprintf("Imported %s at revision %d", args[0], reg.Revision))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing document")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent allocations",
		Long: `Show recent allocations, newest first.

Only stores that keep an allocation log (sqlite and postgres) support this.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			rec, ok := cc.Store.(state.Recorder)
			if !ok {
				return fmt.Errorf("the %s store keeps no allocation history", backendName(cc.Cfg.StateConfig()))
			}
			entries, err := rec.History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				if entries == nil {
					entries = []state.Allocation{}
				}
				return r.JSON(entries)
			}

			r.Header(1, fmt.Sprintf("Allocations (%d shown)", len(entries)))
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.FormatInt(e.Revision, 10),
					string(e.Scope),
					e.Code,
					e.Entity,
					e.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			r.Table([]string{"Revision", "Scope", "Code", "Entity", "When"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func domainInfo(d *registry.Domain) output.DomainInfo {
	return output.DomainInfo{
		Code:        d.Code,
		Name:        d.Name,
		Description: d.Description,
		Aliases:     d.Aliases,
		MultiTenant: d.MultiTenant,
	}
}

func subdomainInfo(s *registry.Subdomain) output.SubdomainInfo {
	return output.SubdomainInfo{
		Code:               s.Code,
		Name:               s.Name,
		Description:        s.Description,
		NextEntitySequence: s.NextEntitySequence,
		NextReadEntity:     s.NextReadEntity,
		Entities:           len(s.Entities),
		ReadEntities:       len(s.ReadEntities),
	}
}

func backendName(sc state.Config) string {
	if sc.Backend == "" {
		return state.BackendYAML
	}
	return sc.Backend
}
