package commands

import (
	"fmt"
	"log/slog"

	"github.com/fraiseql/specql-sub006/internal/cli/output"
	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
	"github.com/spf13/cobra"
)

// NewAllocateCommand creates the allocate command group.
func NewAllocateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "allocate",
		Aliases: []string{"alloc"},
		Short:   "Issue codes from the registry counters",
		Long: `Issue codes from the registry counters.

Every allocation is one store transaction: the registry is loaded, the
counter advanced and the document saved under the store's lock. Issued
codes are never reissued.`,
	}

	cmd.AddCommand(
		newAllocateEntityCommand(),
		newAllocateFunctionCommand(),
		newAllocateTableFileCommand(),
		newAllocateReadEntityCommand(),
		newRegisterCommand(),
	)
	return cmd
}

func newAllocateEntityCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "entity <domain> <subdomain>",
		Short: "Assign the next entity sequence of a subdomain",
		Long: `Assign the next entity sequence of a subdomain.

With --name the entity is also registered and its write-side table code is
printed; an entity that is already registered keeps its code. Without
--name only the raw sequence number is drawn.`,
		Example: `  specql allocate entity crm customer --name Contact
  specql allocate entity 2 03`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if name == "" {
				seq, err := cc.Alloc.AssignEntitySequence(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return renderAllocation(cc, output.AllocationInfo{Scope: string(registry.ScopeEntity), Value: seq})
			}

			code, err := cc.Alloc.AllocateEntity(cmd.Context(), name, args[0], args[1])
			if err != nil {
				return err
			}
			return renderCodeAllocation(cmd, cc, registry.ScopeEntity, name, name, code)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Register the entity under this name")
	return cmd
}

func newAllocateFunctionCommand() *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "function <entity>",
		Short: "Issue a function code for an entity",
		Long: `Issue a function code for an entity.

With --action the code is recorded against that action and repeated calls
return it; without it the next function slot is drawn every time.`,
		Example: `  specql allocate function Contact --action create
  specql allocate function Contact`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entity := args[0]
			var code numbering.Code
			if action != "" {
				code, err = cc.Alloc.AssignFunction(cmd.Context(), entity, action)
			} else {
				code, err = cc.Alloc.AssignFunctionSequence(cmd.Context(), entity)
			}
			if err != nil {
				return err
			}

			display := entity
			if action != "" {
				display += "." + action
			}
			return renderCodeAllocation(cmd, cc, registry.ScopeFunction, entity, display, code)
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "Function action, e.g. create or update")
	return cmd
}

func newAllocateTableFileCommand() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "table-file <entity>",
		Short: "Issue a sibling table file code for an entity",
		Long: `Issue a sibling table file code for an entity.

With --role (audit, info, node, junction) the code is recorded against the
role and repeated calls return it; a role never takes the primary table's
slot.`,
		Example: `  specql allocate table-file Contact --role audit`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var code numbering.Code
			if role != "" {
				code, err = cc.Alloc.AssignTableFile(cmd.Context(), args[0], role)
			} else {
				code, err = cc.Alloc.AssignTableFileSequence(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return renderCodeAllocation(cmd, cc, registry.ScopeTableFile, args[0], args[0], code)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Sibling table role, e.g. audit or info")
	return cmd
}

func newAllocateReadEntityCommand() *cobra.Command {
	var file int

	cmd := &cobra.Command{
		Use:   "read-entity <domain> <subdomain> <view>",
		Short: "Issue the read-side code of a view",
		Long: `Issue the read-side code of a view from the subdomain's read-entity
counter. A view keeps its code across calls. With --file an additional
file code is recorded for the view.`,
		Example: `  specql allocate read-entity crm customer tv_contact
  specql allocate read-entity crm customer tv_contact --file 2`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			code, err := cc.Alloc.AssignReadEntity(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if file > 0 {
				code, err = cc.Alloc.AssignReadFile(cmd.Context(), args[0], args[1], args[2], file)
				if err != nil {
					return err
				}
			}
			return renderCodeAllocation(cmd, cc, registry.ScopeReadEntity, args[2], args[2], code)
		},
	}

	cmd.Flags().IntVar(&file, "file", 0, "Also record this file sequence for the view")
	return cmd
}

func newRegisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register <entity> <code> <domain> <subdomain>",
		Short: "Register an entity under an explicit table code",
		Long: `Register an entity under an explicit table code.

Registering the same code again is a no-op; a different code for a
registered entity is rejected. The subdomain's entity counter moves past
the registered entity so the code is never issued again.`,
		Example: `  specql allocate register Brand 013131 catalog manufacturer`,
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			e, err := cc.Alloc.RegisterEntity(cmd.Context(), args[0], args[1], args[2], args[3])
			if err != nil {
				return err
			}
			reg, err := cc.Load(cmd)
			if err != nil {
				return err
			}
			code, err := numbering.DecomposeWith(reg.CodeEncoding(), e.TableCode)
			if err != nil {
				return err
			}
			return renderCodeAllocation(cmd, cc, registry.ScopeEntity, e.Name, e.Name, code)
		},
	}
}

func renderCodeAllocation(cmd *cobra.Command, cc *CommandContext, scope registry.Scope, entity, display string, code numbering.Code) error {
	info := output.AllocationInfo{Scope: string(scope), Code: code.String(), Entity: entity}
	if reg, err := cc.Store.Load(cmd.Context()); err == nil {
		info.Path = pathFor(reg, code, display, cc.Logger)
	}
	return renderAllocation(cc, info)
}

func renderAllocation(cc *CommandContext, info output.AllocationInfo) error {
	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}
	if info.Code == "" {
		r.KeyValue("Sequence", fmt.Sprintf("%d", info.Value))
		return nil
	}
	r.KeyValue("Code", info.Code)
	if info.Entity != "" {
		r.KeyValue("Entity", info.Entity)
	}
	if info.Path != "" {
		r.KeyValue("Path", info.Path)
	}
	return nil
}

// pathFor renders the default path of code, or "" when the layer has no
// generator.
func pathFor(reg *registry.Registry, code numbering.Code, display string, logger *slog.Logger) string {
	gen, err := pathgen.ForLayer(code.Layer, reg, pathgen.WithLogger(logger))
	if err != nil {
		return ""
	}
	fp, err := gen.GeneratePath(code.String(), display)
	if err != nil {
		return ""
	}
	return fp.Path
}
