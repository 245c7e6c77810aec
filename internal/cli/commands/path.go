package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fraiseql/specql-sub006/internal/cli/output"
	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
	"github.com/spf13/cobra"
)

var pathLayers = map[string]numbering.SchemaLayer{
	"write":    numbering.LayerWriteSide,
	"read":     numbering.LayerReadSide,
	"function": numbering.LayerFunctions,
}

// NewPathCommand creates the path command.
func NewPathCommand() *cobra.Command {
	var kindName string
	var ext string

	cmd := &cobra.Command{
		Use:   "path <write|read|function> <code> <entity>",
		Short: "Show where the file of a code is generated",
		Long: `Show where the file of a code is generated, relative to the output root.

Domain and subdomain directory names come from the registry; when it has no
entry a placeholder such as domain_2 is used and a warning is printed.

Function names may carry an action: "Contact.create" or "fn_Contact.create".`,
		Example: `  specql path write 0123611 Contact
  specql path read 0223110 tv_contact
  specql path function 0323511 Contact.create
  specql path write 0123611 Contact --kind comments --ext yaml`,
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"write", "read", "function"},
		RunE: func(cmd *cobra.Command, args []string) error {
			layer, ok := pathLayers[args[0]]
			if !ok {
				return fmt.Errorf("unknown layer %q (expected write, read or function)", args[0])
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reg, err := cc.Store.Load(cmd.Context())
			if err != nil {
				if !errors.Is(err, state.ErrNotFound) {
					return fmt.Errorf("failed to load registry: %w", err)
				}
				cc.Renderer.Warning("registry unavailable, using placeholder names: " + err.Error())
				reg = registry.New()
				reg.Encoding = cc.Cfg.Encoding
			}

			gen, err := pathgen.ForLayer(layer, reg, pathgen.WithLogger(cc.Logger))
			if err != nil {
				return err
			}

			var fp pathgen.FilePath
			if kindName == "" && ext == "" {
				fp, err = gen.GeneratePath(args[1], args[2])
			} else {
				kind, kerr := resolveKind(layer, kindName, ext)
				if kerr != nil {
					return kerr
				}
				fp, err = gen.GenerateArtifactPath(args[1], args[2], kind)
			}
			if err != nil {
				return err
			}
			return renderPath(cc.Renderer, args[1], fp)
		},
	}

	cmd.Flags().StringVarP(&kindName, "kind", "k", "", "Artifact kind: "+kindNames())
	cmd.Flags().StringVar(&ext, "ext", "", "File extension: "+strings.Join(pathgen.Extensions, ", "))
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, 0, len(pathgen.Kinds()))
		for _, k := range pathgen.Kinds() {
			names = append(names, k.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// resolveKind picks the kind named by the flag, or the layer default when
// only the extension changes.
func resolveKind(layer numbering.SchemaLayer, name, ext string) (pathgen.Kind, error) {
	kind := pathgen.DefaultKind(layer)
	if name != "" {
		k, ok := pathgen.KindByName(name)
		if !ok {
			return pathgen.Kind{}, fmt.Errorf("unknown kind %q (expected one of %s)", name, kindNames())
		}
		kind = k
	}
	if ext != "" {
		return kind.WithExt(ext)
	}
	return kind, nil
}

func kindNames() string {
	names := make([]string, 0, len(pathgen.Kinds()))
	for _, k := range pathgen.Kinds() {
		names = append(names, k.Name)
	}
	return strings.Join(names, ", ")
}

func renderPath(r *output.Renderer, code string, fp pathgen.FilePath) error {
	info := output.PathInfo{
		Code:      code,
		Path:      fp.Path,
		Dir:       fp.Dir,
		Filename:  fp.Filename,
		Kind:      fp.Kind.Name,
		Fallbacks: fp.Fallbacks,
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}

	if len(info.Fallbacks) > 0 {
		r.Warning("registry has no entry for " + strings.Join(info.Fallbacks, ", "))
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatKeyValue("Path", info.Path))
		return nil
	}
	r.Println(r.Styles().Path.Render(info.Path))
	return nil
}
