package commands

import (
	"fmt"
	"strconv"

	"github.com/fraiseql/specql-sub006/internal/cli/output"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
	"github.com/spf13/cobra"
)

// NewCodeCommand creates the code command group. Its subcommands work on
// codes alone and never open the registry.
func NewCodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Decompose and derive codes",
		Long: `Decompose and derive codes.

A code is six (legacy) or seven characters: schema layer (2), domain (1),
subdomain (1), entity (1), variant (1) and, in seven-character codes, the
file or function sequence (1).`,
	}

	cmd.AddCommand(
		newCodeParseCommand(),
		newCodeDeriveCommand("function", "Derive a function code (layer 03)", numbering.LayerFunctions),
		newCodeDeriveCommand("aux", "Derive a sibling file code in the same layer", ""),
		newCodeDeriveCommand("read", "Derive a read-side code (layer 02)", numbering.LayerReadSide),
	)
	return cmd
}

func newCodeParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "parse <code>",
		Short:   "Decompose a code into its fields",
		Example: `  specql code parse 0123611
  specql code parse 012361 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContextWithoutStore(cmd)
			enc, err := configuredEncoding(cc.Cfg.Encoding)
			if err != nil {
				return err
			}
			c, err := numbering.DecomposeWith(enc, args[0])
			if err != nil {
				return err
			}
			return renderCode(cc.Renderer, args[0], c)
		},
	}
}

func newCodeDeriveCommand(name, short string, layer numbering.SchemaLayer) *cobra.Command {
	return &cobra.Command{
		Use:     name + " <base-code> <sequence>",
		Short:   short,
		Example: fmt.Sprintf("  specql code %s 012361 2", name),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContextWithoutStore(cmd)
			enc, err := configuredEncoding(cc.Cfg.Encoding)
			if err != nil {
				return err
			}
			seq, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("sequence must be a number: %w", err)
			}
			base, err := numbering.DecomposeWith(enc, args[0])
			if err != nil {
				return err
			}
			c, err := base.Derive(layer, seq)
			if err != nil {
				return err
			}
			return renderCode(cc.Renderer, c.String(), c)
		},
	}
}

func configuredEncoding(name string) (numbering.Encoding, error) {
	enc, ok := numbering.EncodingByName(name)
	if !ok {
		return numbering.Encoding{}, fmt.Errorf("unknown encoding %q", name)
	}
	return enc, nil
}

func codeInfo(raw string, c numbering.Code) output.CodeInfo {
	enc := c.Encoding()
	return output.CodeInfo{
		Code:      raw,
		Canonical: c.Canonical().String(),
		Legacy:    c.IsLegacy(),
		Layer:     string(c.Layer),
		LayerName: c.Layer.Name(),
		Domain:    c.DomainKey(),
		Subdomain: c.SubdomainKey(),
		Entity:    string(enc.Char(c.Entity)),
		Variant:   string(enc.Char(c.Variant)),
		Sequence:  string(enc.Char(c.Sequence)),
	}
}

func renderCode(r *output.Renderer, raw string, c numbering.Code) error {
	info := codeInfo(raw, c)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}

	r.Header(1, "Code "+info.Code)
	r.KeyValue("Layer", info.Layer+" ("+info.LayerName+")")
	r.KeyValue("Domain", info.Domain)
	r.KeyValue("Subdomain", info.Subdomain)
	r.KeyValue("Entity", info.Entity)
	r.KeyValue("Variant", info.Variant)
	r.KeyValue("Sequence", info.Sequence)
	if info.Legacy {
		r.KeyValue("Canonical", info.Canonical)
	}
	return nil
}
