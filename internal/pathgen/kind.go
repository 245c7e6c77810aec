package pathgen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

// Kind is a generated artifact type. The prefix is written between the code
// and the entity name in the filename.
type Kind struct {
	Name   string
	Prefix string
	Ext    string
}

// Artifact kinds.
var (
	KindTable            = Kind{Name: "table", Prefix: "tb_", Ext: "sql"}
	KindTableView        = Kind{Name: "table_view", Prefix: "tv_", Ext: "sql"}
	KindView             = Kind{Name: "view", Prefix: "v_", Ext: "sql"}
	KindMaterializedView = Kind{Name: "materialized_view", Prefix: "mv_", Ext: "sql"}
	KindFunction         = Kind{Name: "function", Prefix: "fn_", Ext: "sql"}
	KindComments         = Kind{Name: "comments", Prefix: "comments_", Ext: "sql"}
	KindTest             = Kind{Name: "test", Prefix: "test_", Ext: "sql"}
)

// Extensions accepted by WithExt.
var Extensions = []string{"sql", "yaml", "json"}

var kinds = []Kind{
	KindTable, KindTableView, KindView, KindMaterializedView,
	KindFunction, KindComments, KindTest,
}

// Kinds returns every artifact kind.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// KindByName looks up a kind by name or by prefix without its underscore,
// so "table", "tb" and "tb_" all select KindTable.
func KindByName(name string) (Kind, bool) {
	for _, k := range kinds {
		if k.Name == name || k.Prefix == name || k.Prefix == name+"_" {
			return k, true
		}
	}
	return Kind{}, false
}

// WithExt returns the kind with a different file extension.
func (k Kind) WithExt(ext string) (Kind, error) {
	if !slices.Contains(Extensions, ext) {
		return Kind{}, fmt.Errorf("unsupported extension %q, expected one of %v", ext, Extensions)
	}
	k.Ext = ext
	return k, nil
}

func (k Kind) String() string { return k.Name }

// DefaultKind returns the kind GeneratePath produces for a layer.
func DefaultKind(layer numbering.SchemaLayer) Kind {
	switch layer {
	case numbering.LayerReadSide:
		return KindTableView
	case numbering.LayerFunctions:
		return KindFunction
	}
	return KindTable
}

// SplitViewName splits a literal tv_, mv_ or v_ prefix off a view name.
// Names without one are table views and are returned unchanged, so TvShow
// stays a view named TvShow.
func SplitViewName(view string) (Kind, string) {
	for _, k := range []Kind{KindTableView, KindMaterializedView, KindView} {
		if name, ok := strings.CutPrefix(view, k.Prefix); ok && name != "" {
			return k, name
		}
	}
	return KindTableView, view
}
