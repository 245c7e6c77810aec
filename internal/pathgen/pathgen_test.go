package pathgen

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraiseql/specql-sub006/internal/testutil"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

func TestWriteSide_GeneratePath(t *testing.T) {
	g := NewWriteSide(testutil.NewRegistry(t), WithLogger(testutil.NewTestLogger(t)))

	tests := []struct {
		name      string
		code      string
		entity    string
		wantPath  string
		fallbacks []string
	}{
		{
			name:     "current width",
			code:     "0123611",
			entity:   "Contact",
			wantPath: "01_write_side/012_crm/0123_customer/01236_contact/0123611_tb_contact.sql",
		},
		{
			name:     "legacy width keeps its filename",
			code:     "012361",
			entity:   "Contact",
			wantPath: "01_write_side/012_crm/0123_customer/01236_contact/012361_tb_contact.sql",
		},
		{
			name:     "audit sibling shares the entity directory",
			code:     "0123612",
			entity:   "Contact",
			wantPath: "01_write_side/012_crm/0123_customer/01236_contact/0123612_tb_contact.sql",
		},
		{
			name:     "entity name normalized",
			code:     "0131111",
			entity:   "HTTPServerV2",
			wantPath: "01_write_side/013_catalog/0131_manufacturer/01311_http_server_v2/0131111_tb_http_server_v2.sql",
		},
		{
			name:      "unknown subdomain falls back",
			code:      "0125111",
			entity:    "Ticket",
			wantPath:  "01_write_side/012_crm/0125_subdomain_05/01251_ticket/0125111_tb_ticket.sql",
			fallbacks: []string{"subdomain_05"},
		},
		{
			name:      "unknown domain falls back for both names",
			code:      "0181111",
			entity:    "Invoice",
			wantPath:  "01_write_side/018_domain_8/0181_subdomain_01/01811_invoice/0181111_tb_invoice.sql",
			fallbacks: []string{"domain_8", "subdomain_01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := g.GeneratePath(tt.code, tt.entity)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantPath), fp.Path)
			assert.Equal(t, filepath.Dir(fp.Path), fp.Dir)
			assert.Equal(t, filepath.Base(fp.Path), fp.Filename)
			assert.Equal(t, tt.fallbacks, fp.Fallbacks)
		})
	}
}

func TestWriteSide_SubdomainDirectoryShared(t *testing.T) {
	g := NewWriteSide(testutil.NewRegistry(t))

	dirs := make(map[string]bool)
	for _, code := range []string{"013111", "013121", "013131"} {
		fp, err := g.GeneratePath(code, "Brand")
		require.NoError(t, err)
		dirs[filepath.Dir(fp.Dir)] = true
	}
	require.Len(t, dirs, 1)

	other, err := g.GeneratePath("013211", "Brand")
	require.NoError(t, err)
	assert.NotContains(t, dirs, filepath.Dir(other.Dir))
}

func TestWriteSide_SiblingFilesShareEntityDirectory(t *testing.T) {
	g := NewWriteSide(testutil.NewRegistry(t))

	primary, err := g.GeneratePath("0123611", "Contact")
	require.NoError(t, err)
	audit, err := g.GeneratePath("0123612", "Contact")
	require.NoError(t, err)

	assert.Equal(t, primary.Dir, audit.Dir)
	assert.NotEqual(t, primary.Filename, audit.Filename)
}

func TestGenerate_Errors(t *testing.T) {
	reg := testutil.NewRegistry(t)

	tests := []struct {
		name    string
		gen     Generator
		code    string
		entity  string
		wantErr error
	}{
		{"write side rejects function code", NewWriteSide(reg), "0323611", "Contact", ErrWrongSchemaLayer},
		{"functions reject table code", NewFunctions(reg), "0123611", "Contact.create", ErrWrongSchemaLayer},
		{"read side rejects table code", NewReadSide(reg), "0123611", "tv_contact", ErrWrongSchemaLayer},
		{"read side rejects legacy width", NewReadSide(reg), "022311", "tv_contact", numbering.ErrMalformedCode},
		{"malformed code", NewWriteSide(reg), "01x3611", "Contact", numbering.ErrMalformedCode},
		{"write side needs an entity", NewWriteSide(reg), "0123611", "  ", ErrMissingEntityName},
		{"function prefix only", NewFunctions(reg), "0323611", "fn_", ErrMissingEntityName},
		{"function action only", NewFunctions(reg), "0323611", "fn_.create", ErrMissingEntityName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.gen.GeneratePath(tt.code, tt.entity)
			require.ErrorIs(t, err, tt.wantErr)

			var pathErr *PathError
			require.True(t, errors.As(err, &pathErr))
			assert.Equal(t, tt.code, pathErr.Code)
			assert.Equal(t, tt.gen.Layer(), pathErr.Layer)
		})
	}
}

func TestReadSide_GeneratePath(t *testing.T) {
	g := NewReadSide(testutil.NewRegistry(t))

	tests := []struct {
		view     string
		wantPath string
		wantKind Kind
	}{
		{"tv_contact", "02_read_side/022_crm/0223_customer/02231_contact/0223110_tv_contact.sql", KindTableView},
		{"CustomerSummary", "02_read_side/022_crm/0223_customer/02231_customer_summary/0223110_tv_customer_summary.sql", KindTableView},
		{"v_contact", "02_read_side/022_crm/0223_customer/02231_contact/0223110_v_contact.sql", KindView},
		{"mv_contact", "02_read_side/022_crm/0223_customer/02231_contact/0223110_mv_contact.sql", KindMaterializedView},
		{"TvShow", "02_read_side/022_crm/0223_customer/02231_tv_show/0223110_tv_tv_show.sql", KindTableView},
		{"VInvoice", "02_read_side/022_crm/0223_customer/02231_v_invoice/0223110_tv_v_invoice.sql", KindTableView},
		{"MvpScore", "02_read_side/022_crm/0223_customer/02231_mvp_score/0223110_tv_mvp_score.sql", KindTableView},
	}

	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			fp, err := g.GeneratePath("0223110", tt.view)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantPath), fp.Path)
			assert.Equal(t, tt.wantKind, fp.Kind)
		})
	}
}

func TestSplitViewName(t *testing.T) {
	tests := []struct {
		view     string
		wantKind Kind
		wantName string
	}{
		{"tv_contact", KindTableView, "contact"},
		{"mv_sales", KindMaterializedView, "sales"},
		{"v_invoice", KindView, "invoice"},
		{"TvShow", KindTableView, "TvShow"},
		{"VInvoice", KindTableView, "VInvoice"},
		{"tv_", KindTableView, "tv_"},
	}

	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			kind, name := SplitViewName(tt.view)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestDefaultKind(t *testing.T) {
	assert.Equal(t, KindTable, DefaultKind(numbering.LayerWriteSide))
	assert.Equal(t, KindTableView, DefaultKind(numbering.LayerReadSide))
	assert.Equal(t, KindFunction, DefaultKind(numbering.LayerFunctions))
}

func TestFunctions_GeneratePath(t *testing.T) {
	g := NewFunctions(testutil.NewRegistry(t))

	tests := []struct {
		display  string
		wantPath string
	}{
		{"fn_Contact.create", "03_functions/032_crm/0323_customer/03236_contact/0323611_fn_contact_create.sql"},
		{"Contact.qualifyLead", "03_functions/032_crm/0323_customer/03236_contact/0323611_fn_contact_qualify_lead.sql"},
		{"Contact", "03_functions/032_crm/0323_customer/03236_contact/0323611_fn_contact.sql"},
	}

	for _, tt := range tests {
		t.Run(tt.display, func(t *testing.T) {
			fp, err := g.GeneratePath("0323611", tt.display)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantPath), fp.Path)
			assert.Equal(t, "contact", fp.Entity)
		})
	}
}

func TestGenerateArtifactPath(t *testing.T) {
	g := NewWriteSide(testutil.NewRegistry(t))

	comments, err := g.GenerateArtifactPath("0123611", "Contact", KindComments)
	require.NoError(t, err)
	assert.Equal(t, "0123611_comments_contact.sql", comments.Filename)

	fixture, err := KindTest.WithExt("yaml")
	require.NoError(t, err)
	fp, err := g.GenerateArtifactPath("0123611", "Contact", fixture)
	require.NoError(t, err)
	assert.Equal(t, "0123611_test_contact.yaml", fp.Filename)

	_, err = KindTest.WithExt("xml")
	assert.Error(t, err)
}

func TestForLayer(t *testing.T) {
	reg := testutil.NewRegistry(t)
	for _, layer := range []numbering.SchemaLayer{numbering.LayerWriteSide, numbering.LayerReadSide, numbering.LayerFunctions} {
		g, err := ForLayer(layer, reg)
		require.NoError(t, err)
		assert.Equal(t, layer, g.Layer())
	}

	_, err := ForLayer("04", reg)
	assert.ErrorIs(t, err, ErrWrongSchemaLayer)
}

func TestKindByName(t *testing.T) {
	for _, name := range []string{"table", "tb", "tb_"} {
		k, ok := KindByName(name)
		require.True(t, ok, name)
		assert.Equal(t, KindTable, k)
	}
	_, ok := KindByName("index")
	assert.False(t, ok)
}

func TestSplitFunctionName(t *testing.T) {
	tests := []struct {
		in             string
		entity, action string
		ok             bool
	}{
		{"fn_Contact.create", "Contact", "create", true},
		{"Contact.create", "Contact", "create", true},
		{"Contact", "Contact", "", true},
		{" fn_Contact ", "Contact", "", true},
		{"fn_", "", "", false},
		{".create", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			entity, action, ok := SplitFunctionName(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.entity, entity)
			assert.Equal(t, tt.action, action)
		})
	}
}

func TestGeneratePath_HexRegistry(t *testing.T) {
	reg := testutil.NewRegistry(t)
	reg.Encoding = numbering.Hexadecimal.Name()

	fp, err := NewWriteSide(reg).GeneratePath("0123B1A", "Contact")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("01_write_side/012_crm/0123_customer/0123B_contact/0123B1A_tb_contact.sql"), fp.Path)
}
