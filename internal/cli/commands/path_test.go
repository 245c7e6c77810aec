package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraiseql/specql-sub006/internal/cli/output"
)

func TestPathCommand(t *testing.T) {
	setupProject(t, "")

	tests := []struct {
		name      string
		args      []string
		wantPath  string
		wantKind  string
		wantFalls []string
		wantErr   bool
	}{
		{
			name:     "write side table",
			args:     []string{"write", "0123611", "Contact"},
			wantPath: "01_write_side/012_crm/0123_customer/01236_contact/0123611_tb_contact.sql",
			wantKind: "table",
		},
		{
			name:     "legacy write code",
			args:     []string{"write", "012361", "Contact"},
			wantPath: "01_write_side/012_crm/0123_customer/01236_contact/012361_tb_contact.sql",
			wantKind: "table",
		},
		{
			name:     "read side view strips its prefix",
			args:     []string{"read", "0223110", "tv_contact"},
			wantPath: "02_read_side/022_crm/0223_customer/02231_contact/0223110_tv_contact.sql",
			wantKind: "table_view",
		},
		{
			name:     "function with action",
			args:     []string{"function", "0323611", "fn_Contact.create"},
			wantPath: "03_functions/032_crm/0323_customer/03236_contact/0323611_fn_contact_create.sql",
			wantKind: "function",
		},
		{
			name:     "comments kind as yaml",
			args:     []string{"write", "0123611", "Contact", "--kind", "comments", "--ext", "yaml"},
			wantPath: "01_write_side/012_crm/0123_customer/01236_contact/0123611_comments_contact.yaml",
			wantKind: "comments",
		},
		{
			name:      "unknown domain falls back to placeholders",
			args:      []string{"write", "0171111", "Lead"},
			wantPath:  "01_write_side/017_domain_7/0171_subdomain_01/01711_lead/0171111_tb_lead.sql",
			wantKind:  "table",
			wantFalls: []string{"domain_7", "subdomain_01"},
		},
		{name: "layer mismatch", args: []string{"write", "0323611", "Contact"}, wantErr: true},
		{name: "unknown layer", args: []string{"archive", "0123611", "Contact"}, wantErr: true},
		{name: "unknown kind", args: []string{"write", "0123611", "Contact", "--kind", "index"}, wantErr: true},
		{name: "unsupported extension", args: []string{"write", "0123611", "Contact", "--ext", "txt"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewPathCommand(), tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var info output.PathInfo
			decode(t, out, &info)
			assert.Equal(t, filepath.FromSlash(tt.wantPath), info.Path)
			assert.Equal(t, tt.wantKind, info.Kind)
			assert.Equal(t, tt.wantFalls, info.Fallbacks)
		})
	}
}

func TestPathWithoutRegistry(t *testing.T) {
	dir := setupProject(t, "")
	require.NoError(t, os.Remove(filepath.Join(dir, "registry", "domain_registry.yaml")))

	out, err := execute(t, NewPathCommand(), "write", "0123611", "Contact")
	require.NoError(t, err)

	var info output.PathInfo
	decode(t, out, &info)
	assert.Equal(t, filepath.FromSlash("01_write_side/012_domain_2/0123_subdomain_03/01236_contact/0123611_tb_contact.sql"), info.Path)
}

func TestPathCorruptRegistry(t *testing.T) {
	dir := setupProject(t, "")
	regPath := filepath.Join(dir, "registry", "domain_registry.yaml")
	require.NoError(t, os.WriteFile(regPath, []byte("domains: [unclosed\n"), 0o644))

	_, err := execute(t, NewPathCommand(), "write", "0123611", "Contact")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load registry")
}

func TestPathReadKeepsCamelCaseViewNames(t *testing.T) {
	setupProject(t, "")

	tests := []struct {
		view string
		want string
	}{
		{"TvShow", "02_read_side/022_crm/0223_customer/02231_tv_show/0223110_tv_tv_show.sql"},
		{"VInvoice", "02_read_side/022_crm/0223_customer/02231_v_invoice/0223110_tv_v_invoice.sql"},
		{"v_invoice", "02_read_side/022_crm/0223_customer/02231_invoice/0223110_v_invoice.sql"},
	}
	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			out, err := execute(t, NewPathCommand(), "read", "0223110", tt.view)
			require.NoError(t, err)

			var info output.PathInfo
			decode(t, out, &info)
			assert.Equal(t, filepath.FromSlash(tt.want), info.Path)
		})
	}
}
