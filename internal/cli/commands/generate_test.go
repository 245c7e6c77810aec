package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraiseql/specql-sub006/internal/cli/output"
)

const testManifest = `entities:
  - name: Contact
    domain: crm
    subdomain: customer
    features: [audit, comments]
    functions: [create]
    views: [tv_contact]
  - name: Manufacturer
    domain: catalog
    subdomain: manufacturer
    table_code: "013131"
`

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGenerate(t *testing.T) {
	dir := setupProject(t, "")
	manifest := writeManifest(t, dir, testManifest)

	out, err := execute(t, NewGenerateCommand(), manifest, "--workers", "2")
	require.NoError(t, err)

	var res output.GenerateOutput
	decode(t, out, &res)
	assert.False(t, res.DryRun)
	assert.Empty(t, res.Error)

	want := map[string]string{
		"0123611": "01_write_side/012_crm/0123_customer/01236_contact/0123611_tb_contact.sql",
		"0123612": "01_write_side/012_crm/0123_customer/01236_contact/0123612_tb_contact.sql",
		"0323611": "03_functions/032_crm/0323_customer/03236_contact/0323611_fn_contact_create.sql",
		"0223110": "02_read_side/022_crm/0223_customer/02231_contact/0223110_tv_contact.sql",
		"0131311": "01_write_side/013_catalog/0131_manufacturer/01313_manufacturer/0131311_tb_manufacturer.sql",
	}
	got := make(map[string]bool)
	for _, f := range res.Files {
		assert.True(t, f.Written, f.Path)
		assert.FileExists(t, filepath.Join(dir, "generated", f.Path))
		got[f.Path] = true
	}
	for code, p := range want {
		assert.True(t, got[filepath.FromSlash(p)], "missing %s at %s", code, p)
	}
	assert.FileExists(t, filepath.Join(dir, "generated", filepath.FromSlash(
		"01_write_side/012_crm/0123_customer/01236_contact/0123611_comments_contact.sql")))

	reg := loadRegistry(t, dir)
	e, ok := reg.GetEntity("Manufacturer")
	require.True(t, ok)
	assert.Equal(t, "0131311", e.TableCode)
}

func TestGenerateDryRun(t *testing.T) {
	dir := setupProject(t, "")
	manifest := writeManifest(t, dir, testManifest)
	before := loadRegistry(t, dir)

	out, err := execute(t, NewGenerateCommand(), manifest, "--dry-run")
	require.NoError(t, err)

	var res output.GenerateOutput
	decode(t, out, &res)
	assert.True(t, res.DryRun)
	assert.NotEmpty(t, res.Files)
	for _, f := range res.Files {
		assert.False(t, f.Written)
	}

	assert.NoDirExists(t, filepath.Join(dir, "generated"))
	after := loadRegistry(t, dir)
	assert.Equal(t, before.Revision, after.Revision, "a dry run saves nothing")
	_, ok := after.GetEntity("Contact")
	assert.False(t, ok)
}

func TestGenerateReportsPlanErrors(t *testing.T) {
	dir := setupProject(t, "")
	manifest := writeManifest(t, dir, `entities:
  - name: Contact
    domain: crm
    subdomain: customer
  - name: Invoice
    domain: billing
    subdomain: invoice
`)

	out, err := execute(t, NewGenerateCommand(), manifest)
	require.Error(t, err)

	var res output.GenerateOutput
	decode(t, out, &res)
	assert.NotEmpty(t, res.Error)
	require.Len(t, res.Files, 1, "files planned before the failure are still written")
	assert.True(t, res.Files[0].Written)
}

func TestGenerateMissingManifest(t *testing.T) {
	setupProject(t, "")

	_, err := execute(t, NewGenerateCommand(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
