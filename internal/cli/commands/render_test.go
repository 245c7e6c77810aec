package commands

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitestutil "github.com/fraiseql/specql-sub006/internal/cli/testutil"
	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/testutil"
	"github.com/fraiseql/specql-sub006/internal/writer"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

func TestRenderDomainsMarkdown(t *testing.T) {
	tr := clitestutil.NewTestRendererMarkdown()
	require.NoError(t, renderDomains(tr.Renderer, testutil.NewRegistry(t)))

	out := tr.Output()
	clitestutil.AssertNoANSI(t, out)
	clitestutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "crm")
	assert.Contains(t, out, "catalog")
	assert.Contains(t, out, "management")
}

func TestRenderSubdomainsText(t *testing.T) {
	tr := clitestutil.NewTestRendererText()
	reg := testutil.NewRegistry(t)
	d, ok := reg.GetDomain("catalog")
	require.True(t, ok)

	require.NoError(t, renderSubdomains(tr.Renderer, d))
	assert.Contains(t, tr.Output(), "manufacturer")
	assert.Contains(t, tr.Output(), "product")
}

func TestRenderValidationMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		issues  []registry.Issue
		wantErr bool
		want    string
	}{
		{
			name: "warnings only",
			issues: []registry.Issue{
				{Severity: registry.SeverityWarning, Path: "domains.3", Message: "missing description"},
			},
			want: "Registry is valid (1 warnings)",
		},
		{
			name: "errors fail",
			issues: []registry.Issue{
				{Severity: registry.SeverityError, Path: "domains.2.subdomains.03", Message: "missing name"},
			},
			wantErr: true,
			want:    "missing name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := clitestutil.NewTestRendererMarkdown()
			err := renderValidation(tr.Renderer, tt.issues)
			if tt.wantErr {
				assert.ErrorIs(t, err, errRegistryInvalid)
			} else {
				assert.NoError(t, err)
			}
			clitestutil.AssertValidMarkdown(t, tr.Output())
			assert.Contains(t, tr.Output(), tt.want)
		})
	}
}

func TestRenderCodeMarkdown(t *testing.T) {
	tr := clitestutil.NewTestRendererMarkdown()
	c, err := numbering.Decompose("012361")
	require.NoError(t, err)

	require.NoError(t, renderCode(tr.Renderer, "012361", c))
	out := tr.Output()
	clitestutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Code 012361")
	assert.Contains(t, out, "**Canonical:** 0123611")
	assert.Contains(t, out, "**Layer:** 01 (write_side)")
}

func TestRenderPathWarnsOnFallback(t *testing.T) {
	tr := clitestutil.NewTestRendererMarkdown()
	fp, err := pathgen.NewWriteSide(registry.New()).GeneratePath("0123611", "Contact")
	require.NoError(t, err)

	require.NoError(t, renderPath(tr.Renderer, "0123611", fp))
	assert.Contains(t, tr.Output(), filepath.FromSlash("01_write_side/012_domain_2/0123_subdomain_03/01236_contact/0123611_tb_contact.sql"))
	assert.Contains(t, tr.ErrorOutput(), "registry has no entry for domain_2, subdomain_03")
}

func TestRenderGenerateText(t *testing.T) {
	results := []writer.Result{
		{Spec: writer.FileSpec{Code: "0123611"}, Path: pathgen.FilePath{Path: "a.sql"}, Written: true},
		{Spec: writer.FileSpec{Code: "0323611"}, Path: pathgen.FilePath{Path: "b.sql"}},
	}

	tests := []struct {
		name   string
		dryRun bool
		err    error
		want   string
	}{
		{name: "written", want: "Wrote 1 files below out"},
		{name: "dry run", dryRun: true, want: "2 files would be written below out"},
		{name: "failed", err: errors.New("boom"), want: "stopped after 2 files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := clitestutil.NewTestRendererText()
			require.NoError(t, renderGenerate(tr.Renderer, "out", tt.dryRun, results, tt.err))
			assert.Contains(t, tr.Output()+tr.ErrorOutput(), tt.want)
			assert.Contains(t, tr.Output(), "a.sql")
		})
	}
}
