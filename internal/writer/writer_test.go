package writer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/testutil"
	"github.com/fraiseql/specql-sub006/pkg/numbering"
)

func TestWriter_Write(t *testing.T) {
	root := t.TempDir()
	w := New(root, testutil.NewRegistry(t), WithLogger(testutil.NewTestLogger(t)), WithWorkers(2))

	specs := []FileSpec{
		{Code: "0123611", Name: "Contact", Content: []byte("-- contact\n")},
		{Code: "0123612", Name: "Contact", Content: []byte("-- contact audit\n")},
		{Code: "0223110", Name: "tv_contact", Content: []byte("-- view\n")},
		{Code: "0323611", Name: "fn_Contact.create", Content: []byte("-- create\n")},
		{Code: "0123611", Name: "Contact", Kind: pathgen.KindComments, Content: []byte("-- comments\n")},
	}

	results, err := w.Write(context.Background(), specs)
	require.NoError(t, err)
	require.Len(t, results, len(specs))

	want := []string{
		"01_write_side/012_crm/0123_customer/01236_contact/0123611_tb_contact.sql",
		"01_write_side/012_crm/0123_customer/01236_contact/0123612_tb_contact.sql",
		"02_read_side/022_crm/0223_customer/02231_contact/0223110_tv_contact.sql",
		"03_functions/032_crm/0323_customer/03236_contact/0323611_fn_contact_create.sql",
		"01_write_side/012_crm/0123_customer/01236_contact/0123611_comments_contact.sql",
	}
	for i, r := range results {
		assert.True(t, r.Written)
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(want[i])), r.Abs)

		data, err := os.ReadFile(r.Abs)
		require.NoError(t, err)
		assert.Equal(t, specs[i].Content, data)
	}
}

func TestWriter_DryRun(t *testing.T) {
	root := t.TempDir()
	w := New(root, testutil.NewRegistry(t), WithDryRun(true))

	results, err := w.Write(context.Background(), []FileSpec{
		{Code: "012361", Name: "Contact", Content: []byte("x")},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Written)
	assert.NoFileExists(t, results[0].Abs)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriter_Empty(t *testing.T) {
	w := New(t.TempDir(), testutil.NewRegistry(t))
	results, err := w.Write(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWriter_ResolveErrors(t *testing.T) {
	root := t.TempDir()
	w := New(root, testutil.NewRegistry(t))

	tests := []struct {
		name    string
		specs   []FileSpec
		wantErr error
		wantMsg string
	}{
		{
			name:    "malformed code",
			specs:   []FileSpec{{Code: "12345", Name: "Contact"}},
			wantErr: numbering.ErrMalformedCode,
		},
		{
			name:    "unsupported layer",
			specs:   []FileSpec{{Code: "0423611", Name: "Contact"}},
			wantErr: pathgen.ErrWrongSchemaLayer,
		},
		{
			name: "same file twice",
			specs: []FileSpec{
				{Code: "0123611", Name: "Contact"},
				{Code: "0123611", Name: "contact"},
			},
			wantMsg: "both resolve to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Write(context.Background(), tt.specs)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing written when resolution fails")
}

func TestWriter_CanceledContext(t *testing.T) {
	root := t.TempDir()
	w := New(root, testutil.NewRegistry(t), WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Write(ctx, []FileSpec{{Code: "0123611", Name: "Contact"}})
	assert.ErrorIs(t, err, context.Canceled)
}
