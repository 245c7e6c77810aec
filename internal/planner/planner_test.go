package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraiseql/specql-sub006/internal/allocator"
	"github.com/fraiseql/specql-sub006/internal/manifest"
	"github.com/fraiseql/specql-sub006/internal/pathgen"
	"github.com/fraiseql/specql-sub006/internal/registry"
	"github.com/fraiseql/specql-sub006/internal/state"
	"github.com/fraiseql/specql-sub006/internal/testutil"
	"github.com/fraiseql/specql-sub006/internal/writer"
)

func setupPlanner(t *testing.T, opts ...Option) (*Planner, *state.MemoryStore) {
	t.Helper()
	store := state.NewMemoryStore(testutil.NewRegistry(t))
	alloc := allocator.New(store, allocator.WithLogger(testutil.NewTestLogger(t)))
	opts = append([]Option{WithLogger(testutil.NewTestLogger(t))}, opts...)
	return New(alloc, opts...), store
}

func contactManifest() *manifest.Manifest {
	return &manifest.Manifest{Entities: []manifest.Entity{
		{
			Name:      "Contact",
			Domain:    "crm",
			Subdomain: "customer",
			Features:  []manifest.Feature{manifest.FeatureAudit, manifest.FeatureComments},
			Functions: []string{"create", "update"},
			Views:     []string{"tv_contact"},
		},
		{
			Name:      "Manufacturer",
			Domain:    "3",
			Subdomain: "01",
			TableCode: "013131",
		},
	}}
}

type planned struct {
	code string
	name string
	kind pathgen.Kind
}

func summarize(specs []writer.FileSpec) []planned {
	out := make([]planned, 0, len(specs))
	for _, s := range specs {
		out = append(out, planned{s.Code, s.Name, s.Kind})
	}
	return out
}

func TestPlan(t *testing.T) {
	p, _ := setupPlanner(t)

	specs, err := p.Plan(context.Background(), contactManifest())
	require.NoError(t, err)

	assert.Equal(t, []planned{
		{"0123611", "Contact", pathgen.KindTable},
		{"0123612", "Contact", pathgen.KindTable},
		{"0123611", "Contact", pathgen.KindComments},
		{"0323611", "fn_Contact.create", pathgen.KindFunction},
		{"0323612", "fn_Contact.update", pathgen.KindFunction},
		{"0223110", "contact", pathgen.KindTableView},
		{"0131311", "Manufacturer", pathgen.KindTable},
	}, summarize(specs))

	assert.Equal(t, "-- 0123612 table Contact\n", string(specs[1].Content))
}

func TestPlan_RerunIsStable(t *testing.T) {
	p, store := setupPlanner(t)
	ctx := context.Background()

	first, err := p.Plan(ctx, contactManifest())
	require.NoError(t, err)
	reg, err := store.Load(ctx)
	require.NoError(t, err)

	second, err := p.Plan(ctx, contactManifest())
	require.NoError(t, err)
	again, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, summarize(first), summarize(second))
	assert.Equal(t, reg.Revision, again.Revision, "no counters consumed on rerun")
}

func TestPlan_StopsAtFailingEntity(t *testing.T) {
	p, store := setupPlanner(t)
	ctx := context.Background()

	base := contactManifest()
	m := &manifest.Manifest{Entities: []manifest.Entity{
		base.Entities[0],
		{Name: "Ticket", Domain: "crm", Subdomain: "support"},
		base.Entities[1],
	}}

	specs, err := p.Plan(ctx, m)
	require.ErrorIs(t, err, registry.ErrUnknownSubdomain)
	assert.Contains(t, err.Error(), `entity "Ticket"`)
	assert.Len(t, specs, 6, "files of earlier entities are returned")

	reg, err := store.Load(ctx)
	require.NoError(t, err)
	_, ok := reg.GetEntity("Contact")
	assert.True(t, ok, "earlier allocations are kept")
	_, ok = reg.GetEntity("Manufacturer")
	assert.False(t, ok, "later entities are not touched")
}

func TestPlan_ContentSourceFailure(t *testing.T) {
	boom := errors.New("template missing")
	src := ContentFunc(func(_ context.Context, a Artifact) ([]byte, error) {
		if a.Kind == pathgen.KindFunction {
			return nil, boom
		}
		return []byte("--\n"), nil
	})
	p, _ := setupPlanner(t, WithContentSource(src))

	specs, err := p.Plan(context.Background(), contactManifest())
	require.ErrorIs(t, err, boom)
	assert.Len(t, specs, 3)
}

func TestPlan_Exhausted(t *testing.T) {
	p, _ := setupPlanner(t)
	m := &manifest.Manifest{Entities: []manifest.Entity{{
		Name: "Company", Domain: "2", Subdomain: "03",
		Functions: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
	}}}

	specs, err := p.Plan(context.Background(), m)
	require.ErrorIs(t, err, registry.ErrSequenceExhausted)
	assert.Len(t, specs, 10, "primary table and nine functions")
}

func TestPlan_WritesHierarchy(t *testing.T) {
	p, store := setupPlanner(t)
	ctx := context.Background()

	specs, err := p.Plan(ctx, contactManifest())
	require.NoError(t, err)

	reg, err := store.Load(ctx)
	require.NoError(t, err)
	results, err := writer.New(t.TempDir(), reg).Write(ctx, specs)
	require.NoError(t, err)

	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.Path.Path)
	}
	assert.Contains(t, paths, "01_write_side/012_crm/0123_customer/01236_contact/0123612_tb_contact.sql")
	assert.Contains(t, paths, "02_read_side/022_crm/0223_customer/02231_contact/0223110_tv_contact.sql")
	assert.Contains(t, paths, "03_functions/032_crm/0323_customer/03236_contact/0323612_fn_contact_update.sql")
	assert.Contains(t, paths, "01_write_side/013_catalog/0131_manufacturer/01313_manufacturer/0131311_tb_manufacturer.sql")
}

func TestPlan_ViewPathsMatchPathGenerator(t *testing.T) {
	p, store := setupPlanner(t)
	ctx := context.Background()
	views := []string{"TvShow", "v_company"}
	m := &manifest.Manifest{Entities: []manifest.Entity{{
		Name: "Company", Domain: "2", Subdomain: "03", Views: views,
	}}}

	specs, err := p.Plan(ctx, m)
	require.NoError(t, err)

	reg, err := store.Load(ctx)
	require.NoError(t, err)
	results, err := writer.New(t.TempDir(), reg).Resolve(specs)
	require.NoError(t, err)

	var got []string
	for _, r := range results {
		if r.Path.Code.Layer == "02" {
			got = append(got, r.Path.Path)
		}
	}
	assert.Equal(t, []string{
		"02_read_side/022_crm/0223_customer/02231_tv_show/0223110_tv_tv_show.sql",
		"02_read_side/022_crm/0223_customer/02232_company/0223210_v_company.sql",
	}, got)

	gen := pathgen.NewReadSide(reg)
	for i, code := range []string{"0223110", "0223210"} {
		fp, err := gen.GeneratePath(code, views[i])
		require.NoError(t, err)
		assert.Equal(t, got[i], fp.Path, "path read agrees with generate for %s", views[i])
	}
}
