package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemantobora/proxygen/internal/cloud"
	"github.com/hemantobora/proxygen/internal/models"
	"github.com/hemantobora/proxygen/internal/state"
)

// fakeQuerier serves a mutable canned instance list.
type fakeQuerier struct {
	provider  models.Provider
	instances []cloud.LiveInstance
}

func (f *fakeQuerier) Provider() models.Provider           { return f.provider }
func (f *fakeQuerier) Preflight(ctx context.Context) error { return nil }
func (f *fakeQuerier) ListInstances(ctx context.Context, region string) ([]cloud.LiveInstance, error) {
	return f.instances, nil
}

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.Open(t.TempDir(), 2*time.Second, nil)
	require.NoError(t, err)
	return store
}

func seedActive(t *testing.T, store *state.Store, id, instanceID, ip string) {
	t.Helper()
	rec := &models.DeploymentRecord{
		ID:        id,
		Provider:  models.ProviderHetzner,
		Region:    "fsn1",
		Status:    models.StatusActive,
		PublicIP:  ip,
		CreatedAt: time.Now().UTC(),
		Attributes: map[string]string{
			"instance_id": instanceID,
		},
	}
	_, err := store.Create(context.Background(), rec, true)
	require.NoError(t, err)
}

func TestSyncImportsUntrackedInstances(t *testing.T) {
	store := newTestStore(t)
	reconciler := New(store, nil)
	ctx := context.Background()

	querier := &fakeQuerier{
		provider: models.ProviderHetzner,
		instances: []cloud.LiveInstance{
			{InstanceID: "777", Name: "proxygen-fsn1-x", PublicIP: "95.1.2.3", PrivateIP: "10.0.0.2"},
		},
	}

	report, err := reconciler.Sync(ctx, querier, "fsn1")
	require.NoError(t, err)
	require.Len(t, report.Added, 1)
	assert.Empty(t, report.Removed)
	assert.Empty(t, report.Drifted)

	rec, err := store.Get(report.Added[0])
	require.NoError(t, err)
	assert.Equal(t, models.StatusDrifted, rec.Status)
	assert.Equal(t, "95.1.2.3", rec.PublicIP)
	assert.Equal(t, "777", rec.InstanceID())
	assert.NotEmpty(t, rec.DriftReason)

	// A second pass proposes nothing new.
	again, err := reconciler.Sync(ctx, querier, "fsn1")
	require.NoError(t, err)
	assert.True(t, again.Empty(), "second sync should be a no-op, got %+v", again)
}

func TestSyncMarksMissingInstancesForRemoval(t *testing.T) {
	store := newTestStore(t)
	seedActive(t, store, "hz-gone", "111", "95.1.1.1")
	reconciler := New(store, nil)
	ctx := context.Background()

	querier := &fakeQuerier{provider: models.ProviderHetzner}
	report, err := reconciler.Sync(ctx, querier, "fsn1")
	require.NoError(t, err)
	require.Equal(t, []string{"hz-gone"}, report.Removed)

	rec, err := store.Get("hz-gone")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDrifted, rec.Status)

	again, err := reconciler.Sync(ctx, querier, "fsn1")
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestSyncAnnotatesChangedPublicIP(t *testing.T) {
	store := newTestStore(t)
	seedActive(t, store, "hz-1", "222", "95.1.1.1")
	reconciler := New(store, nil)
	ctx := context.Background()

	querier := &fakeQuerier{
		provider: models.ProviderHetzner,
		instances: []cloud.LiveInstance{
			{InstanceID: "222", Name: "proxygen-fsn1-y", PublicIP: "95.9.9.9"},
		},
	}

	report, err := reconciler.Sync(ctx, querier, "fsn1")
	require.NoError(t, err)
	require.Equal(t, []string{"hz-1"}, report.Drifted)

	rec, err := store.Get("hz-1")
	require.NoError(t, err)
	// The record stays active; only the annotation records the disagreement.
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.Contains(t, rec.DriftReason, "95.9.9.9")

	again, err := reconciler.Sync(ctx, querier, "fsn1")
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestCommitPromotesAndRetires(t *testing.T) {
	store := newTestStore(t)
	seedActive(t, store, "hz-gone", "111", "95.1.1.1")
	reconciler := New(store, nil)
	ctx := context.Background()

	querier := &fakeQuerier{
		provider: models.ProviderHetzner,
		instances: []cloud.LiveInstance{
			{InstanceID: "777", Name: "proxygen-fsn1-x", PublicIP: "95.2.2.2"},
		},
	}

	report, err := reconciler.Sync(ctx, querier, "fsn1")
	require.NoError(t, err)
	require.Len(t, report.Added, 1)
	require.Len(t, report.Removed, 1)

	require.NoError(t, reconciler.Commit(ctx, report))

	imported, err := store.Get(report.Added[0])
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, imported.Status)
	assert.Empty(t, imported.DriftReason)

	retired, err := store.Get("hz-gone")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDestroyed, retired.Status)
	require.NotNil(t, retired.DestroyedAt)
}

func TestPromoteRejectsNonCandidates(t *testing.T) {
	store := newTestStore(t)
	seedActive(t, store, "hz-1", "222", "95.1.1.1")
	reconciler := New(store, nil)

	err := reconciler.Promote(context.Background(), "hz-1")
	assert.Error(t, err, "active records are not promotable candidates")
}
