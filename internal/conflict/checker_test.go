package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/hemantobora/proxygen/internal/cloud"
	"github.com/hemantobora/proxygen/internal/models"
	"github.com/hemantobora/proxygen/internal/state"
)

func newStoreWith(t *testing.T, records ...*models.DeploymentRecord) *state.Store {
	t.Helper()
	store, err := state.Open(t.TempDir(), 2*time.Second, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	for _, rec := range records {
		if _, err := store.Create(ctx, rec, true); err != nil {
			t.Fatalf("seed %s: %v", rec.ID, err)
		}
	}
	return store
}

func record(id string, provider models.Provider, region string, status models.RecordStatus, ip string) *models.DeploymentRecord {
	return &models.DeploymentRecord{
		ID:        id,
		Provider:  provider,
		Region:    region,
		Status:    status,
		PublicIP:  ip,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCheckActiveDeploymentConflicts(t *testing.T) {
	store := newStoreWith(t, record("aws-1", models.ProviderAWS, "us-east-1", models.StatusActive, "54.1.2.3"))
	checker := New(store, nil)

	decision, err := checker.Check(models.ProviderAWS, "us-east-1", false)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Outcome != Conflict {
		t.Fatalf("expected conflict; got %v", decision)
	}
	if decision.RecordID != "aws-1" {
		t.Errorf("decision should name the record; got %q", decision.RecordID)
	}

	// Force permits a second deployment in the same region.
	decision, err = checker.Check(models.ProviderAWS, "us-east-1", true)
	if err != nil {
		t.Fatalf("forced check: %v", err)
	}
	if decision.Outcome != Proceed {
		t.Errorf("forced check should proceed; got %v", decision)
	}

	// Other regions and providers are unaffected.
	decision, err = checker.Check(models.ProviderAWS, "eu-west-1", false)
	if err != nil {
		t.Fatalf("check other region: %v", err)
	}
	if decision.Outcome != Proceed {
		t.Errorf("other region should proceed; got %v", decision)
	}
}

func TestCheckDestroyedRecordsDoNotConflict(t *testing.T) {
	destroyed := record("aws-old", models.ProviderAWS, "us-east-1", models.StatusDestroyed, "")
	at := time.Now().UTC()
	destroyed.DestroyedAt = &at

	store := newStoreWith(t, destroyed)
	checker := New(store, nil)

	decision, err := checker.Check(models.ProviderAWS, "us-east-1", false)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Outcome != Proceed {
		t.Errorf("destroyed record should not conflict; got %v", decision)
	}
}

func TestCheckDestroyInProgressBlocksEvenForced(t *testing.T) {
	store := newStoreWith(t, record("az-1", models.ProviderAzure, "westeurope", models.StatusDestroying, "20.1.2.3"))
	checker := New(store, nil)

	for _, force := range []bool{false, true} {
		decision, err := checker.Check(models.ProviderAzure, "westeurope", force)
		if err != nil {
			t.Fatalf("check force=%v: %v", force, err)
		}
		if decision.Outcome != Conflict || decision.Reason != "destroy in progress" {
			t.Errorf("force=%v: expected destroy-in-progress conflict; got %v", force, decision)
		}
	}
}

// fakeQuerier serves a canned instance list for CheckLive tests.
type fakeQuerier struct {
	provider  models.Provider
	instances []cloud.LiveInstance
}

func (f *fakeQuerier) Provider() models.Provider { return f.provider }
func (f *fakeQuerier) Preflight(ctx context.Context) error {
	return nil
}
func (f *fakeQuerier) ListInstances(ctx context.Context, region string) ([]cloud.LiveInstance, error) {
	return f.instances, nil
}

func TestCheckLiveFlagsUntrackedResources(t *testing.T) {
	tracked := record("hz-1", models.ProviderHetzner, "fsn1", models.StatusActive, "95.1.2.3")
	tracked.Attributes = map[string]string{"instance_id": "1234"}
	store := newStoreWith(t, tracked)
	checker := New(store, nil)
	ctx := context.Background()

	querier := &fakeQuerier{
		provider: models.ProviderHetzner,
		instances: []cloud.LiveInstance{
			{InstanceID: "1234", Name: "proxygen-hz-1", PublicIP: "95.1.2.3"},
		},
	}
	decision, err := checker.CheckLive(ctx, querier, "fsn1")
	if err != nil {
		t.Fatalf("check live: %v", err)
	}
	if decision.Outcome != Proceed {
		t.Errorf("tracked instance should proceed; got %v", decision)
	}

	querier.instances = append(querier.instances, cloud.LiveInstance{
		InstanceID: "9999", Name: "proxygen-orphan", PublicIP: "95.9.9.9",
	})
	decision, err = checker.CheckLive(ctx, querier, "fsn1")
	if err != nil {
		t.Fatalf("check live: %v", err)
	}
	if decision.Outcome != Conflict {
		t.Errorf("untracked instance should conflict; got %v", decision)
	}
}
