package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), 2*time.Second, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func testRecord(id string, provider models.Provider, region string) *models.DeploymentRecord {
	return &models.DeploymentRecord{
		ID:        id,
		Provider:  provider,
		Region:    region,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("aws-us-east-1-a", models.ProviderAWS, "us-east-1")
	rec.InstanceType = "t3.micro"
	if _, err := store.Create(ctx, rec, false); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Provider != models.ProviderAWS || got.Region != "us-east-1" || got.InstanceType != "t3.micro" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Status != models.StatusPending {
		t.Errorf("expected pending; got %s", got.Status)
	}
}

func TestGetUnknownRecord(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound; got %v", err)
	}
}

func TestCreateRejectsSecondDeploymentInRegion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, testRecord("aws-1", models.ProviderAWS, "us-east-1"), false); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := store.Create(ctx, testRecord("aws-2", models.ProviderAWS, "us-east-1"), false)
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict; got %v", err)
	}
	if conflict.RecordID != "aws-1" {
		t.Errorf("conflict should name the existing record; got %s", conflict.RecordID)
	}

	// forceNewIP allows a second deployment in the same region.
	if _, err := store.Create(ctx, testRecord("aws-2", models.ProviderAWS, "us-east-1"), true); err != nil {
		t.Errorf("forced create: %v", err)
	}

	// A different region never conflicts.
	if _, err := store.Create(ctx, testRecord("aws-3", models.ProviderAWS, "eu-west-1"), false); err != nil {
		t.Errorf("create in other region: %v", err)
	}
}

func TestActivePublicIPMustBeUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	activate := func(id, ip string) error {
		_, err := store.Update(ctx, id, func(r *models.DeploymentRecord) error {
			r.Status = models.StatusActive
			r.PublicIP = ip
			return nil
		})
		return err
	}

	if _, err := store.Create(ctx, testRecord("a", models.ProviderAWS, "us-east-1"), false); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if _, err := store.Create(ctx, testRecord("b", models.ProviderHetzner, "fsn1"), false); err != nil {
		t.Fatalf("create b: %v", err)
	}

	if err := activate("a", "54.1.2.3"); err != nil {
		t.Fatalf("activate a: %v", err)
	}

	err := activate("b", "54.1.2.3")
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected IP conflict; got %v", err)
	}

	if err := activate("b", "95.4.5.6"); err != nil {
		t.Errorf("activate with fresh IP: %v", err)
	}
}

func TestDeleteOnlyPendingRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, testRecord("p", models.ProviderAWS, "us-east-1"), false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, "p"); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
	if _, err := store.Get("p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("record should be gone; got %v", err)
	}

	if _, err := store.Create(ctx, testRecord("a", models.ProviderAWS, "us-east-1"), false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Update(ctx, "a", func(r *models.DeploymentRecord) error {
		r.Status = models.StatusActive
		r.PublicIP = "54.1.1.1"
		return nil
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := store.Delete(ctx, "a"); err == nil {
		t.Errorf("deleting an active record should fail")
	}
}

func TestCleanupPurgesOldDestroyedRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-90 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)

	for id, destroyedAt := range map[string]time.Time{"old": old, "recent": recent} {
		at := destroyedAt
		rec := testRecord(id, models.ProviderAWS, "us-east-1")
		rec.Status = models.StatusDestroyed
		rec.DestroyedAt = &at
		if _, err := store.Create(ctx, rec, true); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	removed, err := store.Cleanup(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed; got %d", removed)
	}
	if _, err := store.Get("recent"); err != nil {
		t.Errorf("recent record should survive: %v", err)
	}
	if _, err := store.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old record should be purged; got %v", err)
	}
}

func TestWriteKeepsBackupCopy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, testRecord("a", models.ProviderAWS, "us-east-1"), false); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if _, err := store.Create(ctx, testRecord("b", models.ProviderHetzner, "fsn1"), false); err != nil {
		t.Fatalf("create b: %v", err)
	}

	backup, err := os.ReadFile(filepath.Join(store.Dir(), "registry.json.backup"))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if len(backup) == 0 {
		t.Errorf("backup should hold the previous document")
	}
}

func TestLockTimeout(t *testing.T) {
	dir := t.TempDir()
	holder, err := Open(dir, time.Second, nil)
	if err != nil {
		t.Fatalf("open holder: %v", err)
	}
	ctx := context.Background()
	if err := holder.Lock().Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer holder.Lock().Release()

	blocked, err := Open(dir, 150*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("open blocked: %v", err)
	}

	_, err = blocked.Create(ctx, testRecord("x", models.ProviderAWS, "us-east-1"), false)
	var timeout *models.LockTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected lock timeout; got %v", err)
	}
	if !errors.Is(err, ErrLocked) {
		t.Errorf("timeout should also match ErrLocked; got %v", err)
	}
}
