package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
)

func newTestChainStore(t *testing.T, pool string) *ChainStore {
	t.Helper()
	store := newTestStore(t)
	chains, err := NewChainStore(store, pool, nil)
	if err != nil {
		t.Fatalf("new chain store: %v", err)
	}
	return chains
}

func testChain(name string) *models.ChainDefinition {
	return &models.ChainDefinition{
		Name:   name,
		Preset: models.PresetStandard,
		Hops: []models.HopRef{
			{Provider: models.ProviderAWS, Region: "us-east-1"},
			{Provider: models.ProviderHetzner, Region: "fsn1"},
			{Provider: models.ProviderDigitalOcean, Region: "ams3"},
		},
		Status:    models.ChainDraft,
		CreatedAt: time.Now().UTC(),
	}
}

func TestChainCreateAndGet(t *testing.T) {
	chains := newTestChainStore(t, "10.100.0.0/16")
	ctx := context.Background()

	if err := chains.Create(ctx, testChain("route-a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := chains.Create(ctx, testChain("route-a")); err == nil {
		t.Errorf("duplicate chain name should be rejected")
	}

	got, err := chains.Get("route-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Hops) != 3 {
		t.Errorf("expected 3 hops; got %d", len(got.Hops))
	}

	if _, err := chains.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound; got %v", err)
	}
}

func TestAllocateSubnetsAreDisjoint(t *testing.T) {
	chains := newTestChainStore(t, "10.100.0.0/16")
	ctx := context.Background()

	if err := chains.Create(ctx, testChain("a")); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := chains.Create(ctx, testChain("b")); err != nil {
		t.Fatalf("create b: %v", err)
	}

	first, err := chains.AllocateSubnets(ctx, "a", 3)
	if err != nil {
		t.Fatalf("allocate a: %v", err)
	}
	if first[0] != "10.100.0.0/24" || first[2] != "10.100.2.0/24" {
		t.Errorf("unexpected slices %v", first)
	}

	second, err := chains.AllocateSubnets(ctx, "b", 3)
	if err != nil {
		t.Fatalf("allocate b: %v", err)
	}
	seen := make(map[string]bool)
	for _, s := range append(append([]string{}, first...), second...) {
		if seen[s] {
			t.Errorf("subnet %s handed out twice", s)
		}
		seen[s] = true
	}
}

func TestReleaseSubnetsReturnsSlicesToPool(t *testing.T) {
	chains := newTestChainStore(t, "10.200.0.0/22")
	ctx := context.Background()

	if err := chains.Create(ctx, testChain("a")); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := chains.Create(ctx, testChain("b")); err != nil {
		t.Fatalf("create b: %v", err)
	}

	// a /22 pool holds exactly four /24 slices.
	if _, err := chains.AllocateSubnets(ctx, "a", 3); err != nil {
		t.Fatalf("allocate a: %v", err)
	}
	if _, err := chains.AllocateSubnets(ctx, "b", 3); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected pool exhaustion; got %v", err)
	}

	if err := chains.ReleaseSubnets(ctx, "a"); err != nil {
		t.Fatalf("release a: %v", err)
	}
	got, err := chains.AllocateSubnets(ctx, "b", 3)
	if err != nil {
		t.Fatalf("allocate b after release: %v", err)
	}
	if got[0] != "10.200.0.0/24" {
		t.Errorf("released slices should be reusable; got %v", got)
	}
}

func TestTornDownChainsDoNotReserveSubnets(t *testing.T) {
	chains := newTestChainStore(t, "10.100.0.0/16")
	ctx := context.Background()

	if err := chains.Create(ctx, testChain("a")); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if _, err := chains.AllocateSubnets(ctx, "a", 2); err != nil {
		t.Fatalf("allocate a: %v", err)
	}
	if _, err := chains.Update(ctx, "a", func(def *models.ChainDefinition) error {
		def.Status = models.ChainTornDown
		return nil
	}); err != nil {
		t.Fatalf("update a: %v", err)
	}

	if err := chains.Create(ctx, testChain("b")); err != nil {
		t.Fatalf("create b: %v", err)
	}
	got, err := chains.AllocateSubnets(ctx, "b", 2)
	if err != nil {
		t.Fatalf("allocate b: %v", err)
	}
	if got[0] != "10.100.0.0/24" {
		t.Errorf("torn-down chain should not reserve slices; got %v", got)
	}
}

func TestNewChainStoreRejectsBadPools(t *testing.T) {
	store := newTestStore(t)
	for _, pool := range []string{"not-a-cidr", "10.0.0.0/25", "2001:db8::/64"} {
		if _, err := NewChainStore(store, pool, nil); err == nil {
			t.Errorf("pool %q should be rejected", pool)
		}
	}
}
