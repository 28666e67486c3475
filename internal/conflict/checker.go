// Package conflict validates a proposed deployment against the registry and,
// optionally, live provider state before provisioning is allowed to run.
// The checker is strictly read-only: it reports conflicts for a human to
// resolve and never mutates anything.
package conflict

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hemantobora/proxygen/internal/cloud"
	"github.com/hemantobora/proxygen/internal/models"
	"github.com/hemantobora/proxygen/internal/state"
)

// Outcome is the checker's verdict.
type Outcome int

const (
	// Proceed means no conflict was found.
	Proceed Outcome = iota
	// Conflict means provisioning must not continue without a human decision.
	Conflict
)

// Decision is the result of a conflict check.
type Decision struct {
	Outcome Outcome
	// Reason explains the conflict; empty on Proceed.
	Reason string
	// RecordID is the registry record involved, if any.
	RecordID string
}

// String renders the decision for CLI output.
func (d Decision) String() string {
	if d.Outcome == Proceed {
		return "proceed"
	}
	if d.RecordID != "" {
		return fmt.Sprintf("conflict: %s (record %s)", d.Reason, d.RecordID)
	}
	return "conflict: " + d.Reason
}

// Checker validates (provider, region) targets against the record store.
type Checker struct {
	store  *state.Store
	logger *slog.Logger
}

// New creates a checker over the given store.
func New(store *state.Store, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{store: store, logger: logger}
}

// Check inspects the registry for an existing deployment in the target
// (provider, region). With forceNewIP false, any pending or active record
// there is a conflict. forceNewIP permits a second deployment in the same
// region but never overrides anything else.
func (c *Checker) Check(provider models.Provider, region string, forceNewIP bool) (Decision, error) {
	records, err := c.store.List(models.RecordFilter{Provider: provider, Region: region})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read registry: %w", err)
	}

	for _, rec := range records {
		switch rec.Status {
		case models.StatusActive, models.StatusPending:
			if !forceNewIP {
				c.logger.Warn("conflict detected", "provider", provider, "region", region, "record", rec.ID)
				return Decision{Outcome: Conflict, Reason: "existing active deployment", RecordID: rec.ID}, nil
			}
		case models.StatusDestroying:
			// A destroy in flight still owns the region's resources; even a
			// forced deploy must wait for it to finish.
			return Decision{Outcome: Conflict, Reason: "destroy in progress", RecordID: rec.ID}, nil
		}
	}

	return Decision{Outcome: Proceed}, nil
}

// CheckLive cross-checks the target region against the provider's live
// resource list. A proxygen-managed instance the registry does not know about
// is reported as a conflict: someone (or a crashed run) created it outside
// the registry, and only an operator may decide what happens to it.
func (c *Checker) CheckLive(ctx context.Context, querier cloud.Querier, region string) (Decision, error) {
	provider := querier.Provider()

	live, err := querier.ListInstances(ctx, region)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to query live %s state: %w", provider, err)
	}
	if len(live) == 0 {
		return Decision{Outcome: Proceed}, nil
	}

	records, err := c.store.List(models.RecordFilter{Provider: provider, Region: region})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read registry: %w", err)
	}

	known := make(map[string]bool, len(records))
	for _, rec := range records {
		if id := rec.InstanceID(); id != "" {
			known[id] = true
		}
	}

	for _, inst := range live {
		if known[inst.InstanceID] {
			continue
		}
		c.logger.Warn("untracked live resource", "provider", provider, "region", region,
			"instance_id", inst.InstanceID, "name", inst.Name)
		return Decision{
			Outcome: Conflict,
			Reason:  fmt.Sprintf("untracked resource detected (%s, %s)", inst.InstanceID, inst.PublicIP),
		}, nil
	}

	return Decision{Outcome: Proceed}, nil
}
