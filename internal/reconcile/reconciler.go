// Package reconcile compares the registry against live provider state and
// proposes corrections. Reconciliation is deliberately two-phase: Sync only
// annotates drift, and nothing is promoted or retired until an operator
// confirms and Commit applies the report.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hemantobora/proxygen/internal/cloud"
	"github.com/hemantobora/proxygen/internal/models"
	"github.com/hemantobora/proxygen/internal/state"
	"github.com/hemantobora/proxygen/internal/utils"
)

// Report summarizes one reconciliation pass over a (provider, region).
type Report struct {
	Provider models.Provider `json:"provider"`
	Region   string          `json:"region"`
	// Added lists record ids created for live resources the registry did not
	// know about. They are candidates: status drifted until committed.
	Added []string `json:"added,omitempty"`
	// Removed lists previously-active record ids whose instance no longer
	// exists live. They are marked drifted, never deleted automatically.
	Removed []string `json:"removed,omitempty"`
	// Drifted lists record ids whose live attributes disagree with the
	// registry (for example a changed public IP).
	Drifted  []string  `json:"drifted,omitempty"`
	SyncedAt time.Time `json:"synced_at"`
}

// Empty reports whether the pass found nothing to propose.
func (r *Report) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Drifted) == 0
}

// Reconciler merges live provider state into the record store.
type Reconciler struct {
	store  *state.Store
	logger *slog.Logger
}

// New creates a reconciler over the given store.
func New(store *state.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// Sync queries the provider's live instances in the region and matches them
// against the registry by instance id. Sync is idempotent: a second pass with
// no intervening change yields an empty report, because every discrepancy the
// first pass found is already annotated on a record.
func (r *Reconciler) Sync(ctx context.Context, querier cloud.Querier, region string) (*Report, error) {
	provider := querier.Provider()
	report := &Report{Provider: provider, Region: region, SyncedAt: time.Now().UTC()}

	live, err := querier.ListInstances(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("failed to query live %s state: %w", provider, err)
	}

	records, err := r.store.List(models.RecordFilter{Provider: provider, Region: region})
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	byInstance := make(map[string]*models.DeploymentRecord, len(records))
	for _, rec := range records {
		if id := rec.InstanceID(); id != "" {
			byInstance[id] = rec
		}
	}

	liveIDs := make(map[string]bool, len(live))
	for _, inst := range live {
		liveIDs[inst.InstanceID] = true

		rec, known := byInstance[inst.InstanceID]
		if !known {
			id, err := r.importCandidate(ctx, inst, provider, region)
			if err != nil {
				return nil, err
			}
			report.Added = append(report.Added, id)
			continue
		}

		if rec.Status == models.StatusActive && rec.PublicIP != inst.PublicIP {
			detail := fmt.Sprintf("live public IP %s disagrees with registry %s", inst.PublicIP, rec.PublicIP)
			if rec.DriftReason == detail {
				continue // already annotated by a previous pass
			}
			if err := r.annotate(ctx, rec.ID, detail, false); err != nil {
				return nil, err
			}
			report.Drifted = append(report.Drifted, rec.ID)
		}
	}

	for _, rec := range records {
		if rec.Status != models.StatusActive {
			continue
		}
		instID := rec.InstanceID()
		if instID == "" || liveIDs[instID] {
			continue
		}
		detail := fmt.Sprintf("instance %s not found in live %s state", instID, provider)
		if err := r.annotate(ctx, rec.ID, detail, true); err != nil {
			return nil, err
		}
		report.Removed = append(report.Removed, rec.ID)
	}

	if !report.Empty() {
		r.logger.Info("reconciliation found drift", "provider", provider, "region", region,
			"added", len(report.Added), "removed", len(report.Removed), "drifted", len(report.Drifted))
	}
	return report, nil
}

// Commit applies a confirmed report: added candidates with a public IP are
// promoted to active, and removed candidates are retired to destroyed. The
// caller is responsible for obtaining operator confirmation first.
func (r *Reconciler) Commit(ctx context.Context, report *Report) error {
	for _, id := range report.Added {
		if err := r.Promote(ctx, id); err != nil {
			return err
		}
	}
	for _, id := range report.Removed {
		if err := r.Retire(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Promote confirms an imported drift candidate as a real deployment.
func (r *Reconciler) Promote(ctx context.Context, id string) error {
	_, err := r.store.Update(ctx, id, func(rec *models.DeploymentRecord) error {
		if rec.Status != models.StatusDrifted {
			return &models.ValidationError{Field: "status", Message: fmt.Sprintf("record %s is %s, only drifted candidates can be promoted", id, rec.Status)}
		}
		if rec.PublicIP == "" {
			return &models.ValidationError{Field: "public_ip", Message: fmt.Sprintf("record %s has no public IP, cannot promote to active", id)}
		}
		rec.Status = models.StatusActive
		rec.DriftReason = ""
		rec.DriftedAt = nil
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to promote %s: %w", id, err)
	}
	r.logger.Info("promoted drift candidate", "id", id)
	return nil
}

// Retire confirms that a drifted record's instance is gone and closes it out.
// The record is retained as destroyed for audit.
func (r *Reconciler) Retire(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.store.Update(ctx, id, func(rec *models.DeploymentRecord) error {
		if rec.Status != models.StatusDrifted {
			return &models.ValidationError{Field: "status", Message: fmt.Sprintf("record %s is %s, only drifted records can be retired", id, rec.Status)}
		}
		rec.Status = models.StatusDestroyed
		rec.DestroyedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to retire %s: %w", id, err)
	}
	r.logger.Info("retired drifted record", "id", id)
	return nil
}

// importCandidate creates a drifted record for a live resource the registry
// does not know about.
func (r *Reconciler) importCandidate(ctx context.Context, inst cloud.LiveInstance, provider models.Provider, region string) (string, error) {
	now := time.Now().UTC()
	created := inst.LaunchedAt
	if created.IsZero() {
		created = now
	}
	rec := &models.DeploymentRecord{
		ID:           utils.DiscoveredID(string(provider), region, inst.InstanceID),
		Provider:     provider,
		Region:       region,
		Status:       models.StatusDrifted,
		PublicIP:     inst.PublicIP,
		PrivateIP:    inst.PrivateIP,
		InstanceType: inst.InstanceType,
		CreatedAt:    created,
		Attributes: map[string]string{
			"instance_id": inst.InstanceID,
			"discovered":  "true",
		},
		DriftReason: "live resource not tracked by the registry",
		DriftedAt:   &now,
	}
	if inst.Name != "" {
		rec.Attributes["instance_name"] = inst.Name
	}

	// forceNewIP: a discovered candidate must never be rejected because a
	// registered deployment already lives in the region.
	if _, err := r.store.Create(ctx, rec, true); err != nil {
		return "", fmt.Errorf("failed to import candidate for instance %s: %w", inst.InstanceID, err)
	}
	return rec.ID, nil
}

// annotate marks a record as drifted with the given detail. When demote is
// true, the record's status changes to drifted; otherwise the status is kept
// and only the annotation fields change.
func (r *Reconciler) annotate(ctx context.Context, id, detail string, demote bool) error {
	now := time.Now().UTC()
	_, err := r.store.Update(ctx, id, func(rec *models.DeploymentRecord) error {
		if demote {
			rec.Status = models.StatusDrifted
		}
		rec.DriftReason = detail
		rec.DriftedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to annotate drift on %s: %w", id, err)
	}
	return nil
}
