// Package deploy orchestrates the endpoint lifecycle: conflict check, cost
// gate, Terraform provisioning, and the pending -> active -> destroying ->
// destroyed record transitions.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hemantobora/proxygen/internal/conflict"
	"github.com/hemantobora/proxygen/internal/cost"
	"github.com/hemantobora/proxygen/internal/models"
	"github.com/hemantobora/proxygen/internal/state"
	"github.com/hemantobora/proxygen/internal/terraform"
	"github.com/hemantobora/proxygen/internal/utils"
)

// Engine is the provisioning backend. *terraform.Engine satisfies it; tests
// substitute a fake.
type Engine interface {
	Provision(ctx context.Context, spec terraform.ProvisionSpec) (*terraform.Outputs, error)
	Destroy(ctx context.Context, deploymentID string) error
	Outputs(ctx context.Context, deploymentID string) (*terraform.Outputs, error)
}

// Request describes one deployment to create.
type Request struct {
	Provider     models.Provider
	Region       string
	InstanceType string
	ForceNewIP   bool
	// Budget is a hard monthly ceiling in USD. Zero means no ceiling; the
	// per-provider warn threshold still applies.
	Budget float64
}

// Plan is the pre-flight verdict for a request: both gates evaluated, no
// resources touched.
type Plan struct {
	Request  Request
	Conflict conflict.Decision
	Cost     cost.Decision
}

// Deployer coordinates the stores, gates, and provisioning engine.
type Deployer struct {
	store           *state.Store
	checker         *conflict.Checker
	gate            *cost.Gate
	engine          Engine
	stalePendingAge time.Duration
	logger          *slog.Logger
}

// NewDeployer wires a deployer over its collaborators.
func NewDeployer(store *state.Store, checker *conflict.Checker, gate *cost.Gate, engine Engine, stalePendingAge time.Duration, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		store:           store,
		checker:         checker,
		gate:            gate,
		engine:          engine,
		stalePendingAge: stalePendingAge,
		logger:          logger,
	}
}

// Plan evaluates the conflict checker and cost gate for a request without
// creating anything. Callers decide how to react to Warn outcomes before
// calling Execute.
func (d *Deployer) Plan(req Request) (*Plan, error) {
	conflictDecision, err := d.checker.Check(req.Provider, req.Region, req.ForceNewIP)
	if err != nil {
		return nil, err
	}
	costDecision := d.gate.Evaluate(req.Provider, req.Region, req.InstanceType, req.Budget)
	return &Plan{
		Request:  req,
		Conflict: conflictDecision,
		Cost:     costDecision,
	}, nil
}

// Execute provisions one endpoint. The pending record is created first so a
// crash mid-provision leaves a visible trace; promotion to active happens
// only after the applied outputs are read back and carry a public IP.
func (d *Deployer) Execute(ctx context.Context, req Request) (*models.DeploymentRecord, error) {
	plan, err := d.Plan(req)
	if err != nil {
		return nil, err
	}
	if plan.Conflict.Outcome == conflict.Conflict {
		return nil, &models.ConflictError{
			Provider: req.Provider,
			Region:   req.Region,
			Reason:   plan.Conflict.Reason,
			RecordID: plan.Conflict.RecordID,
		}
	}
	if plan.Cost.Outcome == cost.Abort {
		return nil, &models.BudgetExceededError{
			Provider:     req.Provider,
			InstanceType: req.InstanceType,
			Estimated:    plan.Cost.Estimate.Monthly,
			Budget:       req.Budget,
		}
	}

	id, err := utils.NewDeploymentID(string(req.Provider), req.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate deployment id: %w", err)
	}

	rec := &models.DeploymentRecord{
		ID:           id,
		Provider:     req.Provider,
		Region:       req.Region,
		Status:       models.StatusPending,
		InstanceType: req.InstanceType,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := d.store.Create(ctx, rec, req.ForceNewIP); err != nil {
		return nil, err
	}

	outputs, err := d.engine.Provision(ctx, terraform.ProvisionSpec{
		DeploymentID: id,
		Provider:     string(req.Provider),
		Region:       req.Region,
		InstanceType: req.InstanceType,
	})
	if err != nil {
		d.logger.Error("provisioning failed, discarding pending record", "deployment", id, "error", err)
		if delErr := d.store.Delete(ctx, id); delErr != nil {
			d.logger.Warn("failed to discard pending record", "deployment", id, "error", delErr)
		}
		return nil, fmt.Errorf("failed to provision %s: %w", id, err)
	}

	promoted, err := d.promote(ctx, id, outputs)
	if err != nil {
		// The endpoint exists but the registry refused the promotion.
		// Leave the pending record in place with the failure recorded
		// rather than orphan a live resource.
		if _, markErr := d.store.Update(ctx, id, func(r *models.DeploymentRecord) error {
			r.LastError = err.Error()
			return nil
		}); markErr != nil {
			d.logger.Warn("failed to record promotion error", "deployment", id, "error", markErr)
		}
		return nil, err
	}

	d.logger.Info("deployment active", "deployment", id, "public_ip", promoted.PublicIP)
	return promoted, nil
}

// promote moves a pending record to active using the applied outputs.
func (d *Deployer) promote(ctx context.Context, id string, outputs *terraform.Outputs) (*models.DeploymentRecord, error) {
	if outputs.PublicIP == "" {
		return nil, fmt.Errorf("terraform outputs for %s carry no public_ip; refusing to promote", id)
	}
	return d.store.Update(ctx, id, func(r *models.DeploymentRecord) error {
		r.Status = models.StatusActive
		r.PublicIP = outputs.PublicIP
		r.PrivateIP = outputs.PrivateIP
		r.LastError = ""
		if r.Attributes == nil {
			r.Attributes = make(map[string]string)
		}
		if outputs.InstanceID != "" {
			r.Attributes["instance_id"] = outputs.InstanceID
		}
		for k, v := range outputs.Extra {
			r.Attributes[k] = v
		}
		return nil
	})
}

// Destroy tears down a deployment. Destroying an already-destroyed record is
// a no-op; a failed teardown reverts the record to active with the error
// recorded so the operator can retry.
func (d *Deployer) Destroy(ctx context.Context, id string) error {
	rec, err := d.store.Get(id)
	if err != nil {
		return err
	}

	switch rec.Status {
	case models.StatusDestroyed:
		d.logger.Info("deployment already destroyed", "deployment", id)
		return nil
	case models.StatusPending:
		// Nothing provisioned yet; discard the record.
		return d.store.Delete(ctx, id)
	case models.StatusActive, models.StatusDrifted, models.StatusDestroying:
	default:
		return &models.ValidationError{Field: "status", Message: fmt.Sprintf("cannot destroy record in status %s", rec.Status)}
	}

	if _, err := d.store.Update(ctx, id, func(r *models.DeploymentRecord) error {
		r.Status = models.StatusDestroying
		return nil
	}); err != nil {
		return err
	}

	if err := d.engine.Destroy(ctx, id); err != nil {
		if _, revertErr := d.store.Update(ctx, id, func(r *models.DeploymentRecord) error {
			r.Status = models.StatusActive
			r.LastError = err.Error()
			return nil
		}); revertErr != nil {
			d.logger.Warn("failed to revert record after destroy failure", "deployment", id, "error", revertErr)
		}
		return fmt.Errorf("failed to destroy %s: %w", id, err)
	}

	now := time.Now().UTC()
	if _, err := d.store.Update(ctx, id, func(r *models.DeploymentRecord) error {
		r.Status = models.StatusDestroyed
		r.DestroyedAt = &now
		r.LastError = ""
		return nil
	}); err != nil {
		return err
	}

	d.logger.Info("deployment destroyed", "deployment", id)
	return nil
}

// SweepStalePending resolves pending records older than the configured age:
// records whose workspace reports a public IP are promoted, the rest are
// discarded as aborted provisions. Returns promoted and discarded counts.
func (d *Deployer) SweepStalePending(ctx context.Context) (promoted, discarded int, err error) {
	pending, err := d.store.List(models.RecordFilter{Status: models.StatusPending})
	if err != nil {
		return 0, 0, err
	}

	cutoff := time.Now().UTC().Add(-d.stalePendingAge)
	for _, rec := range pending {
		if rec.CreatedAt.After(cutoff) {
			continue
		}

		outputs, outErr := d.engine.Outputs(ctx, rec.ID)
		if outErr == nil && outputs.PublicIP != "" {
			if _, promErr := d.promote(ctx, rec.ID, outputs); promErr != nil {
				d.logger.Warn("stale pending record could not be promoted", "deployment", rec.ID, "error", promErr)
				continue
			}
			d.logger.Info("promoted stale pending record", "deployment", rec.ID)
			promoted++
			continue
		}

		if delErr := d.store.Delete(ctx, rec.ID); delErr != nil {
			d.logger.Warn("failed to discard stale pending record", "deployment", rec.ID, "error", delErr)
			continue
		}
		d.logger.Info("discarded stale pending record", "deployment", rec.ID)
		discarded++
	}
	return promoted, discarded, nil
}
