// Package chain composes independently-provisioned endpoints into validated
// multi-hop topologies: ordered hop sequences with non-colliding per-hop
// addressing and peer linkage. The builder reads committed deployment
// records; it never provisions resources itself.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
	"github.com/hemantobora/proxygen/internal/state"
)

// presetPolicy constrains chain shape for one preset.
type presetPolicy struct {
	// MinHops is the minimum chain length.
	MinHops int
	// ProviderDiversity requires hops to span at least ceil(hops/2) distinct
	// providers.
	ProviderDiversity bool
}

// presetPolicies holds the default policy per preset. The numeric minimums
// are policy defaults, not protocol constants.
var presetPolicies = map[models.Preset]presetPolicy{
	models.PresetStandard:    {MinHops: 3},
	models.PresetParanoid:    {MinHops: 4, ProviderDiversity: true},
	models.PresetPerformance: {MinHops: 2},
	models.PresetBalanced:    {MinHops: 3},
	models.PresetCustom:      {MinHops: 2},
}

// Outcome is the validator's verdict.
type Outcome int

const (
	Valid Outcome = iota
	Invalid
)

// Decision is the result of validating a chain definition.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// String renders the decision for CLI output.
func (d Decision) String() string {
	if d.Outcome == Valid {
		return "valid"
	}
	return "invalid: " + d.Reason
}

// Builder validates chain definitions and assembles them into routed plans.
type Builder struct {
	store  *state.Store
	chains *state.ChainStore
	// baseListenPort is hop 0's tunnel port; hop i listens on base+i so
	// several tunnel interfaces can share a host.
	baseListenPort int
	maxHops        int
	logger         *slog.Logger
}

// NewBuilder creates a builder over the record and chain stores.
func NewBuilder(store *state.Store, chains *state.ChainStore, baseListenPort, maxHops int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:          store,
		chains:         chains,
		baseListenPort: baseListenPort,
		maxHops:        maxHops,
		logger:         logger,
	}
}

// Validate checks a definition against its preset policy and the registry:
// hop count, adjacent-duplicate rule, provider diversity, and that every hop
// resolves to a distinct active deployment record.
func (b *Builder) Validate(def *models.ChainDefinition) (Decision, error) {
	if err := def.Validate(); err != nil {
		return Decision{Outcome: Invalid, Reason: err.Error()}, nil
	}

	// The adjacency rule is checked before the hop-count gates so a chain
	// that repeats a (provider, region) back to back is reported as such even
	// when it is also too short for its preset.
	providers := make(map[models.Provider]bool)
	for i, hop := range def.Hops {
		providers[hop.Provider] = true
		if i == 0 {
			continue
		}
		prev := def.Hops[i-1]
		if prev.Provider == hop.Provider && prev.Region == hop.Region {
			return Decision{
				Outcome: Invalid,
				Reason:  fmt.Sprintf("adjacent duplicate hop %s at positions %d and %d", hop, i-1, i),
			}, nil
		}
	}

	policy := presetPolicies[def.Preset]
	if len(def.Hops) < policy.MinHops {
		return Decision{
			Outcome: Invalid,
			Reason:  fmt.Sprintf("preset %s requires at least %d hops, got %d", def.Preset, policy.MinHops, len(def.Hops)),
		}, nil
	}
	if b.maxHops > 0 && len(def.Hops) > b.maxHops {
		return Decision{
			Outcome: Invalid,
			Reason:  fmt.Sprintf("at most %d hops supported, got %d", b.maxHops, len(def.Hops)),
		}, nil
	}

	if policy.ProviderDiversity {
		need := int(math.Ceil(float64(len(def.Hops)) / 2))
		if len(providers) < need {
			return Decision{
				Outcome: Invalid,
				Reason:  fmt.Sprintf("preset %s requires at least %d distinct providers, got %d", def.Preset, need, len(providers)),
			}, nil
		}
	}

	if _, err := b.resolveHops(def); err != nil {
		if reason, ok := err.(*unresolvableError); ok {
			return Decision{Outcome: Invalid, Reason: reason.Error()}, nil
		}
		return Decision{}, err
	}

	return Decision{Outcome: Valid}, nil
}

// Build resolves each hop to its active record, allocates per-hop subnet
// slices through the shared store lock, and links each hop to its successor.
// The last hop is the exit node and has no forwarding target. A successful
// build marks the stored chain deployed.
func (b *Builder) Build(ctx context.Context, def *models.ChainDefinition) (*models.ChainPlan, error) {
	decision, err := b.Validate(def)
	if err != nil {
		return nil, err
	}
	if decision.Outcome == Invalid {
		return nil, &models.ValidationError{Field: "chain", Message: decision.Reason}
	}

	records, err := b.resolveHops(def)
	if err != nil {
		return nil, err
	}

	subnets := def.Subnets
	if len(subnets) < len(records) {
		subnets, err = b.chains.AllocateSubnets(ctx, def.Name, len(records))
		if err != nil {
			return nil, fmt.Errorf("failed to allocate subnets for chain %s: %w", def.Name, err)
		}
	}

	plan := &models.ChainPlan{
		Name:    def.Name,
		Preset:  def.Preset,
		Hops:    make([]models.PlannedHop, len(records)),
		BuiltAt: time.Now().UTC(),
	}
	for i, rec := range records {
		hop := models.PlannedHop{
			Index:      i,
			Record:     rec,
			Role:       roleFor(i, len(records)),
			Subnet:     subnets[i],
			GatewayIP:  gatewayFor(subnets[i]),
			ListenPort: b.baseListenPort + i,
		}
		if i < len(records)-1 {
			next := records[i+1]
			hop.ForwardTo = fmt.Sprintf("%s:%d", next.PublicIP, b.baseListenPort+i+1)
		}
		plan.Hops[i] = hop
	}

	// A chain with addressing and a resolved plan is deployed; teardown is
	// the only transition out of this state.
	if def.Status != models.ChainDeployed {
		updated, err := b.chains.Update(ctx, def.Name, func(d *models.ChainDefinition) error {
			d.Status = models.ChainDeployed
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to mark chain %s deployed: %w", def.Name, err)
		}
		def.Status = updated.Status
	}

	b.logger.Info("built chain plan", "chain", def.Name, "hops", len(plan.Hops))
	return plan, nil
}

// ExpandPreset produces a hop sequence for the preset from the available
// providers and regions, pairing them positionally and cycling the shorter
// list until the preset's minimum hop count is met.
func ExpandPreset(preset models.Preset, providers []models.Provider, regions []string) ([]models.HopRef, error) {
	if len(providers) == 0 || len(regions) == 0 {
		return nil, &models.ValidationError{Field: "hops", Message: "at least one provider and one region are required"}
	}

	policy, ok := presetPolicies[preset]
	if !ok {
		return nil, &models.ValidationError{Field: "preset", Message: fmt.Sprintf("unknown preset %q", preset)}
	}

	count := len(regions)
	if len(providers) > count {
		count = len(providers)
	}
	if count < policy.MinHops {
		count = policy.MinHops
	}

	hops := make([]models.HopRef, count)
	for i := range hops {
		hops[i] = models.HopRef{
			Provider: providers[i%len(providers)],
			Region:   regions[i%len(regions)],
		}
	}

	for i := 1; i < len(hops); i++ {
		if hops[i] == hops[i-1] {
			return nil, &models.ValidationError{
				Field:   "hops",
				Message: fmt.Sprintf("expanding preset %s produced adjacent duplicate hop %s; supply more providers or regions", preset, hops[i]),
			}
		}
	}
	return hops, nil
}

// Teardown releases the chain's subnet slices and marks it torn down. The
// underlying deployment records are lifecycle-managed independently and stay
// untouched.
func (b *Builder) Teardown(ctx context.Context, name string) error {
	if err := b.chains.ReleaseSubnets(ctx, name); err != nil {
		return err
	}
	_, err := b.chains.Update(ctx, name, func(def *models.ChainDefinition) error {
		def.Status = models.ChainTornDown
		return nil
	})
	if err != nil {
		return err
	}
	b.logger.Info("chain torn down", "chain", name)
	return nil
}

// unresolvableError distinguishes "this chain cannot be satisfied" from
// infrastructure failures while reading the registry.
type unresolvableError struct{ reason string }

func (e *unresolvableError) Error() string { return e.reason }

// resolveHops maps each hop reference to a distinct active record. The most
// recently created active record in each (provider, region) wins; a single
// record may not back two hops of the same chain.
func (b *Builder) resolveHops(def *models.ChainDefinition) ([]*models.DeploymentRecord, error) {
	used := make(map[string]bool, len(def.Hops))
	records := make([]*models.DeploymentRecord, len(def.Hops))

	for i, hop := range def.Hops {
		candidates, err := b.store.List(models.RecordFilter{
			Provider: hop.Provider,
			Region:   hop.Region,
			Status:   models.StatusActive,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read registry: %w", err)
		}

		var chosen *models.DeploymentRecord
		for _, rec := range candidates {
			if used[rec.ID] {
				continue
			}
			if chosen == nil || rec.CreatedAt.After(chosen.CreatedAt) {
				chosen = rec
			}
		}
		if chosen == nil {
			return nil, &unresolvableError{
				reason: fmt.Sprintf("hop %d (%s) does not resolve to a distinct active deployment", i, hop),
			}
		}
		used[chosen.ID] = true
		records[i] = chosen
	}
	return records, nil
}

func roleFor(index, total int) models.HopRole {
	switch {
	case index == 0:
		return models.RoleEntry
	case index == total-1:
		return models.RoleExit
	default:
		return models.RoleMiddle
	}
}

// gatewayFor returns the first host of a /24 slice, e.g. 10.100.3.1 for
// 10.100.3.0/24.
func gatewayFor(subnet string) string {
	ip, _, err := net.ParseCIDR(subnet)
	if err != nil {
		return ""
	}
	v4 := ip.To4()
	if v4 == nil {
		return ""
	}
	return strings.Join([]string{
		fmt.Sprint(v4[0]), fmt.Sprint(v4[1]), fmt.Sprint(v4[2]), "1",
	}, ".")
}
