// Package cloud queries live provider state for proxygen-managed endpoints.
// Queriers are read-only: they never create or destroy resources, they only
// report what a provider believes exists so the conflict checker and the
// reconciler can compare it against the registry.
package cloud

import (
	"context"
	"strings"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
)

// NamePrefix marks resources managed by proxygen. Every instance, VM and
// droplet the provisioning templates create is named proxygen-{region}-{uid}.
const NamePrefix = "proxygen-"

// ManagedByTag is set on resources the provisioning templates create.
const ManagedByTag = "proxygen"

// LiveInstance is one endpoint as reported by a provider's live API or CLI.
type LiveInstance struct {
	InstanceID   string            `json:"instance_id"`
	Name         string            `json:"name"`
	Region       string            `json:"region"`
	PublicIP     string            `json:"public_ip,omitempty"`
	PrivateIP    string            `json:"private_ip,omitempty"`
	InstanceType string            `json:"instance_type,omitempty"`
	State        string            `json:"state,omitempty"`
	LaunchedAt   time.Time         `json:"launched_at,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// Managed reports whether the instance carries proxygen's naming or tags.
func (i LiveInstance) Managed() bool {
	if strings.HasPrefix(i.Name, NamePrefix) {
		return true
	}
	return i.Tags["ManagedBy"] == ManagedByTag
}

// Querier lists proxygen-managed resources live from one provider.
type Querier interface {
	// Provider identifies which cloud this querier talks to.
	Provider() models.Provider

	// ListInstances returns the provider's running proxygen instances in the
	// given region. Instances not managed by proxygen are filtered out.
	ListInstances(ctx context.Context, region string) ([]LiveInstance, error)

	// Preflight verifies credentials/CLI availability before expensive
	// operations run.
	Preflight(ctx context.Context) error
}
