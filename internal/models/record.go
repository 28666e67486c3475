// Package models defines the core data types shared across proxygen:
// deployment records, multi-hop chain definitions, and the error taxonomy.
package models

import (
	"fmt"
	"time"
)

// Provider identifies a supported cloud provider.
type Provider string

const (
	ProviderAWS          Provider = "aws"
	ProviderAzure        Provider = "azure"
	ProviderDigitalOcean Provider = "digitalocean"
	ProviderHetzner      Provider = "hetzner"
)

// AllProviders lists every supported provider in display order.
var AllProviders = []Provider{ProviderAWS, ProviderAzure, ProviderDigitalOcean, ProviderHetzner}

// ParseProvider converts a user-supplied string into a Provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderAWS, ProviderAzure, ProviderDigitalOcean, ProviderHetzner:
		return Provider(s), nil
	}
	return "", &ValidationError{Field: "provider", Message: fmt.Sprintf("unknown provider %q (expected aws, azure, digitalocean or hetzner)", s)}
}

// RecordStatus is the lifecycle state of a deployment record.
type RecordStatus string

const (
	// StatusPending is set by the registrar before provisioning starts.
	StatusPending RecordStatus = "pending"
	// StatusActive means the endpoint is provisioned and holds a public IP.
	StatusActive RecordStatus = "active"
	// StatusDestroying is the one-way gate entered before the external
	// destroy operation runs.
	StatusDestroying RecordStatus = "destroying"
	// StatusDestroyed records are retained for audit, never deleted on destroy.
	StatusDestroyed RecordStatus = "destroyed"
	// StatusDrifted marks a record whose live state disagrees with the
	// registry; it requires operator confirmation before any change.
	StatusDrifted RecordStatus = "drifted"
)

// DeploymentRecord is the registry entry for one provisioned proxy endpoint.
// The registry is the only source of truth for the endpoint once the external
// provisioning engine has exited.
type DeploymentRecord struct {
	ID           string            `json:"id"`
	Provider     Provider          `json:"provider"`
	Region       string            `json:"region"`
	Status       RecordStatus      `json:"status"`
	PublicIP     string            `json:"public_ip,omitempty"`
	PrivateIP    string            `json:"private_ip,omitempty"`
	InstanceType string            `json:"instance_type,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	DestroyedAt  *time.Time        `json:"destroyed_at,omitempty"`
	// Attributes holds provider-returned outputs (instance id, VPC id, ...)
	// keyed by output name.
	Attributes map[string]string `json:"attributes,omitempty"`
	// LastError preserves the raw provider error text from the most recent
	// failed operation against this record.
	LastError string `json:"last_error,omitempty"`
	// Drift annotations are only ever written by the reconciler.
	DriftReason string     `json:"drift_reason,omitempty"`
	DriftedAt   *time.Time `json:"drifted_at,omitempty"`
}

// InstanceID returns the provider-assigned instance identifier, if known.
func (r *DeploymentRecord) InstanceID() string {
	if r.Attributes == nil {
		return ""
	}
	return r.Attributes["instance_id"]
}

// IsActive reports whether the record currently represents a live endpoint.
func (r *DeploymentRecord) IsActive() bool {
	return r.Status == StatusActive
}

// Validate checks the fields required on every write.
func (r *DeploymentRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Message: "deployment id is required"}
	}
	if _, err := ParseProvider(string(r.Provider)); err != nil {
		return err
	}
	if r.Region == "" {
		return &ValidationError{Field: "region", Message: "region is required"}
	}
	switch r.Status {
	case StatusPending, StatusActive, StatusDestroying, StatusDestroyed, StatusDrifted:
	default:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", r.Status)}
	}
	if r.Status == StatusActive && r.PublicIP == "" {
		return &ValidationError{Field: "public_ip", Message: "active records must hold a public IP"}
	}
	if r.CreatedAt.IsZero() {
		return &ValidationError{Field: "created_at", Message: "created_at is required"}
	}
	return nil
}

// RecordFilter selects records in Store.List. Zero values match everything.
type RecordFilter struct {
	Provider Provider
	Region   string
	Status   RecordStatus
}

// Matches reports whether rec satisfies every non-zero filter field.
func (f RecordFilter) Matches(rec *DeploymentRecord) bool {
	if f.Provider != "" && rec.Provider != f.Provider {
		return false
	}
	if f.Region != "" && rec.Region != f.Region {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	return true
}
