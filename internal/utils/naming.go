package utils

import (
	"fmt"
	"time"
)

// NewDeploymentID returns a globally unique deployment id of the form
// {provider}-{region}-{timestamp}-{suffix}. The id is immutable once a record
// is created under it.
func NewDeploymentID(provider, region string) (string, error) {
	suffix, err := RandomSuffix(6)
	if err != nil {
		return "", fmt.Errorf("failed to generate id suffix: %w", err)
	}
	stamp := time.Now().UTC().Format("20060102-150405")
	return fmt.Sprintf("%s-%s-%s-%s", provider, region, stamp, suffix), nil
}

// DiscoveredID derives a stable id for a live resource imported by the
// reconciler, so repeated syncs of the same instance map to the same record.
func DiscoveredID(provider, region, instanceID string) string {
	return fmt.Sprintf("%s-%s-discovered-%s", provider, region, instanceID)
}
