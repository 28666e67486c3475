package cloud

import (
	"context"
	"strconv"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
)

// DigitalOceanQuerier lists proxygen droplets via the doctl CLI.
type DigitalOceanQuerier struct{}

// NewDigitalOceanQuerier returns a querier backed by the doctl CLI.
func NewDigitalOceanQuerier() *DigitalOceanQuerier { return &DigitalOceanQuerier{} }

// Provider implements Querier.
func (q *DigitalOceanQuerier) Provider() models.Provider { return models.ProviderDigitalOcean }

// Preflight checks the doctl CLI is installed and authenticated.
func (q *DigitalOceanQuerier) Preflight(ctx context.Context) error {
	if err := checkCLIInstalled("doctl", "Install doctl: https://docs.digitalocean.com/reference/doctl/how-to/install/"); err != nil {
		return err
	}
	var account []struct {
		Status string `json:"status"`
	}
	return runCLIJSON(ctx, models.ProviderDigitalOcean, "", &account, "doctl", "account", "get", "--output", "json")
}

// doDroplet is the subset of `doctl compute droplet list` output proxygen
// consumes.
type doDroplet struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Created string `json:"created_at"`
	Region  struct {
		Slug string `json:"slug"`
	} `json:"region"`
	Size struct {
		Slug string `json:"slug"`
	} `json:"size"`
	Networks struct {
		V4 []struct {
			IPAddress string `json:"ip_address"`
			Type      string `json:"type"`
		} `json:"v4"`
	} `json:"networks"`
	Tags []string `json:"tags"`
}

// ListInstances returns active proxygen droplets in the given region slug.
func (q *DigitalOceanQuerier) ListInstances(ctx context.Context, region string) ([]LiveInstance, error) {
	var droplets []doDroplet
	err := runCLIJSON(ctx, models.ProviderDigitalOcean, region, &droplets,
		"doctl", "compute", "droplet", "list", "--output", "json")
	if err != nil {
		return nil, err
	}

	var instances []LiveInstance
	for _, d := range droplets {
		if d.Region.Slug != region {
			continue
		}
		live := LiveInstance{
			InstanceID:   strconv.Itoa(d.ID),
			Name:         d.Name,
			Region:       d.Region.Slug,
			InstanceType: d.Size.Slug,
			State:        d.Status,
			Tags:         map[string]string{},
		}
		for _, tag := range d.Tags {
			live.Tags[tag] = ""
		}
		for _, v4 := range d.Networks.V4 {
			switch v4.Type {
			case "public":
				live.PublicIP = v4.IPAddress
			case "private":
				live.PrivateIP = v4.IPAddress
			}
		}
		if t, err := time.Parse(time.RFC3339, d.Created); err == nil {
			live.LaunchedAt = t
		}
		if !live.Managed() {
			continue
		}
		instances = append(instances, live)
	}
	return instances, nil
}
