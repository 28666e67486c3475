package cloud

import (
	"context"
	"strconv"
	"time"

	"github.com/hemantobora/proxygen/internal/models"
)

// HetznerQuerier lists proxygen servers via the hcloud CLI.
type HetznerQuerier struct{}

// NewHetznerQuerier returns a querier backed by the hcloud CLI.
func NewHetznerQuerier() *HetznerQuerier { return &HetznerQuerier{} }

// Provider implements Querier.
func (q *HetznerQuerier) Provider() models.Provider { return models.ProviderHetzner }

// Preflight checks the hcloud CLI is installed and has an active context.
func (q *HetznerQuerier) Preflight(ctx context.Context) error {
	if err := checkCLIInstalled("hcloud", "Install hcloud: https://github.com/hetznercloud/cli"); err != nil {
		return err
	}
	var dcs []struct {
		ID int `json:"id"`
	}
	return runCLIJSON(ctx, models.ProviderHetzner, "", &dcs, "hcloud", "datacenter", "list", "-o", "json")
}

// hcloudServer is the subset of `hcloud server list -o json` output proxygen
// consumes.
type hcloudServer struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Created string `json:"created"`
	Labels  map[string]string `json:"labels"`
	PublicNet struct {
		IPv4 struct {
			IP string `json:"ip"`
		} `json:"ipv4"`
	} `json:"public_net"`
	PrivateNet []struct {
		IP string `json:"ip"`
	} `json:"private_net"`
	ServerType struct {
		Name string `json:"name"`
	} `json:"server_type"`
	Datacenter struct {
		Location struct {
			Name string `json:"name"`
		} `json:"location"`
	} `json:"datacenter"`
}

// ListInstances returns proxygen servers in the given location.
func (q *HetznerQuerier) ListInstances(ctx context.Context, region string) ([]LiveInstance, error) {
	var servers []hcloudServer
	err := runCLIJSON(ctx, models.ProviderHetzner, region, &servers,
		"hcloud", "server", "list", "-o", "json")
	if err != nil {
		return nil, err
	}

	var instances []LiveInstance
	for _, srv := range servers {
		if srv.Datacenter.Location.Name != region {
			continue
		}
		live := LiveInstance{
			InstanceID:   strconv.Itoa(srv.ID),
			Name:         srv.Name,
			Region:       srv.Datacenter.Location.Name,
			PublicIP:     srv.PublicNet.IPv4.IP,
			InstanceType: srv.ServerType.Name,
			State:        srv.Status,
			Tags:         srv.Labels,
		}
		if len(srv.PrivateNet) > 0 {
			live.PrivateIP = srv.PrivateNet[0].IP
		}
		if t, err := time.Parse(time.RFC3339, srv.Created); err == nil {
			live.LaunchedAt = t
		}
		if !live.Managed() {
			continue
		}
		instances = append(instances, live)
	}
	return instances, nil
}
