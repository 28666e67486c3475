package cloud

import (
	"context"
	"strings"

	"github.com/hemantobora/proxygen/internal/models"
)

// AzureQuerier lists proxygen VMs via the az CLI.
type AzureQuerier struct{}

// NewAzureQuerier returns a querier backed by the az CLI.
func NewAzureQuerier() *AzureQuerier { return &AzureQuerier{} }

// Provider implements Querier.
func (q *AzureQuerier) Provider() models.Provider { return models.ProviderAzure }

// Preflight checks the az CLI is installed and logged in.
func (q *AzureQuerier) Preflight(ctx context.Context) error {
	if err := checkCLIInstalled("az", "Install the Azure CLI: https://aka.ms/azure-cli"); err != nil {
		return err
	}
	var account struct {
		ID string `json:"id"`
	}
	return runCLIJSON(ctx, models.ProviderAzure, "", &account, "az", "account", "show", "--output", "json")
}

// azureVM is the subset of `az vm list -d` output proxygen consumes.
type azureVM struct {
	Name     string            `json:"name"`
	Location string            `json:"location"`
	VMID     string            `json:"vmId"`
	PublicIP string            `json:"publicIps"`
	PrivIP   string            `json:"privateIps"`
	Tags     map[string]string `json:"tags"`
	Hardware struct {
		VMSize string `json:"vmSize"`
	} `json:"hardwareProfile"`
	PowerState string `json:"powerState"`
}

// ListInstances returns running proxygen VMs in the given location.
func (q *AzureQuerier) ListInstances(ctx context.Context, region string) ([]LiveInstance, error) {
	var vms []azureVM
	err := runCLIJSON(ctx, models.ProviderAzure, region, &vms,
		"az", "vm", "list", "--show-details",
		"--query", "[?starts_with(name, 'proxygen-')]",
		"--output", "json")
	if err != nil {
		return nil, err
	}

	var instances []LiveInstance
	for _, vm := range vms {
		if !strings.EqualFold(vm.Location, region) {
			continue
		}
		live := LiveInstance{
			InstanceID:   vm.VMID,
			Name:         vm.Name,
			Region:       vm.Location,
			PublicIP:     firstIP(vm.PublicIP),
			PrivateIP:    firstIP(vm.PrivIP),
			InstanceType: vm.Hardware.VMSize,
			State:        vm.PowerState,
			Tags:         vm.Tags,
		}
		if !live.Managed() {
			continue
		}
		instances = append(instances, live)
	}
	return instances, nil
}

// firstIP extracts the first address from az's comma-joined IP lists.
func firstIP(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
