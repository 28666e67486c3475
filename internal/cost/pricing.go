// Package cost estimates monthly spend for a proposed deployment and gates
// expensive operations: over-budget deployments abort, surprisingly expensive
// ones warn so the caller can ask for confirmation.
package cost

import (
	"sort"

	"github.com/hemantobora/proxygen/internal/models"
)

// hoursPerMonth converts hourly list prices into monthly estimates.
const hoursPerMonth = 730.0

// instancePricing holds on-demand hourly prices in USD, keyed by provider and
// instance type. Values are list prices; regional variation is applied via
// regionMultipliers.
var instancePricing = map[models.Provider]map[string]float64{
	models.ProviderAWS: {
		"t3.micro":   0.0104,
		"t3.small":   0.0208,
		"t3.medium":  0.0416,
		"t3.large":   0.0832,
		"t3.xlarge":  0.1664,
		"t4g.micro":  0.0084,
		"t4g.small":  0.0168,
		"t4g.medium": 0.0336,
	},
	models.ProviderAzure: {
		"Standard_B1s":    0.0104,
		"Standard_B1ms":   0.0207,
		"Standard_B2s":    0.0416,
		"Standard_B2ms":   0.0832,
		"Standard_B4ms":   0.1664,
		"Standard_D2s_v5": 0.096,
		"Standard_D4s_v5": 0.192,
	},
	models.ProviderDigitalOcean: {
		"s-1vcpu-1gb": 0.00833,
		"s-1vcpu-2gb": 0.01667,
		"s-2vcpu-2gb": 0.02500,
		"s-2vcpu-4gb": 0.03333,
		"s-4vcpu-8gb": 0.06667,
		"c-2":         0.04167,
		"c-4":         0.08333,
	},
	models.ProviderHetzner: {
		"cx11":  0.00500,
		"cx21":  0.00889,
		"cx31":  0.01611,
		"cx41":  0.03056,
		"cx51":  0.05958,
		"cpx11": 0.00639,
	},
}

// regionMultipliers scales the baseline price for regions that list higher.
// Unlisted regions use the baseline.
var regionMultipliers = map[models.Provider]map[string]float64{
	models.ProviderAWS: {
		"us-east-1":      1.0,
		"us-west-2":      1.0,
		"eu-west-1":      1.1,
		"eu-central-1":   1.15,
		"ap-southeast-1": 1.2,
		"ap-northeast-1": 1.25,
		"sa-east-1":      1.4,
	},
	models.ProviderAzure: {
		"eastus":        1.0,
		"westus2":       1.0,
		"westeurope":    1.1,
		"northeurope":   1.08,
		"southeastasia": 1.15,
		"japaneast":     1.25,
		"brazilsouth":   1.35,
	},
	// DigitalOcean and Hetzner price flat across regions.
}

// ipPricing is the hourly cost of holding a public IP; DigitalOcean and
// Hetzner include one for free.
var ipPricing = map[models.Provider]float64{
	models.ProviderAWS:   0.005,
	models.ProviderAzure: 0.004,
}

// Estimate is the projected cost of one deployment.
type Estimate struct {
	Provider     models.Provider `json:"provider"`
	Region       string          `json:"region"`
	InstanceType string          `json:"instance_type"`
	Hourly       float64         `json:"hourly_usd"`
	Monthly      float64         `json:"monthly_usd"`
	Yearly       float64         `json:"yearly_usd"`
	// KnownType is false when the instance type missed the price table and
	// the cheapest listed type was used instead.
	KnownType bool `json:"known_type"`
}

// EstimateMonthly looks up the price for a provider/region/instance-type
// combination. Unknown instance types fall back to the provider's cheapest
// listed type, flagged via KnownType.
func EstimateMonthly(provider models.Provider, region, instanceType string) Estimate {
	table := instancePricing[provider]

	hourly, known := table[instanceType]
	if !known {
		hourly = cheapest(table)
	}
	if mult, ok := regionMultipliers[provider][region]; ok {
		hourly *= mult
	}
	hourly += ipPricing[provider]

	monthly := hourly * hoursPerMonth
	return Estimate{
		Provider:     provider,
		Region:       region,
		InstanceType: instanceType,
		Hourly:       hourly,
		Monthly:      monthly,
		Yearly:       monthly * 12,
		KnownType:    known,
	}
}

// KnownInstanceTypes returns the priced instance types for a provider,
// sorted for stable display.
func KnownInstanceTypes(provider models.Provider) []string {
	table := instancePricing[provider]
	types := make([]string, 0, len(table))
	for name := range table {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

func cheapest(table map[string]float64) float64 {
	first := true
	var min float64
	for _, price := range table {
		if first || price < min {
			min = price
			first = false
		}
	}
	return min
}
