package models

import (
	"fmt"
	"strings"
	"time"
)

// Preset names a policy constraining chain shape: minimum hop count and
// provider/region diversity.
type Preset string

const (
	PresetStandard    Preset = "standard"
	PresetParanoid    Preset = "paranoid"
	PresetPerformance Preset = "performance"
	PresetBalanced    Preset = "balanced"
	PresetCustom      Preset = "custom"
)

// ParsePreset converts a user-supplied string into a Preset.
func ParsePreset(s string) (Preset, error) {
	switch Preset(s) {
	case PresetStandard, PresetParanoid, PresetPerformance, PresetBalanced, PresetCustom:
		return Preset(s), nil
	}
	return "", &ValidationError{Field: "preset", Message: fmt.Sprintf("unknown preset %q", s)}
}

// ChainStatus is the lifecycle state of a chain definition.
type ChainStatus string

const (
	ChainDraft     ChainStatus = "draft"
	ChainValidated ChainStatus = "validated"
	ChainDeployed  ChainStatus = "deployed"
	ChainTornDown  ChainStatus = "torn_down"
)

// HopRef names one hop of a chain by its (provider, region) pair.
type HopRef struct {
	Provider Provider `json:"provider"`
	Region   string   `json:"region"`
}

func (h HopRef) String() string {
	return fmt.Sprintf("%s/%s", h.Provider, h.Region)
}

// ParseHopRef parses a "provider/region" pair, e.g. "aws/us-east-1".
func ParseHopRef(s string) (HopRef, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return HopRef{}, &ValidationError{Field: "hop", Message: fmt.Sprintf("hop %q must be provider/region", s)}
	}
	provider, err := ParseProvider(parts[0])
	if err != nil {
		return HopRef{}, err
	}
	return HopRef{Provider: provider, Region: parts[1]}, nil
}

// ChainDefinition is a named ordered sequence of hop references.
type ChainDefinition struct {
	Name      string      `json:"name"`
	Hops      []HopRef    `json:"hops"`
	Preset    Preset      `json:"preset"`
	Status    ChainStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	// Subnets are the per-hop /24 slices handed out by the subnet pool when
	// the chain was built; empty until then.
	Subnets []string `json:"subnets,omitempty"`
}

// Validate checks structural requirements that hold for every chain,
// regardless of preset policy.
func (c *ChainDefinition) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "chain name is required"}
	}
	if len(c.Hops) < 2 {
		return &ValidationError{Field: "hops", Message: "multi-hop chain requires at least 2 hops"}
	}
	if _, err := ParsePreset(string(c.Preset)); err != nil {
		return err
	}
	for i, hop := range c.Hops {
		if _, err := ParseProvider(string(hop.Provider)); err != nil {
			return &ValidationError{Field: fmt.Sprintf("hops[%d].provider", i), Message: err.Error()}
		}
		if hop.Region == "" {
			return &ValidationError{Field: fmt.Sprintf("hops[%d].region", i), Message: "region is required"}
		}
	}
	return nil
}

// HopRole describes a hop's position in the routing topology.
type HopRole string

const (
	RoleEntry  HopRole = "entry"
	RoleMiddle HopRole = "middle"
	RoleExit   HopRole = "exit"
)

// PlannedHop is one hop of a built chain: the resolved deployment record plus
// the addressing assigned to it.
type PlannedHop struct {
	Index  int               `json:"index"`
	Record *DeploymentRecord `json:"record"`
	Role   HopRole           `json:"role"`
	// Subnet is this hop's private /24 slice; GatewayIP is the first host.
	Subnet    string `json:"subnet"`
	GatewayIP string `json:"gateway_ip"`
	// ListenPort is offset per hop so chained tunnels on one host never clash.
	ListenPort int `json:"listen_port"`
	// ForwardTo is the next hop's public endpoint; empty on the exit hop.
	ForwardTo string `json:"forward_to,omitempty"`
}

// ChainPlan is the validated, fully-resolved topology for one chain.
type ChainPlan struct {
	Name    string       `json:"name"`
	Preset  Preset       `json:"preset"`
	Hops    []PlannedHop `json:"hops"`
	BuiltAt time.Time    `json:"built_at"`
}

// EntryHop returns the first hop of the plan.
func (p *ChainPlan) EntryHop() *PlannedHop { return &p.Hops[0] }

// ExitHop returns the last hop of the plan.
func (p *ChainPlan) ExitHop() *PlannedHop { return &p.Hops[len(p.Hops)-1] }
