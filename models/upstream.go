package models

import "encoding/json"

// Capability is a named operation class an upstream may support
type Capability string

const (
	CapabilityAnalytics          Capability = "analytics"
	CapabilityExecution          Capability = "execution"
	CapabilityPositionManagement Capability = "position_management"
	CapabilityRiskManagement     Capability = "risk_management"
	CapabilityAutoTrading        Capability = "auto_trading"
)

// CapabilitySet is the set of operation classes an upstream supports.
// Checked structurally so adding an upstream never means touching call sites.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from a list of capabilities
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the capability
func (cs CapabilitySet) Has(c Capability) bool {
	_, ok := cs[c]
	return ok
}

// List returns the capabilities in a stable order
func (cs CapabilitySet) List() []Capability {
	ordered := []Capability{
		CapabilityAnalytics,
		CapabilityExecution,
		CapabilityPositionManagement,
		CapabilityRiskManagement,
		CapabilityAutoTrading,
	}
	out := make([]Capability, 0, len(cs))
	for _, c := range ordered {
		if cs.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// MarshalJSON renders the set as an ordered list
func (cs CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(cs.List())
}

// UnmarshalJSON reads the set from a list
func (cs *CapabilitySet) UnmarshalJSON(data []byte) error {
	var caps []Capability
	if err := json.Unmarshal(data, &caps); err != nil {
		return err
	}
	*cs = NewCapabilitySet(caps...)
	return nil
}

// UpstreamTarget is the identity of one external backend: name, address,
// declared capability set and enabled flag. Immutable after configuration
// load — routing decisions read it, nothing mutates it.
type UpstreamTarget struct {
	Name         string        `json:"name"`
	BaseURL      string        `json:"base_url"`
	Capabilities CapabilitySet `json:"capabilities"`
	Enabled      bool          `json:"enabled"`
}

// Supports reports whether the target is enabled and declares the capability
func (t UpstreamTarget) Supports(c Capability) bool {
	return t.Enabled && t.Capabilities.Has(c)
}
