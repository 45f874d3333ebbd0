// Package units holds the static channel table: identifiers, display
// labels, reference-simulation columns and physical units. It is used for
// reporting only.
package units

import (
	"strings"
)

// Unit constants
const (
	Volt   = "V"
	Ampere = "A"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Volt, Ampere}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// Channel describes one converter state variable.
type Channel struct {
	ID              string
	Label           string
	ReferenceColumn string
	Unit            string
	// LiveIndex is the channel's position in a multi-channel packet.
	LiveIndex int
}

// Channels lists the five converter states in packet order.
var Channels = []Channel{
	{ID: "il1", Label: "I_L1", ReferenceColumn: "IL1_1", Unit: Ampere, LiveIndex: 0},
	{ID: "ild", Label: "I_Ld", ReferenceColumn: "ILd", Unit: Ampere, LiveIndex: 1},
	{ID: "il2", Label: "I_L2", ReferenceColumn: "IL2_1", Unit: Ampere, LiveIndex: 2},
	{ID: "vcf", Label: "V_Cf", ReferenceColumn: "VCf", Unit: Volt, LiveIndex: 3},
	{ID: "vcd", Label: "V_Cd", ReferenceColumn: "VCd", Unit: Volt, LiveIndex: 4},
}

// ComparisonOrder is the order channels appear in comparison reports.
var ComparisonOrder = []string{"vcf", "vcd", "il1", "il2", "ild"}

// Lookup finds a channel by id, case-insensitively.
func Lookup(id string) (Channel, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, c := range Channels {
		if c.ID == id {
			return c, true
		}
	}
	return Channel{}, false
}

// UnitFor returns the unit label for id, or "" when unknown.
func UnitFor(id string) string {
	c, _ := Lookup(id)
	return c.Unit
}

// ReferenceColumn returns the simulation column for id, or "" when unknown.
func ReferenceColumn(id string) string {
	c, _ := Lookup(id)
	return c.ReferenceColumn
}

// Label returns the display label for id, falling back to the upper-cased id.
func Label(id string) string {
	if c, ok := Lookup(id); ok {
		return c.Label
	}
	return strings.ToUpper(id)
}

// LiveChannelIDs returns the ids in packet order.
func LiveChannelIDs() []string {
	ids := make([]string, len(Channels))
	for i, c := range Channels {
		ids[i] = c.ID
	}
	return ids
}
