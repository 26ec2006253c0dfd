package bandwidth

import "topology-aware-planner/core/pkg/topology"

// Nominal bandwidth per link tier, in bytes per second. These seed
// estimates for keys with no observed samples yet; every tier maps to a
// distinct non-zero constant so a cold query is never absent or zero.
var nominalBandwidth = map[topology.LinkClass]float64{
	topology.LinkSelf:           200e9,
	topology.LinkBondedDirect:   100e9,
	topology.LinkSwitchHop:      40e9,
	topology.LinkHostBridge:     10e9,
	topology.LinkCrossSocket:    5e9,
	topology.LinkExternalFabric: 1.5e9,
}

// NominalBandwidth returns the cold-start bandwidth constant for a link
// tier. Unknown tiers resolve to the external-fabric floor.
func NominalBandwidth(lc topology.LinkClass) float64 {
	if bw, ok := nominalBandwidth[lc]; ok {
		return bw
	}
	return nominalBandwidth[topology.LinkExternalFabric]
}
