package topology

import (
	"fmt"

	"k8s.io/utils/cpuset"
)

// LinkClass is a tiered classification of the physical connection between
// two hardware nodes, ordered by expected bandwidth, high to low.
type LinkClass int

const (
	// LinkSelf is the diagonal: a node paired with itself.
	LinkSelf LinkClass = iota
	// LinkBondedDirect is a bonded high-speed direct connection
	// (e.g. multiple NVLink lanes).
	LinkBondedDirect
	// LinkSwitchHop is a single-switch hop on the high-speed fabric.
	LinkSwitchHop
	// LinkHostBridge is a hop through a host PCIe bridge.
	LinkHostBridge
	// LinkCrossSocket crosses the CPU socket interconnect.
	LinkCrossSocket
	// LinkExternalFabric traverses the external network fabric.
	LinkExternalFabric
)

var linkClassNames = map[LinkClass]string{
	LinkSelf:           "self",
	LinkBondedDirect:   "bonded",
	LinkSwitchHop:      "switch",
	LinkHostBridge:     "hostbridge",
	LinkCrossSocket:    "crosssocket",
	LinkExternalFabric: "fabric",
}

func (lc LinkClass) String() string {
	if s, ok := linkClassNames[lc]; ok {
		return s
	}
	return fmt.Sprintf("linkclass(%d)", int(lc))
}

// ParseLinkClass maps a probe-report link name to its LinkClass.
func ParseLinkClass(s string) (LinkClass, error) {
	for lc, name := range linkClassNames {
		if name == s {
			return lc, nil
		}
	}
	return 0, Configf("unknown link class %q", s)
}

// NodeInfo describes one accelerator: its physical index, the NUMA-local
// CPU cores it owns, and the network-interface proximity group it belongs
// to.
type NodeInfo struct {
	Index          int
	Cores          cpuset.CPUSet
	InterfaceGroup int
}

// Descriptor is the static hardware model: accelerators, their CPU core
// sets and NIC proximity groups, and the pairwise link-class matrix.
// Constructed once from a hardware probe, immutable afterwards.
type Descriptor struct {
	nodes []NodeInfo
	links [][]LinkClass
}

// New validates the probe data and builds a Descriptor. The matrix must
// be square over the node set, symmetric, with LinkSelf on the diagonal;
// every node needs a non-empty core set and an interface group.
func New(nodes []NodeInfo, links [][]LinkClass) (*Descriptor, error) {
	n := len(nodes)
	if n == 0 {
		return nil, Configf("topology has no hardware nodes")
	}
	if len(links) != n {
		return nil, Configf("link matrix has %d rows, expected %d", len(links), n)
	}
	for i, info := range nodes {
		if info.Index != i {
			return nil, Configf("node at position %d has index %d, nodes must be listed in index order", i, info.Index)
		}
		if info.Cores.IsEmpty() {
			return nil, Configf("node %d has no CPU core set", i)
		}
		if info.InterfaceGroup < 0 {
			return nil, Configf("node %d has no network interface group", i)
		}
	}
	for i := range links {
		if len(links[i]) != n {
			return nil, Configf("link matrix row %d has %d columns, expected %d", i, len(links[i]), n)
		}
		if links[i][i] != LinkSelf {
			return nil, Configf("link matrix diagonal [%d][%d] is %s, expected %s", i, i, links[i][i], LinkSelf)
		}
		for j := i + 1; j < n; j++ {
			if links[i][j] != links[j][i] {
				return nil, Configf("link matrix is asymmetric at [%d][%d]: %s vs %s", i, j, links[i][j], links[j][i])
			}
		}
	}

	// Defensive copies so callers can't mutate the descriptor later.
	d := &Descriptor{
		nodes: make([]NodeInfo, n),
		links: make([][]LinkClass, n),
	}
	copy(d.nodes, nodes)
	for i := range links {
		d.links[i] = make([]LinkClass, n)
		copy(d.links[i], links[i])
	}
	return d, nil
}

// NumNodes returns the number of hardware nodes in the topology.
func (d *Descriptor) NumNodes() int {
	return len(d.nodes)
}

// AllNodes returns every hardware node, in physical index order.
func (d *Descriptor) AllNodes() []NodeInfo {
	out := make([]NodeInfo, len(d.nodes))
	copy(out, d.nodes)
	return out
}

// Contains reports whether node is a valid physical index.
func (d *Descriptor) Contains(node int) bool {
	return node >= 0 && node < len(d.nodes)
}

// LinkClass returns the link tier between nodes a and b.
func (d *Descriptor) LinkClass(a, b int) (LinkClass, error) {
	if !d.Contains(a) || !d.Contains(b) {
		return 0, Configf("link class query (%d,%d) outside node set [0,%d)", a, b, len(d.nodes))
	}
	return d.links[a][b], nil
}

// CoreSetOf returns the NUMA-local CPU cores owned by node.
func (d *Descriptor) CoreSetOf(node int) (cpuset.CPUSet, error) {
	if !d.Contains(node) {
		return cpuset.CPUSet{}, Configf("core set query for node %d outside node set [0,%d)", node, len(d.nodes))
	}
	return d.nodes[node].Cores, nil
}

// InterfaceGroupOf returns the NIC proximity group of node.
func (d *Descriptor) InterfaceGroupOf(node int) (int, error) {
	if !d.Contains(node) {
		return 0, Configf("interface query for node %d outside node set [0,%d)", node, len(d.nodes))
	}
	return d.nodes[node].InterfaceGroup, nil
}
