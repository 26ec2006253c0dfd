package topology

import (
	"fmt"

	"k8s.io/klog/v2"
	"k8s.io/utils/cpuset"
	"sigs.k8s.io/yaml"
)

// ProbeReport is the wire form of a hardware-probe result as emitted by
// an external inspection tool. YAML and JSON are both accepted.
type ProbeReport struct {
	Nodes []ProbeNode `json:"nodes"`
	Links [][]string  `json:"links"`
}

// ProbeNode describes one accelerator in a probe report. Cores uses
// kernel cpuset list syntax, e.g. "0-15" or "0-3,32-35".
type ProbeNode struct {
	Index          int    `json:"index"`
	Cores          string `json:"cores"`
	InterfaceGroup int    `json:"interfaceGroup"`
}

// ParseProbeReport decodes a probe report and validates it into a
// Descriptor.
func ParseProbeReport(data []byte) (*Descriptor, error) {
	var report ProbeReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode probe report: %w", err)
	}

	nodes := make([]NodeInfo, 0, len(report.Nodes))
	for _, pn := range report.Nodes {
		cores, err := cpuset.Parse(pn.Cores)
		if err != nil {
			return nil, Configf("node %d: bad core range %q: %v", pn.Index, pn.Cores, err)
		}
		nodes = append(nodes, NodeInfo{
			Index:          pn.Index,
			Cores:          cores,
			InterfaceGroup: pn.InterfaceGroup,
		})
	}

	links := make([][]LinkClass, len(report.Links))
	for i, row := range report.Links {
		links[i] = make([]LinkClass, len(row))
		for j, name := range row {
			lc, err := ParseLinkClass(name)
			if err != nil {
				return nil, Configf("link matrix [%d][%d]: %v", i, j, err)
			}
			links[i][j] = lc
		}
	}

	desc, err := New(nodes, links)
	if err != nil {
		return nil, err
	}
	klog.V(4).Infof("Parsed probe report: %d nodes", desc.NumNodes())
	return desc, nil
}
