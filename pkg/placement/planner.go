package placement

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"k8s.io/klog/v2"
	"k8s.io/utils/cpuset"

	"topology-aware-planner/core/pkg/topology"
)

// EnvVisibleDevices restricts which physical accelerators a worker
// process may see. The worker's own device is always listed first.
const EnvVisibleDevices = "PLANNER_VISIBLE_DEVICES"

// WorkerSpec binds one logical worker to one hardware node and carries
// the node's physical affinities. Created once at bootstrap, immutable
// afterwards.
type WorkerSpec struct {
	// ID is the logical worker id: worker i corresponds to the i-th
	// element of the device subset as the caller listed it.
	ID int
	// Node is the bound physical accelerator index.
	Node int
	// Cores is the NUMA-local core set of the bound node.
	Cores cpuset.CPUSet
	// Interface is the rendered network interface name for the bound
	// node's proximity group, e.g. "ib0".
	Interface string
	// Env holds per-worker environment overrides.
	Env map[string]string
	// MemoryLimitBytes is filled in by the cluster spec builder.
	MemoryLimitBytes int64
}

// Plan maps each requested physical device to a WorkerSpec carrying the
// device's true affinity. Affinity is a pure function of the physical
// node: the order and size of the subset influence only worker id
// assignment, never which core set or interface a node receives. The
// returned slice is ordered by physical node index.
func Plan(desc *topology.Descriptor, devices []int, ifacePrefix string) ([]WorkerSpec, error) {
	if desc == nil {
		return nil, topology.Configf("nil topology descriptor")
	}
	if len(devices) == 0 {
		return nil, topology.Configf("device subset is empty")
	}
	seen := make(map[int]bool, len(devices))
	for _, dev := range devices {
		if !desc.Contains(dev) {
			return nil, topology.Configf("device %d outside topology node set [0,%d)", dev, desc.NumNodes())
		}
		if seen[dev] {
			return nil, topology.Configf("device %d listed more than once", dev)
		}
		seen[dev] = true
	}

	workers := make([]WorkerSpec, 0, len(devices))
	for i, dev := range devices {
		cores, err := desc.CoreSetOf(dev)
		if err != nil {
			return nil, topology.Internalf("validated node %d has no core set: %v", dev, err)
		}
		group, err := desc.InterfaceGroupOf(dev)
		if err != nil {
			return nil, topology.Internalf("validated node %d has no interface group: %v", dev, err)
		}
		workers = append(workers, WorkerSpec{
			ID:        i,
			Node:      dev,
			Cores:     cores,
			Interface: ifacePrefix + strconv.Itoa(group),
			Env: map[string]string{
				EnvVisibleDevices: visibleDevices(i, devices),
			},
		})
	}

	sort.Slice(workers, func(a, b int) bool {
		return workers[a].Node < workers[b].Node
	})

	for _, w := range workers {
		klog.V(4).Infof("Planned worker %d: node=%d cores=%s iface=%s",
			w.ID, w.Node, w.Cores, w.Interface)
	}
	return workers, nil
}

// visibleDevices renders the subset rotated so that worker i's own device
// comes first. All workers see the same device set, each from its own
// vantage point.
func visibleDevices(i int, devices []int) string {
	rotated := make([]string, 0, len(devices))
	for k := range devices {
		rotated = append(rotated, strconv.Itoa(devices[(i+k)%len(devices)]))
	}
	return strings.Join(rotated, ",")
}

// String renders a short human-readable form for logs.
func (w WorkerSpec) String() string {
	return fmt.Sprintf("worker%d(node=%d,iface=%s)", w.ID, w.Node, w.Interface)
}
