package cluster

import (
	"fmt"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"topology-aware-planner/core/pkg/placement"
	"topology-aware-planner/core/pkg/topology"
)

// Environment keys rendered into every worker launch descriptor.
const (
	EnvTransports    = "PLANNER_TRANSPORTS"
	EnvWorkerThreads = "PLANNER_WORKER_THREADS"
)

// Fixed ports keep Build a pure function of its inputs.
const (
	workerBasePort = 38000
	schedulerPort  = 8786
)

// WorkerLaunchSpec is one worker launch descriptor, consumed by an
// external process supervisor.
type WorkerLaunchSpec struct {
	WorkerID         int               `json:"workerId"`
	Cores            []int             `json:"cores"`
	Env              map[string]string `json:"env"`
	ListenAddress    string            `json:"listenAddress"`
	MemoryLimitBytes int64             `json:"memoryLimitBytes"`
}

// SchedulerLaunchSpec is the single scheduler launch descriptor.
type SchedulerLaunchSpec struct {
	ListenAddress string `json:"listenAddress"`
}

// Spec is the deployable descriptor set for one cluster bootstrap.
type Spec struct {
	Workers   []WorkerLaunchSpec  `json:"workers"`
	Scheduler SchedulerLaunchSpec `json:"scheduler"`
}

// Build renders launch descriptors for the planned workers. It is a pure
// function: identical inputs always produce an identical Spec. The
// scheduler binds to the network interface of the lowest-indexed worker's
// node.
func Build(workers []placement.WorkerSpec, totalMemoryBytes int64, threadsPerWorker int, transportHints []string) (*Spec, error) {
	if len(workers) == 0 {
		return nil, topology.Configf("worker count is zero")
	}
	if threadsPerWorker <= 0 {
		return nil, topology.Configf("threads per worker must be positive, got %d", threadsPerWorker)
	}
	memLimit := totalMemoryBytes / int64(len(workers))
	if memLimit <= 0 {
		return nil, topology.Configf("memory limit %d bytes per worker is non-positive (total=%d, workers=%d)",
			memLimit, totalMemoryBytes, len(workers))
	}

	spec := &Spec{Workers: make([]WorkerLaunchSpec, 0, len(workers))}
	for _, w := range workers {
		if w.Cores.IsEmpty() {
			return nil, topology.Internalf("planned worker %d has an empty core set", w.ID)
		}
		if w.Interface == "" {
			return nil, topology.Internalf("planned worker %d has no network interface", w.ID)
		}

		env := map[string]string{
			EnvTransports:    strings.Join(transportHints, ","),
			EnvWorkerThreads: strconv.Itoa(threadsPerWorker),
		}
		for k, v := range w.Env {
			env[k] = v
		}

		spec.Workers = append(spec.Workers, WorkerLaunchSpec{
			WorkerID:         w.ID,
			Cores:            w.Cores.List(),
			Env:              env,
			ListenAddress:    fmt.Sprintf("tcp://%s:%d", w.Interface, workerBasePort+w.ID),
			MemoryLimitBytes: memLimit,
		})
	}

	// The scheduler shares the interface of the lowest-indexed worker.
	lowest := workers[0]
	for _, w := range workers[1:] {
		if w.ID < lowest.ID {
			lowest = w
		}
	}
	spec.Scheduler = SchedulerLaunchSpec{
		ListenAddress: fmt.Sprintf("tcp://%s:%d", lowest.Interface, schedulerPort),
	}

	klog.V(3).Infof("Built cluster spec: %d workers, %d MiB each, scheduler at %s",
		len(spec.Workers), memLimit/(1<<20), spec.Scheduler.ListenAddress)
	return spec, nil
}
