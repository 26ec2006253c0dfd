package main

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"topology-aware-planner/core/pkg/bandwidth"
	"topology-aware-planner/core/pkg/cluster"
	"topology-aware-planner/core/pkg/estimator"
	"topology-aware-planner/core/pkg/placement"
	"topology-aware-planner/core/pkg/server"
	"topology-aware-planner/core/pkg/topology"
	"topology-aware-planner/core/pkg/util"
)

var (
	topologyFile string
	devices      string
	ifacePrefix  string
	memoryBytes  int64
	threads      int
	transports   string
	listenAddr   string
	serve        bool
)

func main() {
	klog.InitFlags(nil)
	flag.StringVar(&topologyFile, "topology", "", "Path to the hardware probe report (YAML or JSON)")
	flag.StringVar(&devices, "devices", "", "Comma-separated accelerator indices to activate (empty = all)")
	flag.StringVar(&ifacePrefix, "interface-prefix", util.GetEnvOrDefault("PLANNER_IFACE_PREFIX", "ib"), "Network interface name prefix")
	flag.Int64Var(&memoryBytes, "memory-bytes", util.GetEnvInt64("PLANNER_MEMORY_BYTES", 256<<30), "Total memory to split across workers")
	flag.IntVar(&threads, "threads", util.GetEnvInt("PLANNER_THREADS", 1), "Thread count per worker")
	flag.StringVar(&transports, "transports", util.GetEnvOrDefault("PLANNER_TRANSPORTS", "bonded-direct,copy,ipc"), "Ordered transport preference list")
	flag.StringVar(&listenAddr, "listen", util.GetEnvOrDefault("PLANNER_LISTEN", ":9090"), "Bandwidth endpoint listen address")
	flag.BoolVar(&serve, "serve", false, "Serve the bandwidth ingestion/query endpoints after planning")
	flag.Parse()

	if topologyFile == "" {
		klog.Fatal("The -topology flag is required")
	}
	data, err := os.ReadFile(topologyFile)
	if err != nil {
		klog.Fatalf("Error reading probe report: %s", err.Error())
	}
	desc, err := topology.ParseProbeReport(data)
	if err != nil {
		klog.Fatalf("Error parsing probe report: %s", err.Error())
	}

	subset, err := parseDevices(devices, desc.NumNodes())
	if err != nil {
		klog.Fatalf("Error parsing -devices: %s", err.Error())
	}

	workers, err := placement.Plan(desc, subset, ifacePrefix)
	if err != nil {
		klog.Fatalf("Error planning placement: %s", err.Error())
	}

	spec, err := cluster.Build(workers, memoryBytes, threads, strings.Split(transports, ","))
	if err != nil {
		klog.Fatalf("Error building cluster spec: %s", err.Error())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(spec); err != nil {
		klog.Fatalf("Error writing cluster spec: %s", err.Error())
	}

	if !serve {
		return
	}

	maxAge := time.Duration(util.GetEnvFloat("PLANNER_BW_MAX_AGE_SECONDS", 300) * float64(time.Second))
	model := bandwidth.NewModel(desc, workers, bandwidth.Config{
		WindowSize:   util.GetEnvInt("PLANNER_BW_WINDOW", 64),
		MinBytes:     util.GetEnvInt64("PLANNER_BW_MIN_BYTES", 64<<10),
		MaxSampleAge: maxAge,
		MaxKeys:      util.GetEnvInt("PLANNER_BW_MAX_KEYS", 1024),
	})
	srv := server.New(listenAddr, model, estimator.New(model))
	if err := server.Run(srv); err != nil {
		klog.Fatalf("Error running bandwidth server: %s", err.Error())
	}
}

// parseDevices turns "2,3" into [2, 3]; empty means all nodes.
func parseDevices(s string, numNodes int) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		all := make([]int, numNodes)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, topology.Configf("bad device index %q", part)
		}
		out = append(out, idx)
	}
	return out, nil
}
