package estimator

import (
	"sort"
	"time"

	"k8s.io/klog/v2"

	"topology-aware-planner/core/pkg/bandwidth"
)

// Estimator converts candidate data movements into estimated transfer
// times using the bandwidth model's p50, falling back to topology-tier
// defaults transparently. Costs are direct-pair only: no multi-hop
// composition is attempted.
type Estimator struct {
	model *bandwidth.Model
}

// New builds an estimator over a bandwidth model.
func New(model *bandwidth.Model) *Estimator {
	return &Estimator{model: model}
}

// TransferTime estimates moving byteCount bytes from src to dst.
func (e *Estimator) TransferTime(src, dst int, byteCount int64, dataClass string) time.Duration {
	est := e.model.Estimate(src, dst, dataClass)
	seconds := float64(byteCount) / est.P50
	return time.Duration(seconds * float64(time.Second))
}

// RankedDestination is one candidate in a ranking, cheapest first.
type RankedDestination struct {
	WorkerID      int           `json:"workerId"`
	EstimatedTime time.Duration `json:"estimatedTimeNs"`
}

// RankDestinations orders candidate destination workers for the same
// source data by ascending estimated transfer time, breaking ties by
// lowest worker id. This is the decision primitive an external scheduler
// consumes.
func (e *Estimator) RankDestinations(src int, byteCount int64, dataClass string, candidates []int) []RankedDestination {
	ranked := make([]RankedDestination, 0, len(candidates))
	for _, dst := range candidates {
		ranked = append(ranked, RankedDestination{
			WorkerID:      dst,
			EstimatedTime: e.TransferTime(src, dst, byteCount, dataClass),
		})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].EstimatedTime != ranked[b].EstimatedTime {
			return ranked[a].EstimatedTime < ranked[b].EstimatedTime
		}
		return ranked[a].WorkerID < ranked[b].WorkerID
	})

	if len(ranked) > 0 {
		klog.V(4).Infof("Ranked %d candidates for %d bytes from worker %d, best=%d (%v)",
			len(ranked), byteCount, src, ranked[0].WorkerID, ranked[0].EstimatedTime)
	}
	return ranked
}
