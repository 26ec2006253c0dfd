package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"topology-aware-planner/core/pkg/bandwidth"
	"topology-aware-planner/core/pkg/estimator"
)

// Handler serves the bandwidth ingestion and query endpoints.
type Handler struct {
	model     *bandwidth.Model
	estimator *estimator.Estimator
}

// SampleRecord is the ingestion wire format.
type SampleRecord struct {
	SourceID        int    `json:"sourceId"`
	DestID          int    `json:"destId"`
	Bytes           int64  `json:"bytes"`
	ElapsedMicros   int64  `json:"elapsedMicros"`
	DataClass       string `json:"dataClass,omitempty"`
	TimestampMicros int64  `json:"timestampMicros,omitempty"`
}

// IngestSample accepts one transfer report. Any decodable record gets a
// 202: malformed measurements are dropped and counted inside the model,
// never rejected back at the reporting sender.
func (h *Handler) IngestSample(w http.ResponseWriter, r *http.Request) {
	var rec SampleRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		klog.V(4).Infof("Undecodable sample from %s: %v", r.RemoteAddr, err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var ts time.Time
	if rec.TimestampMicros > 0 {
		ts = time.UnixMicro(rec.TimestampMicros)
	}
	h.model.Record(bandwidth.Sample{
		Source:    rec.SourceID,
		Dest:      rec.DestID,
		Bytes:     rec.Bytes,
		Elapsed:   time.Duration(rec.ElapsedMicros) * time.Microsecond,
		DataClass: rec.DataClass,
		Timestamp: ts,
	})
	w.WriteHeader(http.StatusAccepted)
}

// QueryEstimate answers GET /api/v1/estimate?source=&dest=&class=.
func (h *Handler) QueryEstimate(w http.ResponseWriter, r *http.Request) {
	source, err := intParam(r, "source")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dest, err := intParam(r, "dest")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	est := h.model.Estimate(source, dest, r.URL.Query().Get("class"))
	writeJSON(w, est)
}

// RankDestinations answers
// GET /api/v1/rank?source=&bytes=&candidates=1,2,3&class=.
func (h *Handler) RankDestinations(w http.ResponseWriter, r *http.Request) {
	source, err := intParam(r, "source")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	byteCount, err := int64Param(r, "bytes")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var candidates []int
	for _, part := range strings.Split(r.URL.Query().Get("candidates"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			http.Error(w, "bad candidate id "+part, http.StatusBadRequest)
			return
		}
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		http.Error(w, "candidates parameter required", http.StatusBadRequest)
		return
	}

	ranked := h.estimator.RankDestinations(source, byteCount, r.URL.Query().Get("class"), candidates)
	writeJSON(w, ranked)
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0, &paramError{name}
	}
	return v, nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0, &paramError{name}
	}
	return v, nil
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return "missing or non-integer parameter " + e.name
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Errorf("Failed to encode response: %v", err)
	}
}
