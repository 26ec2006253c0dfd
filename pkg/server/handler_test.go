package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"k8s.io/utils/cpuset"

	"topology-aware-planner/core/pkg/bandwidth"
	"topology-aware-planner/core/pkg/estimator"
	"topology-aware-planner/core/pkg/placement"
	"topology-aware-planner/core/pkg/topology"
)

func testServer(t *testing.T) (*httptest.Server, *bandwidth.Model) {
	t.Helper()

	nodes := []topology.NodeInfo{
		{Index: 0, Cores: cpuset.New(0, 1), InterfaceGroup: 0},
		{Index: 1, Cores: cpuset.New(2, 3), InterfaceGroup: 0},
	}
	links := [][]topology.LinkClass{
		{topology.LinkSelf, topology.LinkBondedDirect},
		{topology.LinkBondedDirect, topology.LinkSelf},
	}
	desc, err := topology.New(nodes, links)
	if err != nil {
		t.Fatalf("failed to build topology: %v", err)
	}
	workers, err := placement.Plan(desc, []int{0, 1}, "ib")
	if err != nil {
		t.Fatalf("failed to plan workers: %v", err)
	}

	model := bandwidth.NewModel(desc, workers, bandwidth.Config{MinBytes: 1})
	srv := New(":0", model, estimator.New(model))
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, model
}

func TestIngestSample_Accepted(t *testing.T) {
	ts, model := testServer(t)

	body := `{"sourceId":0,"destId":1,"bytes":100000000,"elapsedMicros":1000000}`
	resp, err := http.Post(ts.URL+"/api/v1/samples", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	est := model.Estimate(0, 1, "")
	if est.SampleCount != 1 {
		t.Errorf("Expected 1 ingested sample, got %d", est.SampleCount)
	}
}

func TestIngestSample_MalformedStillAccepted(t *testing.T) {
	ts, model := testServer(t)

	// Decodable but useless measurement: dropped and counted, never an
	// error back at the reporter.
	body := `{"sourceId":0,"destId":1,"bytes":-1,"elapsedMicros":0}`
	resp, err := http.Post(ts.URL+"/api/v1/samples", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if model.DroppedSamples() != 1 {
		t.Errorf("Expected 1 dropped sample, got %d", model.DroppedSamples())
	}
}

func TestIngestSample_UndecodableRejected(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/samples", "application/json", strings.NewReader("{nope"))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestQueryEstimate_ColdStart(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/estimate?source=0&dest=1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var est bandwidth.Estimate
	if err := json.NewDecoder(resp.Body).Decode(&est); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if est.SampleCount != 0 {
		t.Errorf("Expected cold-start sample count 0, got %d", est.SampleCount)
	}
	if est.P50 != bandwidth.NominalBandwidth(topology.LinkBondedDirect) {
		t.Errorf("Expected bonded-tier default, got %v", est.P50)
	}
}

func TestQueryEstimate_BadParams(t *testing.T) {
	ts, _ := testServer(t)

	for _, url := range []string{
		"/api/v1/estimate",
		"/api/v1/estimate?source=a&dest=1",
		"/api/v1/estimate?source=0",
	} {
		resp, err := http.Get(ts.URL + url)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", url, resp.StatusCode)
		}
	}
}

func TestRankDestinations_Handler(t *testing.T) {
	ts, model := testServer(t)

	model.Record(bandwidth.Sample{Source: 0, Dest: 1, Bytes: 1 << 30, Elapsed: time.Second})

	resp, err := http.Get(ts.URL + "/api/v1/rank?source=0&bytes=1000000&candidates=1,0")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var ranked []estimator.RankedDestination
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(ranked))
	}

	// Self transfer (worker 0) rides the self tier and wins.
	if ranked[0].WorkerID != 0 {
		t.Errorf("Expected worker 0 first, got %d", ranked[0].WorkerID)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
