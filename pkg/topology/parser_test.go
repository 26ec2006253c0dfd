package topology

import (
	"testing"
)

const yamlReport = `
nodes:
  - index: 0
    cores: "0-3"
    interfaceGroup: 0
  - index: 1
    cores: "4-7"
    interfaceGroup: 0
links:
  - ["self", "bonded"]
  - ["bonded", "self"]
`

func TestParseProbeReport_YAML(t *testing.T) {
	desc, err := ParseProbeReport([]byte(yamlReport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.NumNodes() != 2 {
		t.Fatalf("Expected 2 nodes, got %d", desc.NumNodes())
	}

	lc, _ := desc.LinkClass(0, 1)
	if lc != LinkBondedDirect {
		t.Errorf("Expected bonded link, got %v", lc)
	}
	cores, _ := desc.CoreSetOf(1)
	if cores.String() != "4-7" {
		t.Errorf("Expected cores 4-7, got %s", cores)
	}
}

func TestParseProbeReport_JSON(t *testing.T) {
	report := `{
		"nodes": [
			{"index": 0, "cores": "0-1", "interfaceGroup": 0},
			{"index": 1, "cores": "2-3", "interfaceGroup": 1}
		],
		"links": [["self", "crosssocket"], ["crosssocket", "self"]]
	}`

	desc, err := ParseProbeReport([]byte(report))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group, _ := desc.InterfaceGroupOf(1)
	if group != 1 {
		t.Errorf("Expected interface group 1, got %d", group)
	}
}

func TestParseProbeReport_BadLinkName(t *testing.T) {
	report := `{
		"nodes": [{"index": 0, "cores": "0-1", "interfaceGroup": 0}],
		"links": [["teleport"]]
	}`
	if _, err := ParseProbeReport([]byte(report)); err == nil {
		t.Fatal("want error for unknown link name")
	}
}

func TestParseProbeReport_BadCoreRange(t *testing.T) {
	report := `{
		"nodes": [{"index": 0, "cores": "zero-four", "interfaceGroup": 0}],
		"links": [["self"]]
	}`
	if _, err := ParseProbeReport([]byte(report)); err == nil {
		t.Fatal("want error for unparseable core range")
	}
}

func TestParseProbeReport_Garbage(t *testing.T) {
	if _, err := ParseProbeReport([]byte("{not yaml: [")); err == nil {
		t.Fatal("want error for undecodable report")
	}
}
