package models

import (
	"encoding/json"
	"testing"
)

func TestComputeGraphPreservesOrder(t *testing.T) {
	raw := `{"npm": "ni / rev", "at": "rev / assets", "em": "assets / eq", "roe": "npm * at * em"}`

	var g ComputeGraph
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	wantNames := []string{"npm", "at", "em", "roe"}
	if len(g) != len(wantNames) {
		t.Fatalf("got %d steps, want %d", len(g), len(wantNames))
	}
	for i, name := range wantNames {
		if g[i].Name != name {
			t.Errorf("step %d = %q, want %q", i, g[i].Name, name)
		}
	}

	f := Formula{Compute: g}
	if f.ResultVar() != "roe" {
		t.Errorf("ResultVar() = %q, want roe", f.ResultVar())
	}
}

func TestComputeGraphRoundTrip(t *testing.T) {
	g := ComputeGraph{
		{Name: "margin", Expr: "ni / rev"},
		{Name: "result", Expr: "margin * 100"},
	}

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back ComputeGraph
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(back) != 2 || back[0].Name != "margin" || back[1].Name != "result" {
		t.Errorf("round trip lost order: %+v", back)
	}
}

func TestComputeGraphRejectsNonObject(t *testing.T) {
	var g ComputeGraph
	if err := json.Unmarshal([]byte(`["a", "b"]`), &g); err == nil {
		t.Error("expected error for JSON array")
	}
}

func TestDecodeVariables(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"plain object", `{"ni": "净利润", "rev": "营业收入"}`, map[string]string{"ni": "净利润", "rev": "营业收入"}},
		{"double encoded", `"{\"ni\": \"净利润\"}"`, map[string]string{"ni": "净利润"}},
		{"empty", ``, map[string]string{}},
		{"garbage", `not json`, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeVariables([]byte(tt.raw))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.want))
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestDecodeComputeGraph(t *testing.T) {
	got := DecodeComputeGraph([]byte(`"{\"x\": \"a + b\", \"y\": \"x * 2\"}"`))
	if len(got) != 2 || got[1].Name != "y" {
		t.Errorf("double-encoded graph decode failed: %+v", got)
	}

	if got := DecodeComputeGraph([]byte(`broken`)); got != nil {
		t.Errorf("garbage should decode to nil, got %+v", got)
	}
	if got := DecodeComputeGraph(nil); got != nil {
		t.Errorf("empty input should decode to nil, got %+v", got)
	}
}
