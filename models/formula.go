package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ComputeStep is one named intermediate expression in a formula graph.
type ComputeStep struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// ComputeGraph is the ordered list of intermediate expressions. The last
// step's value is the formula's result; formula authors rely on this
// positional convention, so authored order must survive decoding.
type ComputeGraph []ComputeStep

// UnmarshalJSON decodes a JSON object while preserving its key order, so the
// "last key is the result" convention holds regardless of Go map semantics.
func (g *ComputeGraph) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("compute graph: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("compute graph must be a JSON object, got %v", tok)
	}

	steps := make(ComputeGraph, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("compute graph key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("compute graph key must be a string, got %v", keyTok)
		}

		var expr string
		if err := dec.Decode(&expr); err != nil {
			return fmt.Errorf("compute graph expression for %q: %w", key, err)
		}
		steps = append(steps, ComputeStep{Name: key, Expr: expr})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("compute graph: %w", err)
	}

	*g = steps
	return nil
}

// MarshalJSON emits the graph back as an ordered object.
func (g ComputeGraph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, step := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(step.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(step.Expr)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Formula is a declarative definition of a derived metric: base-metric
// variables plus a chain of intermediate expressions over them.
type Formula struct {
	ID          int64             `json:"id"`
	MetricName  string            `json:"metric_name"`
	Description string            `json:"description,omitempty"`
	Variables   map[string]string `json:"variables"` // variable key -> base metric name
	Compute     ComputeGraph      `json:"compute"`
	Enabled     bool              `json:"enabled"`
	IsStandard  bool              `json:"is_standard"`
}

// ResultVar returns the name of the final compute step, which carries the
// formula's result. Empty when the graph has no steps.
func (f *Formula) ResultVar() string {
	if len(f.Compute) == 0 {
		return ""
	}
	return f.Compute[len(f.Compute)-1].Name
}

// DecodeVariables parses the variables column, tolerating double-encoded
// JSON (a JSON string containing a JSON object), which some catalog rows
// carry. Unparseable input yields an empty map, not an error.
func DecodeVariables(raw []byte) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}

	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err == nil {
		return out
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
	}
	return map[string]string{}
}

// DecodeComputeGraph parses the compute column with the same double-encoding
// tolerance as DecodeVariables.
func DecodeComputeGraph(raw []byte) ComputeGraph {
	if len(raw) == 0 {
		return nil
	}

	var g ComputeGraph
	if err := json.Unmarshal(raw, &g); err == nil {
		return g
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var inner ComputeGraph
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			return inner
		}
	}
	return nil
}
