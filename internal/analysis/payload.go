package analysis

import (
	"bytes"
	"encoding/json"
	"math"
)

var jsonNull = []byte("null")

// OptionalString is a string field the analysis service may omit, send as
// null, or send with the wrong type. All three decode as invalid.
type OptionalString struct {
	Value string
	Valid bool
}

// Some returns a valid OptionalString.
func Some(v string) OptionalString {
	return OptionalString{Value: v, Valid: true}
}

// UnmarshalJSON never fails.
func (s *OptionalString) UnmarshalJSON(b []byte) error {
	*s = OptionalString{}
	if bytes.Equal(b, jsonNull) {
		return nil
	}
	var v string
	if json.Unmarshal(b, &v) == nil {
		*s = Some(v)
	}
	return nil
}

// MarshalJSON writes null for an invalid value.
func (s OptionalString) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return jsonNull, nil
	}
	return json.Marshal(s.Value)
}

// Or returns the value when it is valid and non-empty, fallback otherwise.
func (s OptionalString) Or(fallback string) string {
	if s.Valid && s.Value != "" {
		return s.Value
	}
	return fallback
}

// OptionalFloat is a numeric field with the same leniency as OptionalString.
type OptionalFloat struct {
	Value float64
	Valid bool
}

// SomeFloat returns a valid OptionalFloat.
func SomeFloat(v float64) OptionalFloat {
	return OptionalFloat{Value: v, Valid: true}
}

// UnmarshalJSON never fails.
func (f *OptionalFloat) UnmarshalJSON(b []byte) error {
	*f = OptionalFloat{}
	if bytes.Equal(b, jsonNull) {
		return nil
	}
	var v float64
	if json.Unmarshal(b, &v) == nil {
		*f = SomeFloat(v)
	}
	return nil
}

// MarshalJSON writes null for an invalid value.
func (f OptionalFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return jsonNull, nil
	}
	return json.Marshal(f.Value)
}

// Payload is the data section of an analyze-thought response.
type Payload struct {
	Reflection Reflection `json:"reflection"`
	Confidence Confidence `json:"confidence"`
	Analysis   Findings   `json:"analysis"`
	Graph      Graph      `json:"graph"`
}

type Reflection struct {
	Summary     OptionalString `json:"summary"`
	CoreTension OptionalString `json:"core_tension"`
}

type Confidence struct {
	AnalysisConfidence OptionalFloat `json:"analysis_confidence"`
}

type Findings struct {
	Conflicts []Conflict `json:"conflicts"`
}

// Conflict is a dissonance the service found inside one thought.
type Conflict struct {
	Description string `json:"description"`
}

// Graph is the cognitive map of a single thought.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type GraphNode struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Label       string        `json:"label"`
	Description string        `json:"description,omitempty"`
	Statement   string        `json:"statement,omitempty"`
	Importance  OptionalFloat `json:"importance"`
	Confidence  OptionalFloat `json:"confidence"`
}

type GraphEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation,omitempty"`
}

// UnmarshalJSON decodes each section on its own. A section of the wrong
// shape is left empty instead of failing the whole payload; list elements
// that do not decode are dropped.
func (p *Payload) UnmarshalJSON(b []byte) error {
	*p = Payload{}

	var sections map[string]json.RawMessage
	if json.Unmarshal(b, &sections) != nil {
		return nil
	}

	lenient(sections["reflection"], &p.Reflection)
	lenient(sections["confidence"], &p.Confidence)

	var findings map[string]json.RawMessage
	if json.Unmarshal(sections["analysis"], &findings) == nil {
		p.Analysis.Conflicts = list[Conflict](findings["conflicts"])
	}

	var graph map[string]json.RawMessage
	if json.Unmarshal(sections["graph"], &graph) == nil {
		p.Graph.Nodes = list[GraphNode](graph["nodes"])
		p.Graph.Edges = list[GraphEdge](graph["edges"])
	}
	return nil
}

func lenient[T any](raw json.RawMessage, dst *T) {
	if len(raw) == 0 {
		return
	}
	var v T
	if json.Unmarshal(raw, &v) == nil {
		*dst = v
	}
}

func list[T any](raw json.RawMessage) []T {
	var elems []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &elems) != nil {
		return nil
	}
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		var v T
		if json.Unmarshal(e, &v) == nil {
			out = append(out, v)
		}
	}
	return out
}

// CoreTension returns the core tension or fallback when absent or empty.
func (p *Payload) CoreTension(fallback string) string {
	return p.Reflection.CoreTension.Or(fallback)
}

// Summary returns the reflection summary or fallback when absent or empty.
func (p *Payload) Summary(fallback string) string {
	return p.Reflection.Summary.Or(fallback)
}

// AnalysisConfidence returns the confidence clamped to [0,1], or fallback
// when the service sent none.
func (p *Payload) AnalysisConfidence(fallback float64) float64 {
	c := p.Confidence.AnalysisConfidence
	if !c.Valid || math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
		return fallback
	}
	return math.Max(0, math.Min(1, c.Value))
}
