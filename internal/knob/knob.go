package knob

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Knob is a signed powering change of one circuit, relative to its nominal
// powering, in the circuit's native control unit.
type Knob struct {
	Circuit string  `json:"circuit"`
	Delta   float64 `json:"delta"`
}

// Metadata ties a knob set to one beam and configuration scenario.
type Metadata struct {
	Beam     int     `json:"beam"`
	IP       int     `json:"ip"`
	Energy   float64 `json:"energy"`
	Scenario string  `json:"scenario"`
	Label    string  `json:"label"`
}

// Set is an ordered, immutable collection of knobs with unique circuits.
type Set struct {
	meta  Metadata
	knobs []Knob
	index map[string]int
}

// NormalizeCircuit returns the canonical spelling of a circuit identifier.
// MAD-X identifiers are case-insensitive; rws keeps them in lower case.
func NormalizeCircuit(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewSet builds a knob set, keeping the given order. Circuit names are
// normalised; two knobs on the same circuit fail with DuplicateCircuitError.
func NewSet(meta Metadata, knobs ...Knob) (*Set, error) {
	s := &Set{
		meta:  meta,
		knobs: make([]Knob, 0, len(knobs)),
		index: make(map[string]int, len(knobs)),
	}
	for _, k := range knobs {
		circuit := NormalizeCircuit(k.Circuit)
		if circuit == "" {
			return nil, fmt.Errorf("knob with empty circuit name")
		}
		if math.IsNaN(k.Delta) || math.IsInf(k.Delta, 0) {
			return nil, fmt.Errorf("knob %s: non-finite delta %v", circuit, k.Delta)
		}
		if _, ok := s.index[circuit]; ok {
			return nil, &DuplicateCircuitError{Circuit: circuit}
		}
		s.index[circuit] = len(s.knobs)
		s.knobs = append(s.knobs, Knob{Circuit: circuit, Delta: k.Delta})
	}
	return s, nil
}

// Meta returns the set's metadata.
func (s *Set) Meta() Metadata { return s.meta }

// Len returns the number of knobs.
func (s *Set) Len() int { return len(s.knobs) }

// Knobs returns the knobs in insertion order.
func (s *Set) Knobs() []Knob { return append([]Knob(nil), s.knobs...) }

// Sorted returns the knobs sorted by circuit name.
func (s *Set) Sorted() []Knob {
	out := s.Knobs()
	sort.Slice(out, func(i, j int) bool { return out[i].Circuit < out[j].Circuit })
	return out
}

// Circuits returns the circuit names in insertion order.
func (s *Set) Circuits() []string {
	out := make([]string, len(s.knobs))
	for i, k := range s.knobs {
		out[i] = k.Circuit
	}
	return out
}

// Get returns the knob of a circuit.
func (s *Set) Get(circuit string) (Knob, bool) {
	i, ok := s.index[NormalizeCircuit(circuit)]
	if !ok {
		return Knob{}, false
	}
	return s.knobs[i], true
}

// Equal reports whether two sets carry the same metadata and the same
// circuit deltas, regardless of order.
func (s *Set) Equal(other *Set) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.meta != other.meta || len(s.knobs) != len(other.knobs) {
		return false
	}
	for _, k := range s.knobs {
		o, ok := other.Get(k.Circuit)
		if !ok || o.Delta != k.Delta {
			return false
		}
	}
	return true
}

// Deltas returns the knobs as a circuit -> delta map.
func (s *Set) Deltas() map[string]float64 {
	out := make(map[string]float64, len(s.knobs))
	for _, k := range s.knobs {
		out[k.Circuit] = k.Delta
	}
	return out
}
