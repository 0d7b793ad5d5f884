package knob

import "github.com/roach88/rws/internal/optics"

// Reference is the nominal powering of circuits, keyed by normalised circuit
// name, against which deltas are applied.
type Reference map[string]float64

// NewReference builds a reference from a circuit -> powering map, normalising
// the circuit names.
func NewReference(values map[string]float64) Reference {
	return Reference(normalizeKeys(values))
}

// Lookup returns the nominal powering of a circuit.
func (r Reference) Lookup(circuit string) (float64, bool) {
	v, ok := r[NormalizeCircuit(circuit)]
	return v, ok
}

// ReferenceFromTable reads the nominal powering of the given circuits from a
// table, the same way Derive does. Circuits the table does not know are left
// out; writing a powering file for them fails later with a missing reference.
func ReferenceFromTable(t *optics.Table, circuits []string) Reference {
	ref := make(Reference, len(circuits))
	for _, c := range circuits {
		if v, ok := Strength(t, c); ok {
			ref[NormalizeCircuit(c)] = v
		}
	}
	return ref
}
