package knob

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/rws/internal/optics"
)

// Strength returns the powering of a circuit in a table: the header variable
// of that name if present, otherwise the K1L of the element of that name.
func Strength(t *optics.Table, circuit string) (float64, bool) {
	if v, ok := t.Scalar(circuit); ok {
		return v, true
	}
	if !t.HasColumn(optics.ColK1L) {
		return 0, false
	}
	v, err := t.Value(circuit, optics.ColK1L)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Derive computes the knob set taking nominal to perturbed for the circuits
// chosen by sel. Each delta is the plain difference of the circuit's strength
// in the two tables; symmetric partners (per sel.Group) share the mean delta
// of their group unless sel.Separate is set.
func Derive(nominal, perturbed *optics.Table, sel Selector) (*Set, error) {
	beam, err := resolveBeam(nominal, perturbed, sel)
	if err != nil {
		return nil, err
	}

	circuits, err := sel.resolve(nominal, perturbed)
	if err != nil {
		return nil, err
	}

	deltas := make([]float64, len(circuits))
	for i, c := range circuits {
		nom, inNominal := Strength(nominal, c)
		mod, inPerturbed := Strength(perturbed, c)
		switch {
		case !inNominal && !inPerturbed:
			return nil, &UnknownCircuitError{Circuit: c}
		case !inNominal:
			return nil, &ConfigurationMismatchError{Circuit: c, Message: fmt.Sprintf("absent from nominal table %q", nominal.Label())}
		case !inPerturbed:
			return nil, &ConfigurationMismatchError{Circuit: c, Message: fmt.Sprintf("absent from perturbed table %q", perturbed.Label())}
		}
		deltas[i] = mod - nom
	}

	if sel.Group != nil && !sel.Separate {
		symmetrize(circuits, deltas, sel.Group)
	}

	knobs := make([]Knob, len(circuits))
	for i, c := range circuits {
		knobs[i] = Knob{Circuit: c, Delta: deltas[i]}
	}

	meta := Metadata{
		Beam:     beam,
		IP:       sel.IP,
		Energy:   nominal.Energy(),
		Scenario: perturbed.Label(),
		Label:    sel.Label,
	}
	set, err := NewSet(meta, knobs...)
	if err != nil {
		return nil, err
	}

	slog.Debug("derived knob set",
		"label", sel.Label,
		"beam", beam,
		"scenario", meta.Scenario,
		"circuits", set.Len(),
	)
	return set, nil
}

// PoweringDelta returns modified - nominal for every circuit. Both maps must
// name exactly the same circuits.
func PoweringDelta(nominal, modified map[string]float64) (map[string]float64, error) {
	norm := normalizeKeys(nominal)
	mod := normalizeKeys(modified)

	for _, c := range sortedKeys(norm) {
		if _, ok := mod[c]; !ok {
			return nil, &ConfigurationMismatchError{Circuit: c, Message: "absent from modified knobs"}
		}
	}
	for _, c := range sortedKeys(mod) {
		if _, ok := norm[c]; !ok {
			return nil, &ConfigurationMismatchError{Circuit: c, Message: "absent from nominal knobs"}
		}
	}

	out := make(map[string]float64, len(norm))
	for c, v := range norm {
		out[c] = mod[c] - v
	}
	return out, nil
}

// resolve lists the participating circuits: the explicit ones first, then the
// predicate matches in nominal table order, without repetition.
func (sel Selector) resolve(nominal, perturbed *optics.Table) ([]string, error) {
	seen := make(map[string]bool)
	var circuits []string
	add := func(c string) {
		c = NormalizeCircuit(c)
		if !seen[c] {
			seen[c] = true
			circuits = append(circuits, c)
		}
	}

	for _, c := range sel.Circuits {
		_, inNominal := Strength(nominal, c)
		_, inPerturbed := Strength(perturbed, c)
		if !inNominal && !inPerturbed {
			return nil, &UnknownCircuitError{Circuit: NormalizeCircuit(c)}
		}
		add(c)
	}

	if sel.Match != nil {
		for _, s := range nominal.Header().Scalars {
			if sel.Match(s.Key, CategoryCircuit) {
				add(s.Key)
			}
		}
		for i := 0; i < nominal.Len(); i++ {
			if sel.Match(nominal.Name(i), nominal.Keyword(i)) {
				add(nominal.Name(i))
			}
		}
	}

	if len(circuits) == 0 {
		return nil, fmt.Errorf("selector %q selects no circuit", sel.Label)
	}
	return circuits, nil
}

// symmetrize gives every member of a symmetry group the mean delta of the group.
func symmetrize(circuits []string, deltas []float64, group GroupFunc) {
	members := make(map[string][]int)
	var order []string
	for i, c := range circuits {
		key := group(c)
		if _, ok := members[key]; !ok {
			order = append(order, key)
		}
		members[key] = append(members[key], i)
	}
	for _, key := range order {
		idx := members[key]
		if len(idx) < 2 {
			continue
		}
		sum := 0.0
		for _, i := range idx {
			sum += deltas[i]
		}
		mean := sum / float64(len(idx))
		for _, i := range idx {
			deltas[i] = mean
		}
	}
}

func resolveBeam(nominal, perturbed *optics.Table, sel Selector) (int, error) {
	beam := 0
	for _, b := range []int{nominal.Beam(), perturbed.Beam(), sel.Beam} {
		if b == 0 {
			continue
		}
		if beam != 0 && b != beam {
			return 0, &ConfigurationMismatchError{Message: fmt.Sprintf(
				"beams disagree: nominal %d, perturbed %d, selector %d", nominal.Beam(), perturbed.Beam(), sel.Beam)}
		}
		beam = b
	}
	return beam, nil
}

func normalizeKeys(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[NormalizeCircuit(k)] = v
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
