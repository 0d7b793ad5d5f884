package knob

import (
	"fmt"
	"regexp"
	"strings"
)

// CategoryCircuit is the category under which header powering variables are
// offered to predicates.
const CategoryCircuit = "CIRCUIT"

// Predicate decides from an element or circuit name and its category whether
// it takes part in a knob.
type Predicate func(name, category string) bool

// ByCategory matches any of the given categories, case-insensitively.
func ByCategory(categories ...string) Predicate {
	return func(_, category string) bool {
		for _, c := range categories {
			if strings.EqualFold(c, category) {
				return true
			}
		}
		return false
	}
}

// ByPattern matches names against a case-insensitive regular expression.
func ByPattern(pattern string) (Predicate, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit pattern %q: %w", pattern, err)
	}
	return func(name, _ string) bool { return re.MatchString(name) }, nil
}

// Named matches exactly the given names, case-insensitively.
func Named(names ...string) Predicate {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[NormalizeCircuit(n)] = true
	}
	return func(name, _ string) bool { return set[NormalizeCircuit(name)] }
}

// And matches when every predicate matches.
func And(preds ...Predicate) Predicate {
	return func(name, category string) bool {
		for _, p := range preds {
			if !p(name, category) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches.
func Or(preds ...Predicate) Predicate {
	return func(name, category string) bool {
		for _, p := range preds {
			if p(name, category) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(name, category string) bool { return !p(name, category) }
}

// GroupFunc maps a circuit to the key of its symmetry group. Circuits sharing
// a key are powered together.
type GroupFunc func(circuit string) string

var sideMarker = regexp.MustCompile(`([._0-9])[lr]([0-9])`)

// MirrorSides folds the left/right side letter in front of the IP number, so
// that kqx.l1 and kqx.r1, or mqxa.1l5 and mqxa.1r5, fall in the same group.
func MirrorSides(circuit string) string {
	return sideMarker.ReplaceAllString(NormalizeCircuit(circuit), "${1}x${2}")
}

// Selector declares which circuits a knob powers.
type Selector struct {
	// Label names the knob (triplets, quadrupoles, working_point...).
	Label string

	// IP is the interaction point the knob acts on, 0 when not tied to one.
	IP int

	// Beam restricts the knob to one beam, 0 when shared by both.
	Beam int

	// Circuits are required circuits; each must exist in at least one table.
	Circuits []string

	// Match selects further circuits among the nominal table's header
	// variables (category CIRCUIT) and element rows (their KEYWORD).
	Match Predicate

	// Group folds symmetric partners together. Nil isolates every circuit.
	Group GroupFunc

	// Separate powers every circuit on its own even when Group is set.
	Separate bool
}

// TripletSelector selects the two IP triplet circuits. A waist shift powers
// the sides in opposite directions, so the selector separates them.
func TripletSelector(ip int) Selector {
	return Selector{
		Label:    "triplets",
		IP:       ip,
		Circuits: []string{fmt.Sprintf("kqx.l%d", ip), fmt.Sprintf("kqx.r%d", ip)},
		Group:    MirrorSides,
		Separate: true,
	}
}

// IndependentQuadrupolesSelector selects the independently powered
// quadrupoles with the given numbers on both sides of ip for one beam. Each
// circuit is corrected on its own.
func IndependentQuadrupolesSelector(quads []int, ip, beam int) Selector {
	circuits := make([]string, 0, 2*len(quads))
	for _, q := range quads {
		for _, side := range []string{"r", "l"} {
			circuits = append(circuits, IndependentQuadrupoleCircuit(q, side, ip, beam))
		}
	}
	return Selector{
		Label:    "quadrupoles",
		IP:       ip,
		Beam:     beam,
		Circuits: circuits,
	}
}

// IndependentQuadrupoleCircuit names the circuit of quadrupole q on the given
// side ("l" or "r") of ip: Q4-Q10 are kq, Q11 is kqtl, Q12 and above are kqt.
func IndependentQuadrupoleCircuit(q int, side string, ip, beam int) string {
	prefix := "kq"
	switch {
	case q == 11:
		prefix = "kqtl"
	case q > 11:
		prefix = "kqt"
	}
	return fmt.Sprintf("%s%d.%s%db%d", prefix, q, strings.ToLower(side), ip, beam)
}

// DefaultIndependentQuadrupoles are the quadrupoles adjusted when matching a
// waist shift.
var DefaultIndependentQuadrupoles = []int{4, 5, 6, 7, 8, 9, 10, 11, 12, 13}

// WorkingPointSelector selects the tune and chromaticity knobs of a beam.
func WorkingPointSelector(beam int) Selector {
	return Selector{
		Label: "working_point",
		Beam:  beam,
		Circuits: []string{
			fmt.Sprintf("dqx.b%d", beam),
			fmt.Sprintf("dqy.b%d", beam),
			fmt.Sprintf("dqpx.b%d", beam),
			fmt.Sprintf("dqpy.b%d", beam),
		},
	}
}
