package scenario

import (
	"fmt"

	"github.com/roach88/rws/internal/knob"
)

// Selector builds the knob selector of a group.
func (s *Scenario) Selector(g Group) (knob.Selector, error) {
	var sel knob.Selector
	switch g.Kind {
	case KindTriplets:
		sel = knob.TripletSelector(s.IP)
		sel.Separate = !g.Symmetric
	case KindQuadrupoles:
		quads := g.Quads
		if len(quads) == 0 {
			quads = knob.DefaultIndependentQuadrupoles
		}
		sel = knob.IndependentQuadrupolesSelector(quads, s.IP, s.Beam)
	case KindWorkingPoint:
		sel = knob.WorkingPointSelector(s.Beam)
	case KindCustom:
		match, err := customPredicate(g)
		if err != nil {
			return knob.Selector{}, fmt.Errorf("group %s: %w", g.Name, err)
		}
		sel = knob.Selector{
			IP:       s.IP,
			Beam:     s.Beam,
			Circuits: g.Circuits,
			Match:    match,
		}
		if g.Symmetric {
			sel.Group = knob.MirrorSides
		}
	default:
		return knob.Selector{}, fmt.Errorf("group %s: unknown kind %q", g.Name, g.Kind)
	}
	sel.Label = g.Name
	return sel, nil
}

// Selectors builds the selectors of every group, in file order.
func (s *Scenario) Selectors() ([]knob.Selector, error) {
	out := make([]knob.Selector, 0, len(s.Groups))
	for _, g := range s.Groups {
		sel, err := s.Selector(g)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// customPredicate combines the pattern and category of a custom group; both
// must match when both are given. Nil when the group only names circuits.
func customPredicate(g Group) (knob.Predicate, error) {
	var preds []knob.Predicate
	if g.Pattern != "" {
		p, err := knob.ByPattern(g.Pattern)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(g.Category) > 0 {
		preds = append(preds, knob.ByCategory(g.Category...))
	}
	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	}
	return knob.And(preds...), nil
}
