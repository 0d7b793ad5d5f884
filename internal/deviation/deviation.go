// Package deviation compares two twiss tables element by element.
//
// Tables are always aligned by element name (inner join), never by position:
// a perturbed configuration may carry extra diagnostic elements or a
// different ordering. Output follows the reference table's machine order.
package deviation

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/roach88/rws/internal/optics"
)

// Plane selects the horizontal or vertical optics functions.
type Plane int

const (
	Horizontal Plane = iota
	Vertical
)

func (p Plane) String() string {
	if p == Vertical {
		return "y"
	}
	return "x"
}

// MarshalText encodes the plane as "x" or "y".
func (p Plane) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParsePlane accepts "x"/"horizontal" and "y"/"vertical".
func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "h", "horizontal":
		return Horizontal, nil
	case "y", "v", "vertical":
		return Vertical, nil
	}
	return 0, fmt.Errorf("invalid plane %q: must be x or y", s)
}

func (p Plane) betaColumn() string {
	if p == Vertical {
		return optics.ColBetY
	}
	return optics.ColBetX
}

func (p Plane) phaseColumn() string {
	if p == Vertical {
		return optics.ColMuY
	}
	return optics.ColMuX
}

// Quantity names the optics quantity a Series describes.
type Quantity string

const (
	QuantityBetaBeating     Quantity = "beta-beating"
	QuantityPhaseDifference Quantity = "phase-difference"
)

// Point is one element of a Series.
type Point struct {
	Name  string  `json:"name"`
	S     float64 `json:"s"`
	Value float64 `json:"value"`
}

// Series is a deviation per shared element, in the reference table's order.
type Series struct {
	Quantity  Quantity `json:"quantity"`
	Plane     Plane    `json:"plane"`
	Reference string   `json:"reference"`
	Perturbed string   `json:"perturbed"`
	Points    []Point  `json:"points"`
}

// Len returns the number of points.
func (s *Series) Len() int { return len(s.Points) }

// Names returns the element names of the series.
func (s *Series) Names() []string {
	names := make([]string, len(s.Points))
	for i, p := range s.Points {
		names[i] = p.Name
	}
	return names
}

// Values returns the deviation values of the series.
func (s *Series) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Lookup returns the deviation at the named element.
func (s *Series) Lookup(name string) (float64, bool) {
	for _, p := range s.Points {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return 0, false
}

// MaxAbs returns the largest absolute deviation and where it occurs.
func (s *Series) MaxAbs() (Point, bool) {
	var best Point
	found := false
	for _, p := range s.Points {
		if !found || math.Abs(p.Value) > math.Abs(best.Value) {
			best = p
			found = true
		}
	}
	return best, found
}

// BetaBeating returns (perturbed - reference) / reference of the beta function
// in the given plane for every element the two tables share.
func BetaBeating(reference, perturbed *optics.Table, plane Plane) (*Series, error) {
	col := plane.betaColumn()
	pairs, err := align(reference, perturbed, col)
	if err != nil {
		return nil, err
	}

	series := newSeries(QuantityBetaBeating, plane, reference, perturbed, len(pairs))
	for _, p := range pairs {
		if p.ref == 0 {
			return nil, &DegenerateReferenceError{Element: p.name, Column: col, Table: reference.Label()}
		}
		series.Points = append(series.Points, Point{Name: p.name, S: p.s, Value: (p.mod - p.ref) / p.ref})
	}
	return series, nil
}

// PhaseDifference returns perturbed - reference of the phase advance (in units
// of 2π) for every shared element. The difference is unwrapped along the
// series: consecutive points never differ by more than half a cycle, and no
// modulo is applied to the values themselves.
func PhaseDifference(reference, perturbed *optics.Table, plane Plane) (*Series, error) {
	pairs, err := align(reference, perturbed, plane.phaseColumn())
	if err != nil {
		return nil, err
	}

	series := newSeries(QuantityPhaseDifference, plane, reference, perturbed, len(pairs))
	for _, p := range pairs {
		series.Points = append(series.Points, Point{Name: p.name, S: p.s, Value: p.mod - p.ref})
	}
	unwrap(series.Points)
	return series, nil
}

// AddBetaBeatingColumns returns table reduced to the elements it shares with
// nominal, with BBX and BBY beta-beating columns appended.
func AddBetaBeatingColumns(table, nominal *optics.Table) (*optics.Table, error) {
	shared := table.Filter(func(name, _ string) bool {
		_, ok := nominal.Index(name)
		return ok
	})
	if shared.Len() == 0 {
		return nil, &ConfigurationMismatchError{Reference: nominal.Label(), Perturbed: table.Label()}
	}

	columns := make([]optics.Column, 0, 2)
	for _, plane := range []Plane{Horizontal, Vertical} {
		// Aligning on the reduced table keeps its own row order.
		bb, err := BetaBeating(nominal, shared, plane)
		if err != nil {
			return nil, err
		}
		values := make([]float64, shared.Len())
		for _, p := range bb.Points {
			i, _ := shared.Index(p.Name)
			values[i] = p.Value
		}
		name := optics.ColBBX
		if plane == Vertical {
			name = optics.ColBBY
		}
		columns = append(columns, optics.Column{Name: name, Values: values})
	}
	return shared.WithColumns(columns...)
}

type pair struct {
	name     string
	s        float64
	ref, mod float64
}

// align inner-joins the two tables by element name on one column, in the
// reference table's order.
func align(reference, perturbed *optics.Table, column string) ([]pair, error) {
	refVals, err := reference.Column(column)
	if err != nil {
		return nil, err
	}
	modVals, err := perturbed.Column(column)
	if err != nil {
		return nil, err
	}
	var sVals []float64
	if reference.HasColumn(optics.ColS) {
		sVals, _ = reference.Column(optics.ColS)
	}

	pairs := make([]pair, 0, reference.Len())
	for i := 0; i < reference.Len(); i++ {
		name := reference.Name(i)
		j, ok := perturbed.Index(name)
		if !ok {
			continue
		}
		p := pair{name: name, ref: refVals[i], mod: modVals[j]}
		if sVals != nil {
			p.s = sVals[i]
		}
		pairs = append(pairs, p)
	}

	if len(pairs) == 0 {
		return nil, &ConfigurationMismatchError{Reference: reference.Label(), Perturbed: perturbed.Label()}
	}

	slog.Debug("aligned tables",
		"reference", reference.Label(),
		"perturbed", perturbed.Label(),
		"column", column,
		"shared", len(pairs),
		"reference_only", reference.Len()-len(pairs),
		"perturbed_only", perturbed.Len()-len(pairs),
	)
	return pairs, nil
}

// unwrap shifts each point by whole cycles so it lies within half a cycle of
// its predecessor.
func unwrap(points []Point) {
	for i := 1; i < len(points); i++ {
		points[i].Value -= math.Round(points[i].Value - points[i-1].Value)
	}
}

func newSeries(q Quantity, plane Plane, reference, perturbed *optics.Table, n int) *Series {
	return &Series{
		Quantity:  q,
		Plane:     plane,
		Reference: reference.Label(),
		Perturbed: perturbed.Label(),
		Points:    make([]Point, 0, n),
	}
}
