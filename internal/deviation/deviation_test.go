package deviation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rws/internal/optics"
)

type row struct {
	name       string
	s          float64
	betx, bety float64
	mux, muy   float64
}

func table(t *testing.T, label string, rows ...row) *optics.Table {
	t.Helper()
	names := make([]string, len(rows))
	cols := []optics.Column{{Name: "S"}, {Name: "BETX"}, {Name: "BETY"}, {Name: "MUX"}, {Name: "MUY"}}
	for i, r := range rows {
		names[i] = r.name
		cols[0].Values = append(cols[0].Values, r.s)
		cols[1].Values = append(cols[1].Values, r.betx)
		cols[2].Values = append(cols[2].Values, r.bety)
		cols[3].Values = append(cols[3].Values, r.mux)
		cols[4].Values = append(cols[4].Values, r.muy)
	}
	tbl, err := optics.NewTable(label, names, nil, cols, optics.Header{})
	require.NoError(t, err)
	return tbl
}

func TestBetaBeating_Example(t *testing.T) {
	ref := table(t, "nominal", row{name: "Q1.L1", betx: 100, bety: 50})
	mod := table(t, "bare", row{name: "Q1.L1", betx: 110, bety: 45})

	bbx, err := BetaBeating(ref, mod, Horizontal)
	require.NoError(t, err)
	v, ok := bbx.Lookup("Q1.L1")
	require.True(t, ok)
	assert.InDelta(t, 0.10, v, 1e-15)

	bby, err := BetaBeating(ref, mod, Vertical)
	require.NoError(t, err)
	assert.InDelta(t, -0.10, bby.Points[0].Value, 1e-15)
	assert.Equal(t, QuantityBetaBeating, bby.Quantity)
	assert.Equal(t, Vertical, bby.Plane)
}

func TestBetaBeating_IntersectionInReferenceOrder(t *testing.T) {
	ref := table(t, "nominal",
		row{name: "A", s: 1, betx: 10},
		row{name: "B", s: 2, betx: 20},
		row{name: "C", s: 3, betx: 30},
		row{name: "D", s: 4, betx: 40},
	)
	mod := table(t, "matched",
		row{name: "D", betx: 44},
		row{name: "EXTRA", betx: 1},
		row{name: "b", betx: 22},
		row{name: "A", betx: 10},
	)

	bb, err := BetaBeating(ref, mod, Horizontal)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "D"}, bb.Names())
	want := []float64{0, 0.1, 0.1}
	if diff := cmp.Diff(want, bb.Values(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{1, 2, 4}, []float64{bb.Points[0].S, bb.Points[1].S, bb.Points[2].S})
}

func TestBetaBeating_IdenticalTablesAreZero(t *testing.T) {
	ref := table(t, "nominal",
		row{name: "A", betx: 10.3, bety: 7},
		row{name: "B", betx: 120.9, bety: 3.3},
		row{name: "C", betx: 0.55, bety: 0.55},
	)

	for _, plane := range []Plane{Horizontal, Vertical} {
		bb, err := BetaBeating(ref, ref, plane)
		require.NoError(t, err)
		for _, p := range bb.Points {
			assert.Zero(t, p.Value, p.Name)
		}
	}
}

func TestBetaBeating_NoSharedElements(t *testing.T) {
	ref := table(t, "nominal", row{name: "A", betx: 1})
	mod := table(t, "bare", row{name: "B", betx: 1})

	_, err := BetaBeating(ref, mod, Horizontal)
	require.Error(t, err)
	assert.True(t, IsConfigurationMismatch(err))
	assert.Contains(t, err.Error(), "nominal")
	assert.Contains(t, err.Error(), "bare")
}

func TestBetaBeating_ZeroReference(t *testing.T) {
	ref := table(t, "nominal", row{name: "A", betx: 0})
	_, err := BetaBeating(ref, ref, Horizontal)
	var de *DegenerateReferenceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "A", de.Element)
}

func TestBetaBeating_MissingColumn(t *testing.T) {
	ref, err := optics.NewTable("nominal", []string{"A"}, nil, nil, optics.Header{})
	require.NoError(t, err)

	_, err = BetaBeating(ref, ref, Horizontal)
	assert.True(t, optics.IsUnknownColumn(err))
}

func TestPhaseDifference(t *testing.T) {
	ref := table(t, "nominal",
		row{name: "A", mux: 0.10, muy: 0.2},
		row{name: "B", mux: 0.50, muy: 0.4},
		row{name: "C", mux: 62.31, muy: 60.32},
	)
	mod := table(t, "matched",
		row{name: "A", mux: 0.10, muy: 0.2},
		row{name: "B", mux: 0.52, muy: 0.39},
		row{name: "C", mux: 62.30, muy: 60.33},
	)

	dx, err := PhaseDifference(ref, mod, Horizontal)
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{0, 0.02, -0.01}, dx.Values(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("horizontal mismatch (-want +got):\n%s", diff)
	}

	dy, err := PhaseDifference(ref, mod, Vertical)
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{0, -0.01, 0.01}, dy.Values(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("vertical mismatch (-want +got):\n%s", diff)
	}
}

func TestPhaseDifference_UnwrapsCycleCrossing(t *testing.T) {
	// Fractional phases: the perturbed phase at C crosses the cycle boundary.
	ref := table(t, "nominal",
		row{name: "A", mux: 0.90},
		row{name: "B", mux: 0.95},
		row{name: "C", mux: 0.99},
		row{name: "D", mux: 0.30},
	)
	mod := table(t, "bare",
		row{name: "A", mux: 0.92},
		row{name: "B", mux: 0.97},
		row{name: "C", mux: 0.01},
		row{name: "D", mux: 0.32},
	)

	d, err := PhaseDifference(ref, mod, Horizontal)
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{0.02, 0.02, 0.02, 0.02}, d.Values(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("unwrapped mismatch (-want +got):\n%s", diff)
	}
}

func TestPhaseDifference_NoModuloOnCumulativePhase(t *testing.T) {
	ref := table(t, "nominal", row{name: "A", mux: 10.0}, row{name: "B", mux: 20.0})
	mod := table(t, "bare", row{name: "A", mux: 11.2}, row{name: "B", mux: 21.3})

	d, err := PhaseDifference(ref, mod, Horizontal)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, d.Points[0].Value, 1e-9)
	assert.InDelta(t, 1.3, d.Points[1].Value, 1e-9)
}

func TestAddBetaBeatingColumns(t *testing.T) {
	nominal := table(t, "nominal",
		row{name: "A", betx: 10, bety: 20},
		row{name: "B", betx: 100, bety: 200},
	)
	bare := table(t, "bare",
		row{name: "B", betx: 110, bety: 180},
		row{name: "X", betx: 1, bety: 1},
		row{name: "A", betx: 10, bety: 22},
	)

	out, err := AddBetaBeatingColumns(bare, nominal)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "A"}, out.Names())
	assert.Equal(t, "bare", out.Label())
	bbx, err := out.Column("BBX")
	require.NoError(t, err)
	bby, err := out.Column("BBY")
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{0.1, 0}, bbx, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("BBX mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{-0.1, 0.1}, bby, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("BBY mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, bare.HasColumn("BBX"))
}

func TestSeries_MaxAbs(t *testing.T) {
	s := &Series{Points: []Point{{Name: "A", Value: 0.1}, {Name: "B", Value: -0.3}, {Name: "C", Value: 0.2}}}
	p, ok := s.MaxAbs()
	require.True(t, ok)
	assert.Equal(t, "B", p.Name)

	_, ok = (&Series{}).MaxAbs()
	assert.False(t, ok)
}

func TestParsePlane(t *testing.T) {
	p, err := ParsePlane("Y")
	require.NoError(t, err)
	assert.Equal(t, Vertical, p)
	assert.Equal(t, "y", p.String())

	_, err = ParsePlane("z")
	assert.Error(t, err)
}
