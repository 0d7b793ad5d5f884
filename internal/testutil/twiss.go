package testutil

import (
	"fmt"
	"testing"

	"github.com/roach88/rws/internal/optics"
)

// Row is one element of a fixture twiss table.
type Row struct {
	Name    string
	Keyword string
	S       float64
	BetX    float64
	BetY    float64
	MuX     float64
	MuY     float64
	K1L     float64
}

// TwissBuilder assembles small twiss tables for tests. Every table it builds
// carries the S, BETX, BETY, MUX, MUY and K1L columns.
type TwissBuilder struct {
	label  string
	rows   []Row
	header optics.Header
}

// NewTwiss starts a table with the given label.
func NewTwiss(label string) *TwissBuilder {
	return &TwissBuilder{label: label}
}

// Beam sets the SEQUENCE header to LHCB<beam>.
func (b *TwissBuilder) Beam(beam int) *TwissBuilder {
	return b.Text(optics.HeaderSequence, fmt.Sprintf("LHCB%d", beam))
}

// Text adds a string header entry.
func (b *TwissBuilder) Text(key, value string) *TwissBuilder {
	b.header.Texts = append(b.header.Texts, optics.Text{Key: key, Value: value})
	return b
}

// Scalar adds a numeric header entry, such as a circuit powering variable.
func (b *TwissBuilder) Scalar(key string, value float64) *TwissBuilder {
	b.header.Scalars = append(b.header.Scalars, optics.Scalar{Key: key, Value: value})
	return b
}

// Row appends elements in order.
func (b *TwissBuilder) Row(rows ...Row) *TwissBuilder {
	b.rows = append(b.rows, rows...)
	return b
}

// Build returns the table, failing the test if it is invalid.
func (b *TwissBuilder) Build(t testing.TB) *optics.Table {
	t.Helper()
	names := make([]string, len(b.rows))
	keywords := make([]string, len(b.rows))
	cols := []optics.Column{
		{Name: optics.ColS}, {Name: optics.ColBetX}, {Name: optics.ColBetY},
		{Name: optics.ColMuX}, {Name: optics.ColMuY}, {Name: optics.ColK1L},
	}
	for i, r := range b.rows {
		names[i] = r.Name
		keywords[i] = r.Keyword
		for j, v := range []float64{r.S, r.BetX, r.BetY, r.MuX, r.MuY, r.K1L} {
			cols[j].Values = append(cols[j].Values, v)
		}
	}
	tbl, err := optics.NewTable(b.label, names, keywords, cols, b.header)
	if err != nil {
		t.Fatalf("testutil: building table %q: %v", b.label, err)
	}
	return tbl
}

// Triplet powering of the fixture tables.
const (
	NominalTriplet = 0.0087
	NominalKQ4     = -0.0041
	NominalKQ5     = 0.0036
)

// LHCLikeTables returns nominal, bare and matched fixture tables for one
// beam and IP. The bare table has the triplets of a unit rigid waist shift
// towards the left; the matched table additionally trims Q4, Q5 and the tune
// knobs. Element optics change in both perturbed tables.
func LHCLikeTables(t testing.TB, beam, ip int) (nominal, bare, matched *optics.Table) {
	t.Helper()

	kqxL := fmt.Sprintf("kqx.l%d", ip)
	kqxR := fmt.Sprintf("kqx.r%d", ip)
	kq4L := fmt.Sprintf("kq4.l%db%d", ip, beam)
	kq4R := fmt.Sprintf("kq4.r%db%d", ip, beam)
	kq5L := fmt.Sprintf("kq5.l%db%d", ip, beam)
	kq5R := fmt.Sprintf("kq5.r%db%d", ip, beam)
	dqx := fmt.Sprintf("dqx.b%d", beam)
	dqy := fmt.Sprintf("dqy.b%d", beam)
	dqpx := fmt.Sprintf("dqpx.b%d", beam)
	dqpy := fmt.Sprintf("dqpy.b%d", beam)

	rows := func(scale float64, dmu float64) []Row {
		return []Row{
			{Name: fmt.Sprintf("IP%d", ip), Keyword: "MARKER", S: 0, BetX: 0.3, BetY: 0.3},
			{Name: fmt.Sprintf("BPMSW.1L%d.B%d", ip, beam), Keyword: "MONITOR", S: 21.5, BetX: 1200 * scale, BetY: 1250 / scale, MuX: 0.23 + dmu, MuY: 0.23 - dmu},
			{Name: fmt.Sprintf("MQXA.1L%d", ip), Keyword: "QUADRUPOLE", S: 26.15, BetX: 1500 * scale, BetY: 1400 / scale, MuX: 0.24 + dmu, MuY: 0.24 - dmu, K1L: 0.05},
			{Name: fmt.Sprintf("BPMSW.1R%d.B%d", ip, beam), Keyword: "MONITOR", S: 31.5, BetX: 1250 / scale, BetY: 1200 * scale, MuX: 0.26 + dmu, MuY: 0.26 - dmu},
			{Name: fmt.Sprintf("MQXA.1R%d", ip), Keyword: "QUADRUPOLE", S: 36.15, BetX: 1400 / scale, BetY: 1500 * scale, MuX: 0.27 + dmu, MuY: 0.27 - dmu, K1L: -0.05},
			{Name: fmt.Sprintf("BPM.5R%d.B%d", ip, beam), Keyword: "MONITOR", S: 180, BetX: 95, BetY: 110, MuX: 0.30 + 2*dmu, MuY: 0.31 - 2*dmu},
		}
	}

	base := func(label string) *TwissBuilder {
		return NewTwiss(label).Beam(beam).
			Scalar(optics.HeaderEnergy, 6800).
			Scalar(optics.HeaderQ1, 62.31).
			Scalar(optics.HeaderQ2, 60.32)
	}

	nominal = base("nominal").
		Scalar(kqxL, NominalTriplet).Scalar(kqxR, NominalTriplet).
		Scalar(kq4L, NominalKQ4).Scalar(kq4R, NominalKQ4).
		Scalar(kq5L, NominalKQ5).Scalar(kq5R, NominalKQ5).
		Scalar(dqx, 0).Scalar(dqy, 0).Scalar(dqpx, 0).Scalar(dqpy, 0).
		Row(rows(1, 0)...).
		Build(t)

	bare = base("bare").
		Scalar(kqxL, NominalTriplet*1.005).Scalar(kqxR, NominalTriplet*0.995).
		Scalar(kq4L, NominalKQ4).Scalar(kq4R, NominalKQ4).
		Scalar(kq5L, NominalKQ5).Scalar(kq5R, NominalKQ5).
		Scalar(dqx, 0).Scalar(dqy, 0).Scalar(dqpx, 0).Scalar(dqpy, 0).
		Row(rows(1.1, 0.01)...).
		Build(t)

	matched = base("matched").
		Scalar(kqxL, NominalTriplet*1.005).Scalar(kqxR, NominalTriplet*0.995).
		Scalar(kq4L, NominalKQ4+2e-5).Scalar(kq4R, NominalKQ4-1e-5).
		Scalar(kq5L, NominalKQ5+3e-6).Scalar(kq5R, NominalKQ5-4e-6).
		Scalar(dqx, 0.002).Scalar(dqy, -0.001).Scalar(dqpx, 0).Scalar(dqpy, 0).
		Row(rows(1.02, 0.002)...).
		Build(t)

	return nominal, bare, matched
}
