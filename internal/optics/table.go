package optics

import (
	"fmt"
	"strings"
)

// Well-known column and header names, spelled as the simulation tool writes them.
const (
	ColName    = "NAME"
	ColKeyword = "KEYWORD"
	ColS       = "S"
	ColBetX    = "BETX"
	ColBetY    = "BETY"
	ColAlfX    = "ALFX"
	ColAlfY    = "ALFY"
	ColMuX     = "MUX"
	ColMuY     = "MUY"
	ColDX      = "DX"
	ColDY      = "DY"
	ColX       = "X"
	ColY       = "Y"
	ColK1L     = "K1L"
	ColBBX     = "BBX"
	ColBBY     = "BBY"

	HeaderSequence = "SEQUENCE"
	HeaderEnergy   = "ENERGY"
	HeaderQ1       = "Q1"
	HeaderQ2       = "Q2"
	HeaderDQ1      = "DQ1"
	HeaderDQ2      = "DQ2"

	KeywordMonitor = "MONITOR"
)

var columnAliases = map[string]string{
	"BETA_X":  ColBetX,
	"BETA_Y":  ColBetY,
	"ALPHA_X": ColAlfX,
	"ALPHA_Y": ColAlfY,
	"MU_X":    ColMuX,
	"MU_Y":    ColMuY,
	"DISP_X":  ColDX,
	"DISP_Y":  ColDY,
}

// CanonicalColumn maps a column name or alias to the stored column name.
func CanonicalColumn(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if alias, ok := columnAliases[upper]; ok {
		return alias
	}
	return upper
}

// Column is a named numeric column used to build a Table.
type Column struct {
	Name   string
	Values []float64
}

// Scalar is a numeric header entry.
type Scalar struct {
	Key   string
	Value float64
}

// Text is a string header entry.
type Text struct {
	Key   string
	Value string
}

// Header carries the table-wide scalars in file order.
type Header struct {
	Scalars []Scalar
	Texts   []Text
}

// Table is an immutable twiss table. The zero value is not usable; build one
// with NewTable or read one with ReadTFS.
type Table struct {
	label    string
	names    []string
	keywords []string
	index    map[string]int

	columns []string
	data    map[string][]float64

	scalars     []Scalar
	scalarIndex map[string]int
	texts       []Text
	textIndex   map[string]int
}

// NewTable builds a table from element names, their keywords (nil for none),
// numeric columns and a header. Element names must be unique
// (case-insensitively) and every column must have one value per element.
func NewTable(label string, names, keywords []string, columns []Column, header Header) (*Table, error) {
	if keywords != nil && len(keywords) != len(names) {
		return nil, fmt.Errorf("table %q: %d keywords for %d elements", label, len(keywords), len(names))
	}

	t := &Table{
		label:       label,
		names:       append([]string(nil), names...),
		keywords:    make([]string, len(names)),
		index:       make(map[string]int, len(names)),
		data:        make(map[string][]float64, len(columns)),
		scalarIndex: make(map[string]int, len(header.Scalars)),
		textIndex:   make(map[string]int, len(header.Texts)),
	}
	copy(t.keywords, keywords)

	for i, name := range names {
		key := strings.ToUpper(name)
		if prev, ok := t.index[key]; ok {
			return nil, &DuplicateElementError{Element: name, Rows: [2]int{prev, i}}
		}
		t.index[key] = i
	}

	for _, col := range columns {
		name := CanonicalColumn(col.Name)
		if name == ColName || name == ColKeyword {
			return nil, fmt.Errorf("table %q: %s is not a numeric column", label, name)
		}
		if len(col.Values) != len(names) {
			return nil, fmt.Errorf("table %q: column %s has %d values for %d elements", label, name, len(col.Values), len(names))
		}
		if _, ok := t.data[name]; ok {
			return nil, fmt.Errorf("table %q: duplicate column %s", label, name)
		}
		t.columns = append(t.columns, name)
		t.data[name] = append([]float64(nil), col.Values...)
	}

	for _, s := range header.Scalars {
		key := strings.ToUpper(s.Key)
		if i, ok := t.scalarIndex[key]; ok {
			t.scalars[i].Value = s.Value
			continue
		}
		t.scalarIndex[key] = len(t.scalars)
		t.scalars = append(t.scalars, Scalar{Key: key, Value: s.Value})
	}
	for _, s := range header.Texts {
		key := strings.ToUpper(s.Key)
		if i, ok := t.textIndex[key]; ok {
			t.texts[i].Value = s.Value
			continue
		}
		t.textIndex[key] = len(t.texts)
		t.texts = append(t.texts, Text{Key: key, Value: s.Value})
	}

	return t, nil
}

// Label names the configuration the table describes (nominal, bare, matched...).
func (t *Table) Label() string { return t.label }

// WithLabel returns a copy of the table under another label.
func (t *Table) WithLabel(label string) *Table {
	c := *t
	c.label = label
	return &c
}

// Len returns the number of elements.
func (t *Table) Len() int { return len(t.names) }

// Names returns the element names in machine order.
func (t *Table) Names() []string { return append([]string(nil), t.names...) }

// Name returns the name of the i-th element.
func (t *Table) Name(i int) string { return t.names[i] }

// Keyword returns the category tag of the i-th element.
func (t *Table) Keyword(i int) string { return t.keywords[i] }

// Index returns the row of the named element.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[strings.ToUpper(name)]
	return i, ok
}

// Columns returns the numeric column names in table order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// HasColumn reports whether the table carries the column (aliases accepted).
func (t *Table) HasColumn(name string) bool {
	_, ok := t.data[CanonicalColumn(name)]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	values, ok := t.data[CanonicalColumn(name)]
	if !ok {
		return nil, &UnknownColumnError{Column: name, Table: t.label}
	}
	return append([]float64(nil), values...), nil
}

// Value returns one cell.
func (t *Table) Value(element, column string) (float64, error) {
	values, ok := t.data[CanonicalColumn(column)]
	if !ok {
		return 0, &UnknownColumnError{Column: column, Table: t.label}
	}
	i, ok := t.Index(element)
	if !ok {
		return 0, &UnknownElementError{Element: element, Table: t.label}
	}
	return values[i], nil
}

// Scalar returns a numeric header value.
func (t *Table) Scalar(key string) (float64, bool) {
	i, ok := t.scalarIndex[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	return t.scalars[i].Value, true
}

// Text returns a string header value.
func (t *Table) Text(key string) (string, bool) {
	i, ok := t.textIndex[strings.ToUpper(key)]
	if !ok {
		return "", false
	}
	return t.texts[i].Value, true
}

// Header returns a copy of the header in file order.
func (t *Table) Header() Header {
	return Header{
		Scalars: append([]Scalar(nil), t.scalars...),
		Texts:   append([]Text(nil), t.texts...),
	}
}

// Beam returns the beam number encoded in the SEQUENCE header
// (LHCB1 -> 1, LHCB2 -> 2), or 0 when it cannot be told.
func (t *Table) Beam() int {
	seq, ok := t.Text(HeaderSequence)
	if !ok {
		return 0
	}
	seq = strings.ToUpper(strings.TrimSpace(seq))
	switch {
	case strings.HasSuffix(seq, "B1"):
		return 1
	case strings.HasSuffix(seq, "B2"), strings.HasSuffix(seq, "B4"):
		return 2
	}
	return 0
}

// Energy returns the beam energy header in GeV, or 0 if absent.
func (t *Table) Energy() float64 {
	e, _ := t.Scalar(HeaderEnergy)
	return e
}

// Filter returns a new table holding the rows for which keep returns true,
// in their original order. Columns and header are carried over.
func (t *Table) Filter(keep func(name, keyword string) bool) *Table {
	var rows []int
	for i := range t.names {
		if keep(t.names[i], t.keywords[i]) {
			rows = append(rows, i)
		}
	}
	return t.rows(rows)
}

// WithColumns returns a new table with the given columns appended, or
// replaced when a column of the same name already exists.
func (t *Table) WithColumns(columns ...Column) (*Table, error) {
	merged := make([]Column, 0, len(t.columns)+len(columns))
	replaced := make(map[string]bool, len(columns))
	for _, c := range columns {
		replaced[CanonicalColumn(c.Name)] = true
	}
	for _, name := range t.columns {
		if !replaced[name] {
			merged = append(merged, Column{Name: name, Values: t.data[name]})
		}
	}
	merged = append(merged, columns...)
	return NewTable(t.label, t.names, t.keywords, merged, t.Header())
}

func (t *Table) rows(rows []int) *Table {
	names := make([]string, len(rows))
	keywords := make([]string, len(rows))
	columns := make([]Column, len(t.columns))
	for j, name := range t.columns {
		columns[j] = Column{Name: name, Values: make([]float64, len(rows))}
	}
	for k, i := range rows {
		names[k] = t.names[i]
		keywords[k] = t.keywords[i]
		for j, name := range t.columns {
			columns[j].Values[k] = t.data[name][i]
		}
	}
	// A subset of unique rows stays unique, so this cannot fail.
	out, err := NewTable(t.label, names, keywords, columns, t.Header())
	if err != nil {
		panic(fmt.Sprintf("optics: row subset of %q: %v", t.label, err))
	}
	return out
}

func (t *Table) project(columns []string) *Table {
	cols := make([]Column, len(columns))
	for j, name := range columns {
		cols[j] = Column{Name: name, Values: t.data[name]}
	}
	out, err := NewTable(t.label, t.names, t.keywords, cols, t.Header())
	if err != nil {
		panic(fmt.Sprintf("optics: projection of %q: %v", t.label, err))
	}
	return out
}
