package optics

import "strings"

// DefaultExportColumns are the numeric columns written to exported TFS files.
// NAME and KEYWORD are always kept.
var DefaultExportColumns = []string{
	ColS, ColX, ColY, ColBetX, ColBetY, ColAlfX, ColAlfY, ColMuX, ColMuY, ColDX, ColDY,
}

// IsMonitor reports whether an element is a beam position monitor.
func IsMonitor(name, keyword string) bool {
	return strings.EqualFold(keyword, KeywordMonitor) ||
		strings.HasPrefix(strings.ToUpper(name), "BPM")
}

// OnlyMonitors keeps the beam position monitor rows of t.
func OnlyMonitors(t *Table) *Table {
	return t.Filter(IsMonitor)
}

// OnlyExportColumns projects t onto the requested numeric columns, in the
// requested order. NAME and KEYWORD may be listed and are always kept.
// The first absent column fails the projection with an UnknownColumnError
// carrying the name as requested.
func OnlyExportColumns(t *Table, columns []string) (*Table, error) {
	seen := make(map[string]bool, len(columns))
	keep := make([]string, 0, len(columns))
	for _, requested := range columns {
		name := CanonicalColumn(requested)
		if name == ColName || name == ColKeyword {
			continue
		}
		if _, ok := t.data[name]; !ok {
			return nil, &UnknownColumnError{Column: requested, Table: t.label}
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		keep = append(keep, name)
	}
	return t.project(keep), nil
}

// ExportColumnsFor returns DefaultExportColumns plus the beta-beating columns
// when t carries them.
func ExportColumnsFor(t *Table) []string {
	cols := append([]string(nil), DefaultExportColumns...)
	for _, extra := range []string{ColBBX, ColBBY} {
		if t.HasColumn(extra) {
			cols = append(cols, extra)
		}
	}
	return cols
}
