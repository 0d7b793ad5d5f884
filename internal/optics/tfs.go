package optics

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ReadTFS parses a TFS table. Only the NAME and KEYWORD string columns are
// kept; other string columns are dropped. The NAME column is required.
func ReadTFS(r io.Reader, label string) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		header   Header
		colNames []string
		colTypes []string
		names    []string
		keywords []string
		numeric  []Column
		slots    []int // per TFS column: -1 name, -2 keyword, -3 dropped, >=0 numeric index
	)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		switch line[0] {
		case '@':
			tokens, err := tokenize(line[1:])
			if err != nil || len(tokens) < 3 {
				return nil, &ParseError{Line: lineNo, Message: "malformed header line"}
			}
			key, typ, raw := tokens[0], tokens[1], strings.Join(tokens[2:], " ")
			if strings.HasSuffix(typ, "s") {
				header.Texts = append(header.Texts, Text{Key: key, Value: raw})
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("header %s: %v", key, err)}
			}
			header.Scalars = append(header.Scalars, Scalar{Key: key, Value: v})

		case '*':
			colNames = strings.Fields(line[1:])

		case '$':
			colTypes = strings.Fields(line[1:])

		default:
			if slots == nil {
				var err error
				slots, numeric, err = layout(colNames, colTypes)
				if err != nil {
					return nil, &ParseError{Line: lineNo, Message: err.Error()}
				}
			}
			tokens, err := tokenize(line)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Message: err.Error()}
			}
			if len(tokens) != len(slots) {
				return nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("%d values for %d columns", len(tokens), len(slots))}
			}
			keyword := ""
			for i, tok := range tokens {
				switch s := slots[i]; {
				case s == -1:
					names = append(names, tok)
				case s == -2:
					keyword = tok
				case s >= 0:
					v, err := strconv.ParseFloat(tok, 64)
					if err != nil {
						return nil, &ParseError{Line: lineNo, Message: fmt.Sprintf("column %s: %v", colNames[i], err)}
					}
					numeric[s].Values = append(numeric[s].Values, v)
				}
			}
			keywords = append(keywords, keyword)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tfs: %w", err)
	}
	if slots == nil {
		// Header-only table.
		_, empty, err := layout(colNames, colTypes)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Message: err.Error()}
		}
		return NewTable(label, nil, nil, empty, header)
	}

	return NewTable(label, names, keywords, numeric, header)
}

// layout maps the TFS column declaration onto table slots.
func layout(colNames, colTypes []string) ([]int, []Column, error) {
	if len(colNames) == 0 {
		return nil, nil, fmt.Errorf("missing column names line")
	}
	if len(colTypes) != len(colNames) {
		return nil, nil, fmt.Errorf("%d column types for %d columns", len(colTypes), len(colNames))
	}
	slots := make([]int, len(colNames))
	var numeric []Column
	hasName := false
	for i, name := range colNames {
		isString := strings.HasSuffix(colTypes[i], "s")
		switch upper := strings.ToUpper(name); {
		case upper == ColName:
			slots[i] = -1
			hasName = true
		case upper == ColKeyword:
			slots[i] = -2
		case isString:
			slots[i] = -3
		default:
			slots[i] = len(numeric)
			numeric = append(numeric, Column{Name: upper})
		}
	}
	if !hasName {
		return nil, nil, fmt.Errorf("missing %s column", ColName)
	}
	return slots, numeric, nil
}

// tokenize splits on whitespace, keeping double-quoted strings whole and unquoted.
func tokenize(s string) ([]string, error) {
	var tokens []string
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated string")
			}
			tokens = append(tokens, s[i+1:i+1+end])
			i += end + 2
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\t' {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		}
	}
	return tokens, nil
}

// WriteTFS writes t as a TFS table.
func WriteTFS(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)

	for _, s := range t.texts {
		fmt.Fprintf(bw, "@ %-16s %%s %q\n", s.Key, s.Value)
	}
	for _, s := range t.scalars {
		fmt.Fprintf(bw, "@ %-16s %%le %s\n", s.Key, formatFloat(s.Value))
	}

	tw := tabwriter.NewWriter(bw, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "* NAME\tKEYWORD")
	for _, c := range t.columns {
		fmt.Fprintf(tw, "\t%s", c)
	}
	io.WriteString(tw, "\t\n$ %s\t%s")
	for range t.columns {
		fmt.Fprint(tw, "\t%le")
	}
	fmt.Fprint(tw, "\t\n")
	for i, name := range t.names {
		fmt.Fprintf(tw, "  %q\t%q", name, t.keywords[i])
		for _, c := range t.columns {
			fmt.Fprintf(tw, "\t%s", formatFloat(t.data[c][i]))
		}
		fmt.Fprint(tw, "\t\n")
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write tfs: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write tfs: %w", err)
	}
	return nil
}

// LoadTFS reads a TFS file; the table is labelled after the file's base name.
func LoadTFS(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tfs: %w", err)
	}
	defer f.Close()

	label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := ReadTFS(f, label)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// SaveTFS renders t in memory and writes it to path in one call, so a
// rendering failure never leaves a truncated file behind.
func SaveTFS(path string, t *Table) error {
	var buf bytes.Buffer
	if err := WriteTFS(&buf, t); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save tfs: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
