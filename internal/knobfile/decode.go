package knobfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/rws/internal/knob"
)

// Entry is one assignment of a knob file: a delta in a delta file, an
// absolute powering in a powering file.
type Entry struct {
	Circuit string
	Value   float64
	Line    int
}

// File is a decoded knob file.
type File struct {
	Kind    Kind
	Meta    knob.Metadata
	Entries []Entry
}

// Set returns the knobs of a delta file.
func (f *File) Set() (*knob.Set, error) {
	if f.Kind != KindDelta {
		return nil, fmt.Errorf("%s file holds no deltas", f.Kind)
	}
	knobs := make([]knob.Knob, len(f.Entries))
	for i, e := range f.Entries {
		knobs[i] = knob.Knob{Circuit: e.Circuit, Delta: e.Value}
	}
	return knob.NewSet(f.Meta, knobs...)
}

// Reference returns the values of a powering file as a nominal reference.
func (f *File) Reference() (knob.Reference, error) {
	if f.Kind != KindPowering {
		return nil, fmt.Errorf("%s file holds no absolute powering", f.Kind)
	}
	ref := make(knob.Reference, len(f.Entries))
	for _, e := range f.Entries {
		ref[e.Circuit] = e.Value
	}
	return ref, nil
}

const identifier = `([A-Za-z_][A-Za-z0-9_.]*)`

var (
	deltaLine    = regexp.MustCompile(`^` + identifier + `\s*:?=\s*` + identifier + `\s*\+\s*\(?\s*([^()\s;]+)\s*\)?\s*;$`)
	poweringLine = regexp.MustCompile(`^` + identifier + `\s*:?=\s*([^\s;()]+)\s*;$`)
	headerLine   = regexp.MustCompile(`^!\s*([a-z]+)\s*:\s*(.*)$`)
)

// Decode parses a delta or powering file. The kind comes from the
// "! rws knob <kind>" line when present, otherwise from the first
// assignment. Duplicate circuits fail with knob.DuplicateCircuitError.
func Decode(r io.Reader) (*File, error) {
	f := &File{}
	seen := make(map[string]int)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		if strings.HasPrefix(text, "!") {
			if err := f.parseComment(lineNo, text); err != nil {
				return nil, err
			}
			continue
		}

		entry, kind, err := parseAssignment(lineNo, text)
		if err != nil {
			return nil, err
		}
		if f.Kind == "" {
			f.Kind = kind
		} else if f.Kind != kind {
			return nil, &SyntaxError{Line: lineNo, Text: text, Message: fmt.Sprintf("%s assignment in %s file", kind, f.Kind)}
		}
		if _, ok := seen[entry.Circuit]; ok {
			return nil, &knob.DuplicateCircuitError{Circuit: entry.Circuit, Line: lineNo}
		}
		seen[entry.Circuit] = lineNo
		f.Entries = append(f.Entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read knob file: %w", err)
	}
	if f.Kind == "" {
		f.Kind = KindDelta
	}
	return f, nil
}

func (f *File) parseComment(lineNo int, text string) error {
	body := strings.TrimSpace(strings.TrimPrefix(text, "!"))
	if rest, ok := strings.CutPrefix(body, magic+" "); ok {
		switch k := Kind(strings.TrimSpace(rest)); k {
		case KindDelta, KindPowering:
			if f.Kind != "" && f.Kind != k {
				return &SyntaxError{Line: lineNo, Text: text, Message: "kind declared after assignments of another kind"}
			}
			f.Kind = k
			return nil
		default:
			return &SyntaxError{Line: lineNo, Text: text, Message: "unknown knob file kind"}
		}
	}

	m := headerLine.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value := strings.TrimSpace(m[2])
	var err error
	switch m[1] {
	case "beam":
		f.Meta.Beam, err = strconv.Atoi(value)
	case "ip":
		f.Meta.IP, err = strconv.Atoi(value)
	case "energy":
		f.Meta.Energy, err = parseFinite(value)
	case "scenario":
		f.Meta.Scenario = value
	case "label":
		f.Meta.Label = value
	}
	if err != nil {
		return &SyntaxError{Line: lineNo, Text: text, Message: fmt.Sprintf("invalid %s", m[1])}
	}
	return nil
}

func parseAssignment(lineNo int, text string) (Entry, Kind, error) {
	if m := deltaLine.FindStringSubmatch(text); m != nil {
		if !strings.EqualFold(m[1], m[2]) {
			return Entry{}, "", &SyntaxError{Line: lineNo, Text: text, Message: fmt.Sprintf("delta of %s added to %s", m[1], m[2])}
		}
		v, err := parseFinite(m[3])
		if err != nil {
			return Entry{}, "", &SyntaxError{Line: lineNo, Text: text, Message: "invalid delta"}
		}
		return Entry{Circuit: knob.NormalizeCircuit(m[1]), Value: v, Line: lineNo}, KindDelta, nil
	}
	if m := poweringLine.FindStringSubmatch(text); m != nil {
		v, err := parseFinite(m[2])
		if err != nil {
			return Entry{}, "", &SyntaxError{Line: lineNo, Text: text, Message: "invalid powering"}
		}
		return Entry{Circuit: knob.NormalizeCircuit(m[1]), Value: v, Line: lineNo}, KindPowering, nil
	}
	return Entry{}, "", &SyntaxError{Line: lineNo, Text: text, Message: "not a knob assignment"}
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// DecodeKnobs parses a delta file into a knob set.
func DecodeKnobs(r io.Reader) (*knob.Set, error) {
	f, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return f.Set()
}

// LoadFile reads and decodes a knob file of either kind.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open knob file: %w", err)
	}
	defer fh.Close()

	f, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// LoadKnobsFile reads a delta file written by WriteDelta back into a knob set.
func LoadKnobsFile(path string) (*knob.Set, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	set, err := f.Set()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
