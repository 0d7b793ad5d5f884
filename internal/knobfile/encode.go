package knobfile

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/rws/internal/knob"
)

// Kind tells delta files from powering files.
type Kind string

const (
	KindDelta    Kind = "delta"
	KindPowering Kind = "powering"
)

const magic = "rws knob"

// EncodeDelta writes the delta file of set to w.
func EncodeDelta(w io.Writer, set *knob.Set) error {
	buf, err := renderDelta(set)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// EncodePowering writes the powering file of set against ref to w. Every
// circuit of set needs a reference value.
func EncodePowering(w io.Writer, set *knob.Set, ref knob.Reference) error {
	buf, err := renderPowering(set, ref)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// WriteDelta writes the delta file of set to path. The parent directory must
// exist.
func WriteDelta(set *knob.Set, path string) error {
	buf, err := renderDelta(set)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFile(path, buf, KindDelta, set.Len())
}

// WritePowering writes the powering file of set against ref to path. A
// circuit without reference fails with MissingReferenceError before path is
// touched.
func WritePowering(set *knob.Set, ref knob.Reference, path string) error {
	buf, err := renderPowering(set, ref)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFile(path, buf, KindPowering, set.Len())
}

func writeFile(path string, buf []byte, kind Kind, n int) error {
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write %s file: %w", kind, err)
	}
	slog.Debug("wrote knob file", "path", path, "kind", string(kind), "circuits", n)
	return nil
}

func renderDelta(set *knob.Set) ([]byte, error) {
	if set == nil {
		return nil, fmt.Errorf("nil knob set")
	}
	var buf bytes.Buffer
	writeHeader(&buf, KindDelta, set.Meta())
	for _, k := range set.Sorted() {
		v, err := FormatFloat(k.Delta)
		if err != nil {
			return nil, fmt.Errorf("circuit %s: %w", k.Circuit, err)
		}
		fmt.Fprintf(&buf, "%s = %s + (%s);\n", k.Circuit, k.Circuit, v)
	}
	return buf.Bytes(), nil
}

func renderPowering(set *knob.Set, ref knob.Reference) ([]byte, error) {
	if set == nil {
		return nil, fmt.Errorf("nil knob set")
	}
	var buf bytes.Buffer
	writeHeader(&buf, KindPowering, set.Meta())
	for _, k := range set.Sorted() {
		nominal, ok := ref.Lookup(k.Circuit)
		if !ok {
			return nil, &MissingReferenceError{Circuit: k.Circuit}
		}
		v, err := FormatFloat(nominal + k.Delta)
		if err != nil {
			return nil, fmt.Errorf("circuit %s: %w", k.Circuit, err)
		}
		fmt.Fprintf(&buf, "%s = %s;\n", k.Circuit, v)
	}
	return buf.Bytes(), nil
}

// writeHeader writes the kind line and the non-zero metadata as comments.
func writeHeader(buf *bytes.Buffer, kind Kind, meta knob.Metadata) {
	fmt.Fprintf(buf, "! %s %s\n", magic, kind)
	if meta.Beam != 0 {
		fmt.Fprintf(buf, "! beam: %d\n", meta.Beam)
	}
	if meta.IP != 0 {
		fmt.Fprintf(buf, "! ip: %d\n", meta.IP)
	}
	if meta.Energy != 0 {
		if e, err := FormatFloat(meta.Energy); err == nil {
			fmt.Fprintf(buf, "! energy: %s\n", e)
		}
	}
	if meta.Scenario != "" {
		fmt.Fprintf(buf, "! scenario: %s\n", oneLine(meta.Scenario))
	}
	if meta.Label != "" {
		fmt.Fprintf(buf, "! label: %s\n", oneLine(meta.Label))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatFloat returns the shortest decimal form of v that parses back to the
// same float64. Negative zero is written as 0.
func FormatFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("non-finite value %v", v)
	}
	if v == 0 {
		return "0", nil
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}
