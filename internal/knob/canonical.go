package knob

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical JSON form of a knob set used for
// content hashing:
//  1. Object keys sorted
//  2. Knobs sorted by circuit
//  3. No HTML escaping
//  4. Strings NFC normalised
//  5. Floats in their shortest round-trip form, negative zero as 0
func MarshalCanonical(s *Set) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("nil knob set")
	}
	meta := s.Meta()

	var buf bytes.Buffer
	buf.WriteString(`{"knobs":[`)
	for i, k := range s.Sorted() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"circuit":`)
		if err := writeCanonicalString(&buf, k.Circuit); err != nil {
			return nil, fmt.Errorf("knob %d: %w", i, err)
		}
		buf.WriteString(`,"delta":`)
		if err := writeCanonicalFloat(&buf, k.Delta); err != nil {
			return nil, fmt.Errorf("knob %s: %w", k.Circuit, err)
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`],"meta":{"beam":`)
	buf.WriteString(strconv.Itoa(meta.Beam))
	buf.WriteString(`,"energy":`)
	if err := writeCanonicalFloat(&buf, meta.Energy); err != nil {
		return nil, fmt.Errorf("energy: %w", err)
	}
	buf.WriteString(`,"ip":`)
	buf.WriteString(strconv.Itoa(meta.IP))

	fields := map[string]string{"label": meta.Label, "scenario": meta.Scenario}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteString(`,"` + k + `":`)
		if err := writeCanonicalString(&buf, fields[k]); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

func writeCanonicalFloat(buf *bytes.Buffer, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("non-finite number %v", v)
	}
	if v == 0 {
		v = 0
	}
	buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	return nil
}
