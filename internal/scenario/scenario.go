package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Group kinds.
const (
	KindTriplets     = "triplets"
	KindQuadrupoles  = "quadrupoles"
	KindWorkingPoint = "working_point"
	KindCustom       = "custom"
)

// Table labels.
const (
	TableNominal = "nominal"
	TableBare    = "bare"
	TableMatched = "matched"
)

// Scenario describes the twiss tables of one beam and IP and the knob groups
// to derive from them.
type Scenario struct {
	// Name identifies the scenario in logs and the archive.
	Name string `yaml:"name" json:"name"`

	// Beam is 1 or 2.
	Beam int `yaml:"beam" json:"beam"`

	// IP is the interaction point of the waist shift.
	IP int `yaml:"ip" json:"ip"`

	// Energy overrides the ENERGY header of the tables, in GeV.
	Energy float64 `yaml:"energy,omitempty" json:"energy,omitempty"`

	// OutputDir receives the TFS exports and knob files. Empty means the
	// configured default.
	OutputDir string `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`

	// Tunes are the working point the matched optics should keep.
	Tunes *Tunes `yaml:"tunes,omitempty" json:"tunes,omitempty"`

	// Tables are paths to the TFS files, relative to the scenario file.
	Tables Tables `yaml:"tables" json:"tables"`

	// Groups lists the knobs to derive.
	Groups []Group `yaml:"groups" json:"groups"`

	dir string
}

// Tunes is a horizontal and vertical tune pair.
type Tunes struct {
	Qx float64 `yaml:"qx" json:"qx"`
	Qy float64 `yaml:"qy" json:"qy"`
}

// Tables holds the TFS paths of a scenario. Matched is optional.
type Tables struct {
	Nominal string `yaml:"nominal" json:"nominal"`
	Bare    string `yaml:"bare" json:"bare"`
	Matched string `yaml:"matched,omitempty" json:"matched,omitempty"`
}

// Group declares one knob. Quads applies to quadrupoles groups; Circuits,
// Pattern and Category to custom groups.
type Group struct {
	Name      string   `yaml:"name" json:"name"`
	Kind      string   `yaml:"kind" json:"kind"`
	Table     string   `yaml:"table,omitempty" json:"table,omitempty"`
	Quads     []int    `yaml:"quads,omitempty" json:"quads,omitempty"`
	Circuits  []string `yaml:"circuits,omitempty" json:"circuits,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Category  []string `yaml:"category,omitempty" json:"category,omitempty"`
	Symmetric bool     `yaml:"symmetric,omitempty" json:"symmetric,omitempty"`
}

// Load reads a scenario from a .yaml, .yml or .cue file, validates it and
// resolves its relative paths against the file's directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s *Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		s, err = parseYAML(data)
	case ".cue":
		s, err = parseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q: want .yaml, .yml or .cue", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	s.dir = filepath.Dir(path)
	s.Tables.Nominal = s.resolve(s.Tables.Nominal)
	s.Tables.Bare = s.resolve(s.Tables.Bare)
	if s.Tables.Matched != "" {
		s.Tables.Matched = s.resolve(s.Tables.Matched)
	}
	if s.OutputDir != "" {
		s.OutputDir = s.resolve(s.OutputDir)
	}
	return s, nil
}

// parseYAML decodes with strict field validation, so a typo such as
// "group:" for "groups:" is an error.
func parseYAML(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &s, nil
}

func (s *Scenario) resolve(p string) string {
	if filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// Validate checks the scenario against the schema and the rules the schema
// cannot express.
func (s *Scenario) Validate() error {
	if err := validateSchema(s); err != nil {
		return err
	}

	seen := make(map[string]bool, len(s.Groups))
	for i, g := range s.Groups {
		if seen[g.Name] {
			return fmt.Errorf("groups[%d]: duplicate group name %q", i, g.Name)
		}
		seen[g.Name] = true

		if g.Table == TableMatched && s.Tables.Matched == "" {
			return fmt.Errorf("group %s: uses the matched table but none is given", g.Name)
		}
		switch g.Kind {
		case KindCustom:
			if len(g.Circuits) == 0 && g.Pattern == "" && len(g.Category) == 0 {
				return fmt.Errorf("group %s: custom group needs circuits, pattern or category", g.Name)
			}
		default:
			if len(g.Circuits) > 0 || g.Pattern != "" || len(g.Category) > 0 {
				return fmt.Errorf("group %s: circuits, pattern and category only apply to custom groups", g.Name)
			}
		}
		if len(g.Quads) > 0 && g.Kind != KindQuadrupoles {
			return fmt.Errorf("group %s: quads only apply to quadrupoles groups", g.Name)
		}
	}
	return nil
}

// PerturbedTable returns the label of the table a group is derived against:
// its own choice, else matched when the scenario has one, else bare.
func (s *Scenario) PerturbedTable(g Group) string {
	if g.Table != "" {
		return g.Table
	}
	if s.Tables.Matched != "" {
		return TableMatched
	}
	return TableBare
}

// TablePath returns the path of a table by label.
func (s *Scenario) TablePath(label string) (string, bool) {
	switch label {
	case TableNominal:
		return s.Tables.Nominal, true
	case TableBare:
		return s.Tables.Bare, true
	case TableMatched:
		return s.Tables.Matched, s.Tables.Matched != ""
	}
	return "", false
}

// Labels returns the labels of the tables the scenario provides.
func (s *Scenario) Labels() []string {
	labels := []string{TableNominal, TableBare}
	if s.Tables.Matched != "" {
		labels = append(labels, TableMatched)
	}
	return labels
}
