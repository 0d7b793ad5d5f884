package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/rws/internal/archive"
	"github.com/roach88/rws/internal/deviation"
	"github.com/roach88/rws/internal/knob"
	"github.com/roach88/rws/internal/knobfile"
	"github.com/roach88/rws/internal/optics"
	"github.com/roach88/rws/internal/scenario"
)

// tuneTolerance is the largest tune drift of a matched table that passes
// without a warning.
const tuneTolerance = 1e-3

// DeriveOptions holds flags for the derive command.
type DeriveOptions struct {
	*RootOptions
	OutputDir string
	Archive   string
	Columns   []string
}

// DeriveResult is the JSON payload of the derive command.
type DeriveResult struct {
	Scenario  string          `json:"scenario"`
	Beam      int             `json:"beam"`
	IP        int             `json:"ip"`
	OutputDir string          `json:"output_dir"`
	Tables    []ExportedTable `json:"tables"`
	Knobs     []DerivedKnob   `json:"knobs"`
}

// ExportedTable describes the TFS files written for one input table.
type ExportedTable struct {
	Label    string   `json:"label"`
	Path     string   `json:"path"`
	Monitors string   `json:"monitors"`
	Elements int      `json:"elements"`
	Columns  []string `json:"columns"`
}

// DerivedKnob describes the knob files written for one scenario group.
type DerivedKnob struct {
	Group      string   `json:"group"`
	Table      string   `json:"table"`
	Circuits   int      `json:"circuits"`
	Hash       string   `json:"content_hash"`
	Powering   string   `json:"powering"`
	Delta      string   `json:"delta"`
	ArchiveIDs []string `json:"archive_ids,omitempty"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "derive <scenario>",
		Short: "Derive the knobs of a waist shift scenario",
		Long: `Derive the knob files of a scenario (.yaml, .yml or .cue).

For every table of the scenario writes <label>.tfs and <label>_monitors.tfs,
with BBX and BBY beta-beating columns on the perturbed tables. For every knob
group writes <group>.madx with the absolute powering and <group>_change.madx
with the powering change. Files go to <output-dir>/BEAM<beam>.

Example:
  rws derive scenarios/ip1_b1.yaml
  rws derive scenarios/ip5_b2.cue --output-dir /tmp/knobs --archive knobs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "output directory (default: scenario, then config)")
	cmd.Flags().StringVar(&opts.Archive, "archive", "", "archive the knob files in this SQLite database")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "columns of the exported tables (default: every standard column present)")

	return cmd
}

func runDerive(opts *DeriveOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.settings()

	s, err := scenario.Load(path)
	if err != nil {
		return formatter.Fail("failed to load scenario", invalidInput(err))
	}
	formatter.VerboseLog("Loaded scenario %s: beam %d, IP%d, %d group(s)", s.Name, s.Beam, s.IP, len(s.Groups))

	tables, err := loadScenarioTables(s)
	if err != nil {
		return formatter.Fail("failed to load tables", err)
	}
	nominal := tables[scenario.TableNominal]

	if matched, ok := tables[scenario.TableMatched]; ok {
		target := scenario.Tunes{Qx: cfg.Qx, Qy: cfg.Qy}
		if s.Tunes != nil {
			target = *s.Tunes
		}
		checkTunes(matched, target)
	}

	outDir := firstNonEmpty(opts.OutputDir, s.OutputDir, cfg.OutputDir)
	beamDir := filepath.Join(outDir, fmt.Sprintf("BEAM%d", s.Beam))
	if err := os.MkdirAll(beamDir, 0o755); err != nil {
		return formatter.Fail("failed to create output directory", writeFailed(err))
	}

	result := DeriveResult{
		Scenario:  s.Name,
		Beam:      s.Beam,
		IP:        s.IP,
		OutputDir: beamDir,
	}

	for _, label := range s.Labels() {
		exported, err := exportTable(tables[label], nominal, beamDir, opts.Columns)
		if err != nil {
			return formatter.Fail(fmt.Sprintf("failed to export %s table", label), err)
		}
		formatter.VerboseLog("Exported %s (%d elements)", exported.Path, exported.Elements)
		result.Tables = append(result.Tables, exported)
	}

	sets := make([]*knob.Set, 0, len(s.Groups))
	for _, g := range s.Groups {
		sel, err := s.Selector(g)
		if err != nil {
			return formatter.Fail("invalid knob group", invalidInput(err))
		}
		label := s.PerturbedTable(g)
		set, err := knob.Derive(nominal, tables[label], sel)
		if err != nil {
			return formatter.Fail(fmt.Sprintf("failed to derive group %s", g.Name), err)
		}
		if s.Energy != 0 {
			meta := set.Meta()
			meta.Energy = s.Energy
			if set, err = knob.NewSet(meta, set.Knobs()...); err != nil {
				return formatter.Fail(fmt.Sprintf("failed to derive group %s", g.Name), err)
			}
		}

		derived, err := writeKnobFiles(set, nominal, beamDir)
		if err != nil {
			return formatter.Fail(fmt.Sprintf("failed to write group %s", g.Name), err)
		}
		derived.Group = g.Name
		derived.Table = label
		formatter.VerboseLog("Wrote %s and %s (%d circuits)", derived.Powering, derived.Delta, derived.Circuits)

		sets = append(sets, set)
		result.Knobs = append(result.Knobs, derived)
	}

	if dbPath := firstNonEmpty(opts.Archive, cfg.Archive); dbPath != "" {
		if err := archiveKnobs(cmd.Context(), dbPath, sets, result.Knobs); err != nil {
			return formatter.Fail("failed to archive knob files", err)
		}
		formatter.VerboseLog("Archived %d knob file(s) in %s", 2*len(sets), dbPath)
	}

	slog.Info("derived scenario",
		"scenario", s.Name,
		"beam", s.Beam,
		"ip", s.IP,
		"groups", len(result.Knobs),
		"output_dir", beamDir,
	)

	return formatter.Emit(result, result.writeText)
}

// loadScenarioTables reads every table of s, labelled after its role, and
// checks that each belongs to the scenario's beam.
func loadScenarioTables(s *scenario.Scenario) (map[string]*optics.Table, error) {
	tables := make(map[string]*optics.Table, 3)
	for _, label := range s.Labels() {
		path, _ := s.TablePath(label)
		t, err := optics.LoadTFS(path)
		if err != nil {
			return nil, err
		}
		if b := t.Beam(); b != 0 && b != s.Beam {
			return nil, &knob.ConfigurationMismatchError{
				Message: fmt.Sprintf("%s table %s is for beam %d, scenario for beam %d", label, path, b, s.Beam),
			}
		}
		tables[label] = t.WithLabel(label)
	}
	return tables, nil
}

// checkTunes warns when the matched optics drifted away from the working point.
func checkTunes(matched *optics.Table, target scenario.Tunes) {
	for _, tc := range []struct {
		key  string
		want float64
	}{
		{optics.HeaderQ1, target.Qx},
		{optics.HeaderQ2, target.Qy},
	} {
		got, ok := matched.Scalar(tc.key)
		if !ok {
			slog.Debug("matched table carries no tune", "key", tc.key)
			continue
		}
		if math.Abs(got-tc.want) > tuneTolerance {
			slog.Warn("matched tune differs from target",
				"key", tc.key,
				"got", got,
				"want", tc.want,
			)
		}
	}
}

// exportTable writes t and its monitors to dir. Perturbed tables gain the
// beta-beating columns against nominal first.
func exportTable(t, nominal *optics.Table, dir string, columns []string) (ExportedTable, error) {
	if t.Label() != scenario.TableNominal {
		var err error
		if t, err = deviation.AddBetaBeatingColumns(t, nominal); err != nil {
			return ExportedTable{}, err
		}
	}

	switch {
	case len(columns) == 0:
		columns = presentColumns(t, optics.ExportColumnsFor(t))
	case t.Label() == scenario.TableNominal:
		columns = withoutBetaBeating(columns)
	}
	projected, err := optics.OnlyExportColumns(t, columns)
	if err != nil {
		return ExportedTable{}, err
	}

	out := ExportedTable{
		Label:    t.Label(),
		Path:     filepath.Join(dir, t.Label()+".tfs"),
		Monitors: filepath.Join(dir, t.Label()+"_monitors.tfs"),
		Elements: projected.Len(),
		Columns:  projected.Columns(),
	}
	if err := optics.SaveTFS(out.Path, projected); err != nil {
		return ExportedTable{}, writeFailed(err)
	}
	if err := optics.SaveTFS(out.Monitors, optics.OnlyMonitors(projected)); err != nil {
		return ExportedTable{}, writeFailed(err)
	}
	return out, nil
}

// withoutBetaBeating drops BBX and BBY, which only perturbed exports carry.
func withoutBetaBeating(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if name := optics.CanonicalColumn(c); name != optics.ColBBX && name != optics.ColBBY {
			out = append(out, c)
		}
	}
	return out
}

// presentColumns keeps the columns t carries, in the given order.
func presentColumns(t *optics.Table, columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if t.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// writeKnobFiles writes the powering and delta files of set. The powering is
// taken relative to the nominal table.
func writeKnobFiles(set *knob.Set, nominal *optics.Table, dir string) (DerivedKnob, error) {
	label := set.Meta().Label
	hash, err := knob.ContentHash(set)
	if err != nil {
		return DerivedKnob{}, err
	}
	out := DerivedKnob{
		Circuits: set.Len(),
		Hash:     hash,
		Powering: filepath.Join(dir, label+".madx"),
		Delta:    filepath.Join(dir, label+"_change.madx"),
	}

	ref := knob.ReferenceFromTable(nominal, set.Circuits())
	if err := knobfile.WritePowering(set, ref, out.Powering); err != nil {
		if knobfile.IsMissingReference(err) {
			return DerivedKnob{}, err
		}
		return DerivedKnob{}, writeFailed(err)
	}
	if err := knobfile.WriteDelta(set, out.Delta); err != nil {
		return DerivedKnob{}, writeFailed(err)
	}
	return out, nil
}

// archiveKnobs records the powering and delta file of every set, filling in
// the archive ids of knobs.
func archiveKnobs(ctx context.Context, dbPath string, sets []*knob.Set, knobs []DerivedKnob) (err error) {
	a, err := archive.Open(dbPath)
	if err != nil {
		return archiveFailed(err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			err = errors.Join(err, archiveFailed(cerr))
		}
	}()

	for i, set := range sets {
		for _, f := range []struct {
			kind knobfile.Kind
			path string
		}{
			{knobfile.KindPowering, knobs[i].Powering},
			{knobfile.KindDelta, knobs[i].Delta},
		} {
			id, err := a.Put(ctx, set, f.kind, f.path)
			if err != nil {
				return archiveFailed(err)
			}
			knobs[i].ArchiveIDs = append(knobs[i].ArchiveIDs, id)
		}
	}
	return nil
}

func (result DeriveResult) writeText(w io.Writer) error {
	fmt.Fprintf(w, "Scenario: %s (beam %d, IP%d)\n", result.Scenario, result.Beam, result.IP)
	fmt.Fprintf(w, "Output:   %s\n", result.OutputDir)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Tables ===")
	for _, t := range result.Tables {
		fmt.Fprintf(w, "  %-8s %4d elements  %s\n", t.Label, t.Elements, filepath.Base(t.Path))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Knobs ===")
	for _, k := range result.Knobs {
		fmt.Fprintf(w, "  %-14s %3d circuits  vs %-8s %s\n", k.Group, k.Circuits, k.Table, truncateHash(k.Hash))
	}
	return nil
}

// truncateHash shortens a content hash for display.
func truncateHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
