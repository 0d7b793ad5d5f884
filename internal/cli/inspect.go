package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rws/internal/knob"
	"github.com/roach88/rws/internal/knobfile"
	"github.com/roach88/rws/internal/optics"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Nominal string
}

// InspectResult is the JSON payload of the inspect command.
type InspectResult struct {
	Path    string           `json:"path"`
	Kind    knobfile.Kind    `json:"kind"`
	Meta    knob.Metadata    `json:"meta"`
	Entries []InspectedEntry `json:"entries"`
	Hash    string           `json:"content_hash,omitempty"`
}

// InspectedEntry is one assignment of the inspected file. Powering is set
// for delta files inspected against a nominal reference.
type InspectedEntry struct {
	Circuit  string   `json:"circuit"`
	Value    float64  `json:"value"`
	Line     int      `json:"line"`
	Powering *float64 `json:"powering,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <knobfile>",
		Short: "Load and print a knob file",
		Long: `Load a knob file, check it and print its assignments.

With --nominal, a powering change file is applied to the nominal powering
read from a twiss table (.tfs) or a powering knob file (.madx), and the
resulting powering file is printed.

Example:
  rws inspect out/BEAM1/triplets_change.madx
  rws inspect out/BEAM1/triplets_change.madx --nominal twiss_nominal.tfs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Nominal, "nominal", "", "nominal powering (.tfs twiss table or .madx powering file)")

	return cmd
}

func runInspect(opts *InspectOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	f, err := knobfile.LoadFile(path)
	if err != nil {
		return formatter.Fail("failed to load knob file", err)
	}
	formatter.VerboseLog("Loaded %s file with %d assignment(s)", f.Kind, len(f.Entries))

	result := InspectResult{
		Path: path,
		Kind: f.Kind,
		Meta: f.Meta,
	}
	for _, e := range f.Entries {
		result.Entries = append(result.Entries, InspectedEntry{Circuit: e.Circuit, Value: e.Value, Line: e.Line})
	}

	var (
		set *knob.Set
		ref knob.Reference
	)
	if f.Kind == knobfile.KindDelta {
		if set, err = f.Set(); err != nil {
			return formatter.Fail("invalid knob file", err)
		}
		if result.Hash, err = knob.ContentHash(set); err != nil {
			return formatter.Fail("invalid knob file", err)
		}
	}

	if opts.Nominal != "" {
		if set == nil {
			return formatter.Fail("invalid --nominal", invalidInput(fmt.Errorf("%s is a %s file; --nominal applies to delta files", path, f.Kind)))
		}
		if ref, err = loadReference(opts.Nominal, set.Circuits()); err != nil {
			return formatter.Fail("failed to load nominal powering", err)
		}
		for i, e := range result.Entries {
			nom, ok := ref.Lookup(e.Circuit)
			if !ok {
				return formatter.Fail("failed to apply knob file", &knobfile.MissingReferenceError{Circuit: e.Circuit})
			}
			powering := nom + e.Value
			result.Entries[i].Powering = &powering
		}
	}

	text := result.writeText
	if ref != nil {
		text = func(w io.Writer) error { return knobfile.EncodePowering(w, set, ref) }
	}
	return formatter.Emit(result, text)
}

// loadReference reads nominal powering from a powering knob file or, for any
// other extension, from the header and K1L column of a twiss table.
func loadReference(path string, circuits []string) (knob.Reference, error) {
	if strings.EqualFold(filepath.Ext(path), ".madx") {
		f, err := knobfile.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return f.Reference()
	}
	t, err := optics.LoadTFS(path)
	if err != nil {
		return nil, err
	}
	return knob.ReferenceFromTable(t, circuits), nil
}

func (result InspectResult) writeText(w io.Writer) error {
	fmt.Fprintf(w, "Knob file: %s (%s)\n", result.Path, result.Kind)
	m := result.Meta
	fmt.Fprintf(w, "Beam %d, IP%d, energy %g GeV, scenario %q, label %q\n", m.Beam, m.IP, m.Energy, m.Scenario, m.Label)
	if result.Hash != "" {
		fmt.Fprintf(w, "Content hash: %s\n", result.Hash)
	}
	fmt.Fprintln(w)

	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "  (no assignments)")
		return nil
	}
	for _, e := range result.Entries {
		fmt.Fprintf(w, "  %4d  %-16s %+.10e\n", e.Line, e.Circuit, e.Value)
	}
	return nil
}
