package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rws/internal/knob"
	"github.com/roach88/rws/internal/knobfile"
	"github.com/roach88/rws/internal/optics"
)

// WaistOptions holds flags for the waist command.
type WaistOptions struct {
	*RootOptions
	IP      int
	Setting float64
	Side    string
	Output  string
	Change  string
}

// WaistResult is the JSON payload of the waist command.
type WaistResult struct {
	Meta     knob.Metadata  `json:"meta"`
	Setting  float64        `json:"setting"`
	Side     string         `json:"side"`
	Circuits []WaistCircuit `json:"circuits"`
	Output   string         `json:"output,omitempty"`
	Change   string         `json:"change,omitempty"`
	Hash     string         `json:"content_hash"`
}

// WaistCircuit is the powering of one triplet circuit.
type WaistCircuit struct {
	Circuit  string  `json:"circuit"`
	Nominal  float64 `json:"nominal"`
	Delta    float64 `json:"delta"`
	Powering float64 `json:"powering"`
}

// NewWaistCommand creates the waist command.
func NewWaistCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WaistOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "waist <nominal.tfs>",
		Short: "Compute the triplet powering of a rigid waist shift",
		Long: `Compute the bare rigid waist shift triplet powering at one IP.

A unit setting strengthens the triplet on the chosen side by 0.5% of its
nominal powering and weakens the opposite triplet by the same fraction.
Without --output the powering is only printed.

Example:
  rws waist twiss_nominal.tfs --ip 1 --setting 1 -o triplets.madx
  rws waist twiss_nominal.tfs --ip 5 --setting -2 --side right --change triplets_change.madx`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWaist(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.IP, "ip", 0, "interaction point (required)")
	_ = cmd.MarkFlagRequired("ip")
	cmd.Flags().Float64Var(&opts.Setting, "setting", 1, "waist shift setting in units of the rigid waist shift")
	cmd.Flags().StringVar(&opts.Side, "side", "left", "side the waist moves towards (left|right)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the powering knob file here")
	cmd.Flags().StringVar(&opts.Change, "change", "", "write the powering change knob file here")

	return cmd
}

func runWaist(opts *WaistOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.IP < 1 || opts.IP > 8 {
		return formatter.Fail("invalid --ip", invalidInput(fmt.Errorf("ip %d out of range 1..8", opts.IP)))
	}
	side, err := knob.ParseSide(opts.Side)
	if err != nil {
		return formatter.Fail("invalid --side", invalidInput(err))
	}

	nominal, err := optics.LoadTFS(path)
	if err != nil {
		return formatter.Fail("failed to load nominal table", err)
	}

	set, err := knob.RigidWaistShift(nominal, opts.IP, opts.Setting, side)
	if err != nil {
		return formatter.Fail("failed to compute waist shift", err)
	}
	hash, err := knob.ContentHash(set)
	if err != nil {
		return formatter.Fail("failed to compute waist shift", err)
	}

	ref := knob.ReferenceFromTable(nominal, set.Circuits())
	result := WaistResult{
		Meta:    set.Meta(),
		Setting: opts.Setting,
		Side:    side.String(),
		Output:  opts.Output,
		Change:  opts.Change,
		Hash:    hash,
	}
	for _, k := range set.Sorted() {
		nom, _ := ref.Lookup(k.Circuit)
		result.Circuits = append(result.Circuits, WaistCircuit{
			Circuit:  k.Circuit,
			Nominal:  nom,
			Delta:    k.Delta,
			Powering: nom + k.Delta,
		})
	}

	if opts.Output != "" {
		if err := knobfile.WritePowering(set, ref, opts.Output); err != nil {
			return formatter.Fail("failed to write powering", writeFailed(err))
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}
	if opts.Change != "" {
		if err := knobfile.WriteDelta(set, opts.Change); err != nil {
			return formatter.Fail("failed to write powering change", writeFailed(err))
		}
		formatter.VerboseLog("Wrote %s", opts.Change)
	}

	return formatter.Emit(result, result.writeText)
}

func (result WaistResult) writeText(w io.Writer) error {
	fmt.Fprintf(w, "Rigid waist shift at IP%d: setting %g towards the %s\n", result.Meta.IP, result.Setting, result.Side)
	fmt.Fprintln(w)
	for _, c := range result.Circuits {
		fmt.Fprintf(w, "  %-10s %14.8e %+14.6e -> %14.8e\n", c.Circuit, c.Nominal, c.Delta, c.Powering)
	}
	if result.Output != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Written to %s\n", result.Output)
	}
	return nil
}
