package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rws/internal/deviation"
	"github.com/roach88/rws/internal/optics"
)

// DeviationOptions holds flags for the deviation command.
type DeviationOptions struct {
	*RootOptions
	Plane    string
	Quantity string
	Monitors bool
}

// DeviationResult is the JSON payload of the deviation command.
type DeviationResult struct {
	Series *deviation.Series `json:"series"`
	Max    *deviation.Point  `json:"max,omitempty"`
}

// NewDeviationCommand creates the deviation command.
func NewDeviationCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeviationOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deviation <reference.tfs> <perturbed.tfs>",
		Short: "Compare the optics of two twiss tables",
		Long: `Compare two twiss tables element by element.

Prints the beta-beating (perturbed - reference) / reference or the phase
advance difference perturbed - reference at every element the tables share,
in the reference table's order.

Example:
  rws deviation twiss_nominal.tfs twiss_bare.tfs
  rws deviation twiss_nominal.tfs twiss_matched.tfs --plane y --quantity phase --monitors`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeviation(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plane, "plane", "x", "plane (x|y)")
	cmd.Flags().StringVar(&opts.Quantity, "quantity", "beta", "quantity (beta|phase)")
	cmd.Flags().BoolVar(&opts.Monitors, "monitors", false, "compare beam position monitors only")

	return cmd
}

func runDeviation(opts *DeviationOptions, refPath, pertPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	plane, err := deviation.ParsePlane(opts.Plane)
	if err != nil {
		return formatter.Fail("invalid --plane", invalidInput(err))
	}
	compare, err := comparison(opts.Quantity)
	if err != nil {
		return formatter.Fail("invalid --quantity", invalidInput(err))
	}

	reference, err := optics.LoadTFS(refPath)
	if err != nil {
		return formatter.Fail("failed to load reference table", err)
	}
	perturbed, err := optics.LoadTFS(pertPath)
	if err != nil {
		return formatter.Fail("failed to load perturbed table", err)
	}
	formatter.VerboseLog("Loaded %s (%d elements) and %s (%d elements)",
		reference.Label(), reference.Len(), perturbed.Label(), perturbed.Len())

	if opts.Monitors {
		reference = optics.OnlyMonitors(reference)
		perturbed = optics.OnlyMonitors(perturbed)
		formatter.VerboseLog("Kept %d monitors", reference.Len())
	}

	series, err := compare(reference, perturbed, plane)
	if err != nil {
		return formatter.Fail("comparison failed", err)
	}

	result := DeviationResult{Series: series}
	if p, ok := series.MaxAbs(); ok {
		result.Max = &p
	}

	return formatter.Emit(result, result.writeText)
}

type compareFunc func(reference, perturbed *optics.Table, plane deviation.Plane) (*deviation.Series, error)

// comparison maps the --quantity flag to its deviation function.
func comparison(quantity string) (compareFunc, error) {
	switch quantity {
	case "beta", "beta-beating":
		return deviation.BetaBeating, nil
	case "phase", "phase-difference":
		return deviation.PhaseDifference, nil
	}
	return nil, fmt.Errorf("unknown quantity %q: must be beta or phase", quantity)
}

func (result DeviationResult) writeText(w io.Writer) error {
	s := result.Series

	fmt.Fprintf(w, "%s %s: %s vs %s\n", s.Quantity, s.Plane, s.Perturbed, s.Reference)
	fmt.Fprintln(w)
	for _, p := range s.Points {
		fmt.Fprintf(w, "  %-20s %12.4f %14.6e\n", p.Name, p.S, p.Value)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Elements: %d\n", s.Len())
	if result.Max != nil {
		fmt.Fprintf(w, "Max |%s|: %.6e at %s\n", s.Quantity, result.Max.Value, result.Max.Name)
	}
	return nil
}
