package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rws/internal/archive"
	"github.com/roach88/rws/internal/knob"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Archive  string
	Beam     int
	Scenario string
	Label    string
	Limit    int
	Show     string
}

// HistoryResult is the JSON payload of the history command. Knobs is set
// when a single entry is shown.
type HistoryResult struct {
	Entries []archive.Entry `json:"entries"`
	Knobs   []knob.Knob     `json:"knobs,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived knob files",
		Long: `List the knob files recorded in an archive, newest first.

Example:
  rws history --archive knobs.db
  rws history --archive knobs.db --beam 1 --label triplets --limit 5
  rws history --archive knobs.db --show 0190c7a2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Archive, "archive", "", "path to the SQLite archive (default: configured archive)")
	cmd.Flags().IntVar(&opts.Beam, "beam", 0, "only entries of this beam")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only entries derived against this table")
	cmd.Flags().StringVar(&opts.Label, "label", "", "only entries of this knob group")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "at most this many entries (0 for all)")
	cmd.Flags().StringVar(&opts.Show, "show", "", "print the knobs of the entry with this id")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) (err error) {
	formatter := newFormatter(opts.RootOptions, cmd)

	dbPath := firstNonEmpty(opts.Archive, opts.settings().Archive)
	if dbPath == "" {
		return formatter.Fail("no archive", invalidInput(errors.New("set --archive or the archive config value")))
	}
	if opts.Limit < 0 {
		return formatter.Fail("invalid --limit", invalidInput(fmt.Errorf("limit %d is negative", opts.Limit)))
	}

	// Opening creates missing databases; history only reads existing ones.
	if _, err := os.Stat(dbPath); err != nil {
		return formatter.Fail("failed to open archive", err)
	}
	a, err := archive.Open(dbPath)
	if err != nil {
		return formatter.Fail("failed to open archive", archiveFailed(err))
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "failed to close archive", cerr)
		}
	}()

	ctx := cmd.Context()
	var result HistoryResult
	if opts.Show != "" {
		entry, set, err := a.Get(ctx, opts.Show)
		if err != nil {
			return formatter.Fail(fmt.Sprintf("failed to read entry %s", opts.Show), err)
		}
		result.Entries = []archive.Entry{entry}
		result.Knobs = set.Knobs()
	} else {
		result.Entries, err = a.List(ctx, archive.Filter{
			Beam:     opts.Beam,
			Scenario: opts.Scenario,
			Label:    opts.Label,
			Limit:    opts.Limit,
		})
		if err != nil {
			return formatter.Fail("failed to list archive", archiveFailed(err))
		}
	}
	formatter.VerboseLog("Read %d archive entries from %s", len(result.Entries), dbPath)

	return formatter.Emit(result, result.writeText)
}

func (result HistoryResult) writeText(w io.Writer) error {
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No archived knob files")
		return nil
	}
	for _, e := range result.Entries {
		fmt.Fprintf(w, "%s  %s  %-8s B%d IP%d %-8s %-14s %3d circuits  %s\n",
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Kind,
			e.Meta.Beam,
			e.Meta.IP,
			e.Meta.Scenario,
			e.Meta.Label,
			e.Circuits,
			e.Path,
		)
	}
	if len(result.Knobs) > 0 {
		fmt.Fprintln(w)
		for _, k := range result.Knobs {
			fmt.Fprintf(w, "  %-16s %+.10e\n", k.Circuit, k.Delta)
		}
	}
	return nil
}
