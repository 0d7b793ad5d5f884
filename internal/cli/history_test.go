package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rws/internal/knobfile"
)

// archivedScenario derives the fixture scenario into a fresh archive.
func archivedScenario(t *testing.T) string {
	t.Helper()
	f := writeFixture(t, 1, 1)
	path := f.writeScenario(t, "scenario.yaml", deriveScenario)
	dbPath := filepath.Join(t.TempDir(), "knobs.db")

	_, err := execute(NewDeriveCommand(&RootOptions{Format: "json"}),
		path, "--output-dir", t.TempDir(), "--archive", dbPath)
	require.NoError(t, err)
	return dbPath
}

func TestHistory_ListAndFilter(t *testing.T) {
	dbPath := archivedScenario(t)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "json"}), "--archive", dbPath)
	require.NoError(t, err)
	var all HistoryResult
	resp := decodeResponse(t, out, &all)
	require.Equal(t, "ok", resp.Status)
	assert.Len(t, all.Entries, 6)
	assert.Empty(t, all.Knobs)

	out, err = execute(NewHistoryCommand(&RootOptions{Format: "json"}),
		"--archive", dbPath, "--label", "triplets")
	require.NoError(t, err)
	var triplets HistoryResult
	decodeResponse(t, out, &triplets)
	require.Len(t, triplets.Entries, 2)
	kinds := []knobfile.Kind{triplets.Entries[0].Kind, triplets.Entries[1].Kind}
	assert.ElementsMatch(t, []knobfile.Kind{knobfile.KindPowering, knobfile.KindDelta}, kinds)

	out, err = execute(NewHistoryCommand(&RootOptions{Format: "json"}),
		"--archive", dbPath, "--limit", "1")
	require.NoError(t, err)
	var limited HistoryResult
	decodeResponse(t, out, &limited)
	assert.Len(t, limited.Entries, 1)
}

func TestHistory_Show(t *testing.T) {
	dbPath := archivedScenario(t)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "json"}),
		"--archive", dbPath, "--label", "working_point", "--limit", "1")
	require.NoError(t, err)
	var listed HistoryResult
	decodeResponse(t, out, &listed)
	require.Len(t, listed.Entries, 1)
	id := listed.Entries[0].ID

	out, err = execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--archive", dbPath, "--show", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "dqx.b1")
	assert.Contains(t, out, "dqpy.b1")
}

func TestHistory_Errors(t *testing.T) {
	dbPath := archivedScenario(t)

	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantExit int
	}{
		{"no archive", nil, ErrCodeInvalidInput, ExitCommandError},
		{"missing archive", []string{"--archive", filepath.Join(t.TempDir(), "none.db")}, ErrCodeNotFound, ExitCommandError},
		{"unknown entry", []string{"--archive", dbPath, "--show", "missing"}, ErrCodeNotFound, ExitCommandError},
		{"negative limit", []string{"--archive", dbPath, "--limit", "-1"}, ErrCodeInvalidInput, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewHistoryCommand(&RootOptions{Format: "json"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestHistory_EmptyArchiveText(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "knobs.db")
	_, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--archive", dbPath)
	require.Error(t, err, "history never creates an archive")

	_, err = execute(NewDeriveCommand(&RootOptions{Format: "text"}),
		writeFixture(t, 1, 1).writeScenario(t, "s.yaml", deriveScenario),
		"--output-dir", t.TempDir(), "--archive", dbPath)
	require.NoError(t, err)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--archive", dbPath, "--beam", "2")
	require.NoError(t, err)
	assert.Equal(t, "No archived knob files\n", out)
}
