package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rws/internal/archive"
	"github.com/roach88/rws/internal/knob"
	"github.com/roach88/rws/internal/knobfile"
	"github.com/roach88/rws/internal/optics"
	"github.com/roach88/rws/internal/testutil"
)

const deriveScenario = `
name: ip1-beam1
beam: 1
ip: 1
tables:
  nominal: nominal.tfs
  bare: bare.tfs
  matched: matched.tfs
groups:
  - name: triplets
    kind: triplets
  - name: quadrupoles
    kind: quadrupoles
    quads: [4, 5]
  - name: working_point
    kind: working_point
`

func TestDerive_WritesTablesAndKnobs(t *testing.T) {
	f := writeFixture(t, 1, 1)
	path := f.writeScenario(t, "scenario.yaml", deriveScenario)
	outDir := filepath.Join(t.TempDir(), "out")
	dbPath := filepath.Join(t.TempDir(), "knobs.db")

	out, err := execute(NewDeriveCommand(&RootOptions{Format: "json"}),
		path, "--output-dir", outDir, "--archive", dbPath)
	require.NoError(t, err)

	var result DeriveResult
	resp := decodeResponse(t, out, &result)
	require.Equal(t, "ok", resp.Status)

	beamDir := filepath.Join(outDir, "BEAM1")
	assert.Equal(t, beamDir, result.OutputDir)
	require.Len(t, result.Tables, 3)
	require.Len(t, result.Knobs, 3)

	for _, label := range []string{"nominal", "bare", "matched"} {
		assert.FileExists(t, filepath.Join(beamDir, label+".tfs"))
		assert.FileExists(t, filepath.Join(beamDir, label+"_monitors.tfs"))
	}
	for _, group := range []string{"triplets", "quadrupoles", "working_point"} {
		assert.FileExists(t, filepath.Join(beamDir, group+".madx"))
		assert.FileExists(t, filepath.Join(beamDir, group+"_change.madx"))
	}

	// Knob files hold what the library derives from the same tables.
	nominal, _, matched := testutil.LHCLikeTables(t, 1, 1)
	want, err := knob.Derive(nominal, matched, knob.IndependentQuadrupolesSelector([]int{4, 5}, 1, 1))
	require.NoError(t, err)

	got, err := knobfile.LoadKnobsFile(filepath.Join(beamDir, "quadrupoles_change.madx"))
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "want %v, got %v", want.Deltas(), got.Deltas())
	assert.Equal(t, knob.MustContentHash(want), result.Knobs[1].Hash)
	assert.Equal(t, "matched", result.Knobs[1].Table)

	powering, err := knobfile.LoadFile(filepath.Join(beamDir, "quadrupoles.madx"))
	require.NoError(t, err)
	ref, err := powering.Reference()
	require.NoError(t, err)
	v, ok := ref.Lookup("kq4.l1b1")
	require.True(t, ok)
	assert.InDelta(t, testutil.NominalKQ4+2e-5, v, 1e-15)

	// Only the perturbed exports carry beta-beating; monitors keep three rows.
	exported, err := optics.LoadTFS(filepath.Join(beamDir, "matched.tfs"))
	require.NoError(t, err)
	assert.True(t, exported.HasColumn(optics.ColBBX))
	assert.True(t, exported.HasColumn(optics.ColBBY))
	assert.False(t, exported.HasColumn(optics.ColK1L), "K1L is not an export column")

	nominalExport, err := optics.LoadTFS(filepath.Join(beamDir, "nominal.tfs"))
	require.NoError(t, err)
	assert.False(t, nominalExport.HasColumn(optics.ColBBX))

	monitors, err := optics.LoadTFS(filepath.Join(beamDir, "bare_monitors.tfs"))
	require.NoError(t, err)
	assert.Equal(t, 3, monitors.Len())

	// Powering and delta file of every group are archived.
	a, err := archive.Open(dbPath)
	require.NoError(t, err)
	defer a.Close()
	entries, err := a.List(context.Background(), archive.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 6)
	for _, k := range result.Knobs {
		assert.Len(t, k.ArchiveIDs, 2)
	}
}

func TestDerive_ScenarioOverrides(t *testing.T) {
	f := writeFixture(t, 1, 1)
	path := f.writeScenario(t, "scenario.cue", `
name: "bare-only"
beam: 1
ip:   1
energy: 450
output_dir: "knobs"
tables: {
	nominal: "nominal.tfs"
	bare:    "bare.tfs"
}
groups: [{name: "triplets", kind: "triplets"}]
`)

	out, err := execute(NewDeriveCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario: bare-only (beam 1, IP1)")
	assert.Contains(t, out, "triplets")

	beamDir := filepath.Join(f.dir, "knobs", "BEAM1")
	set, err := knobfile.LoadKnobsFile(filepath.Join(beamDir, "triplets_change.madx"))
	require.NoError(t, err)
	assert.Equal(t, 450.0, set.Meta().Energy)
	assert.Equal(t, "bare", set.Meta().Scenario)

	// Without a matched table, triplets are derived against bare and agree
	// with the rigid waist shift of a unit setting.
	nominal, _, _ := testutil.LHCLikeTables(t, 1, 1)
	waist, err := knob.RigidWaistShift(nominal, 1, 1, knob.Left)
	require.NoError(t, err)
	for _, k := range waist.Knobs() {
		got, ok := set.Get(k.Circuit)
		require.True(t, ok, k.Circuit)
		assert.InDelta(t, k.Delta, got.Delta, 1e-15, k.Circuit)
	}

	_, err = os.Stat(filepath.Join(beamDir, "matched.tfs"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDerive_Errors(t *testing.T) {
	f := writeFixture(t, 1, 1)
	unknown := f.writeScenario(t, "unknown.yaml", `
name: x
beam: 1
ip: 1
tables: {nominal: nominal.tfs, bare: bare.tfs}
groups:
  - name: extra
    kind: custom
    circuits: [kq9.l1b1]
`)
	wrongBeam := f.writeScenario(t, "beam2.yaml", `
name: x
beam: 2
ip: 1
tables: {nominal: nominal.tfs, bare: bare.tfs}
groups: [{name: t, kind: triplets}]
`)
	invalid := f.writeScenario(t, "invalid.yaml", "name: x\nbeam: 9\n")
	missingTable := f.writeScenario(t, "missing.yaml", `
name: x
beam: 1
ip: 1
tables: {nominal: nominal.tfs, bare: nowhere.tfs}
groups: [{name: t, kind: triplets}]
`)
	valid := f.writeScenario(t, "valid.yaml", deriveScenario)

	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantExit int
	}{
		{"unknown circuit", []string{unknown}, ErrCodeUnknownCircuit, ExitFailure},
		{"beam mismatch", []string{wrongBeam}, ErrCodeMismatch, ExitFailure},
		{"invalid scenario", []string{invalid}, ErrCodeInvalidInput, ExitCommandError},
		{"missing table", []string{missingTable}, ErrCodeNotFound, ExitCommandError},
		{"unknown export column", []string{valid, "--columns", "S,BETZ"}, ErrCodeUnknownColumn, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--output-dir", t.TempDir())
			out, err := execute(NewDeriveCommand(&RootOptions{Format: "json"}), args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestDerive_ExplicitColumns(t *testing.T) {
	f := writeFixture(t, 1, 1)
	path := f.writeScenario(t, "scenario.yaml", deriveScenario)
	outDir := t.TempDir()

	_, err := execute(NewDeriveCommand(&RootOptions{Format: "json"}),
		path, "--output-dir", outDir, "--columns", "beta_x,S,BBX")
	require.NoError(t, err)

	exported, err := optics.LoadTFS(filepath.Join(outDir, "BEAM1", "bare.tfs"))
	require.NoError(t, err)
	assert.Equal(t, []string{optics.ColBetX, optics.ColS, optics.ColBBX}, exported.Columns())
}
