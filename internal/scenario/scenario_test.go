package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rws/internal/knob"
)

const validYAML = `
name: ip1-beam1
beam: 1
ip: 1
tunes:
  qx: 62.31
  qy: 60.32
output_dir: out
tables:
  nominal: twiss_nominal.tfs
  bare: twiss_bare.tfs
  matched: /abs/twiss_matched.tfs
groups:
  - name: triplets
    kind: triplets
  - name: quadrupoles
    kind: quadrupoles
    quads: [4, 5]
  - name: working_point
    kind: working_point
    table: matched
  - name: mqx
    kind: custom
    pattern: "^mqx"
    category: [QUADRUPOLE]
    symmetric: true
`

const validCUE = `
name: "ip5-beam2"
beam: 2
ip:   5
tables: {
	nominal: "nominal.tfs"
	bare:    "bare.tfs"
}
groups: [
	{name: "triplets", kind: "triplets", symmetric: true},
	{name: "extra", kind: "custom", circuits: ["kq4.l5b2", "kq4.r5b2"]},
]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "scenario.yaml", validYAML)
	dir := filepath.Dir(path)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ip1-beam1", s.Name)
	assert.Equal(t, 1, s.Beam)
	assert.Equal(t, &Tunes{Qx: 62.31, Qy: 60.32}, s.Tunes)
	assert.Equal(t, filepath.Join(dir, "twiss_nominal.tfs"), s.Tables.Nominal)
	assert.Equal(t, filepath.Join(dir, "twiss_bare.tfs"), s.Tables.Bare)
	assert.Equal(t, "/abs/twiss_matched.tfs", s.Tables.Matched)
	assert.Equal(t, filepath.Join(dir, "out"), s.OutputDir)
	require.Len(t, s.Groups, 4)
	assert.Equal(t, []int{4, 5}, s.Groups[1].Quads)
	assert.Equal(t, []string{TableNominal, TableBare, TableMatched}, s.Labels())
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, "scenario.cue", validCUE)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ip5-beam2", s.Name)
	assert.Equal(t, 2, s.Beam)
	assert.Equal(t, 5, s.IP)
	assert.Nil(t, s.Tunes)
	assert.Empty(t, s.Tables.Matched)
	require.Len(t, s.Groups, 2)
	assert.True(t, s.Groups[0].Symmetric)
	assert.Equal(t, []string{"kq4.l5b2", "kq4.r5b2"}, s.Groups[1].Circuits)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{
			name:    "unknown yaml field",
			file:    "s.yaml",
			content: "name: x\nbeam: 1\nip: 1\ntables: {nominal: a, bare: b}\ngroup: []\n",
			want:    "failed to parse YAML",
		},
		{
			name:    "beam out of range",
			file:    "s.yaml",
			content: "name: x\nbeam: 3\nip: 1\ntables: {nominal: a, bare: b}\ngroups: [{name: t, kind: triplets}]\n",
			want:    "does not match schema",
		},
		{
			name:    "no groups",
			file:    "s.yaml",
			content: "name: x\nbeam: 1\nip: 1\ntables: {nominal: a, bare: b}\n",
			want:    "does not match schema",
		},
		{
			name:    "unknown kind",
			file:    "s.yaml",
			content: "name: x\nbeam: 1\nip: 1\ntables: {nominal: a, bare: b}\ngroups: [{name: t, kind: octupoles}]\n",
			want:    "does not match schema",
		},
		{
			name:    "unknown cue field",
			file:    "s.cue",
			content: "name: \"x\"\nbeam: 1\nip: 1\ntables: {nominal: \"a\", bare: \"b\"}\ngroups: [{name: \"t\", kind: \"triplets\"}]\ncolour: \"red\"\n",
			want:    "does not match schema",
		},
		{
			name:    "duplicate group",
			file:    "s.yaml",
			content: "name: x\nbeam: 1\nip: 1\ntables: {nominal: a, bare: b}\ngroups: [{name: t, kind: triplets}, {name: t, kind: working_point}]\n",
			want:    "duplicate group name",
		},
		{
			name:    "matched table missing",
			file:    "s.yaml",
			content: "name: x\nbeam: 1\nip: 1\ntables: {nominal: a, bare: b}\ngroups: [{name: t, kind: triplets, table: matched}]\n",
			want:    "none is given",
		},
		{
			name:    "empty custom group",
			file:    "s.yaml",
			content: "name: x\nbeam: 1\nip: 1\ntables: {nominal: a, bare: b}\ngroups: [{name: c, kind: custom}]\n",
			want:    "needs circuits, pattern or category",
		},
		{
			name:    "quads on triplets",
			file:    "s.yaml",
			content: "name: x\nbeam: 1\nip: 1\ntables: {nominal: a, bare: b}\ngroups: [{name: t, kind: triplets, quads: [4]}]\n",
			want:    "quads only apply",
		},
		{
			name:    "unsupported extension",
			file:    "s.json",
			content: "{}",
			want:    "unsupported scenario format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestPerturbedTable(t *testing.T) {
	s, err := Load(writeFile(t, "scenario.yaml", validYAML))
	require.NoError(t, err)
	assert.Equal(t, TableMatched, s.PerturbedTable(s.Groups[0]))

	c, err := Load(writeFile(t, "scenario.cue", validCUE))
	require.NoError(t, err)
	assert.Equal(t, TableBare, c.PerturbedTable(c.Groups[0]))

	_, ok := c.TablePath(TableMatched)
	assert.False(t, ok)
	p, ok := c.TablePath(TableBare)
	assert.True(t, ok)
	assert.Equal(t, "bare.tfs", filepath.Base(p))
}

func TestSelectors(t *testing.T) {
	s, err := Load(writeFile(t, "scenario.yaml", validYAML))
	require.NoError(t, err)

	sels, err := s.Selectors()
	require.NoError(t, err)
	require.Len(t, sels, 4)

	assert.Equal(t, "triplets", sels[0].Label)
	assert.Equal(t, []string{"kqx.l1", "kqx.r1"}, sels[0].Circuits)
	assert.True(t, sels[0].Separate)

	assert.Equal(t, []string{"kq4.r1b1", "kq4.l1b1", "kq5.r1b1", "kq5.l1b1"}, sels[1].Circuits)

	assert.Equal(t, []string{"dqx.b1", "dqy.b1", "dqpx.b1", "dqpy.b1"}, sels[2].Circuits)

	custom := sels[3]
	assert.Equal(t, "mqx", custom.Label)
	require.NotNil(t, custom.Match)
	require.NotNil(t, custom.Group)
	assert.True(t, custom.Match("MQXA.1L1", "QUADRUPOLE"))
	assert.False(t, custom.Match("MQXA.1L1", "MONITOR"))
	assert.False(t, custom.Match("MQ.12L1.B1", "QUADRUPOLE"))
}

func TestSelector_DefaultQuadsAndSymmetricTriplets(t *testing.T) {
	s := &Scenario{IP: 2, Beam: 2}

	q, err := s.Selector(Group{Name: "q", Kind: KindQuadrupoles})
	require.NoError(t, err)
	assert.Len(t, q.Circuits, 2*len(knob.DefaultIndependentQuadrupoles))

	tr, err := s.Selector(Group{Name: "t", Kind: KindTriplets, Symmetric: true})
	require.NoError(t, err)
	assert.False(t, tr.Separate)

	_, err = s.Selector(Group{Name: "c", Kind: KindCustom, Pattern: "("})
	assert.Error(t, err)
}
