package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rws/internal/optics"
	"github.com/roach88/rws/internal/testutil"
)

// fixture is a directory holding the nominal, bare and matched tables of
// one beam and IP as TFS files.
type fixture struct {
	dir                    string
	nominal, bare, matched string
}

func writeFixture(t *testing.T, beam, ip int) fixture {
	t.Helper()
	dir := t.TempDir()
	nominal, bare, matched := testutil.LHCLikeTables(t, beam, ip)

	f := fixture{
		dir:     dir,
		nominal: filepath.Join(dir, "nominal.tfs"),
		bare:    filepath.Join(dir, "bare.tfs"),
		matched: filepath.Join(dir, "matched.tfs"),
	}
	require.NoError(t, optics.SaveTFS(f.nominal, nominal))
	require.NoError(t, optics.SaveTFS(f.bare, bare))
	require.NoError(t, optics.SaveTFS(f.matched, matched))
	return f
}

// writeScenario writes a scenario file next to the fixture tables.
func (f fixture) writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeResponse unmarshals a JSON CLI response, decoding its data into data
// when given.
func decodeResponse(t *testing.T, out string, data interface{}) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (stand-in for testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
