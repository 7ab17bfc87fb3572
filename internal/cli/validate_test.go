package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schoolFixture = "../seed/testdata/school.cue"

func runValidateCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidFiles(t *testing.T) {
	out, err := runValidateCommand(t, "text",
		schoolFixture,
		filepath.Join(harnessScenarios, "capacity_one.yaml"),
		filepath.Join(harnessScenarios, "withdrawals.yaml"),
	)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 3 file(s) valid")
}

func TestValidateValidFilesJSON(t *testing.T) {
	out, err := runValidateCommand(t, "json", schoolFixture)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Files)
}

func TestValidateInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	badSchool := filepath.Join(dir, "school.cue")
	require.NoError(t, os.WriteFile(badSchool, []byte(`owner: "@principal"
teachers: []
students: []
courses: [{name: "Algorithms", teacher: "@principal", capacity: -1, start: "2027-01-10T09:00:00Z"}]
`), 0644))
	badScenario := filepath.Join(dir, "typo.yaml")
	require.NoError(t, os.WriteFile(badScenario, []byte("name: typo\ndescription: d\nflows: []\n"), 0644))
	unknown := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unknown, nil, 0644))

	out, err := runValidateCommand(t, "text", badSchool, badScenario, unknown)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+badSchool)
	assert.Contains(t, out, "✗ "+badScenario)
	assert.Contains(t, out, "unknown file type")
}

func TestValidateInvalidFilesJSON(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: n\n"), 0644))

	out, err := runValidateCommand(t, "json", bad)
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string           `json:"code"`
			Details ValidationResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_INVALID", resp.Error.Code)
	assert.False(t, resp.Error.Details.Valid)
	require.Len(t, resp.Error.Details.Errors, 1)
	assert.Equal(t, bad, resp.Error.Details.Errors[0].File)
}

func TestValidateMissingArgs(t *testing.T) {
	_, err := runValidateCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}
