package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidGraph(t *testing.T) {
	path := writeFile(t, t.TempDir(), "residencial.cue", wonGraph)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ residencial (2 nodes)")
	assert.Contains(t, out, "✓ All graphs valid")
}

func TestValidateDirectoryJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/residencial.cue", wonGraph)
	writeFile(t, dir, "b/comercial.cue", `project_type: "comercial"`)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Graphs, 2)
	assert.Equal(t, "residencial", resp.Data.Graphs[0].ProjectType)
	assert.Equal(t, "comercial", resp.Data.Graphs[1].ProjectType)
	assert.Equal(t, 0, resp.Data.Graphs[1].Nodes)
}

func TestValidateNonExistentPath(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/graphs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateReportsGraphErrors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "residencial.cue", invalidGraph)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, `E201: node "rev"`)
	assert.Contains(t, out, "(residencial)")
}

func TestValidateReportsGraphErrorsJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "residencial.cue", invalidGraph)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E201", resp.Error.Code)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, "rev", resp.Data.Errors[0].NodeID)
	assert.Equal(t, path, resp.Data.Errors[0].File)
}

func TestValidateCompileErrorHasLine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.cue", wonGraph)
	writeFile(t, dir, "broken.cue", "project_type: \"x\"\nprocess: {\n")

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeCompileFailed)
	assert.Contains(t, out, filepath.Join(dir, "broken.cue")+" line")
}

func TestValidateDuplicateProjectType(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", wonGraph)
	writeFile(t, dir, "b.cue", wonGraph)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeDuplicateType)
	assert.Contains(t, out, `project type "residencial" declared in`)
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "z.cue", "")
	writeFile(t, dir, "nested/a.cue", "")
	writeFile(t, dir, "notes.txt", "")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "nested", "a.cue"),
		filepath.Join(dir, "z.cue"),
	}, files)

	single, err := FindCUEFiles(files[1])
	require.NoError(t, err)
	assert.Equal(t, files[1:], single)
}

func TestLoadGraphsFailFast(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "process: {\n")
	writeFile(t, dir, "b.cue", wonGraph)

	graphs, errs := LoadGraphs(dir, LoadModeFailFast)
	assert.Nil(t, graphs)
	require.Len(t, errs, 1)

	graphs, errs = LoadGraphs(dir, LoadModeCollectAll)
	require.Len(t, graphs, 1)
	assert.Equal(t, "residencial", graphs[0].Graph.ProjectTypeID)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.ErrorAs(t, errs[0], &loadErr)
	assert.Equal(t, ErrCodeCompileFailed, loadErr.Code)
	assert.Equal(t, filepath.Join(dir, "a.cue"), loadErr.File)
}
