package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/CodeInsight/internal/services"
)

func TestOpenFilesKeepsGoingPastUnreadablePaths(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(good, []byte("package main\n"), 0o644))
	other := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(other, []byte("# notes\n"), 0o644))

	files, failed, closeAll := openFiles([]string{good, filepath.Join(dir, "missing.txt"), dir, other})
	defer closeAll()

	require.Len(t, files, 2)
	assert.Equal(t, "main.go", files[0].Name)
	assert.Equal(t, "notes.md", files[1].Name)
	body, err := io.ReadAll(files[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(body))

	require.Len(t, failed, 2)
	assert.Equal(t, "missing.txt", failed[0].FileName)
	assert.Equal(t, services.StateFailed.String(), failed[0].State)
	assert.Contains(t, failed[0].Error, "open failed")
	assert.Equal(t, filepath.Base(dir), failed[1].FileName)
	assert.Contains(t, failed[1].Error, "is a directory")

	report := services.IngestReport{Files: failed}
	assert.Equal(t, 2, report.Count(services.StateFailed))
}
