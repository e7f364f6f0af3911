package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/CodeInsight/internal/models"
	"github.com/markdave123-py/CodeInsight/internal/services"
)

func init() {
	color.NoColor = true
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, services.IngestReport{Files: []services.FileOutcome{
		{FileName: "a.go", State: "ready", DocumentID: "d1"},
		{FileName: "empty.txt", State: "skipped"},
		{FileName: "bad.pdf", State: "failed", Error: "bad.pdf: extract failed: boom"},
	}})

	out := buf.String()
	assert.Contains(t, out, "✓ a.go")
	assert.Contains(t, out, "empty.txt (no text extracted)")
	assert.Contains(t, out, "✗ bad.pdf")
	assert.Contains(t, out, "1 indexed, 1 skipped, 1 failed")
}

func TestPlainProgressLines(t *testing.T) {
	var buf bytes.Buffer
	p := &progressReporter{out: &buf}
	p.report(services.UploadProgress{Message: "Uploading a.go...", Percent: 0})
	p.report(services.UploadProgress{Message: "All files indexed successfully!", Percent: 100})
	assert.Equal(t, "  0% Uploading a.go...\n100% All files indexed successfully!\n", buf.String())
}

func TestProgressBarDisabled(t *testing.T) {
	assert.Nil(t, newProgressBar(&bytes.Buffer{}, false))
	assert.NotNil(t, newProgressBar(&bytes.Buffer{}, true))
}

func TestPrintDocuments(t *testing.T) {
	var buf bytes.Buffer
	printDocuments(&buf, nil)
	assert.Contains(t, buf.String(), "No documents yet.")

	buf.Reset()
	printDocuments(&buf, []models.Document{{ID: "d1", FileName: "main.go", Status: "ready", CreatedAt: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)}})
	assert.Contains(t, buf.String(), "main.go")
	assert.Contains(t, buf.String(), "2025-01-02 03:04")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType("/x/report.PDF"))
	assert.Equal(t, "application/octet-stream", contentType("/x/Makefile"))
}
