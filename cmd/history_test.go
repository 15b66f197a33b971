package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nexus-paies/fiscal-updater/internal/history"
	"github.com/nexus-paies/fiscal-updater/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	start := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []history.Run{
		{ID: "abc12345-6789-0000-0000-000000000000", StartedAt: start, FinishedAt: start.Add(4 * time.Second), ChangeCount: 2},
		{ID: "def12345-6789-0000-0000-000000000000", StartedAt: start.Add(-time.Hour), FinishedAt: start.Add(-time.Hour), Errors: []string{"boom"}, DryRun: true},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "CHANGES")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "2025-06-15 10:30")
	assert.Contains(t, out, "4s")
	assert.Contains(t, out, "true")
}

func TestFormatChanges(t *testing.T) {
	var buf bytes.Buffer
	formatChanges(&buf, []model.Change{
		{Category: "smic", Field: "SMIC horaire", Old: "11,65 €", New: "11,88 €", Source: "https://example.test"},
	})
	out := buf.String()
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "SMIC horaire")
	assert.Contains(t, out, "11,88 €")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
