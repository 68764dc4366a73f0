package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprsokr/sidekick/internal/orchestrator"
)

func sampleReport() *orchestrator.Report {
	started := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	return &orchestrator.Report{
		RunID:         "0190f3a0-0000-7000-8000-000000000001",
		Started:       started,
		Finished:      started.Add(2 * time.Second),
		ToolAvailable: false,
		Outcomes: []orchestrator.Outcome{
			{Group: "game", Name: "Game/data.pak", Kind: "replace", Status: orchestrator.StatusApplied},
			{Group: "game", Name: "Game/game.exe", Kind: "patch", Status: orchestrator.StatusSkipped,
				Reason: orchestrator.ReasonToolUnavailable, Detail: "patch tool unavailable: flips"},
			{Group: "engine", Name: "/cfg/engine.ini", Step: "fps", Kind: "text", Status: orchestrator.StatusAlreadyApplied},
			{Group: "engine", Name: "/cfg/engine.ini", Step: "vsync", Kind: "text", Status: orchestrator.StatusSkipped,
				Reason: orchestrator.ReasonPatternNotFound, Detail: "pattern not found"},
			{Group: ".", Name: "bin/tool.exe", Kind: "replace", Status: orchestrator.StatusFailed,
				Reason: orchestrator.ReasonCrcMismatch, Detail: "crc mismatch: target is 0000ABCD, want 12345678"},
		},
	}
}

func TestRenderReportText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, "text", sampleReport()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report_text", buf.Bytes())
	assert.NotContains(t, buf.String(), "\033[")
}

func TestRenderReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, "json", sampleReport()))

	var got orchestrator.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	want := sampleReport()
	assert.Equal(t, want.RunID, got.RunID)
	assert.True(t, want.Started.Equal(got.Started))
	assert.Equal(t, want.Outcomes, got.Outcomes)

	assert.Contains(t, buf.String(), `"status": "already-applied"`)
	assert.Contains(t, buf.String(), `"reason": "tool-unavailable"`)
}

func TestRenderStatusText(t *testing.T) {
	statuses := []orchestrator.TargetStatus{
		{Group: "game", Name: "Game/game.exe", Method: "patch", Target: "/games/Game/game.exe", Found: true,
			Fingerprint: "DEADBEEF", State: "applied", Backup: true},
		{Group: "game", Name: "Game/data.pak", Method: "replace", Target: "/games/Game/data.pak", Found: true,
			Fingerprint: "0000ABCD", State: "pristine"},
		{Group: "mods/extra", Name: "Extra/file.bin", Method: "patch", State: "missing"},
	}

	var buf bytes.Buffer
	require.NoError(t, renderStatus(&buf, "text", statuses))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "status_text", buf.Bytes())
}

func TestEntryLabel(t *testing.T) {
	assert.Equal(t, "a: b [c]", entryLabel("a", "b", "c"))
	assert.Equal(t, "b", entryLabel(".", "b", ""))
	assert.Equal(t, "b", entryLabel("", "b", ""))
}
