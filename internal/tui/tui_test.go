package tui

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/handiism/quartus-catalog/internal/catalog"
	"github.com/handiism/quartus-catalog/internal/config"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_Toggles(t *testing.T) {
	m := NewModel(Options{Settings: config.DefaultSettings(), Output: "out.json"})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	if !m.skipCDN {
		t.Error("ctrl+n should turn CDN resolution off")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	if !m.verbose {
		t.Error("ctrl+o should turn verbose on")
	}
	if got := m.textInput.Value(); got != "out.json" {
		t.Errorf("toggles must not edit the path, got %q", got)
	}
}

func TestModel_ProgressFiltersVerbose(t *testing.T) {
	m := NewModel(Options{})

	m = update(t, m, ProgressMsg{Event: catalog.ProgressEvent{Message: "fetching", Level: catalog.LevelVerbose}})
	if len(m.logs) != 0 {
		t.Errorf("verbose event shown without verbose mode: %v", m.logs)
	}

	for i := 0; i < maxLogs+5; i++ {
		m = update(t, m, ProgressMsg{Event: catalog.ProgressEvent{Message: "found", Level: catalog.LevelInfo}})
	}
	if len(m.logs) != maxLogs {
		t.Errorf("kept %d logs, want %d", len(m.logs), maxLogs)
	}
}

func TestModel_Percent(t *testing.T) {
	m := NewModel(Options{})

	m.counters = catalog.Progress{PagesDone: 1, PagesTotal: 4}
	if got := m.percent(); got != 0.25 {
		t.Errorf("pages percent = %v", got)
	}

	m.counters.ResolvedTotal = 10
	m.counters.ResolvedDone = 5
	if got := m.percent(); got != 0.5 {
		t.Errorf("resolve percent = %v", got)
	}
}

func TestModel_InitError(t *testing.T) {
	m := NewModel(Options{})
	m.state = StateInitializing

	m = update(t, m, InitDoneMsg{Err: errTest})
	if m.state != StateError || m.err != errTest {
		t.Errorf("state = %v, err = %v", m.state, m.err)
	}
}

func TestFinishRun_WritesPartialCatalog(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out", "catalog.json")
	cat := &catalog.Catalog{
		RunID:    "run-1",
		Failures: []catalog.Failure{{Stage: catalog.StageFetch, Target: "https://example.com/p", Error: "HTTP 503"}},
	}

	msg := finishRun(output, cat, context.Canceled)
	if !errors.Is(msg.Err, context.Canceled) {
		t.Errorf("Err = %v, want the run error", msg.Err)
	}
	if msg.Catalog != cat {
		t.Error("finishRun should pass the catalog on")
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("partial catalog not written: %v", err)
	}
	var got catalog.Catalog
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("catalog is not JSON: %v", err)
	}
	if got.RunID != "run-1" || len(got.Failures) != 1 {
		t.Errorf("written catalog = %+v", got)
	}
}

func TestFinishRun_WriteError(t *testing.T) {
	// A directory where the file should go makes the write fail.
	output := t.TempDir()

	if msg := finishRun(output, &catalog.Catalog{}, nil); msg.Err == nil {
		t.Error("a failed write should be reported")
	}
	msg := finishRun(output, &catalog.Catalog{}, errTest)
	if !errors.Is(msg.Err, errTest) {
		t.Errorf("Err = %v, want the run error kept", msg.Err)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("boom")
