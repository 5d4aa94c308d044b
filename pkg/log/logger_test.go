package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestZerologLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug, "json").With(RunIDKey, "run-1", ComponentKey, "tuner")

	logger.Info("Grid search finished", CandidatesKey, 216, MeanScoreKey, 0.97)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["message"] != "Grid search finished" {
		t.Errorf("message = %v", e["message"])
	}
	if e[RunIDKey] != "run-1" || e[ComponentKey] != "tuner" {
		t.Errorf("context fields missing: %v", e)
	}
	if e[CandidatesKey] != 216.0 {
		t.Errorf("%s = %v, want 216", CandidatesKey, e[CandidatesKey])
	}
}

func TestZerologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelWarn, "json")

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["message"] != "shown" {
		t.Fatalf("unexpected entries: %v", entries)
	}

	ctx := context.Background()
	if logger.Enabled(ctx, LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(ctx, LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestZerologLogger_ErrorWithStack(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug, "json")

	err := errors.NewColumnNotFoundError("split", "class")
	logger.Error("Pipeline failed", err, ComponentKey, "splitter")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if !strings.Contains(fmt.Sprint(e[ErrAttrKey]), `column "class" not found`) {
		t.Errorf("error field = %v", e[ErrAttrKey])
	}
	detail, ok := e[ErrAttrKey+"_detail"].(map[string]interface{})
	if !ok || detail["type"] != "ColumnNotFoundError" {
		t.Errorf("structured error detail missing: %v", e)
	}
}

func TestSetupLogger_Validation(t *testing.T) {
	var buf bytes.Buffer
	if _, err := SetupLogger(&buf, "verbose", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := SetupLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}

	prev := GetLogger()
	defer SetLogger(prev)

	l, err := SetupLogger(&buf, "debug", "json")
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	if GetLogger() != l {
		t.Error("SetupLogger should install the global logger")
	}
}

func TestRouteWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug, "json")
	defer errors.SetWarningHandler(func(error) {})

	RouteWarnings(logger, false)
	errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))
	errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 warning entry for a repeated warning, got %d", len(entries))
	}
	w, ok := entries[0][WarningKey].(map[string]interface{})
	if !ok || w["type"] != "UndefinedMetricWarning" {
		t.Errorf("warning object missing: %v", entries[0])
	}

	buf.Reset()
	RouteWarnings(logger, true)
	errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
	if buf.Len() != 0 {
		t.Errorf("suppressed warnings should not be logged: %s", buf.String())
	}
}

func TestTestLogger_Capture(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	contextLogger := testLogger.With(ComponentKey, "encoder")

	contextLogger.Info("Column encoded", ColumnKey, "Gender", ClassesKey, 2)
	contextLogger.Error("Encoding failed", fmt.Errorf("boom"))

	if !testLogger.ContainsMessage("Column encoded") {
		t.Error("message not captured")
	}
	if !testLogger.ContainsField(ColumnKey, "Gender") {
		t.Error("field not captured")
	}
	if !testLogger.ContainsField(ErrAttrKey, "boom") {
		t.Error("leading error should be stored under the error key")
	}
}

func TestTestLogger_Concurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				testLogger.Debug("fit", CandidateKey, worker, FoldKey, j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("GetLogEntries: %v", err)
	}
	if len(entries) != 80 {
		t.Errorf("expected 80 entries, got %d", len(entries))
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{LevelDebug: "DEBUG", LevelInfo: "INFO", LevelWarn: "WARN", LevelError: "ERROR", Level(99): "UNKNOWN"}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}
