package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
)

// TestLogger captures log lines in memory as JSON for assertions in tests.
// It is the zerolog-backed Logger writing to a locked buffer, so tests see
// exactly the fields production logging would emit. Loggers derived through
// With share the buffer.
type TestLogger struct {
	Logger
	sink *lockedBuffer
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewTestLogger creates a TestLogger that records entries at level and
// above. The returned buffer holds the raw JSON lines.
//
//	logger, _ := log.NewTestLogger(log.LevelDebug)
//	gs := model_selection.NewGridSearchCV(rf, grid, model_selection.WithLogger(logger))
//	...
//	if !logger.ContainsMessage("Fitting 5 folds") { ... }
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	sink := &lockedBuffer{buf: buf}
	return &TestLogger{Logger: NewZerologLogger(sink, level, "json"), sink: sink}, buf
}

// With keeps the capture buffer on the derived logger.
func (t *TestLogger) With(fields ...any) Logger {
	return &TestLogger{Logger: t.Logger.With(fields...), sink: t.sink}
}

// GetLogEntries decodes the captured lines. Each entry carries "level" and
// "message" plus its fields; numbers decode as float64.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(t.sink.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured line contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.sink.String(), message)
}

// ContainsField reports whether some entry has key set to value.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear drops everything captured so far.
func (t *TestLogger) Clear() {
	t.sink.mu.Lock()
	defer t.sink.mu.Unlock()
	t.sink.buf.Reset()
}
