package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger captures JSON log output for assertions
type TestLogger struct {
	zerolog.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTestLogger creates a logger capturing every level
func NewTestLogger(t testing.TB) *TestLogger {
	t.Helper()
	tl := &TestLogger{}
	tl.Logger = zerolog.New(lockedWriter{tl}).Level(zerolog.TraceLevel).With().Timestamp().Logger()
	return tl
}

type lockedWriter struct{ tl *TestLogger }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.tl.mu.Lock()
	defer w.tl.mu.Unlock()
	return w.tl.buf.Write(p)
}

// Output returns the captured log output
func (tl *TestLogger) Output() string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buf.String()
}

// Lines returns the captured output one entry per line
func (tl *TestLogger) Lines() []string {
	out := strings.TrimSpace(tl.Output())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// AssertContains fails the test if the output lacks substr
func (tl *TestLogger) AssertContains(t testing.TB, substr string) {
	t.Helper()
	if !strings.Contains(tl.Output(), substr) {
		t.Errorf("log output does not contain %q:\n%s", substr, tl.Output())
	}
}
