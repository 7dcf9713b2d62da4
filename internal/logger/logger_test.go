package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestExitMethodWithError_Levels(t *testing.T) {
	refusal := errors.New("refused")
	var buf bytes.Buffer
	InitializeWriter(&buf, "debug", "text")
	SetBusinessErrorMatcher(func(err error) bool { return errors.Is(err, refusal) })
	defer SetBusinessErrorMatcher(nil)

	t.Run("business refusal logs at warn", func(t *testing.T) {
		buf.Reset()
		ExitMethodWithError("svc.Create", refusal)
		assert.Contains(t, buf.String(), "level=WARN")
	})

	t.Run("other errors log at error", func(t *testing.T) {
		buf.Reset()
		ExitMethodWithError("svc.Create", errors.New("boom"))
		assert.Contains(t, buf.String(), "level=ERROR")
	})
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	InitializeWriter(&buf, "info", "json")
	Debug("hidden")
	assert.Empty(t, buf.String())

	SetLevel("debug")
	Debug("shown", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
