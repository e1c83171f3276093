package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Console: &buf})
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "test").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info to be filtered, got %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, `"component":"test"`) {
		t.Errorf("Expected warn line with fields, got %s", out)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "nonsense", Console: &buf})
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")
	if strings.Contains(buf.String(), `"debug"`) || !strings.Contains(buf.String(), `"info"`) {
		t.Errorf("Expected info level, got %s", buf.String())
	}
}
