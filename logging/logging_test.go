package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tolelom/propchain/config"
)

func TestNewRespectsLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "WARN"}, &buf)
	logger.Info().Msg("quiet")
	logger.Warn().Str("round", "3").Msg("loud")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("got %d lines want 1: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatal(err)
	}
	if entry["message"] != "loud" || entry["round"] != "3" || entry["level"] != "warn" {
		t.Errorf("entry: %v", entry)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	New(config.LogConfig{Level: "verbose"}, &bytes.Buffer{})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level: got %v want info", zerolog.GlobalLevel())
	}
}
