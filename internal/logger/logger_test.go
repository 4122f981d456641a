package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/example/pos-gateway/internal/logger"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New("production", "debug", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Debug().Str("order_id", "o1").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["service"] != "pos-gateway" || line["order_id"] != "o1" || line["level"] != "debug" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New("production", "warn", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := logger.New("production", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
