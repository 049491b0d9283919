package givemart

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerFanout(t *testing.T) {
	var console, extra bytes.Buffer
	file := filepath.Join(t.TempDir(), "givemart.log")

	logger, closer := NewLogger(LogOptions{
		Console: &console,
		File:    file,
		Extra:   []slog.Handler{slog.NewJSONHandler(&extra, nil)},
	})
	logger.Info("Recorded payout", slog.Int("payout_id", 4))
	logger.Debug("hidden")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(console.String(), "Recorded payout") || strings.Contains(console.String(), "hidden") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	if strings.Contains(console.String(), "\x1b[") {
		t.Fatal("buffers are not terminals, output should not be colored")
	}
	if !strings.Contains(extra.String(), `"payout_id":4`) {
		t.Fatalf("extra handler missed the record: %q", extra.String())
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"Recorded payout"`) {
		t.Fatalf("log file missed the record: %q", data)
	}
}
