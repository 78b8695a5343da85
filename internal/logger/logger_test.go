package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetup_OutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Info("テストメッセージ", "key", "value")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}

	if entry["msg"] != "テストメッセージ" {
		t.Errorf("msg = %q, want %q", entry["msg"], "テストメッセージ")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %q, want %q", entry["level"], "INFO")
	}
}

func TestSetup_DefaultLevelSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Debug("出力されないはず")

	if buf.Len() != 0 {
		t.Errorf("debug log should be suppressed at default level, got %q", buf.String())
	}
}

func TestSetup_LogLevelFromEnv(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantWarn  bool
	}{
		{"debugレベルでは全て出る", "debug", true, true},
		{"warnレベルではdebugは出ない", "warn", false, true},
		{"errorレベルではwarnも出ない", "error", false, false},
		{"不正な値はinfoにフォールバック", "bogus", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)

			var buf bytes.Buffer
			logger := Setup(&buf)

			logger.Debug("debug message")
			gotDebug := buf.Len() > 0
			if gotDebug != tt.wantDebug {
				t.Errorf("debug output = %v, want %v", gotDebug, tt.wantDebug)
			}

			buf.Reset()
			logger.Warn("warn message")
			gotWarn := buf.Len() > 0
			if gotWarn != tt.wantWarn {
				t.Errorf("warn output = %v, want %v", gotWarn, tt.wantWarn)
			}
		})
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Info("グローバルロガー経由")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "グローバルロガー経由" {
		t.Errorf("msg = %q, want %q", entry["msg"], "グローバルロガー経由")
	}
}
