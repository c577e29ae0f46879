package logging

import (
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "JSON format to stdout",
			config: Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
		{
			name: "Console format to stderr",
			config: Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
			wantErr: false,
		},
		{
			name: "Invalid log level defaults to info",
			config: Config{
				Level:  "invalid",
				Format: "json",
				Output: "stdout",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debug("test debug message")
	logger.Info("test info message")
	logger.Warn("test warn message")
	logger.Error("test error message")
	logger.Infof("formatted %s", "message")

	// All methods should not panic
}

func TestLoggerWithFields(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if logger.WithField("key", "value") == nil {
		t.Error("Expected non-nil logger from WithField")
	}

	if logger.WithFields(map[string]interface{}{"key1": "value1", "key2": 123}) == nil {
		t.Error("Expected non-nil logger from WithFields")
	}

	if logger.WithEndUserID("eu-123") == nil {
		t.Error("Expected non-nil logger from WithEndUserID")
	}

	if logger.WithManifestID("manifest-1") == nil {
		t.Error("Expected non-nil logger from WithManifestID")
	}
}

func TestLogHTTPRequest(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.LogHTTPRequest("POST", "/api/signer/generate-live-payment", "192.168.1.1", 200, 100*time.Millisecond)
	// Should not panic
}

func TestLogPayment(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.LogPayment("manifest-1", "eu-123", "5000", "1000000", 200)
	// Should not panic
}

func TestLogReconciliation(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.LogReconciliation("running", true, true, "")
	logger.LogReconciliation("stopped", false, false, "container state: exited")
	// Should not panic
}
