package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PRAVOCHAT_API_URL",
		"PRAVOCHAT_CSRF_TOKEN",
		"PRAVOCHAT_REQUEST_TIMEOUT",
		"PRAVOCHAT_WS_ENABLED",
		"PRAVOCHAT_WS_URL",
		"PRAVOCHAT_WS_RECONNECT_DELAY",
		"PRAVOCHAT_CAPTURE_COMMAND",
		"PRAVOCHAT_CAPTURE_FORMAT",
		"PRAVOCHAT_PREVIEW_ENABLED",
		"PRAVOCHAT_PREVIEW_ADDR",
		"PRAVOCHAT_TOKEN_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Fatalf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.RequestTimeout != 0 {
		t.Fatalf("RequestTimeout = %v, want unbounded", cfg.API.RequestTimeout)
	}
	if !cfg.Socket.Enabled {
		t.Fatal("socket disabled by default")
	}
	if cfg.Socket.URL != "ws://localhost:8000" {
		t.Fatalf("Socket.URL = %q", cfg.Socket.URL)
	}
	if cfg.Socket.ReconnectDelay != 5*time.Second {
		t.Fatalf("ReconnectDelay = %v", cfg.Socket.ReconnectDelay)
	}
	if cfg.Voice.Format != "wav" {
		t.Fatalf("Voice.Format = %q", cfg.Voice.Format)
	}
	if cfg.Preview.Enabled {
		t.Fatal("preview enabled by default")
	}
	if cfg.Preview.Addr != "127.0.0.1:8390" {
		t.Fatalf("Preview.Addr = %q", cfg.Preview.Addr)
	}
}

func TestLoadDerivesSecureSocketURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRAVOCHAT_API_URL", "https://chat.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Socket.URL != "wss://chat.example.com" {
		t.Fatalf("Socket.URL = %q", cfg.Socket.URL)
	}
}

func TestLoadExplicitSocketURLWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRAVOCHAT_WS_URL", "wss://stream.example.com/ws")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Socket.URL != "wss://stream.example.com/ws" {
		t.Fatalf("Socket.URL = %q", cfg.Socket.URL)
	}
}

func TestLoadRejectsInvalidBaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRAVOCHAT_API_URL", "not a url")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid base URL")
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRAVOCHAT_REQUEST_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric timeout")
	}
}

func TestLoadParsesTimeoutAndDelay(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRAVOCHAT_REQUEST_TIMEOUT", "30")
	t.Setenv("PRAVOCHAT_WS_RECONNECT_DELAY", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.API.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %v", cfg.API.RequestTimeout)
	}
	if cfg.Socket.ReconnectDelay != 2*time.Second {
		t.Fatalf("ReconnectDelay = %v", cfg.Socket.ReconnectDelay)
	}
}

func TestLoadCaptureCommandSplit(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRAVOCHAT_CAPTURE_COMMAND", "sox -d -t wav -")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	want := []string{"sox", "-d", "-t", "wav", "-"}
	if len(cfg.Voice.CaptureCommand) != len(want) {
		t.Fatalf("CaptureCommand = %v", cfg.Voice.CaptureCommand)
	}
	for i, arg := range want {
		if cfg.Voice.CaptureCommand[i] != arg {
			t.Fatalf("CaptureCommand = %v", cfg.Voice.CaptureCommand)
		}
	}
}

func TestLoadBoolParsing(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRAVOCHAT_WS_ENABLED", "false")
	t.Setenv("PRAVOCHAT_PREVIEW_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Socket.Enabled {
		t.Fatal("socket should be disabled")
	}
	if !cfg.Preview.Enabled {
		t.Fatal("preview should be enabled")
	}

	t.Setenv("PRAVOCHAT_WS_ENABLED", "maybe")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid bool")
	}
}
