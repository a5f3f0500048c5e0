package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the client reads from the environment.
type Config struct {
	API     APIConfig
	Socket  SocketConfig
	Voice   VoiceConfig
	Preview PreviewConfig
	Token   TokenConfig
}

// Load reads the full configuration from environment variables.
func Load() (*Config, error) {
	api, err := loadAPIConfig()
	if err != nil {
		return nil, err
	}

	socket, err := loadSocketConfig(api.BaseURL)
	if err != nil {
		return nil, err
	}

	voice, err := loadVoiceConfig()
	if err != nil {
		return nil, err
	}

	preview, err := loadPreviewConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		API:     api,
		Socket:  socket,
		Voice:   voice,
		Preview: preview,
		Token:   loadTokenConfig(),
	}, nil
}

// APIConfig describes how to reach the chat backend over HTTP.
type APIConfig struct {
	// BaseURL is the backend origin, e.g. "https://chat.example.com".
	BaseURL string
	// CSRFToken is attached as X-CSRF-TOKEN where the backend expects it.
	// The web front end reads it from page configuration; the CLI takes it
	// from the environment.
	CSRFToken string
	// RequestTimeout bounds each HTTP call. Zero disables the timeout; an
	// unresponsive backend then stalls the corresponding action until the
	// user gives up, matching the web client.
	RequestTimeout time.Duration
}

func loadAPIConfig() (APIConfig, error) {
	base := getEnvOrDefault("PRAVOCHAT_API_URL", "http://localhost:8000")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return APIConfig{}, fmt.Errorf("invalid PRAVOCHAT_API_URL value %q", base)
	}

	timeoutSec, err := parseOptionalIntEnv("PRAVOCHAT_REQUEST_TIMEOUT")
	if err != nil {
		return APIConfig{}, err
	}
	var timeout time.Duration
	if timeoutSec != nil {
		if *timeoutSec < 0 {
			return APIConfig{}, fmt.Errorf("invalid PRAVOCHAT_REQUEST_TIMEOUT value %d", *timeoutSec)
		}
		timeout = time.Duration(*timeoutSec) * time.Second
	}

	return APIConfig{
		BaseURL:        strings.TrimSuffix(base, "/"),
		CSRFToken:      strings.TrimSpace(os.Getenv("PRAVOCHAT_CSRF_TOKEN")),
		RequestTimeout: timeout,
	}, nil
}

// SocketConfig describes the streaming WebSocket transport.
type SocketConfig struct {
	Enabled          bool
	URL              string // ws(s)://host base, derived from the API origin
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

func loadSocketConfig(apiBase string) (SocketConfig, error) {
	enabled, err := parseBoolEnv("PRAVOCHAT_WS_ENABLED", true)
	if err != nil {
		return SocketConfig{}, err
	}

	wsURL := strings.TrimSpace(os.Getenv("PRAVOCHAT_WS_URL"))
	if wsURL == "" {
		wsURL = deriveSocketURL(apiBase)
	}

	delaySec, err := parseOptionalIntEnv("PRAVOCHAT_WS_RECONNECT_DELAY")
	if err != nil {
		return SocketConfig{}, err
	}
	delay := 5 * time.Second
	if delaySec != nil && *delaySec > 0 {
		delay = time.Duration(*delaySec) * time.Second
	}

	return SocketConfig{
		Enabled:          enabled,
		URL:              strings.TrimSuffix(wsURL, "/"),
		ReconnectDelay:   delay,
		HandshakeTimeout: 30 * time.Second,
	}, nil
}

// deriveSocketURL maps an http(s) origin onto its ws(s) counterpart.
func deriveSocketURL(apiBase string) string {
	switch {
	case strings.HasPrefix(apiBase, "https://"):
		return "wss://" + strings.TrimPrefix(apiBase, "https://")
	case strings.HasPrefix(apiBase, "http://"):
		return "ws://" + strings.TrimPrefix(apiBase, "http://")
	default:
		return apiBase
	}
}

// VoiceConfig describes microphone capture.
type VoiceConfig struct {
	// CaptureCommand is the capture program plus arguments, split on spaces.
	// Empty means pick a platform default at runtime.
	CaptureCommand []string
	Format         string
}

func loadVoiceConfig() (VoiceConfig, error) {
	var command []string
	if raw := strings.TrimSpace(os.Getenv("PRAVOCHAT_CAPTURE_COMMAND")); raw != "" {
		command = strings.Fields(raw)
	}

	return VoiceConfig{
		CaptureCommand: command,
		Format:         getEnvOrDefault("PRAVOCHAT_CAPTURE_FORMAT", "wav"),
	}, nil
}

// PreviewConfig describes the local transcript preview server.
type PreviewConfig struct {
	Enabled bool
	Addr    string
}

func loadPreviewConfig() (PreviewConfig, error) {
	enabled, err := parseBoolEnv("PRAVOCHAT_PREVIEW_ENABLED", false)
	if err != nil {
		return PreviewConfig{}, err
	}

	addr := getEnvOrDefault("PRAVOCHAT_PREVIEW_ADDR", "127.0.0.1:8390")
	if strings.Contains(addr, " ") {
		return PreviewConfig{}, fmt.Errorf("invalid PRAVOCHAT_PREVIEW_ADDR value: %q", addr)
	}

	return PreviewConfig{Enabled: enabled, Addr: addr}, nil
}

// TokenConfig points at the persisted session token.
type TokenConfig struct {
	// Path overrides the default token file location when set.
	Path string
}

func loadTokenConfig() TokenConfig {
	return TokenConfig{Path: strings.TrimSpace(os.Getenv("PRAVOCHAT_TOKEN_FILE"))}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
