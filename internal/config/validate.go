package config

import (
	"fmt"
	"log/slog"

	"github.com/shazow/wifiportal/internal/creds"
)

// Validate checks the configuration. It does not mutate it.
func Validate(cfg *Config) error {
	if cfg.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	if cfg.APSSID == "" {
		return fmt.Errorf("ap-ssid is required")
	}
	if len(cfg.APSSID) > creds.MaxSSIDLen {
		return fmt.Errorf("ap-ssid %q is longer than %d bytes", cfg.APSSID, creds.MaxSSIDLen)
	}
	if len(cfg.APPass) > creds.MaxPassphraseLen {
		return fmt.Errorf("ap-pass is longer than %d bytes", creds.MaxPassphraseLen)
	}

	switch cfg.Backend {
	case BackendNetworkManager, BackendIWD, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if cfg.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}

	durations := []struct {
		name string
		d    int64
	}{
		{"scan-poll", int64(cfg.ScanPoll)},
		{"retry", int64(cfg.Retry)},
		{"attempt-timeout", int64(cfg.AttemptTimeout)},
		{"attempt-poll", int64(cfg.AttemptPoll)},
		{"yield", int64(cfg.Yield)},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}

	return nil
}
