//go:build !linux && !mock

package main

import (
	"fmt"
	"log/slog"

	"github.com/shazow/wifiportal/internal/config"
	"github.com/shazow/wifiportal/radio"
	"github.com/shazow/wifiportal/radio/mock"
)

const defaultBackend = config.BackendMock

// GetRadio only offers the mock radio on operating systems without a
// supported wireless daemon.
func GetRadio(logger *slog.Logger, cfg config.Config) (radio.Radio, error) {
	if cfg.Backend != config.BackendMock {
		return nil, fmt.Errorf("backend %q: unsupported operating system", cfg.Backend)
	}
	return mock.New(), nil
}
