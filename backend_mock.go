//go:build mock

package main

import (
	"log/slog"

	"github.com/shazow/wifiportal/internal/config"
	"github.com/shazow/wifiportal/radio"
	"github.com/shazow/wifiportal/radio/mock"
)

const defaultBackend = config.BackendMock

func GetRadio(logger *slog.Logger, cfg config.Config) (radio.Radio, error) {
	if cfg.Backend != config.BackendMock {
		logger.Warn("built with the mock radio, ignoring backend", "backend", cfg.Backend)
	}
	return mock.New(), nil
}
