//go:build linux && !mock

package main

import (
	"log/slog"

	"github.com/shazow/wifiportal/internal/config"
	"github.com/shazow/wifiportal/radio"
	"github.com/shazow/wifiportal/radio/iwd"
	"github.com/shazow/wifiportal/radio/mock"
	"github.com/shazow/wifiportal/radio/networkmanager"
)

const defaultBackend = config.BackendNetworkManager

func GetRadio(logger *slog.Logger, cfg config.Config) (radio.Radio, error) {
	iwdOpts := iwd.Options{APInterface: cfg.APIface, STAInterface: cfg.STAIface}
	switch cfg.Backend {
	case config.BackendMock:
		return mock.New(), nil
	case config.BackendIWD:
		return newIWD(logger, iwdOpts)
	}

	r, err := networkmanager.New(logger, networkmanager.Options{APInterface: cfg.APIface, STAInterface: cfg.STAIface})
	if err == nil {
		return r, nil
	}
	logger.Warn("failed to initialize networkmanager backend, falling back to iwd", "error", err)
	// If networkmanager dbus backend failed to initialize, try the iwd backend
	return newIWD(logger, iwdOpts)
}

func newIWD(logger *slog.Logger, opts iwd.Options) (radio.Radio, error) {
	r, err := iwd.New(logger, opts)
	if err != nil {
		return nil, err
	}
	return r, nil
}
