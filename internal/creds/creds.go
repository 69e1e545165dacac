// Package creds persists the single set of station credentials.
package creds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shazow/wifiportal/internal/kv"
)

const (
	DefaultNamespace = "wifi_mgr"

	keySSID = "ssid"
	keyPass = "pass"

	MaxSSIDLen       = 32
	MaxPassphraseLen = 63
)

var (
	ErrSSIDRequired      = errors.New("SSID required")
	ErrSSIDTooLong       = errors.New("SSID too long")
	ErrPassphraseTooLong = errors.New("passphrase too long")
)

// Credentials identify the infrastructure network to join. An empty
// Passphrase means an open network.
type Credentials struct {
	SSID       string
	Passphrase string
}

// Empty reports whether there are no credentials.
func (c Credentials) Empty() bool {
	return c.SSID == ""
}

func (c Credentials) Validate() error {
	switch {
	case c.SSID == "":
		return ErrSSIDRequired
	case len(c.SSID) > MaxSSIDLen:
		return ErrSSIDTooLong
	case len(c.Passphrase) > MaxPassphraseLen:
		return ErrPassphraseTooLong
	}
	return nil
}

// Store loads and saves Credentials in a kv.Store namespace.
type Store struct {
	kv        kv.Store
	namespace string
	logger    *slog.Logger
}

func New(logger *slog.Logger, store kv.Store, namespace string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{kv: store, namespace: namespace, logger: logger.With("component", "creds")}
}

// Load returns the saved credentials. Store errors are logged and reported as
// no credentials.
func (s *Store) Load(ctx context.Context) Credentials {
	ssid, ok, err := s.kv.Get(ctx, s.namespace, keySSID)
	if err != nil {
		s.logger.Error("failed to load credentials", "error", err)
		return Credentials{}
	}
	if !ok || ssid == "" {
		return Credentials{}
	}
	pass, _, err := s.kv.Get(ctx, s.namespace, keyPass)
	if err != nil {
		s.logger.Error("failed to load credentials", "error", err)
		return Credentials{}
	}
	return Credentials{SSID: ssid, Passphrase: pass}
}

// Save durably replaces the saved credentials.
func (s *Store) Save(ctx context.Context, c Credentials) error {
	err := s.kv.SetMany(ctx, s.namespace, map[string]string{
		keySSID: c.SSID,
		keyPass: c.Passphrase,
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	s.logger.Info("credentials saved", "ssid", c.SSID)
	return nil
}
