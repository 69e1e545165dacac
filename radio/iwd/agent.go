//go:build linux

package iwd

import (
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const errCanceled = "net.connman.iwd.Agent.Error.Canceled"

// Agent answers iwd's secret requests with the passphrase of the network
// currently being joined. Its methods are called from the bus goroutine.
type Agent struct {
	logger *slog.Logger

	mu         sync.Mutex
	passphrase string
}

func NewAgent(logger *slog.Logger) *Agent {
	return &Agent{logger: logger}
}

// SetPassphrase sets the secret handed out on the next request.
func (a *Agent) SetPassphrase(passphrase string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.passphrase = passphrase
}

func (a *Agent) RequestPassphrase(network dbus.ObjectPath) (string, *dbus.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.Debug("passphrase requested", "network", network)
	if a.passphrase == "" {
		return "", dbus.NewError(errCanceled, []interface{}{"no passphrase"})
	}
	return a.passphrase, nil
}

func (a *Agent) RequestPrivateKeyPassphrase(network dbus.ObjectPath) (string, *dbus.Error) {
	return "", dbus.NewError(errCanceled, []interface{}{"not supported"})
}

func (a *Agent) RequestUserNameAndPassword(network dbus.ObjectPath) (string, string, *dbus.Error) {
	return "", "", dbus.NewError(errCanceled, []interface{}{"not supported"})
}

func (a *Agent) RequestUserPassword(network dbus.ObjectPath, user string) (string, *dbus.Error) {
	return "", dbus.NewError(errCanceled, []interface{}{"not supported"})
}

func (a *Agent) Cancel(reason string) *dbus.Error {
	a.logger.Debug("agent request canceled", "reason", reason)
	return nil
}

func (a *Agent) Release() *dbus.Error {
	return nil
}
