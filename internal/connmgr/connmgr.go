// Package connmgr owns the saved station credentials and drives association
// attempts on a fixed cadence.
package connmgr

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/shazow/wifiportal/internal/creds"
	"github.com/shazow/wifiportal/radio"
)

const (
	DefaultRetryInterval  = 10 * time.Second
	DefaultAttemptTimeout = 15 * time.Second
	DefaultAttemptPoll    = 200 * time.Millisecond
)

// Station is the station half of a radio.Radio.
type Station interface {
	BeginStation(ssid, passphrase string) error
	StationStatus() radio.StationStatus
	LocalAddr() netip.Addr
}

// CredentialStore persists the credentials record.
type CredentialStore interface {
	Load(ctx context.Context) creds.Credentials
	Save(ctx context.Context, c creds.Credentials) error
}

// State is the observable state of the manager.
type State int

const (
	NoCreds State = iota
	Disconnected
	Associating
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Associating:
		return "associating"
	case Connected:
		return "connected"
	default:
		return "no credentials"
	}
}

// LinkFunc is called on the loop goroutine when the station gains or loses
// its link.
type LinkFunc func(connected bool, addr netip.Addr)

// Manager is not safe for concurrent use; it is driven from the main loop.
type Manager struct {
	RetryInterval  time.Duration
	AttemptTimeout time.Duration
	AttemptPoll    time.Duration

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	station Station
	store   CredentialStore
	logger  *slog.Logger
	onLink  []LinkFunc

	saved       creds.Credentials
	haveSaved   bool
	attempted   bool
	lastAttempt time.Time
	checked     bool
	lastCheck   time.Time
	state       State
	linked      bool
}

func New(logger *slog.Logger, station Station, store CredentialStore) *Manager {
	return &Manager{
		RetryInterval:  DefaultRetryInterval,
		AttemptTimeout: DefaultAttemptTimeout,
		AttemptPoll:    DefaultAttemptPoll,
		Now:            time.Now,
		Sleep:          sleep,
		station:        station,
		store:          store,
		logger:         logger.With("component", "connmgr"),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OnLink registers fn to be told about link transitions.
func (m *Manager) OnLink(fn LinkFunc) {
	m.onLink = append(m.onLink, fn)
}

// LoadFromStore fills the cache from the credential store.
func (m *Manager) LoadFromStore(ctx context.Context) {
	c := m.store.Load(ctx)
	if c.Empty() {
		m.logger.Info("no saved wifi credentials")
		return
	}
	m.saved = c
	m.haveSaved = true
	m.state = Disconnected
	m.logger.Info("loaded saved credentials", "ssid", c.SSID)
}

// Submit validates and persists new credentials, then replaces the cache. It
// does not wait for association. On error the cache is unchanged.
func (m *Manager) Submit(ctx context.Context, ssid, passphrase string) error {
	c := creds.Credentials{SSID: ssid, Passphrase: passphrase}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := m.store.Save(ctx, c); err != nil {
		return err
	}
	m.saved = c
	m.haveSaved = true
	m.attempted = false
	m.checked = false
	if m.state == NoCreds {
		m.state = Disconnected
	}
	return nil
}

// Saved returns the cached credentials.
func (m *Manager) Saved() (creds.Credentials, bool) {
	return m.saved, m.haveSaved
}

func (m *Manager) State() State {
	return m.state
}

// Tick makes one bounded association attempt when there are credentials, the
// station is not connected, and the retry interval has passed since the last
// attempt. It reports whether an attempt was made.
//
// The station is queried at most once per AttemptPoll, and not at all
// without credentials.
func (m *Manager) Tick(ctx context.Context, now time.Time) bool {
	if !m.haveSaved {
		return false
	}
	if m.checked && now.Sub(m.lastCheck) < m.AttemptPoll {
		return false
	}
	m.checked = true
	m.lastCheck = now

	status := m.station.StationStatus()
	m.observe(status)
	if status == radio.Connected {
		return false
	}
	if m.attempted && now.Sub(m.lastAttempt) < m.RetryInterval {
		return false
	}
	m.attempt(ctx, now)
	return true
}

func (m *Manager) observe(status radio.StationStatus) {
	switch {
	case status == radio.Connected && !m.linked:
		m.linked = true
		m.state = Connected
		addr := m.station.LocalAddr()
		m.logger.Info("link up", "ip", addr)
		m.notify(true, addr)
	case status != radio.Connected && m.linked:
		m.linked = false
		m.state = Disconnected
		m.logger.Warn("link lost")
		m.notify(false, netip.Addr{})
	}
}

func (m *Manager) notify(connected bool, addr netip.Addr) {
	for _, fn := range m.onLink {
		fn(connected, addr)
	}
}

func (m *Manager) attempt(ctx context.Context, now time.Time) {
	m.attempted = true
	m.lastAttempt = now
	m.state = Associating

	c := m.saved
	logger := m.logger.With("ssid", c.SSID)
	logger.Info("association started", "timeout", m.AttemptTimeout)

	if err := m.station.BeginStation(c.SSID, c.Passphrase); err != nil {
		logger.Warn("association failed to start", "error", err)
		m.state = Disconnected
		return
	}

	deadline := m.Now().Add(m.AttemptTimeout)
	for {
		if m.station.StationStatus() == radio.Connected {
			m.linked = true
			m.state = Connected
			addr := m.station.LocalAddr()
			logger.Info("association succeeded", "ip", addr)
			m.notify(true, addr)
			return
		}
		if !m.Now().Before(deadline) {
			logger.Warn("association timed out, will retry", "retry", m.RetryInterval)
			m.state = Disconnected
			return
		}
		if err := m.Sleep(ctx, m.AttemptPoll); err != nil {
			logger.Info("association abandoned", "error", err)
			m.state = Disconnected
			return
		}
	}
}
