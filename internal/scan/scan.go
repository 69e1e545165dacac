// Package scan coordinates asynchronous network scans and caches the latest
// result as a JSON document.
package scan

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shazow/wifiportal/radio"
)

const DefaultPollInterval = 300 * time.Millisecond

var emptyResults = []byte("[]")

// Scanner is the asynchronous scan half of a radio.Radio.
type Scanner interface {
	ScanStart() bool
	ScanPoll() (radio.ScanState, int)
	ScanAt(i int) (radio.ScanEntry, error)
	ScanRelease()
}

// Entry is the JSON form of a scanned network.
type Entry struct {
	SSID   string `json:"ssid"`
	RSSI   int    `json:"rssi"`
	Secure bool   `json:"secure"`
}

// Coordinator runs at most one scan at a time. It is not safe for concurrent
// use; it is driven from the main loop.
type Coordinator struct {
	PollInterval time.Duration
	Now          func() time.Time

	scanner  Scanner
	logger   *slog.Logger
	running  bool
	lastPoll time.Time
	results  []byte
}

func New(logger *slog.Logger, scanner Scanner) *Coordinator {
	return &Coordinator{
		PollInterval: DefaultPollInterval,
		Now:          time.Now,
		scanner:      scanner,
		logger:       logger.With("component", "scan"),
		results:      emptyResults,
	}
}

// Trigger starts a scan unless one is already running. It reports whether a
// new scan was started.
func (c *Coordinator) Trigger() bool {
	if c.running {
		return false
	}
	if !c.scanner.ScanStart() {
		c.logger.Warn("scan start refused")
		return false
	}
	c.running = true
	c.lastPoll = c.Now()
	c.logger.Info("scan started")
	return true
}

func (c *Coordinator) Running() bool {
	return c.running
}

// Due reports whether a running scan should be polled at now.
func (c *Coordinator) Due(now time.Time) bool {
	return c.running && now.Sub(c.lastPoll) >= c.PollInterval
}

// Poll checks on the running scan once.
func (c *Coordinator) Poll() {
	if !c.running {
		return
	}
	c.lastPoll = c.Now()

	state, n := c.scanner.ScanPoll()
	switch state {
	case radio.ScanRunning:
		return
	case radio.ScanFailed:
		c.logger.Warn("scan failed")
		c.results = emptyResults
	case radio.ScanDone:
		c.results = c.collect(n)
		c.scanner.ScanRelease()
		c.logger.Info("scan done", "networks", n)
	}
	c.running = false
}

func (c *Coordinator) collect(n int) []byte {
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := c.scanner.ScanAt(i)
		if err != nil {
			c.logger.Error("failed to read scan result", "index", i, "error", err)
			return emptyResults
		}
		entries = append(entries, Entry{SSID: e.SSID, RSSI: e.RSSI, Secure: e.Auth.Secure()})
	}
	b, err := Marshal(entries)
	if err != nil {
		c.logger.Error("failed to encode scan results", "error", err)
		return emptyResults
	}
	return b
}

// Results is the latest completed scan as a JSON array. Callers must not
// modify it.
func (c *Coordinator) Results() []byte {
	return c.results
}

// Marshal encodes v as compact JSON without HTML escaping. Strings are
// emitted as UTF-8; invalid bytes, as in a Latin-1 SSID, become U+FFFD.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
