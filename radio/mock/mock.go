// Package mock is a simulated dual-role radio.
package mock

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/shazow/wifiportal/radio"
)

var DefaultActionSleep = 20 * time.Millisecond

// Network is a simulated infrastructure network in range of the radio.
type Network struct {
	SSID       string
	RSSI       int
	Auth       radio.AuthMode
	Passphrase string
}

// Counts is a snapshot of how often the radio was driven.
type Counts struct {
	APStarts      int
	ScanStarts    int
	ScanReleases  int
	StationBegins int
	StatusQueries int
}

// Radio is a mock implementation of radio.Radio for testing. Exported fields
// configure the simulation and must be set before the radio is shared.
type Radio struct {
	Networks []Network

	// ScanPolls is the number of polls that report a scan as still running.
	ScanPolls int
	// JoinPolls is the number of status queries spent associating.
	JoinPolls int
	// FailNextScan makes the next scan end in failure.
	FailNextScan bool
	// RefuseScan makes every ScanStart fail.
	RefuseScan bool
	// ScanAtError is returned by ScanAt when set.
	ScanAtError error

	APAddr       netip.Addr
	AssignedAddr netip.Addr

	DualModeError     error
	StartAPError      error
	BeginStationError error

	// ActionSleep is a delay before every mutating action, to better emulate a
	// real-world radio. Set to 0 during testing.
	ActionSleep time.Duration

	mu       sync.Mutex
	counts   Counts
	dualMode bool
	apSSID   string
	apOpen   bool

	scanning  bool
	pollsLeft int
	results   []radio.ScanEntry
	held      bool

	status   radio.StationStatus
	joining  Network
	joinLeft int
	joined   string
}

// New creates a mock radio with a list of fun wifi networks.
func New() *Radio {
	return &Radio{
		Networks: []Network{
			{SSID: "HideYoKidsHideYoWiFi", RSSI: -48, Auth: radio.AuthWPA2PSK, Passphrase: "hidden123"},
			{SSID: "TacoBoutAGoodSignal", RSSI: -41, Auth: radio.AuthWPA2PSK, Passphrase: "tacotuesday"},
			{SSID: "Password is password", RSSI: -57, Auth: radio.AuthWPAWPA2PSK, Passphrase: "password"},
			{SSID: "Unencrypted_Honeypot", RSSI: -66, Auth: radio.AuthOpen},
			{SSID: "NeverGonnaGiveYouIP", RSSI: -73, Auth: radio.AuthWEP, Passphrase: "rickroll1"},
			{SSID: "Dunder MiffLAN", RSSI: -79, Auth: radio.AuthWPA3PSK, Passphrase: "thatswhatshesaid"},
			{SSID: "", RSSI: -88, Auth: radio.AuthWPA2PSK},
		},
		ScanPolls:    3,
		JoinPolls:    5,
		APAddr:       netip.MustParseAddr("192.168.4.1"),
		AssignedAddr: netip.MustParseAddr("192.168.1.42"),
		ActionSleep:  DefaultActionSleep,
	}
}

// Counts returns how often the radio has been driven so far.
func (r *Radio) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

// AP reports the running access point, if any.
func (r *Radio) AP() (ssid string, open bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apSSID, r.apOpen, r.counts.APStarts > 0
}

// Drop simulates losing the station link.
func (r *Radio) Drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = radio.Disconnected
	r.joined = ""
}

func (r *Radio) EnableDualMode() error {
	time.Sleep(r.ActionSleep)

	if r.DualModeError != nil {
		return r.DualModeError
	}
	r.mu.Lock()
	r.dualMode = true
	r.mu.Unlock()
	return nil
}

func (r *Radio) StartAP(ssid, passphrase string) (netip.Addr, error) {
	time.Sleep(r.ActionSleep)

	if r.StartAPError != nil {
		return netip.Addr{}, r.StartAPError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dualMode {
		return netip.Addr{}, fmt.Errorf("access point requires dual mode: %w", radio.ErrOperationFailed)
	}
	r.apSSID = ssid
	r.apOpen = radio.APIsOpen(passphrase)
	r.counts.APStarts++
	return r.APAddr, nil
}

func (r *Radio) BeginStation(ssid, passphrase string) error {
	time.Sleep(r.ActionSleep)

	if r.BeginStationError != nil {
		return r.BeginStationError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.StationBegins++
	r.joining = Network{SSID: ssid, Passphrase: passphrase}
	r.joinLeft = r.JoinPolls
	r.joined = ""
	r.status = radio.Associating
	return nil
}

// accepts reports whether the requested join matches a network in range.
func (r *Radio) accepts(req Network) bool {
	for _, n := range r.Networks {
		if n.SSID == "" || n.SSID != req.SSID {
			continue
		}
		if !n.Auth.Secure() || n.Passphrase == req.Passphrase {
			return true
		}
	}
	return false
}

func (r *Radio) StationStatus() radio.StationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.StatusQueries++
	if r.status != radio.Associating {
		return r.status
	}
	if r.joinLeft > 0 {
		r.joinLeft--
		return radio.Associating
	}
	if r.accepts(r.joining) {
		r.status = radio.Connected
		r.joined = r.joining.SSID
	} else {
		r.status = radio.Disconnected
	}
	return r.status
}

func (r *Radio) StationSSID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joined
}

func (r *Radio) LocalAddr() netip.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != radio.Connected {
		return netip.Addr{}
	}
	return r.AssignedAddr
}

func (r *Radio) ScanStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanning || r.RefuseScan {
		return false
	}
	r.counts.ScanStarts++
	r.scanning = true
	r.pollsLeft = r.ScanPolls
	return true
}

func (r *Radio) ScanPoll() (radio.ScanState, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.scanning {
		return radio.ScanFailed, 0
	}
	if r.pollsLeft > 0 {
		r.pollsLeft--
		return radio.ScanRunning, 0
	}
	r.scanning = false
	if r.FailNextScan {
		r.FailNextScan = false
		return radio.ScanFailed, 0
	}
	r.results = r.results[:0]
	for _, n := range r.Networks {
		r.results = append(r.results, radio.ScanEntry{SSID: n.SSID, RSSI: n.RSSI, Auth: n.Auth})
	}
	r.held = true
	return radio.ScanDone, len(r.results)
}

func (r *Radio) ScanAt(i int) (radio.ScanEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ScanAtError != nil {
		return radio.ScanEntry{}, r.ScanAtError
	}
	if !r.held || i < 0 || i >= len(r.results) {
		return radio.ScanEntry{}, fmt.Errorf("entry %d: %w", i, radio.ErrIndexOutOfRange)
	}
	return r.results[i], nil
}

func (r *Radio) ScanRelease() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.ScanReleases++
	r.results = nil
	r.held = false
}
