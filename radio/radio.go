// Package radio describes a WiFi radio that hosts an access point and joins
// an infrastructure network at the same time.
package radio

import "net/netip"

// StationStatus is the link state of the station side of the radio.
type StationStatus int

const (
	Disconnected StationStatus = iota
	Associating
	Connected
)

func (s StationStatus) String() string {
	switch s {
	case Associating:
		return "associating"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ScanState is the result of polling an asynchronous scan.
type ScanState int

const (
	ScanRunning ScanState = iota
	ScanFailed
	ScanDone
)

func (s ScanState) String() string {
	switch s {
	case ScanFailed:
		return "failed"
	case ScanDone:
		return "done"
	default:
		return "running"
	}
}

// AuthMode is the raw encryption code reported for a scanned network.
type AuthMode int

const (
	AuthOpen AuthMode = iota
	AuthWEP
	AuthWPAPSK
	AuthWPA2PSK
	AuthWPAWPA2PSK
	AuthWPA2Enterprise
	AuthWPA3PSK
	AuthWPA2WPA3PSK
)

// Secure reports whether joining requires any kind of credential.
func (a AuthMode) Secure() bool {
	return a != AuthOpen
}

// ScanEntry is one network observed by a completed scan.
type ScanEntry struct {
	SSID string
	RSSI int // dBm
	Auth AuthMode
}

// MinPassphraseLen is the shortest passphrase the radio accepts for a secured
// access point.
const MinPassphraseLen = 8

// APIsOpen reports whether an access point started with passphrase comes up
// without security.
func APIsOpen(passphrase string) bool {
	return len(passphrase) < MinPassphraseLen
}

// Radio is the dual-role radio. Callers own all synchronization: a Radio is
// driven from a single goroutine.
//
// There is deliberately no way to stop the access point once started.
type Radio interface {
	// EnableDualMode puts the radio in combined AP+STA mode.
	EnableDualMode() error
	// StartAP brings up the access point and returns its address. A
	// passphrase shorter than MinPassphraseLen brings it up open.
	StartAP(ssid, passphrase string) (netip.Addr, error)

	// BeginStation requests association and returns without waiting.
	BeginStation(ssid, passphrase string) error
	StationStatus() StationStatus
	// StationSSID is the joined network, or "" unless connected.
	StationSSID() string
	// LocalAddr is the station address. It is only valid when connected.
	LocalAddr() netip.Addr

	// ScanStart begins a non-blocking scan. It returns false when a scan is
	// already in flight or the radio refuses.
	ScanStart() bool
	ScanPoll() (ScanState, int)
	// ScanAt returns entry i of a completed scan, 0 <= i < n.
	ScanAt(i int) (ScanEntry, error)
	// ScanRelease frees the scan buffer. It must be called once after each
	// ScanDone.
	ScanRelease()
}
