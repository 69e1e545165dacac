package radio

import (
	"fmt"
	"net/netip"
)

// Unavailable stands in for a radio that could not be opened. It never
// associates and refuses to scan, so the rest of the portal keeps answering.
type Unavailable struct {
	// Err is the reason the real radio is missing.
	Err error
}

func (u Unavailable) err() error {
	if u.Err == nil {
		return ErrNotAvailable
	}
	return fmt.Errorf("%w: %w", ErrNotAvailable, u.Err)
}

func (u Unavailable) EnableDualMode() error { return u.err() }

func (u Unavailable) StartAP(ssid, passphrase string) (netip.Addr, error) {
	return netip.Addr{}, u.err()
}

func (u Unavailable) BeginStation(ssid, passphrase string) error { return u.err() }

func (Unavailable) StationStatus() StationStatus { return Disconnected }
func (Unavailable) StationSSID() string          { return "" }
func (Unavailable) LocalAddr() netip.Addr        { return netip.Addr{} }
func (Unavailable) ScanStart() bool              { return false }
func (Unavailable) ScanPoll() (ScanState, int)   { return ScanFailed, 0 }
func (Unavailable) ScanRelease()                 {}

func (Unavailable) ScanAt(i int) (ScanEntry, error) {
	return ScanEntry{}, fmt.Errorf("entry %d: %w", i, ErrIndexOutOfRange)
}
