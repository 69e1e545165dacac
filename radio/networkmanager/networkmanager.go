//go:build linux

package networkmanager

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/Wifx/gonetworkmanager/v3"
	"github.com/google/uuid"
	"github.com/shazow/wifiportal/radio"
)

const (
	apProfile  = "wifiportal-ap"
	staProfile = "wifiportal-sta"

	activateTimeout = 10 * time.Second
	activatePoll    = 200 * time.Millisecond
	scanTimeout     = 15 * time.Second
)

// NetworkManager security bits, see NM80211ApFlags and NM80211ApSecurityFlags.
const (
	apFlagsPrivacy = 0x1
	keyMgmtPSK     = 0x100
	keyMgmt8021X   = 0x200
	keyMgmtSAE     = 0x400
)

// Options selects the wireless interfaces used for each role. NetworkManager
// cannot run an access point and a station on the same device, so they must
// differ.
type Options struct {
	APInterface  string
	STAInterface string
}

// Radio implements radio.Radio using D-Bus to communicate with NetworkManager.
type Radio struct {
	NM       gonetworkmanager.NetworkManager
	Settings gonetworkmanager.Settings
	Options

	logger  *slog.Logger
	devices map[string]gonetworkmanager.DeviceWireless

	scanning    bool
	scanSince   int64
	scanStarted time.Time
	results     []radio.ScanEntry
}

// New creates a new networkmanager.Radio.
func New(logger *slog.Logger, opts Options) (*Radio, error) {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create network manager client: %w", radio.ErrNotAvailable)
	}

	settings, err := gonetworkmanager.NewSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", radio.ErrOperationFailed)
	}

	return &Radio{
		NM:       nm,
		Settings: settings,
		Options:  opts,
		logger:   logger.With("backend", "networkmanager"),
		devices:  make(map[string]gonetworkmanager.DeviceWireless),
	}, nil
}

func (r *Radio) getWirelessDevice(iface string) (gonetworkmanager.DeviceWireless, error) {
	if dev, ok := r.devices[iface]; ok {
		return dev, nil
	}
	device, err := r.NM.GetDeviceByIpIface(iface)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", iface, radio.ErrNotFound)
	}
	dev, ok := device.(gonetworkmanager.DeviceWireless)
	if !ok {
		return nil, fmt.Errorf("device %s is not wireless: %w", iface, radio.ErrNotSupported)
	}
	if r.devices == nil {
		r.devices = make(map[string]gonetworkmanager.DeviceWireless)
	}
	r.devices[iface] = dev
	return dev, nil
}

func (r *Radio) EnableDualMode() error {
	if r.APInterface == r.STAInterface {
		return fmt.Errorf("access point and station share %s: %w", r.APInterface, radio.ErrNotSupported)
	}
	enabled, err := r.NM.GetPropertyWirelessEnabled()
	if err != nil {
		return fmt.Errorf("failed to read wireless state: %w", radio.ErrOperationFailed)
	}
	if !enabled {
		r.logger.Info("enabling wireless")
		if err := r.NM.SetPropertyWirelessEnabled(true); err != nil {
			return fmt.Errorf("%w: %w", radio.ErrWirelessDisabled, err)
		}
	}
	for _, iface := range []string{r.APInterface, r.STAInterface} {
		if _, err := r.getWirelessDevice(iface); err != nil {
			return err
		}
	}
	return nil
}

func (r *Radio) StartAP(ssid, passphrase string) (netip.Addr, error) {
	dev, err := r.getWirelessDevice(r.APInterface)
	if err != nil {
		return netip.Addr{}, err
	}
	conn, err := r.upsertProfile(apSettings(r.APInterface, ssid, passphrase))
	if err != nil {
		return netip.Addr{}, err
	}
	if _, err := r.NM.ActivateConnection(conn, dev, nil); err != nil {
		return netip.Addr{}, fmt.Errorf("failed to activate access point: %w", err)
	}

	deadline := time.Now().Add(activateTimeout)
	for {
		state, err := dev.GetPropertyState()
		if err == nil && state == gonetworkmanager.NmDeviceStateActivated {
			break
		}
		if time.Now().After(deadline) {
			return netip.Addr{}, fmt.Errorf("access point did not come up: %w", radio.ErrOperationFailed)
		}
		time.Sleep(activatePoll)
	}
	return deviceAddr(dev), nil
}

func (r *Radio) BeginStation(ssid, passphrase string) error {
	dev, err := r.getWirelessDevice(r.STAInterface)
	if err != nil {
		return err
	}
	conn, err := r.upsertProfile(stationSettings(r.STAInterface, ssid, passphrase))
	if err != nil {
		return err
	}
	if _, err := r.NM.ActivateConnection(conn, dev, nil); err != nil {
		return fmt.Errorf("failed to activate station: %w", err)
	}
	return nil
}

func (r *Radio) StationStatus() radio.StationStatus {
	dev, err := r.getWirelessDevice(r.STAInterface)
	if err != nil {
		return radio.Disconnected
	}
	state, err := dev.GetPropertyState()
	if err != nil {
		return radio.Disconnected
	}
	return statusFromDeviceState(state)
}

func (r *Radio) StationSSID() string {
	if r.StationStatus() != radio.Connected {
		return ""
	}
	dev, err := r.getWirelessDevice(r.STAInterface)
	if err != nil {
		return ""
	}
	ap, err := dev.GetPropertyActiveAccessPoint()
	if err != nil || ap == nil {
		return ""
	}
	ssid, _ := ap.GetPropertySSID()
	return ssid
}

func (r *Radio) LocalAddr() netip.Addr {
	if r.StationStatus() != radio.Connected {
		return netip.Addr{}
	}
	dev, err := r.getWirelessDevice(r.STAInterface)
	if err != nil {
		return netip.Addr{}
	}
	return deviceAddr(dev)
}

func (r *Radio) ScanStart() bool {
	if r.scanning {
		return false
	}
	dev, err := r.getWirelessDevice(r.STAInterface)
	if err != nil {
		r.logger.Warn("scan refused", "error", err)
		return false
	}
	last, err := dev.GetPropertyLastScan()
	if err != nil {
		r.logger.Warn("scan refused", "error", err)
		return false
	}
	if err := dev.RequestScan(); err != nil {
		r.logger.Warn("scan refused", "error", err)
		return false
	}
	r.scanning = true
	r.scanSince = last
	r.scanStarted = time.Now()
	return true
}

func (r *Radio) ScanPoll() (radio.ScanState, int) {
	if !r.scanning {
		return radio.ScanFailed, 0
	}
	dev, err := r.getWirelessDevice(r.STAInterface)
	if err != nil {
		r.scanning = false
		return radio.ScanFailed, 0
	}
	last, err := dev.GetPropertyLastScan()
	if err != nil {
		r.scanning = false
		return radio.ScanFailed, 0
	}
	if last == r.scanSince {
		if time.Since(r.scanStarted) > scanTimeout {
			r.scanning = false
			return radio.ScanFailed, 0
		}
		return radio.ScanRunning, 0
	}

	r.scanning = false
	aps, err := dev.GetAccessPoints()
	if err != nil {
		return radio.ScanFailed, 0
	}
	r.results = r.results[:0]
	for _, ap := range aps {
		ssid, err := ap.GetPropertySSID()
		if err != nil {
			continue
		}
		strength, _ := ap.GetPropertyStrength()
		flags, _ := ap.GetPropertyFlags()
		wpaFlags, _ := ap.GetPropertyWPAFlags()
		rsnFlags, _ := ap.GetPropertyRSNFlags()
		r.results = append(r.results, radio.ScanEntry{
			SSID: ssid,
			RSSI: radio.StrengthToRSSI(strength),
			Auth: authFromFlags(uint32(flags), uint32(wpaFlags), uint32(rsnFlags)),
		})
	}
	return radio.ScanDone, len(r.results)
}

func (r *Radio) ScanAt(i int) (radio.ScanEntry, error) {
	if i < 0 || i >= len(r.results) {
		return radio.ScanEntry{}, fmt.Errorf("entry %d: %w", i, radio.ErrIndexOutOfRange)
	}
	return r.results[i], nil
}

func (r *Radio) ScanRelease() {
	r.results = nil
}

// upsertProfile updates the saved connection with the same id in place, or
// adds it if there is none, so reconfiguring never accumulates profiles.
func (r *Radio) upsertProfile(settings gonetworkmanager.ConnectionSettings) (gonetworkmanager.Connection, error) {
	id, _ := settings["connection"]["id"].(string)
	conns, err := r.Settings.ListConnections()
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", radio.ErrOperationFailed)
	}
	for _, conn := range conns {
		existing, err := conn.GetSettings()
		if err != nil {
			continue
		}
		if existingID, _ := existing["connection"]["id"].(string); existingID != id {
			continue
		}
		settings["connection"]["uuid"] = existing["connection"]["uuid"]
		applyUpdateWorkaround(settings)
		if err := conn.Update(settings); err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", id, err)
		}
		return conn, nil
	}

	settings["connection"]["uuid"] = uuid.New().String()
	conn, err := r.Settings.AddConnection(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to add %s: %w", id, err)
	}
	r.logger.Debug("created connection profile", "id", id)
	return conn, nil
}

func apSettings(iface, ssid, passphrase string) gonetworkmanager.ConnectionSettings {
	s := gonetworkmanager.ConnectionSettings{
		"connection": {
			"id":             apProfile,
			"type":           "802-11-wireless",
			"interface-name": iface,
			"autoconnect":    true,
		},
		"802-11-wireless": {
			"mode": "ap",
			"ssid": []byte(ssid),
		},
		"ipv4": {"method": "shared"},
		"ipv6": {"method": "ignore"},
	}
	if !radio.APIsOpen(passphrase) {
		s["802-11-wireless"]["security"] = "802-11-wireless-security"
		s["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      passphrase,
		}
	}
	return s
}

func stationSettings(iface, ssid, passphrase string) gonetworkmanager.ConnectionSettings {
	s := gonetworkmanager.ConnectionSettings{
		"connection": {
			"id":             staProfile,
			"type":           "802-11-wireless",
			"interface-name": iface,
			"autoconnect":    false,
		},
		"802-11-wireless": {
			"mode": "infrastructure",
			"ssid": []byte(ssid),
		},
		"ipv4": {"method": "auto"},
		"ipv6": {"method": "auto"},
	}
	switch {
	case passphrase == "":
		// Open network
	case len(passphrase) < radio.MinPassphraseLen:
		// Too short for WPA, the only remaining option is a WEP key.
		s["802-11-wireless"]["security"] = "802-11-wireless-security"
		s["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt":     "none",
			"wep-key0":     passphrase,
			"wep-key-type": uint32(1),
		}
	default:
		s["802-11-wireless"]["security"] = "802-11-wireless-security"
		s["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      passphrase,
		}
	}
	return s
}

// applyUpdateWorkaround modifies the settings map to workaround D-Bus type errors.
//
// NetworkManager's D-Bus API can return ipv6.addresses and ipv6.routes as an
// array of array of variants ('aav'), but expects them as an array of structs
// on update. Removing them avoids a type mismatch when calling Update.
//
// See: https://github.com/Wifx/gonetworkmanager/issues/13
func applyUpdateWorkaround(settings gonetworkmanager.ConnectionSettings) {
	if ipv6Settings, ok := settings["ipv6"]; ok {
		delete(ipv6Settings, "addresses")
		delete(ipv6Settings, "routes")
	}
}

func statusFromDeviceState(state gonetworkmanager.NmDeviceState) radio.StationStatus {
	switch {
	case state == gonetworkmanager.NmDeviceStateActivated:
		return radio.Connected
	case state > gonetworkmanager.NmDeviceStateDisconnected && state < gonetworkmanager.NmDeviceStateActivated:
		return radio.Associating
	default:
		return radio.Disconnected
	}
}

func authFromFlags(flags, wpaFlags, rsnFlags uint32) radio.AuthMode {
	switch {
	case rsnFlags&keyMgmtSAE != 0 && rsnFlags&keyMgmtPSK != 0:
		return radio.AuthWPA2WPA3PSK
	case rsnFlags&keyMgmtSAE != 0:
		return radio.AuthWPA3PSK
	case (rsnFlags|wpaFlags)&keyMgmt8021X != 0:
		return radio.AuthWPA2Enterprise
	case rsnFlags&keyMgmtPSK != 0 && wpaFlags&keyMgmtPSK != 0:
		return radio.AuthWPAWPA2PSK
	case rsnFlags&keyMgmtPSK != 0:
		return radio.AuthWPA2PSK
	case wpaFlags&keyMgmtPSK != 0:
		return radio.AuthWPAPSK
	case flags&apFlagsPrivacy != 0:
		return radio.AuthWEP
	default:
		return radio.AuthOpen
	}
}

func deviceAddr(dev gonetworkmanager.Device) netip.Addr {
	cfg, err := dev.GetPropertyIP4Config()
	if err != nil || cfg == nil {
		return netip.Addr{}
	}
	data, err := cfg.GetPropertyAddressData()
	if err != nil {
		return netip.Addr{}
	}
	return firstAddr(data)
}

func firstAddr(data []gonetworkmanager.IP4AddressData) netip.Addr {
	for _, d := range data {
		if addr, err := netip.ParseAddr(d.Address); err == nil {
			return addr
		}
	}
	return netip.Addr{}
}
