//go:build linux

// WARNING: This implementation is only tested against a mocked bus.
package iwd

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/shazow/wifiportal/radio"
)

const (
	activateTimeout = 10 * time.Second
	activatePoll    = 200 * time.Millisecond
)

// IWD constants
const (
	iwdDest              = "net.connman.iwd"
	iwdPath              = "/"
	iwdManagerPath       = "/net/connman/iwd"
	iwdDeviceIface       = "net.connman.iwd.Device"
	iwdNetworkIface      = "net.connman.iwd.Network"
	iwdStationIface      = "net.connman.iwd.Station"
	iwdAccessPointIface  = "net.connman.iwd.AccessPoint"
	iwdAgentManagerIface = "net.connman.iwd.AgentManager"
	iwdAgentIface        = "net.connman.iwd.Agent"

	objectManagerIface = "org.freedesktop.DBus.ObjectManager"
	propertiesIface    = "org.freedesktop.DBus.Properties"

	agentPath = dbus.ObjectPath("/wifiportal/agent")
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

type orderedNetwork struct {
	Path   dbus.ObjectPath
	Signal int16
}

// Options selects the wireless interfaces used for each role.
type Options struct {
	APInterface  string
	STAInterface string
}

// Radio implements radio.Radio using iwd.
type Radio struct {
	Options

	conn   *dbus.Conn
	logger *slog.Logger
	agent  *Agent

	apDevice  dbus.ObjectPath
	staDevice dbus.ObjectPath

	scanning bool
	results  []radio.ScanEntry
	joinCall *dbus.Call
}

// New creates a new iwd.Radio and registers its passphrase agent.
func New(logger *slog.Logger, opts Options) (*Radio, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus: %w", radio.ErrNotAvailable)
	}
	r := &Radio{
		Options: opts,
		conn:    conn,
		logger:  logger.With("backend", "iwd"),
	}
	if _, err := r.managedObjects(); err != nil {
		return nil, fmt.Errorf("iwd is not available: %w", radio.ErrNotAvailable)
	}

	r.agent = NewAgent(r.logger)
	if err := conn.Export(r.agent, agentPath, iwdAgentIface); err != nil {
		return nil, fmt.Errorf("failed to export agent: %w", err)
	}
	err = conn.Object(iwdDest, iwdManagerPath).Call(iwdAgentManagerIface+".RegisterAgent", 0, agentPath).Err
	if err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}
	return r, nil
}

func (r *Radio) EnableDualMode() error {
	objs, err := r.managedObjects()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", radio.ErrOperationFailed)
	}
	if r.apDevice, err = findDevice(objs, r.APInterface); err != nil {
		return err
	}
	if r.staDevice, err = findDevice(objs, r.STAInterface); err != nil {
		return err
	}
	if r.apDevice == r.staDevice {
		return fmt.Errorf("access point and station share %s: %w", r.APInterface, radio.ErrNotSupported)
	}
	for _, dev := range []dbus.ObjectPath{r.apDevice, r.staDevice} {
		if err := r.setProperty(dev, iwdDeviceIface, "Powered", true); err != nil {
			return fmt.Errorf("%w: %w", radio.ErrWirelessDisabled, err)
		}
	}
	if mode, _ := objs[r.staDevice][iwdDeviceIface]["Mode"].Value().(string); mode != "station" {
		if err := r.setProperty(r.staDevice, iwdDeviceIface, "Mode", "station"); err != nil {
			return fmt.Errorf("failed to set station mode: %w", err)
		}
	}
	return nil
}

func (r *Radio) StartAP(ssid, passphrase string) (netip.Addr, error) {
	if radio.APIsOpen(passphrase) {
		return netip.Addr{}, fmt.Errorf("iwd cannot host an open access point: %w", radio.ErrNotSupported)
	}
	if r.apDevice == "" {
		return netip.Addr{}, fmt.Errorf("access point device: %w", radio.ErrNotFound)
	}
	if err := r.setProperty(r.apDevice, iwdDeviceIface, "Mode", "ap"); err != nil {
		return netip.Addr{}, fmt.Errorf("failed to set ap mode: %w", err)
	}
	err := r.conn.Object(iwdDest, r.apDevice).Call(iwdAccessPointIface+".Start", 0, ssid, passphrase).Err
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to start access point: %w", err)
	}

	deadline := time.Now().Add(activateTimeout)
	for {
		if addr := interfaceAddr(r.APInterface); addr.IsValid() {
			return addr, nil
		}
		if time.Now().After(deadline) {
			return netip.Addr{}, fmt.Errorf("access point has no address: %w", radio.ErrOperationFailed)
		}
		time.Sleep(activatePoll)
	}
}

func (r *Radio) BeginStation(ssid, passphrase string) error {
	if r.staDevice == "" {
		return fmt.Errorf("station device: %w", radio.ErrNotFound)
	}
	objs, err := r.managedObjects()
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", radio.ErrOperationFailed)
	}
	r.agent.SetPassphrase(passphrase)

	if network := findNetwork(objs, r.staDevice, ssid); network != "" {
		r.joinCall = r.conn.Object(iwdDest, network).Go(iwdNetworkIface+".Connect", 0, nil)
	} else {
		r.joinCall = r.conn.Object(iwdDest, r.staDevice).Go(iwdStationIface+".ConnectHidden", 0, nil, ssid)
	}
	return nil
}

func (r *Radio) StationStatus() radio.StationStatus {
	if r.joinCall != nil {
		select {
		case call := <-r.joinCall.Done:
			if call.Err != nil {
				r.logger.Warn("station connect failed", "error", call.Err)
			}
			r.joinCall = nil
		default:
		}
	}
	if r.staDevice == "" {
		return radio.Disconnected
	}
	v, err := r.conn.Object(iwdDest, r.staDevice).GetProperty(iwdStationIface + ".State")
	if err != nil {
		return radio.Disconnected
	}
	state, _ := v.Value().(string)
	return statusFromStationState(state, interfaceAddr(r.STAInterface).IsValid())
}

func (r *Radio) StationSSID() string {
	if r.StationStatus() != radio.Connected {
		return ""
	}
	v, err := r.conn.Object(iwdDest, r.staDevice).GetProperty(iwdStationIface + ".ConnectedNetwork")
	if err != nil {
		return ""
	}
	network, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return ""
	}
	name, err := r.conn.Object(iwdDest, network).GetProperty(iwdNetworkIface + ".Name")
	if err != nil {
		return ""
	}
	ssid, _ := name.Value().(string)
	return ssid
}

func (r *Radio) LocalAddr() netip.Addr {
	if r.StationStatus() != radio.Connected {
		return netip.Addr{}
	}
	return interfaceAddr(r.STAInterface)
}

func (r *Radio) ScanStart() bool {
	if r.scanning || r.staDevice == "" {
		return false
	}
	if err := r.conn.Object(iwdDest, r.staDevice).Call(iwdStationIface+".Scan", 0).Err; err != nil {
		r.logger.Warn("scan refused", "error", err)
		return false
	}
	r.scanning = true
	return true
}

func (r *Radio) ScanPoll() (radio.ScanState, int) {
	if !r.scanning {
		return radio.ScanFailed, 0
	}
	station := r.conn.Object(iwdDest, r.staDevice)
	v, err := station.GetProperty(iwdStationIface + ".Scanning")
	if err != nil {
		r.scanning = false
		return radio.ScanFailed, 0
	}
	if busy, _ := v.Value().(bool); busy {
		return radio.ScanRunning, 0
	}

	r.scanning = false
	var networks []orderedNetwork
	if err := station.Call(iwdStationIface+".GetOrderedNetworks", 0).Store(&networks); err != nil {
		return radio.ScanFailed, 0
	}
	r.results = r.results[:0]
	for _, n := range networks {
		obj := r.conn.Object(iwdDest, n.Path)
		nameVar, err := obj.GetProperty(iwdNetworkIface + ".Name")
		if err != nil {
			continue
		}
		typeVar, _ := obj.GetProperty(iwdNetworkIface + ".Type")
		ssid, _ := nameVar.Value().(string)
		typ, _ := typeVar.Value().(string)
		r.results = append(r.results, radio.ScanEntry{
			SSID: ssid,
			RSSI: radio.MilliBelToRSSI(n.Signal),
			Auth: authFromNetworkType(typ),
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

// --- iwd Helper Functions ---

func (r *Radio) managedObjects() (managedObjects, error) {
	var objs managedObjects
	err := r.conn.Object(iwdDest, iwdPath).Call(objectManagerIface+".GetManagedObjects", 0).Store(&objs)
	return objs, err
}

func (r *Radio) setProperty(path dbus.ObjectPath, iface, name string, value interface{}) error {
	return r.conn.Object(iwdDest, path).Call(propertiesIface+".Set", 0, iface, name, dbus.MakeVariant(value)).Err
}

func findDevice(objs managedObjects, name string) (dbus.ObjectPath, error) {
	for path, ifaces := range objs {
		props, ok := ifaces[iwdDeviceIface]
		if !ok {
			continue
		}
		if n, _ := props["Name"].Value().(string); n == name {
			return path, nil
		}
	}
	return "", fmt.Errorf("device %s: %w", name, radio.ErrNotFound)
}

func findNetwork(objs managedObjects, device dbus.ObjectPath, ssid string) dbus.ObjectPath {
	for path, ifaces := range objs {
		props, ok := ifaces[iwdNetworkIface]
		if !ok {
			continue
		}
		dev, _ := props["Device"].Value().(dbus.ObjectPath)
		name, _ := props["Name"].Value().(string)
		if dev == device && name == ssid {
			return path
		}
	}
	return ""
}

func statusFromStationState(state string, haveAddr bool) radio.StationStatus {
	switch state {
	case "connected", "roaming":
		if haveAddr {
			return radio.Connected
		}
		return radio.Associating
	case "connecting":
		return radio.Associating
	default:
		return radio.Disconnected
	}
}

func authFromNetworkType(typ string) radio.AuthMode {
	switch typ {
	case "open":
		return radio.AuthOpen
	case "wep":
		return radio.AuthWEP
	case "8021x":
		return radio.AuthWPA2Enterprise
	default:
		return radio.AuthWPA2PSK
	}
}

func interfaceAddr(name string) netip.Addr {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return netip.Addr{}
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}
	}
	return firstIPv4(addrs)
}

func firstIPv4(addrs []net.Addr) netip.Addr {
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(ipNet.IP.To4()); ok && addr.Is4() {
			return addr
		}
	}
	return netip.Addr{}
}
