//go:build linux

package iwd

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/shazow/wifiportal/radio"
)

func testObjects() managedObjects {
	return managedObjects{
		"/net/connman/iwd/0/3": {
			iwdDeviceIface: {
				"Name": dbus.MakeVariant("wlan0"),
				"Mode": dbus.MakeVariant("station"),
			},
		},
		"/net/connman/iwd/0/4": {
			iwdDeviceIface: {
				"Name": dbus.MakeVariant("ap0"),
			},
		},
		"/net/connman/iwd/0/3/486f6d654e6574_psk": {
			iwdNetworkIface: {
				"Name":   dbus.MakeVariant("HomeNet"),
				"Device": dbus.MakeVariant(dbus.ObjectPath("/net/connman/iwd/0/3")),
				"Type":   dbus.MakeVariant("psk"),
			},
		},
	}
}

func TestFindDevice(t *testing.T) {
	objs := testObjects()
	path, err := findDevice(objs, "ap0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/net/connman/iwd/0/4" {
		t.Errorf("unexpected path %s", path)
	}
	if _, err := findDevice(objs, "wlan9"); !errors.Is(err, radio.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindNetwork(t *testing.T) {
	objs := testObjects()
	if got := findNetwork(objs, "/net/connman/iwd/0/3", "HomeNet"); got != "/net/connman/iwd/0/3/486f6d654e6574_psk" {
		t.Errorf("unexpected network path %q", got)
	}
	if got := findNetwork(objs, "/net/connman/iwd/0/4", "HomeNet"); got != "" {
		t.Errorf("network matched on the wrong device: %q", got)
	}
}

func TestStatusFromStationState(t *testing.T) {
	tests := []struct {
		state    string
		haveAddr bool
		want     radio.StationStatus
	}{
		{"disconnected", false, radio.Disconnected},
		{"connecting", false, radio.Associating},
		{"connected", false, radio.Associating},
		{"connected", true, radio.Connected},
		{"roaming", true, radio.Connected},
		{"disconnecting", true, radio.Disconnected},
	}
	for _, tc := range tests {
		if got := statusFromStationState(tc.state, tc.haveAddr); got != tc.want {
			t.Errorf("statusFromStationState(%q, %v) = %s, want %s", tc.state, tc.haveAddr, got, tc.want)
		}
	}
}

func TestAuthFromNetworkType(t *testing.T) {
	tests := map[string]radio.AuthMode{
		"open":  radio.AuthOpen,
		"wep":   radio.AuthWEP,
		"psk":   radio.AuthWPA2PSK,
		"8021x": radio.AuthWPA2Enterprise,
	}
	for typ, want := range tests {
		if got := authFromNetworkType(typ); got != want {
			t.Errorf("authFromNetworkType(%q) = %d, want %d", typ, got, want)
		}
	}
}

func TestFirstIPv4(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.ParseIP("192.168.4.1"), Mask: net.CIDRMask(24, 32)},
	}
	if got := firstIPv4(addrs); got != netip.MustParseAddr("192.168.4.1") {
		t.Errorf("expected 192.168.4.1, got %s", got)
	}
	if firstIPv4(addrs[:1]).IsValid() {
		t.Error("expected no IPv4 address")
	}
}

func TestAgent(t *testing.T) {
	a := NewAgent(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := a.RequestPassphrase("/net/connman/iwd/0/3/x"); err == nil {
		t.Error("expected cancel without a passphrase")
	}
	a.SetPassphrase("hunter2hunter2")
	pass, err := a.RequestPassphrase("/net/connman/iwd/0/3/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pass != "hunter2hunter2" {
		t.Errorf("expected passphrase, got %q", pass)
	}
}

func TestStartAP_OpenNotSupported(t *testing.T) {
	r := &Radio{}
	if _, err := r.StartAP("ESP32_Config", ""); !errors.Is(err, radio.ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}
