package mock

import (
	"errors"
	"testing"

	"github.com/shazow/wifiportal/radio"
)

func init() {
	DefaultActionSleep = 0
}

var _ radio.Radio = (*Radio)(nil)

func TestStartAPRequiresDualMode(t *testing.T) {
	r := New()
	if _, err := r.StartAP("ESP32_Config", "configureme"); !errors.Is(err, radio.ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
	if err := r.EnableDualMode(); err != nil {
		t.Fatalf("EnableDualMode failed: %v", err)
	}
	addr, err := r.StartAP("ESP32_Config", "short")
	if err != nil {
		t.Fatalf("StartAP failed: %v", err)
	}
	if addr != r.APAddr {
		t.Errorf("expected %s, got %s", r.APAddr, addr)
	}
	ssid, open, ok := r.AP()
	if !ok || ssid != "ESP32_Config" || !open {
		t.Errorf("unexpected AP state: ssid=%q open=%v ok=%v", ssid, open, ok)
	}
}

func TestScanLifecycle(t *testing.T) {
	r := New()
	r.ScanPolls = 2

	if !r.ScanStart() {
		t.Fatal("first ScanStart refused")
	}
	if r.ScanStart() {
		t.Fatal("second ScanStart accepted while running")
	}
	for i := 0; i < 2; i++ {
		if state, _ := r.ScanPoll(); state != radio.ScanRunning {
			t.Fatalf("poll %d: expected running, got %s", i, state)
		}
	}
	state, n := r.ScanPoll()
	if state != radio.ScanDone || n != len(r.Networks) {
		t.Fatalf("expected done(%d), got %s(%d)", len(r.Networks), state, n)
	}
	entry, err := r.ScanAt(0)
	if err != nil {
		t.Fatalf("ScanAt failed: %v", err)
	}
	if entry.SSID != r.Networks[0].SSID {
		t.Errorf("expected %q, got %q", r.Networks[0].SSID, entry.SSID)
	}
	if _, err := r.ScanAt(n); !errors.Is(err, radio.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	r.ScanRelease()
	if _, err := r.ScanAt(0); err == nil {
		t.Error("ScanAt succeeded after release")
	}
	if c := r.Counts(); c.ScanStarts != 1 || c.ScanReleases != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestFailNextScan(t *testing.T) {
	r := New()
	r.ScanPolls = 0
	r.FailNextScan = true
	r.ScanStart()
	if state, _ := r.ScanPoll(); state != radio.ScanFailed {
		t.Fatalf("expected failed, got %s", state)
	}
	r.ScanStart()
	if state, _ := r.ScanPoll(); state != radio.ScanDone {
		t.Fatalf("expected done after one failure, got %s", state)
	}
}

func TestStationJoin(t *testing.T) {
	tests := []struct {
		name string
		ssid string
		pass string
		want radio.StationStatus
	}{
		{"correct passphrase", "Password is password", "password", radio.Connected},
		{"wrong passphrase", "Password is password", "hunter2", radio.Disconnected},
		{"open network", "Unencrypted_Honeypot", "", radio.Connected},
		{"out of range", "Nope", "whatever", radio.Disconnected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			r.JoinPolls = 1
			if err := r.BeginStation(tc.ssid, tc.pass); err != nil {
				t.Fatalf("BeginStation failed: %v", err)
			}
			if s := r.StationStatus(); s != radio.Associating {
				t.Fatalf("expected associating, got %s", s)
			}
			if s := r.StationStatus(); s != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, s)
			}
			if tc.want == radio.Connected {
				if r.StationSSID() != tc.ssid {
					t.Errorf("expected ssid %q, got %q", tc.ssid, r.StationSSID())
				}
				if !r.LocalAddr().IsValid() {
					t.Error("expected a valid address once connected")
				}
			}
		})
	}
}

func TestDrop(t *testing.T) {
	r := New()
	r.JoinPolls = 0
	r.BeginStation("Unencrypted_Honeypot", "")
	if r.StationStatus() != radio.Connected {
		t.Fatal("expected connected")
	}
	r.Drop()
	if r.StationStatus() != radio.Disconnected {
		t.Error("expected disconnected after drop")
	}
	if r.StationSSID() != "" || r.LocalAddr().IsValid() {
		t.Error("expected link state cleared after drop")
	}
}
