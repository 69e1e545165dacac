package scan

import (
	"testing"
)

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		{SSID: "", RSSI: -30},
		{SSID: "Weak", RSSI: -80},
		{SSID: "Beta", RSSI: -50},
		{SSID: "Alpha", RSSI: -50},
		{SSID: "Strong", RSSI: -40},
	}
	SortEntries(entries)

	want := []string{"Strong", "Alpha", "Beta", "Weak", ""}
	for i, e := range entries {
		if e.SSID != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.SSID, want[i])
		}
	}
}
