package scan

import "sort"

// SortEntries sorts entries in place for display. The portal serves radio
// order; this is for the command line.
// The sorting order is:
// 1. Named networks before hidden ones.
// 2. By signal strength (strongest first).
// 3. Fallback to SSID alphabetically.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a := entries[i]
		b := entries[j]

		if (a.SSID == "") != (b.SSID == "") {
			return a.SSID != ""
		}
		if a.RSSI != b.RSSI {
			return a.RSSI > b.RSSI
		}
		return a.SSID < b.SSID
	})
}
