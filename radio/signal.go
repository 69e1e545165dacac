package radio

// StrengthToRSSI converts a 0-100 signal quality into an approximate dBm
// value in [-100, -50].
func StrengthToRSSI(strength uint8) int {
	if strength > 100 {
		strength = 100
	}
	return int(strength)/2 - 100
}

// MilliBelToRSSI converts a signal in 100 * dBm, as reported by iwd, to dBm.
func MilliBelToRSSI(v int16) int {
	return int(v) / 100
}
