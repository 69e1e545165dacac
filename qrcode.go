package main

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// EscapeWifiString handles the special character escaping for SSID and Password.
func EscapeWifiString(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`;`, `\;`,
		`,`, `\,`,
		`:`, `\:`,
		`"`, `\"`,
	)
	return r.Replace(s)
}

// WifiJoinString is the payload phones understand as "join this network".
// An open network gets T:nopass and no password.
func WifiJoinString(ssid, passphrase string, open bool) string {
	var b strings.Builder
	b.WriteString("WIFI:S:")
	b.WriteString(EscapeWifiString(ssid))
	b.WriteString(";")
	if open {
		b.WriteString("T:nopass;")
	} else {
		b.WriteString("T:WPA;P:")
		b.WriteString(EscapeWifiString(passphrase))
		b.WriteString(";")
	}
	b.WriteString(";")
	return b.String()
}

// GenerateWifiQRCode returns the join code for the provisioning access point
// rendered for a terminal.
func GenerateWifiQRCode(ssid, passphrase string, open bool) (string, error) {
	q, err := qrcode.New(WifiJoinString(ssid, passphrase, open), qrcode.Medium)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}
