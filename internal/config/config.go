// Package config holds the portal's runtime settings.
package config

import (
	"flag"
	"log/slog"
	"time"

	"github.com/shazow/wifiportal/internal/connmgr"
	"github.com/shazow/wifiportal/internal/creds"
	"github.com/shazow/wifiportal/internal/loop"
	"github.com/shazow/wifiportal/internal/scan"
	"github.com/shazow/wifiportal/radio"
)

const (
	BackendNetworkManager = "networkmanager"
	BackendIWD            = "iwd"
	BackendMock           = "mock"
)

type Config struct {
	Listen string

	APSSID   string
	APPass   string
	APIface  string
	STAIface string
	Backend  string

	StatePath string
	Namespace string
	Assets    string
	LEDPin    string

	ScanPoll       time.Duration
	Retry          time.Duration
	AttemptTimeout time.Duration
	AttemptPoll    time.Duration
	Yield          time.Duration

	MDNS     bool
	MDNSName string

	LogLevel string
	LogFile  string
}

// Default returns the settings of a factory-fresh device.
func Default() Config {
	return Config{
		Listen:         ":80",
		APSSID:         "ESP32_Config",
		APPass:         "configureme",
		APIface:        "ap0",
		STAIface:       "wlan0",
		Backend:        BackendNetworkManager,
		StatePath:      "/var/lib/wifiportal/state.db",
		Namespace:      creds.DefaultNamespace,
		LEDPin:         "GPIO2",
		ScanPoll:       scan.DefaultPollInterval,
		Retry:          connmgr.DefaultRetryInterval,
		AttemptTimeout: connmgr.DefaultAttemptTimeout,
		AttemptPoll:    connmgr.DefaultAttemptPoll,
		Yield:          loop.DefaultYield,
		MDNS:           true,
		MDNSName:       "wifiportal",
		LogLevel:       "info",
	}
}

// RegisterFlags binds c to fs, using the current values of c as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Listen, "listen", c.Listen, "HTTP listen address")
	fs.StringVar(&c.APSSID, "ap-ssid", c.APSSID, "SSID of the provisioning access point")
	fs.StringVar(&c.APPass, "ap-pass", c.APPass, "passphrase of the provisioning access point, shorter than 8 bytes means open")
	fs.StringVar(&c.APIface, "ap-iface", c.APIface, "interface that hosts the access point")
	fs.StringVar(&c.STAIface, "sta-iface", c.STAIface, "interface that joins the configured network")
	fs.StringVar(&c.Backend, "backend", c.Backend, "radio backend (networkmanager, iwd, mock)")
	fs.StringVar(&c.StatePath, "state", c.StatePath, "path of the credential database")
	fs.StringVar(&c.Namespace, "namespace", c.Namespace, "credential namespace")
	fs.StringVar(&c.Assets, "assets", c.Assets, "directory to serve the UI from instead of the built-in one")
	fs.StringVar(&c.LEDPin, "led-pin", c.LEDPin, "GPIO pin name of the status LED")
	fs.DurationVar(&c.ScanPoll, "scan-poll", c.ScanPoll, "interval between scan progress polls")
	fs.DurationVar(&c.Retry, "retry", c.Retry, "interval between association attempts")
	fs.DurationVar(&c.AttemptTimeout, "attempt-timeout", c.AttemptTimeout, "how long one association attempt may take")
	fs.DurationVar(&c.AttemptPoll, "attempt-poll", c.AttemptPoll, "interval between link checks during an attempt")
	fs.DurationVar(&c.Yield, "yield", c.Yield, "main loop idle wait")
	fs.BoolVar(&c.MDNS, "mdns", c.MDNS, "announce the portal over mDNS once connected")
	fs.StringVar(&c.MDNSName, "mdns-name", c.MDNSName, "mDNS instance name")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "write logs to this file with rotation instead of stderr")
}

// Level returns the parsed log level, or info if it does not parse.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// APOpen reports whether the access point will run without security.
func (c Config) APOpen() bool {
	return radio.APIsOpen(c.APPass)
}
