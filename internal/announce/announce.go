// Package announce publishes the portal over mDNS while the station link is
// up.
package announce

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"

	"github.com/grandcat/zeroconf"
)

const (
	Service = "_http._tcp"
	Domain  = "local."
)

// Registration is a published service record.
type Registration interface {
	Shutdown()
}

// RegisterFunc publishes a service.
type RegisterFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (Registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface) (Registration, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces)
}

type Announcer struct {
	Register RegisterFunc

	instance string
	iface    string
	port     int
	logger   *slog.Logger
	current  Registration
}

// New returns an Announcer for instance on iface. An empty iface publishes
// on every multicast interface.
func New(logger *slog.Logger, instance, iface string, port int) *Announcer {
	return &Announcer{
		Register: zeroconfRegister,
		instance: instance,
		iface:    iface,
		port:     port,
		logger:   logger.With("component", "mdns"),
	}
}

// OnLink registers the service when the link comes up and withdraws it when
// the link goes down. It matches connmgr.LinkFunc.
func (a *Announcer) OnLink(connected bool, addr netip.Addr) {
	if !connected {
		a.Shutdown()
		return
	}
	if a.current != nil {
		return
	}

	var ifaces []net.Interface
	if a.iface != "" {
		iface, err := net.InterfaceByName(a.iface)
		if err != nil {
			a.logger.Warn("interface lookup failed, announcing on all interfaces", "iface", a.iface, "error", err)
		} else {
			ifaces = []net.Interface{*iface}
		}
	}

	text := []string{"path=/"}
	if addr.IsValid() {
		text = append(text, "addr="+addr.String())
	}
	reg, err := a.Register(a.instance, Service, Domain, a.port, text, ifaces)
	if err != nil {
		a.logger.Error("failed to register mDNS service", "error", err)
		return
	}
	a.current = reg
	a.logger.Info("announced", "instance", a.instance, "service", Service, "port", a.port)
}

// Shutdown withdraws the current registration, if any.
func (a *Announcer) Shutdown() {
	if a.current == nil {
		return
	}
	a.current.Shutdown()
	a.current = nil
	a.logger.Info("withdrawn", "instance", a.instance)
}

// Port extracts the TCP port from a listen address such as ":80".
func Port(listen string) (int, error) {
	_, p, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", p, err)
	}
	return port, nil
}
