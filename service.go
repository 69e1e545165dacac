package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/kardianos/service"
)

// program adapts the daemon to service.Interface.
type program struct {
	d      *daemon
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := p.d.Run(ctx); err != nil {
			p.d.logger.Error("portal failed", "error", err)
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.cancel()
	<-p.done
	return nil
}

// serviceArgs returns the root flags to install the service with, which are
// the arguments before the "service" subcommand.
func serviceArgs(args []string) []string {
	if i := slices.Index(args, "service"); i >= 0 {
		return args[:i]
	}
	return args
}

func newService(d *daemon, args []string) (service.Service, error) {
	config := &service.Config{
		Name:        "wifiportal",
		DisplayName: "WiFi provisioning portal",
		Description: "Access point and web portal for joining this device to a WiFi network",
		Arguments:   args,
	}
	s, err := service.New(&program{d: d}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

// runService runs the portal in the foreground when interactive, or under
// the platform service manager.
func runService(d *daemon, args []string) error {
	s, err := newService(d, args)
	if err != nil {
		return err
	}
	if service.Interactive() {
		d.logger.Info("running in the foreground")
	}
	return s.Run()
}

func controlService(d *daemon, action string, args []string) error {
	if !slices.Contains(service.ControlAction[:], action) {
		return fmt.Errorf("unknown action %q, want one of %v", action, service.ControlAction)
	}
	s, err := newService(d, args)
	if err != nil {
		return err
	}
	if err := service.Control(s, action); err != nil {
		return fmt.Errorf("service %s: %w", action, err)
	}
	d.logger.Info("service control", "action", action, "platform", service.Platform())
	return nil
}
