// Package led drives the onboard indicator LED.
package led

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/host/v3"
)

var ErrPinNotFound = errors.New("gpio pin not found")

// LED is a single active-high indicator.
type LED interface {
	Set(on bool) error
	// On reads the level back from the pin.
	On() (bool, error)
}

// Pin is an LED on a GPIO output.
type Pin struct {
	pin gpio.PinIO
}

// NewPin configures p as an output, initially off.
func NewPin(p gpio.PinIO) (*Pin, error) {
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to configure %s: %w", p.Name(), err)
	}
	return &Pin{pin: p}, nil
}

// Open initializes the host drivers and opens the named pin, such as "GPIO2".
func Open(name string) (*Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrPinNotFound)
	}
	return NewPin(p)
}

// NewMock returns an LED on a simulated pin.
func NewMock() *Pin {
	p, _ := NewPin(&gpiotest.Pin{N: "LED", L: gpio.Low})
	return p
}

func (p *Pin) Set(on bool) error {
	return p.pin.Out(gpio.Level(on))
}

func (p *Pin) On() (bool, error) {
	return p.pin.Read() == gpio.High, nil
}
