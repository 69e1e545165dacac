package led

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestPin(t *testing.T) {
	raw := &gpiotest.Pin{N: "GPIO2", L: gpio.High}
	p, err := NewPin(raw)
	if err != nil {
		t.Fatalf("NewPin failed: %v", err)
	}
	if on, _ := p.On(); on {
		t.Fatal("expected LED off after configuration")
	}

	if err := p.Set(true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if raw.Read() != gpio.High {
		t.Error("expected pin driven high")
	}
	if on, _ := p.On(); !on {
		t.Error("expected LED on")
	}

	p.Set(false)
	if on, _ := p.On(); on {
		t.Error("expected LED off")
	}
}

func TestOpenUnknownPin(t *testing.T) {
	_, err := Open("NOT_A_PIN_42")
	if err == nil {
		t.Fatal("expected error for unknown pin")
	}
	// host.Init may itself fail on machines without GPIO support.
	if !errors.Is(err, ErrPinNotFound) {
		t.Logf("open failed before pin lookup: %v", err)
	}
}

func TestMock(t *testing.T) {
	var l LED = NewMock()
	if on, _ := l.On(); on {
		t.Fatal("mock LED should start off")
	}
	l.Set(true)
	if on, _ := l.On(); !on {
		t.Error("expected mock LED on")
	}
}
