package ft232h

import (
	"fmt"

	"github.com/yunginnanet/ft232h"

	"github.com/yunginnanet/ftdi-chirpgen/pkg/chirp"
)

// Programmer replays a control core's transmit trace over a real FT232H,
// driving the synthesizer and DAC with the same words, in the same order,
// that the core put on its simulated pins. Chip selects are plain GPIO
// lines so the two devices can share the one MPSSE SPI channel.
type Programmer struct {
	ft       *FT232H
	synthCS  ft232h.CPin
	dacCS    ft232h.CPin
	synthSet bool
	dacSet   bool

	mode     byte
	haveMode bool
}

// SPI modes per device, matching each engine's shift-edge convention: the
// synthesizer samples the rising clock edge, the DAC the falling edge.
const (
	synthSPIMode byte = 0x00
	dacSPIMode   byte = 0x01
)

// NewProgrammer wraps an open device. Configure both chip selects before
// replaying.
func NewProgrammer(ft *FT232H) *Programmer {
	return &Programmer{ft: ft}
}

// SetSynthCS configures the synthesizer chip-select GPIO, idle high.
func (p *Programmer) SetSynthCS(pin uint) error {
	p.synthCS = ft232h.CPin(pin)
	if err := p.ft.GPIO.ConfigPin(p.synthCS, ft232h.Output, true); err != nil {
		return err
	}
	p.synthSet = true
	return nil
}

// SetDACCS configures the DAC chip-select GPIO, idle high.
func (p *Programmer) SetDACCS(pin uint) error {
	p.dacCS = ft232h.CPin(pin)
	if err := p.ft.GPIO.ConfigPin(p.dacCS, ft232h.Output, true); err != nil {
		return err
	}
	p.dacSet = true
	return nil
}

func (p *Programmer) csFor(dev chirp.Device) (ft232h.CPin, bool) {
	switch dev {
	case chirp.DeviceSynth:
		return p.synthCS, p.synthSet
	case chirp.DeviceDAC:
		return p.dacCS, p.dacSet
	default:
		// the diagnostic channel has no off-board counterpart
		return 0, false
	}
}

func modeFor(dev chirp.Device) byte {
	if dev == chirp.DeviceDAC {
		return dacSPIMode
	}
	return synthSPIMode
}

// applyMode reconfigures the shared SPI channel when the replay switches
// between devices with different sampling edges.
func (p *Programmer) applyMode(mode byte) error {
	if p.haveMode && p.mode == mode {
		return nil
	}
	cfg := p.ft.SPI.GetConfig()
	cfg.Mode = mode
	if err := p.ft.SPI.Config(cfg); err != nil {
		return fmt.Errorf("failed to set SPI mode %d: %w", mode, err)
	}
	p.mode, p.haveMode = mode, true
	return nil
}

func (p *Programmer) send(cs ft232h.CPin, payload uint32, bits uint8) error {
	if err := p.ft.GPIO.Set(cs, false); err != nil {
		return fmt.Errorf("failed to assert chip select %s: %w", cs, err)
	}
	if _, err := p.ft.Write(wordBytes(payload, bits), true, true); err != nil {
		return fmt.Errorf("failed to shift word 0x%08X: %w", payload, err)
	}
	if err := p.ft.GPIO.Set(cs, true); err != nil {
		return fmt.Errorf("failed to release chip select %s: %w", cs, err)
	}
	return nil
}

// Replay programs every traced transmission in order. Diagnostic-channel
// entries are skipped; everything else goes to the device the core
// addressed. Replay stops at the first wire error.
func (p *Programmer) Replay(entries []chirp.TraceEntry) error {
	for i, e := range entries {
		cs, ok := p.csFor(e.Device)
		if !ok {
			continue
		}
		if err := p.applyMode(modeFor(e.Device)); err != nil {
			return fmt.Errorf("replay entry %d (%s): %w", i, e.Device, err)
		}
		if err := p.send(cs, e.Payload, e.Bits); err != nil {
			return fmt.Errorf("replay entry %d (%s): %w", i, e.Device, err)
		}
	}
	return nil
}
