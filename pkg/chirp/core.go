// Package chirp is the cycle-exact control core for a periodic
// frequency-swept waveform generator. It sequences programming words to a
// PLL synthesizer and a ramp DAC over bit-serial command engines, choosing
// the frequency sub-band and output divider from configurable scan lists.
//
// The whole core runs in one synchronous domain: Core.Tick steps the
// selectors, then the serial engines, then the sequencer, communicating
// only through signal values sampled at tick boundaries.
package chirp

import (
	"errors"
	"fmt"

	"github.com/yunginnanet/ftdi-chirpgen/pkg/scansel"
	"github.com/yunginnanet/ftdi-chirpgen/pkg/serialcmd"
)

// Device names the serial engine a transmission left on.
type Device uint8

const (
	DeviceSynth Device = iota
	DeviceDAC
	DeviceDiag
)

func (d Device) String() string {
	switch d {
	case DeviceSynth:
		return "synth"
	case DeviceDAC:
		return "dac"
	case DeviceDiag:
		return "diag"
	default:
		return "(invalid device)"
	}
}

// TraceEntry records one accepted transmission for tests, diagnostics and
// hardware replay.
type TraceEntry struct {
	Tick    uint64
	Device  Device
	Payload uint32
	Bits    uint8
}

// maxTrace bounds the trace buffer; once full, further transmissions are
// not recorded.
const maxTrace = 1 << 14

var ErrTickBudget = errors.New("chirp: tick budget exhausted")

// Core owns the two selectors, the three serial engines and the
// sequencer, and steps them all in a fixed order once per tick.
type Core struct {
	regs *RegisterFile
	cfg  Config

	bands    *scansel.Selector
	dividers *scansel.Selector

	synth *serialcmd.Engine
	dac   *serialcmd.Engine
	diag  *serialcmd.Engine

	cmp TimeCompare
	seq sequencer

	tick  uint64
	trace []TraceEntry
}

// NewCore wires a core to the given register file. The core starts held
// in reset; set CtrlEnable to start it.
func NewCore(regs *RegisterFile) *Core {
	bands, _ := scansel.New(NumBands)
	dividers, _ := scansel.New(NumDividers)
	return &Core{
		regs:     regs,
		bands:    bands,
		dividers: dividers,
		synth:    serialcmd.New(),
		dac:      serialcmd.New(),
		diag:     serialcmd.New(),
	}
}

// Registers exposes the upstream configuration register file.
func (c *Core) Registers() *RegisterFile { return c.regs }

// State reports the sequencer state.
func (c *Core) State() SeqState { return c.seq.state }

// TickCount is the free-running tick counter, started at full reset.
func (c *Core) TickCount() uint64 { return c.tick }

// LoopCount is the number of completed chirp loops since full reset.
func (c *Core) LoopCount() uint32 { return c.seq.loopCount }

// DiagWord is the loop counter value latched for the diagnostic channel.
func (c *Core) DiagWord() uint32 { return c.seq.diagLatch }

// BandIndex is the committed band selection.
func (c *Core) BandIndex() uint { return c.bands.Index() }

// DividerIndex is the committed divider selection.
func (c *Core) DividerIndex() uint { return c.dividers.Index() }

// SynthPins, DACPins and DiagPins sample the three engines' output lines.
func (c *Core) SynthPins() serialcmd.Pins { return c.synth.Pins() }
func (c *Core) DACPins() serialcmd.Pins   { return c.dac.Pins() }
func (c *Core) DiagPins() serialcmd.Pins  { return c.diag.Pins() }

// Trace returns the recorded transmissions without consuming them.
func (c *Core) Trace() []TraceEntry { return c.trace }

// TakeTrace returns and clears the recorded transmissions.
func (c *Core) TakeTrace() []TraceEntry {
	t := c.trace
	c.trace = nil
	return t
}

func (c *Core) record(dev Device, req serialcmd.Request) {
	if len(c.trace) >= maxTrace {
		return
	}
	c.trace = append(c.trace, TraceEntry{
		Tick:    c.tick,
		Device:  dev,
		Payload: req.Payload,
		Bits:    req.Bits,
	})
}

// Reset synchronously reinitializes every state machine and the
// free-running counters. The trace buffer survives; it is host-side
// observability, not core state.
func (c *Core) Reset() {
	c.bands.Reset()
	c.dividers.Reset()
	c.synth.Reset()
	c.dac.Reset()
	c.diag.Reset()
	c.seq.reset()
	c.tick = 0
}

// Tick advances the whole core by one tick: apply queued register writes,
// then step selectors, engines and sequencer in that fixed order. While
// the enable trigger is deasserted the core is held in its initial state.
func (c *Core) Tick() {
	c.cfg = c.regs.latch()
	if !c.cfg.Enable {
		c.Reset()
		return
	}
	c.tick++

	c.bands.Tick()
	c.dividers.Tick()

	c.synth.Tick()
	c.dac.Tick()
	c.diag.Tick()

	c.stepSequencer()
	c.stepDiag()

	c.seq.loopTick++
}

// stepDiag keeps the diagnostic engine transmitting: whenever it becomes
// ready it restarts with the latched loop counter.
func (c *Core) stepDiag() {
	if !c.diag.Ready() {
		return
	}
	req := serialcmd.Request{
		Targets: diagTarget,
		Payload: c.seq.diagLatch,
		Bits:    serialcmd.MaxBits,
		Divisor: diagClockDivisor,
		Edge:    serialcmd.ShiftFalling,
	}
	if c.diag.Start(req) {
		c.record(DeviceDiag, req)
	}
}

// RunTicks steps the core n ticks.
func (c *Core) RunTicks(n uint64) {
	for i := uint64(0); i < n; i++ {
		c.Tick()
	}
}

// RunLoops steps the core until n more chirp loops complete, returning the
// number of ticks stepped. The budget guards a disabled or misconfigured
// core against spinning forever.
func (c *Core) RunLoops(n uint32, budget uint64) (uint64, error) {
	target := c.seq.loopCount + n
	var stepped uint64
	for c.seq.loopCount < target {
		if stepped >= budget {
			return stepped, fmt.Errorf("%w: %d loops remaining after %d ticks",
				ErrTickBudget, target-c.seq.loopCount, stepped)
		}
		c.Tick()
		stepped++
	}
	return stepped, nil
}
