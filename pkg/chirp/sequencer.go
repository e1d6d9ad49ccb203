package chirp

import (
	"github.com/yunginnanet/ftdi-chirpgen/pkg/scansel"
	"github.com/yunginnanet/ftdi-chirpgen/pkg/serialcmd"
)

// SeqState enumerates the top-level sequencing state machine. PAD_WAIT
// loops back to SET_FREQUENCY, so after the START latch the core produces
// one full chirp per loop period indefinitely.
type SeqState uint8

const (
	SeqStart SeqState = iota
	SeqSetFrequency
	SeqWaitSynth
	SeqGenerateRamp
	SeqWaitDAC
	SeqPadWait
)

func (s SeqState) String() string {
	switch s {
	case SeqStart:
		return "START"
	case SeqSetFrequency:
		return "SET_FREQUENCY"
	case SeqWaitSynth:
		return "WAIT_READY_SYNTH"
	case SeqGenerateRamp:
		return "GENERATE_RAMP"
	case SeqWaitDAC:
		return "WAIT_READY_DAC"
	case SeqPadWait:
		return "PAD_WAIT"
	default:
		return "(invalid state)"
	}
}

// bootPhase sequences the post-reset selector latches: the divider list
// first, then the band list belonging to the selected divider.
type bootPhase uint8

const (
	bootLatchDividers bootPhase = iota
	bootWaitDividers
	bootLatchBands
	bootWaitBands
)

// maintPhase sequences the background selector maintenance that prepares
// the next chirp's selection while the current one is still transmitting:
// band advance, divider advance on band rollover, and the band relatch
// that re-derives the band selection for the new divider.
type maintPhase uint8

const (
	maintIdle maintPhase = iota
	maintAdvanceBand
	maintWaitBand
	maintAdvanceDivider
	maintWaitDivider
	maintRelatchBands
	maintWaitRelatch
)

// rampPhase tracks which DAC word GENERATE_RAMP sends next.
type rampPhase uint8

const (
	rampStart rampPhase = iota
	rampStep
	rampClose
	rampDone
)

type sequencer struct {
	state SeqState
	boot  bootPhase
	maint maintPhase

	ramp  Ramp
	phase rampPhase

	wordIdx int

	// selection sampled at loop start; advances during the loop only
	// affect the next chirp
	curDivider uint
	curBand    uint

	loopTick  uint32
	loopCount uint32
	diagLatch uint32
}

func (s *sequencer) reset() {
	*s = sequencer{}
}

// beginLoop samples the committed selections for the coming chirp and
// restarts the loop tick counter.
func (c *Core) beginLoop() {
	s := &c.seq
	s.curDivider = c.dividers.Index()
	s.curBand = c.bands.Index()
	s.wordIdx = 0
	s.loopTick = 0
}

func (c *Core) stepSequencer() {
	s := &c.seq
	switch s.state {
	case SeqStart:
		if !c.cmp.GreaterEq(c.tick, c.cfg.TrigTime) {
			return
		}
		switch s.boot {
		case bootLatchDividers:
			if c.dividers.Ready() {
				c.dividers.Latch(c.cfg.DividerList)
				s.boot = bootWaitDividers
			}
		case bootWaitDividers:
			if c.dividers.Ready() {
				s.boot = bootLatchBands
			}
		case bootLatchBands:
			if c.bands.Ready() {
				c.bands.Latch(c.bandListFor(c.dividers.Index()))
				s.boot = bootWaitBands
			}
		case bootWaitBands:
			if c.bands.Ready() {
				c.beginLoop()
				s.state = SeqSetFrequency
			}
		}

	case SeqSetFrequency:
		c.stepMaint()
		if s.wordIdx >= len(SynthProgram) {
			s.ramp.Latch(c.cfg.RampStart, c.cfg.RampEnd, c.cfg.RampStep)
			s.phase = rampStart
			s.state = SeqGenerateRamp
			return
		}
		if !c.synth.Ready() {
			return
		}
		w := SynthProgram[s.wordIdx]
		req := serialcmd.Request{
			Targets: synthTarget,
			Payload: w.Build(DividerCode(s.curDivider), uint32(s.curBand)),
			Bits:    SynthWordBits,
			Divisor: synthClockDivisor,
			Edge:    serialcmd.ShiftFalling,
		}
		if !c.synth.Start(req) {
			return
		}
		c.record(DeviceSynth, req)
		if w.Source == FieldBand {
			// the band word is on the wire; line up next chirp's selection
			s.maint = maintAdvanceBand
		}
		s.wordIdx++
		s.state = SeqWaitSynth

	case SeqWaitSynth:
		c.stepMaint()
		if c.synth.Ready() {
			s.state = SeqSetFrequency
		}

	case SeqGenerateRamp:
		c.stepMaint()
		if !c.dac.Ready() {
			return
		}
		var code uint32
		switch s.phase {
		case rampStart:
			code = s.ramp.Code
			if s.ramp.Degenerate() {
				s.phase = rampClose
			} else {
				s.phase = rampStep
			}
		case rampStep:
			var done bool
			code, done = s.ramp.Advance()
			if done {
				s.phase = rampClose
			}
		case rampClose:
			code = s.ramp.Close()
			s.phase = rampDone
		default:
			return
		}
		req := serialcmd.Request{
			Targets: dacTarget,
			Payload: DACWord(code),
			Bits:    DACWordBits,
			Divisor: c.cfg.DACDivisor,
			Edge:    serialcmd.ShiftRising,
		}
		if !c.dac.Start(req) {
			return
		}
		c.record(DeviceDAC, req)
		s.state = SeqWaitDAC

	case SeqWaitDAC:
		c.stepMaint()
		if !c.dac.Ready() {
			return
		}
		if s.phase == rampDone {
			s.state = SeqPadWait
		} else {
			s.state = SeqGenerateRamp
		}

	case SeqPadWait:
		c.stepMaint()
		if s.loopTick >= c.cfg.LoopPeriod {
			s.loopCount++
			s.diagLatch = s.loopCount
			c.beginLoop()
			s.state = SeqSetFrequency
		}
	}
}

// stepMaint runs the background selector maintenance. It only ever issues
// a request when the target selector is ready, preserving the selectors'
// request spacing discipline.
func (c *Core) stepMaint() {
	s := &c.seq
	switch s.maint {
	case maintIdle:
	case maintAdvanceBand:
		if c.bands.Ready() {
			c.bands.Advance()
			s.maint = maintWaitBand
		}
	case maintWaitBand:
		if c.bands.Ready() {
			if c.bands.Rollover() {
				// the divider's band list is exhausted
				s.maint = maintAdvanceDivider
			} else {
				s.maint = maintIdle
			}
		}
	case maintAdvanceDivider:
		if c.dividers.Ready() {
			c.dividers.Advance()
			s.maint = maintWaitDivider
		}
	case maintWaitDivider:
		if c.dividers.Ready() {
			s.maint = maintRelatchBands
		}
	case maintRelatchBands:
		if c.bands.Ready() {
			c.bands.Latch(c.bandListFor(c.dividers.Index()))
			s.maint = maintWaitRelatch
		}
	case maintWaitRelatch:
		if c.bands.Ready() {
			s.maint = maintIdle
		}
	}
}

func (c *Core) bandListFor(divider uint) scansel.List {
	if divider >= NumDividers {
		divider = 0
	}
	return c.cfg.BandLists[divider]
}
