package serialcmd

import (
	"errors"
	"fmt"
)

// MaxBits is the widest payload a single transaction can carry.
const MaxBits = 32

// EdgeMode selects on which clock edge the outgoing data line advances to
// the next payload bit. Two devices with incompatible SPI timing can share
// one engine type by picking different modes.
type EdgeMode uint8

const (
	// ShiftFalling drives each bit at the falling edge; the bit is stable
	// across its whole period and the device samples on the rise.
	ShiftFalling EdgeMode = iota
	// ShiftRising drives each bit at the rising edge and holds it through
	// the following low half; the device samples on the fall.
	ShiftRising
)

func (e EdgeMode) String() string {
	switch e {
	case ShiftFalling:
		return "ShiftFalling"
	case ShiftRising:
		return "ShiftRising"
	default:
		return "(invalid edge mode)"
	}
}

// State enumerates the engine's transmit state machine.
type State uint8

const (
	WaitTrigger State = iota
	PreIdle
	ClkLow
	ClkHigh
	PostIdle
	IdleSelect
)

func (s State) String() string {
	switch s {
	case WaitTrigger:
		return "WAIT_TRIGGER"
	case PreIdle:
		return "PRE_IDLE"
	case ClkLow:
		return "CLK_LOW"
	case ClkHigh:
		return "CLK_HIGH"
	case PostIdle:
		return "POST_IDLE"
	case IdleSelect:
		return "IDLE_SELECT"
	default:
		return "(invalid state)"
	}
}

// Request describes one write-only transaction. There is no receive path.
type Request struct {
	// Targets is a one-hot chip-select mask. The addressed lines are driven
	// low for the PRE_IDLE through POST_IDLE window.
	Targets uint8
	// Payload is right-aligned in the low Bits bits and shifts out MSB first.
	Payload uint32
	// Bits is the payload width, 1..MaxBits.
	Bits uint8
	// Divisor stretches each clock half-period to Divisor+1 ticks.
	Divisor uint32
	// Edge picks the shift edge convention for the addressed device.
	Edge EdgeMode
}

var ErrBadRequest = errors.New("serialcmd: invalid transmit request")

// Validate checks the request against the wire contract.
func (r Request) Validate() error {
	if r.Bits == 0 || r.Bits > MaxBits {
		return fmt.Errorf("%w: bit count %d out of range 1..%d", ErrBadRequest, r.Bits, MaxBits)
	}
	if r.Targets == 0 {
		return fmt.Errorf("%w: no target device selected", ErrBadRequest)
	}
	return nil
}

// Fixed per-transaction overhead: one tick each of PRE_IDLE, POST_IDLE and
// IDLE_SELECT, independent of payload width and clock divisor.
const (
	preIdleTicks    = 1
	postIdleTicks   = 1
	idleSelectTicks = 1

	// OverheadTicks is the deterministic per-transaction overhead added on
	// top of the bit clocking time.
	OverheadTicks = preIdleTicks + postIdleTicks + idleSelectTicks
)

// BusyTicks returns the exact number of ticks from start acceptance until
// the engine reasserts ready: OverheadTicks + bits*2*(divisor+1).
func BusyTicks(bits uint8, divisor uint32) uint64 {
	return OverheadTicks + uint64(bits)*2*(uint64(divisor)+1)
}

// Pins is the sampled output line state after a tick.
type Pins struct {
	SCLK  bool
	SDATA bool
	// CSN is the active-low chip-select bus: a zero bit means that device
	// is selected.
	CSN uint8
}

// Engine transmits fixed-width payloads bit-serially to one of several
// devices. Exactly one transaction is in flight at any time; starts are
// ignored outside WAIT_TRIGGER.
type Engine struct {
	state State

	// start input, sampled at the next tick boundary
	pending    bool
	pendingReq Request

	req      Request
	shift    uint32 // MSB-aligned remaining payload
	bitsLeft uint8
	dwell    uint32 // ticks remaining in the current state

	sclk  bool
	sdata bool
}

// New returns an engine in WAIT_TRIGGER with all lines idle.
func New() *Engine {
	return &Engine{state: WaitTrigger}
}

// Ready is a pure function of the current state and the start input: true
// iff the engine is in WAIT_TRIGGER and no start is asserted this tick.
func (e *Engine) Ready() bool {
	return e.state == WaitTrigger && !e.pending
}

// State reports the current transmit state.
func (e *Engine) State() State { return e.state }

// Start asserts the start input for the next tick. It reports whether the
// request will be accepted; starts while busy or malformed requests are
// ignored, matching the wire behavior.
func (e *Engine) Start(req Request) bool {
	if !e.Ready() || req.Validate() != nil {
		return false
	}
	e.pending = true
	e.pendingReq = req
	return true
}

// Reset synchronously forces the engine back to WAIT_TRIGGER, discarding
// any in-flight transmission and pending start.
func (e *Engine) Reset() {
	e.state = WaitTrigger
	e.pending = false
	e.sclk = false
	e.sdata = false
	e.dwell = 0
	e.bitsLeft = 0
	e.shift = 0
}

// Tick advances the state machine by one tick.
func (e *Engine) Tick() {
	switch e.state {
	case WaitTrigger:
		if !e.pending {
			return
		}
		e.req = e.pendingReq
		e.pending = false
		e.shift = e.req.Payload << (MaxBits - e.req.Bits)
		e.bitsLeft = e.req.Bits
		e.sclk = false
		e.state = PreIdle
		e.dwell = preIdleTicks
	case PreIdle:
		e.dwell--
		if e.dwell == 0 {
			e.enterClkLow()
		}
	case ClkLow:
		e.dwell--
		if e.dwell == 0 {
			e.enterClkHigh()
		}
	case ClkHigh:
		e.dwell--
		if e.dwell == 0 {
			e.bitsLeft--
			if e.bitsLeft > 0 {
				e.enterClkLow()
				return
			}
			e.sclk = false
			e.state = PostIdle
			e.dwell = postIdleTicks
		}
	case PostIdle:
		e.dwell--
		if e.dwell == 0 {
			e.state = IdleSelect
			e.dwell = idleSelectTicks
		}
	case IdleSelect:
		e.dwell--
		if e.dwell == 0 {
			e.state = WaitTrigger
		}
	}
}

func (e *Engine) enterClkLow() {
	e.sclk = false
	e.state = ClkLow
	e.dwell = e.req.Divisor + 1
	if e.req.Edge == ShiftFalling {
		e.driveBit()
	}
}

func (e *Engine) enterClkHigh() {
	e.sclk = true
	e.state = ClkHigh
	e.dwell = e.req.Divisor + 1
	if e.req.Edge == ShiftRising {
		e.driveBit()
	}
}

func (e *Engine) driveBit() {
	e.sdata = e.shift&0x80000000 != 0
	e.shift <<= 1
}

// selected reports whether chip-select is asserted: the full PRE_IDLE
// through POST_IDLE window.
func (e *Engine) selected() bool {
	switch e.state {
	case PreIdle, ClkLow, ClkHigh, PostIdle:
		return true
	default:
		return false
	}
}

// Pins samples the output lines. Chip-select lines idle high and the
// addressed lines are driven low while a transaction is active.
func (e *Engine) Pins() Pins {
	p := Pins{SCLK: e.sclk, SDATA: e.sdata, CSN: 0xFF}
	if e.selected() {
		p.CSN = ^e.req.Targets
	}
	return p
}
