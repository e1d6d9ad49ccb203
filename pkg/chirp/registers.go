package chirp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/yunginnanet/ftdi-chirpgen/pkg/scansel"
)

// Register addresses for the upstream configuration interface. Values are
// written strobe+value and take effect only at the next tick boundary.
type Register uint8

const (
	// RegCtrl holds the control bits; see CtrlEnable.
	RegCtrl Register = iota
	// RegRampStep is the DAC code increment per ramp step.
	RegRampStep
	// RegRampStart is the ramp start bound (12-bit DAC code).
	RegRampStart
	// RegRampEnd is the ramp end bound.
	RegRampEnd
	// RegDACDiv is the DAC serial clock divisor.
	RegDACDiv
	// RegLoopPeriod is the chirp loop period in ticks.
	RegLoopPeriod
	// RegDividerList is the output divider scan list.
	RegDividerList
	// RegTrigTimeLo and RegTrigTimeHi form the 64-bit trigger time the
	// free-running tick count is compared against before the first chirp.
	RegTrigTimeLo
	RegTrigTimeHi
	// RegBandList0..RegBandList7 are the per-divider band scan lists.
	RegBandList0
	RegBandList1
	RegBandList2
	RegBandList3
	RegBandList4
	RegBandList5
	RegBandList6
	RegBandList7

	// NumRegisters is the total register count.
	NumRegisters
)

// CtrlEnable starts the core; clearing it holds every state machine in
// reset, discarding any in-flight transmission or selection.
const CtrlEnable uint32 = 1 << 0

// Selector widths for the two scan-list instantiations.
const (
	NumDividers = 8
	NumBands    = 8
)

func (r Register) String() string {
	switch {
	case r == RegCtrl:
		return "CTRL"
	case r == RegRampStep:
		return "RAMP_STEP"
	case r == RegRampStart:
		return "RAMP_START"
	case r == RegRampEnd:
		return "RAMP_END"
	case r == RegDACDiv:
		return "DAC_DIV"
	case r == RegLoopPeriod:
		return "LOOP_PERIOD"
	case r == RegDividerList:
		return "DIVIDER_LIST"
	case r == RegTrigTimeLo:
		return "TRIG_TIME_LO"
	case r == RegTrigTimeHi:
		return "TRIG_TIME_HI"
	case r >= RegBandList0 && r <= RegBandList7:
		return fmt.Sprintf("BAND_LIST%d", r-RegBandList0)
	default:
		return "(invalid register)"
	}
}

// Config is the immutable-between-ticks configuration snapshot the
// sequencer runs from. It is rebuilt from the register file at every tick
// boundary.
type Config struct {
	Enable      bool
	RampStep    uint32
	RampStart   uint32
	RampEnd     uint32
	DACDivisor  uint32
	LoopPeriod  uint32
	DividerList scansel.List
	BandLists   [NumDividers]scansel.List
	TrigTime    uint64
}

var ErrBadRegister = errors.New("chirp: invalid register address")

type regWrite struct {
	reg Register
	val uint32
}

// RegisterFile models the upstream address-indexed configuration
// registers. Writes are queued and applied only at tick boundaries, so a
// mid-tick write can never tear the sequencer's view of the configuration.
type RegisterFile struct {
	mu      sync.Mutex
	regs    [NumRegisters]uint32
	pending []regWrite
}

// NewRegisterFile returns an all-zero register file (core disabled).
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{}
}

// DefaultRegisters returns a register file preloaded with bring-up
// defaults for every register except CTRL, which stays disabled until the
// caller enables the core.
func DefaultRegisters() *RegisterFile {
	rf := NewRegisterFile()
	rf.regs[RegRampStep] = 0x020
	rf.regs[RegRampStart] = 0x100
	rf.regs[RegRampEnd] = 0xE00
	rf.regs[RegDACDiv] = 1
	rf.regs[RegLoopPeriod] = 16384
	rf.regs[RegDividerList] = 0b00000111
	rf.regs[RegBandList0] = 0b00011111
	rf.regs[RegBandList1] = 0b00010100
	rf.regs[RegBandList2] = 0b11110000
	for r := RegBandList3; r <= RegBandList7; r++ {
		rf.regs[r] = 0b00000001
	}
	return rf
}

// Write queues a strobe+value register write for the next tick boundary.
func (rf *RegisterFile) Write(reg Register, val uint32) error {
	if reg >= NumRegisters {
		return fmt.Errorf("%w: 0x%02X", ErrBadRegister, uint8(reg))
	}
	rf.mu.Lock()
	rf.pending = append(rf.pending, regWrite{reg, val})
	rf.mu.Unlock()
	return nil
}

// Peek returns the applied value of a register; queued writes are not
// visible until the next tick boundary.
func (rf *RegisterFile) Peek(reg Register) uint32 {
	if reg >= NumRegisters {
		return 0
	}
	rf.mu.Lock()
	v := rf.regs[reg]
	rf.mu.Unlock()
	return v
}

// Registers returns a copy of the applied register values.
func (rf *RegisterFile) Registers() map[Register]uint32 {
	rf.mu.Lock()
	m := make(map[Register]uint32, NumRegisters)
	for reg, val := range rf.regs {
		m[Register(reg)] = val
	}
	rf.mu.Unlock()
	return m
}

// latch applies queued writes and builds the tick's configuration
// snapshot.
func (rf *RegisterFile) latch() Config {
	rf.mu.Lock()
	for _, w := range rf.pending {
		rf.regs[w.reg] = w.val
	}
	rf.pending = rf.pending[:0]

	cfg := Config{
		Enable:      rf.regs[RegCtrl]&CtrlEnable != 0,
		RampStep:    rf.regs[RegRampStep],
		RampStart:   rf.regs[RegRampStart],
		RampEnd:     rf.regs[RegRampEnd],
		DACDivisor:  rf.regs[RegDACDiv],
		LoopPeriod:  rf.regs[RegLoopPeriod],
		DividerList: scansel.List(rf.regs[RegDividerList]),
		TrigTime:    uint64(rf.regs[RegTrigTimeHi])<<32 | uint64(rf.regs[RegTrigTimeLo]),
	}
	for i := 0; i < NumDividers; i++ {
		cfg.BandLists[i] = scansel.List(rf.regs[RegBandList0+Register(i)])
	}
	rf.mu.Unlock()
	return cfg
}
