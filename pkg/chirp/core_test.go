package chirp

import (
	"errors"
	"testing"

	"github.com/l0nax/go-spew/spew"

	"github.com/yunginnanet/ftdi-chirpgen/pkg/serialcmd"
)

var pprint = spew.ConfigState{
	Indent:           "\t",
	ContinueOnMethod: true,
	SortKeys:         true,
	SpewKeys:         true,
	HighlightValues:  true,
	HighlightHex:     true,
}

func newTestCore(t *testing.T, overrides map[Register]uint32) *Core {
	t.Helper()
	regs := DefaultRegisters()
	for reg, val := range overrides {
		if err := regs.Write(reg, val); err != nil {
			t.Fatalf("write %v: %v", reg, err)
		}
	}
	if err := regs.Write(RegCtrl, CtrlEnable); err != nil {
		t.Fatal(err)
	}
	return NewCore(regs)
}

func runUntil(t *testing.T, c *Core, budget uint64, cond func() bool) {
	t.Helper()
	for i := uint64(0); i < budget; i++ {
		if cond() {
			return
		}
		c.Tick()
	}
	t.Fatalf("condition not reached within %d ticks, state %v", budget, c.State())
}

func traceFor(entries []TraceEntry, dev Device) []TraceEntry {
	var out []TraceEntry
	for _, e := range entries {
		if e.Device == dev {
			out = append(out, e)
		}
	}
	return out
}

func TestCoreBootSelection(t *testing.T) {
	c := newTestCore(t, nil)
	runUntil(t, c, 64, func() bool { return c.State() == SeqSetFrequency })
	// default divider list 0b111, band list 0 is 0b00011111: lowest
	// eligible entries win
	if got := c.DividerIndex(); got != 0 {
		t.Errorf("DividerIndex = %d, want 0", got)
	}
	if got := c.BandIndex(); got != 0 {
		t.Errorf("BandIndex = %d, want 0", got)
	}
}

func TestSynthProgramTransmission(t *testing.T) {
	c := newTestCore(t, map[Register]uint32{RegLoopPeriod: 4096})
	if _, err := c.RunLoops(1, 1<<16); err != nil {
		t.Fatal(err)
	}
	synth := traceFor(c.Trace(), DeviceSynth)
	if len(synth) != len(SynthProgram) {
		t.Fatalf("got %d synth words, want %d:\n%s",
			len(synth), len(SynthProgram), pprint.Sdump(synth))
	}
	for i, e := range synth {
		want := SynthProgram[i].Build(DividerCode(0), 0)
		if e.Payload != want {
			t.Errorf("word %d (%s) = 0x%08X, want 0x%08X",
				i, SynthProgram[i].Name, e.Payload, want)
		}
		if e.Bits != SynthWordBits {
			t.Errorf("word %d: %d bits, want %d", i, e.Bits, SynthWordBits)
		}
	}
}

func dacCodes(entries []TraceEntry) []uint32 {
	codes := make([]uint32, 0, len(entries))
	for _, e := range entries {
		codes = append(codes, e.Payload>>4&0xFFF)
	}
	return codes
}

func TestRampWordSequence(t *testing.T) {
	for _, tt := range []struct {
		name             string
		start, end, step uint32
		want             []uint32
	}{
		{"Exact", 0x100, 0x180, 0x020,
			[]uint32{0x100, 0x120, 0x140, 0x160, 0x180, 0x100}},
		{"Overshoot", 0x000, 0x00A, 0x003,
			[]uint32{0x000, 0x003, 0x006, 0x009, 0x00C, 0x000}},
		{"ZeroStep", 0x100, 0x200, 0x000,
			[]uint32{0x100, 0x100}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCore(t, map[Register]uint32{
				RegRampStart:  tt.start,
				RegRampEnd:    tt.end,
				RegRampStep:   tt.step,
				RegLoopPeriod: 4096,
			})
			if _, err := c.RunLoops(1, 1<<16); err != nil {
				t.Fatal(err)
			}
			dac := traceFor(c.Trace(), DeviceDAC)
			got := dacCodes(dac)
			if len(got) != len(tt.want) {
				t.Fatalf("codes = %#x, want %#x", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("codes = %#x, want %#x", got, tt.want)
				}
			}
			for i, e := range dac {
				if e.Payload>>16 != dacCmdWriteUpdate {
					t.Errorf("word %d: command byte 0x%02X, want 0x%02X",
						i, e.Payload>>16, dacCmdWriteUpdate)
				}
				if e.Bits != DACWordBits {
					t.Errorf("word %d: %d bits, want %d", i, e.Bits, DACWordBits)
				}
			}
		})
	}
}

// TestLoopPeriodExact checks that the pad state stretches every loop to
// exactly the configured period, independent of how long the transmit
// work took. The ramp is shortened so the transmit work fits well inside
// the period; a period shorter than the work degrades to back-to-back
// loops instead.
func TestLoopPeriodExact(t *testing.T) {
	const period = 2048
	c := newTestCore(t, map[Register]uint32{
		RegLoopPeriod: period,
		RegDACDiv:     0,
		RegRampEnd:    0x180, // 6 DAC words per loop
	})
	var marks []uint64
	last := uint32(0)
	runUntil(t, c, 4*period, func() bool {
		if c.LoopCount() != last {
			last = c.LoopCount()
			marks = append(marks, c.TickCount())
		}
		return last == 3
	})
	for i := 1; i < len(marks); i++ {
		if d := marks[i] - marks[i-1]; d != period {
			t.Errorf("loop %d took %d ticks, want %d", i+1, d, period)
		}
	}
}

// TestBandDividerScan walks a two-divider configuration through the full
// scan: bands advance within a divider's list, a band rollover advances
// the divider, and the divider change relatches the band list.
func TestBandDividerScan(t *testing.T) {
	c := newTestCore(t, map[Register]uint32{
		RegDividerList: 0b011,
		RegBandList0:   0b011,
		RegBandList1:   0b100,
		RegLoopPeriod:  2048,
		RegDACDiv:      0,
	})
	const loops = 5
	if _, err := c.RunLoops(loops, 1<<20); err != nil {
		t.Fatal(err)
	}
	synth := traceFor(c.Trace(), DeviceSynth)
	if len(synth) != loops*len(SynthProgram) {
		t.Fatalf("got %d synth words, want %d", len(synth), loops*len(SynthProgram))
	}
	want := []struct{ divider, band uint32 }{
		{0, 0}, // divider 0, first band of list 0b011
		{0, 1}, // band advance within divider 0
		{1, 2}, // band rollover: divider advances, list 0b100 relatched
		{0, 0}, // divider rollover wraps the whole scan
		{0, 1},
	}
	for i, w := range want {
		r4 := synth[i*len(SynthProgram)+3].Payload
		r0 := synth[i*len(SynthProgram)+7].Payload
		if got := r4 >> 20 & 0x7; got != w.divider {
			t.Errorf("loop %d: divider field = %d, want %d", i+1, got, w.divider)
		}
		if got := r0 >> 15 & 0xFF; got != w.band {
			t.Errorf("loop %d: band field = %d, want %d", i+1, got, w.band)
		}
	}
}

// TestDiagCounterChannel checks the always-on diagnostic engine: it
// retransmits the latched loop counter back to back, one word every
// transaction time plus the retrigger tick.
func TestDiagCounterChannel(t *testing.T) {
	c := newTestCore(t, map[Register]uint32{
		RegLoopPeriod: 2048,
		RegDACDiv:     0,
	})
	if _, err := c.RunLoops(2, 1<<16); err != nil {
		t.Fatal(err)
	}
	c.RunTicks(128) // let the counter update reach the wire
	diag := traceFor(c.Trace(), DeviceDiag)
	if len(diag) < 3 {
		t.Fatalf("only %d diag words", len(diag))
	}
	if diag[0].Tick != 1 || diag[0].Payload != 0 {
		t.Errorf("first diag word tick %d payload %d, want 1, 0",
			diag[0].Tick, diag[0].Payload)
	}
	interval := serialcmd.BusyTicks(serialcmd.MaxBits, 0) + 1
	for i := 1; i < len(diag); i++ {
		if d := diag[i].Tick - diag[i-1].Tick; d != interval {
			t.Errorf("diag word %d: %d ticks after previous, want %d", i, d, interval)
		}
		if diag[i].Payload < diag[i-1].Payload {
			t.Errorf("diag word %d: counter went backwards (%d -> %d)",
				i, diag[i-1].Payload, diag[i].Payload)
		}
	}
	if last := diag[len(diag)-1].Payload; last != 2 {
		t.Errorf("final diag payload = %d, want 2", last)
	}
}

func TestDisableResets(t *testing.T) {
	c := newTestCore(t, map[Register]uint32{RegLoopPeriod: 2048, RegDACDiv: 0})
	if _, err := c.RunLoops(1, 1<<16); err != nil {
		t.Fatal(err)
	}
	if err := c.Registers().Write(RegCtrl, 0); err != nil {
		t.Fatal(err)
	}
	c.Tick()
	if c.State() != SeqStart {
		t.Errorf("state = %v after disable, want START", c.State())
	}
	if c.TickCount() != 0 || c.LoopCount() != 0 {
		t.Errorf("counters not cleared: tick %d loops %d", c.TickCount(), c.LoopCount())
	}
	for name, pins := range map[string]serialcmd.Pins{
		"synth": c.SynthPins(), "dac": c.DACPins(), "diag": c.DiagPins(),
	} {
		if pins.CSN != 0xFF || pins.SCLK || pins.SDATA {
			t.Errorf("%s pins not idle after disable: %+v", name, pins)
		}
	}
	if len(c.Trace()) == 0 {
		t.Error("trace must survive a core reset")
	}

	// re-enable and confirm a clean second run
	c.TakeTrace()
	if err := c.Registers().Write(RegCtrl, CtrlEnable); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RunLoops(1, 1<<16); err != nil {
		t.Fatal(err)
	}
	if got := len(traceFor(c.Trace(), DeviceSynth)); got != len(SynthProgram) {
		t.Errorf("second run sent %d synth words, want %d", got, len(SynthProgram))
	}
}

func TestTriggerTimeHold(t *testing.T) {
	c := newTestCore(t, map[Register]uint32{RegTrigTimeLo: 500})
	c.RunTicks(499)
	if c.State() != SeqStart {
		t.Fatalf("started before trigger time: state %v", c.State())
	}
	if synth := traceFor(c.Trace(), DeviceSynth); len(synth) != 0 {
		t.Errorf("%d synth words before trigger time", len(synth))
	}
	// the diagnostic channel runs regardless of the trigger comparator
	if diag := traceFor(c.Trace(), DeviceDiag); len(diag) == 0 {
		t.Error("diag channel held by trigger time")
	}
	runUntil(t, c, 64, func() bool { return c.State() == SeqSetFrequency })
	if c.TickCount() < 500 {
		t.Errorf("sequencing began at tick %d, want >= 500", c.TickCount())
	}
}

func TestRunLoopsBudget(t *testing.T) {
	regs := DefaultRegisters() // disabled: no loop can ever complete
	c := NewCore(regs)
	stepped, err := c.RunLoops(1, 100)
	if !errors.Is(err, ErrTickBudget) {
		t.Fatalf("err = %v, want ErrTickBudget", err)
	}
	if stepped != 100 {
		t.Errorf("stepped = %d, want 100", stepped)
	}
}
