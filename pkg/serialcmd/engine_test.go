package serialcmd

import (
	"errors"
	"testing"
)

func startOrFatal(t *testing.T, e *Engine, req Request) {
	t.Helper()
	if !e.Start(req) {
		t.Fatalf("start rejected: %+v", req)
	}
	// acceptance tick: the engine latches the request and leaves WAIT_TRIGGER
	e.Tick()
	if e.State() != PreIdle {
		t.Fatalf("expected PRE_IDLE after acceptance, got %s", e.State())
	}
}

// ticksToReady steps the engine until ready reasserts, returning the tick
// count measured from start acceptance.
func ticksToReady(t *testing.T, e *Engine) uint64 {
	t.Helper()
	var n uint64
	for !e.Ready() {
		e.Tick()
		n++
		if n > 1<<16 {
			t.Fatal("engine never reasserted ready")
		}
	}
	return n
}

func TestBusyTicks(t *testing.T) {
	cases := []struct {
		bits uint8
		div  uint32
		want uint64
	}{
		{8, 0, 19},
		{24, 1, 99},
		{32, 3, 259},
		{1, 0, 5},
	}
	for _, c := range cases {
		if got := BusyTicks(c.bits, c.div); got != c.want {
			t.Errorf("BusyTicks(%d, %d) = %d, want %d", c.bits, c.div, got, c.want)
		}
	}
}

func TestEngineTiming(t *testing.T) {
	for _, edge := range []EdgeMode{ShiftFalling, ShiftRising} {
		t.Run(edge.String(), func(t *testing.T) {
			for _, div := range []uint32{0, 1, 4} {
				for _, bits := range []uint8{8, 24, 32} {
					e := New()
					startOrFatal(t, e, Request{Targets: 0x01, Payload: 0xDEADBEEF, Bits: bits, Divisor: div, Edge: edge})
					got := ticksToReady(t, e)
					want := BusyTicks(bits, div)
					if got != want {
						t.Errorf("bits=%d div=%d: busy for %d ticks, want %d", bits, div, got, want)
					}
				}
			}
		})
	}
}

func TestChipSelectWindow(t *testing.T) {
	const bits, div = 8, 0
	e := New()
	startOrFatal(t, e, Request{Targets: 0x04, Payload: 0xA5, Bits: bits, Divisor: div, Edge: ShiftRising})

	// CS asserted from PRE_IDLE through POST_IDLE: everything but the final
	// IDLE_SELECT tick of the busy window.
	window := BusyTicks(bits, div) - idleSelectTicks
	for n := uint64(0); n < window; n++ {
		if p := e.Pins(); p.CSN != ^uint8(0x04) {
			t.Fatalf("tick %d: CSN = %08b, want line 2 low", n, p.CSN)
		}
		e.Tick()
	}
	// IDLE_SELECT: released exactly one tick after the last bit completes
	if p := e.Pins(); p.CSN != 0xFF {
		t.Fatalf("CSN = %08b after POST_IDLE, want all lines high", p.CSN)
	}
	e.Tick()
	if !e.Ready() {
		t.Error("engine not ready after IDLE_SELECT")
	}
	if p := e.Pins(); p.CSN != 0xFF {
		t.Errorf("CSN = %08b while idle, want all lines high", p.CSN)
	}
}

// sampleBits clocks out a whole transaction and records SDATA at each
// sampling edge of SCLK (the edge opposite the shift edge).
func sampleBits(t *testing.T, e *Engine, req Request) []bool {
	t.Helper()
	startOrFatal(t, e, req)
	var (
		got      []bool
		lastSCLK = e.Pins().SCLK
	)
	for !e.Ready() {
		e.Tick()
		p := e.Pins()
		rising := !lastSCLK && p.SCLK
		falling := lastSCLK && !p.SCLK
		if (req.Edge == ShiftFalling && rising) || (req.Edge == ShiftRising && falling) {
			got = append(got, p.SDATA)
		}
		lastSCLK = p.SCLK
	}
	return got
}

func TestBitOrder(t *testing.T) {
	want := []bool{true, false, true, false, false, true, false, true} // 0xA5 MSB first

	t.Run("ShiftRising", func(t *testing.T) {
		got := sampleBits(t, New(), Request{Targets: 0x01, Payload: 0xA5, Bits: 8, Divisor: 0, Edge: ShiftRising})
		assertBits(t, got, want)
	})
	t.Run("ShiftFalling", func(t *testing.T) {
		got := sampleBits(t, New(), Request{Targets: 0x01, Payload: 0xA5, Bits: 8, Divisor: 0, Edge: ShiftFalling})
		assertBits(t, got, want)
	})
	t.Run("DividedClock", func(t *testing.T) {
		got := sampleBits(t, New(), Request{Targets: 0x01, Payload: 0xA5, Bits: 8, Divisor: 3, Edge: ShiftFalling})
		assertBits(t, got, want)
	})
	t.Run("WideWord", func(t *testing.T) {
		got := sampleBits(t, New(), Request{Targets: 0x01, Payload: 0x00C0FFEE, Bits: 24, Divisor: 0, Edge: ShiftFalling})
		want24 := make([]bool, 24)
		for i := 0; i < 24; i++ {
			want24[i] = (0x00C0FFEE>>(23-i))&1 == 1
		}
		assertBits(t, got, want24)
	})
}

func assertBits(t *testing.T, got, want []bool) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("sampled %d bits, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bit %d: got %t, want %t", i, got[i], want[i])
		}
	}
}

func TestSingleTransactionInFlight(t *testing.T) {
	e := New()
	req := Request{Targets: 0x01, Payload: 0xFF, Bits: 8, Divisor: 0, Edge: ShiftFalling}
	if !e.Start(req) {
		t.Fatal("first start rejected")
	}
	if e.Ready() {
		t.Error("ready must deassert as soon as start is pending")
	}
	if e.Start(req) {
		t.Error("second start accepted while one is pending")
	}
	e.Tick()
	for !e.Ready() {
		if e.Start(req) {
			t.Fatalf("start accepted mid-transaction in state %s", e.State())
		}
		e.Tick()
	}
	if !e.Start(req) {
		t.Error("start rejected after transaction completed")
	}
}

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"ZeroBits", Request{Targets: 1, Bits: 0}},
		{"TooWide", Request{Targets: 1, Bits: 33}},
		{"NoTarget", Request{Targets: 0, Bits: 8}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.req.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrBadRequest) {
				t.Errorf("error %v does not wrap ErrBadRequest", err)
			}
			if e := New(); e.Start(c.req) {
				t.Error("engine accepted invalid request")
			}
		})
	}

	if err := (Request{Targets: 1, Payload: 0xA5, Bits: 8}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResetMidTransaction(t *testing.T) {
	e := New()
	startOrFatal(t, e, Request{Targets: 0x01, Payload: 0xA5, Bits: 8, Divisor: 2, Edge: ShiftFalling})
	for i := 0; i < 5; i++ {
		e.Tick()
	}
	e.Reset()
	if !e.Ready() {
		t.Error("not ready after reset")
	}
	if p := e.Pins(); p.SCLK || p.SDATA || p.CSN != 0xFF {
		t.Errorf("lines not idle after reset: %+v", p)
	}
	// the discarded transaction must not leak into the next one
	startOrFatal(t, e, Request{Targets: 0x01, Payload: 0x5A, Bits: 8, Divisor: 0, Edge: ShiftFalling})
	if got := ticksToReady(t, e); got != BusyTicks(8, 0) {
		t.Errorf("busy for %d ticks after reset, want %d", got, BusyTicks(8, 0))
	}
}
