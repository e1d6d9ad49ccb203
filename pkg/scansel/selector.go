// Package scansel implements the pipelined "next eligible entry" selector
// shared by the band and divider scan logic. One parameterized component
// serves both instantiations so the two copies cannot drift.
package scansel

import (
	"errors"
	"fmt"
	"math/bits"
)

// List is a scan list: a bitset with one bit per candidate entry. Bit index
// order defines priority, ascending.
type List uint64

// Eligible reports whether entry i is marked eligible.
func (l List) Eligible(i uint) bool {
	return i < 64 && l&(1<<i) != 0
}

// MaxWidth is the widest scan list a selector can be built for.
const MaxWidth = 64

var (
	ErrBadWidth = errors.New("scansel: selector width out of range")
	// ErrSelectorBusy is returned by the synchronous API when a request is
	// issued before the readiness window of the previous one has elapsed.
	ErrSelectorBusy = errors.New("scansel: request issued while selector busy")
)

func widthMask(width uint) uint64 {
	if width >= MaxWidth {
		return ^uint64(0)
	}
	return 1<<width - 1
}

// NextEligible is the selection policy in pure form.
//
// A fresh latch ignores current and returns the lowest eligible index in
// list (rollover false unless the list is empty). An advance returns the
// lowest eligible index strictly greater than current; if none exists it
// wraps to the lowest eligible index overall with rollover asserted. An
// empty list yields 0 with rollover asserted.
func NextEligible(list List, width uint, current uint, fresh bool) (next uint, rollover bool) {
	masked := uint64(list) & widthMask(width)
	if masked == 0 {
		return 0, true
	}
	if !fresh {
		above := masked &^ (uint64(1)<<(current+1) - 1)
		if current >= MaxWidth-1 {
			above = 0
		}
		if above != 0 {
			return uint(bits.TrailingZeros64(above)), false
		}
		return uint(bits.TrailingZeros64(masked)), true
	}
	return uint(bits.TrailingZeros64(masked)), false
}

// Readiness window after any request: pipeline latency plus in-flight
// settle time. The caller must not issue a new request while not ready;
// the tick-level API does not reject early requests (the overlap result is
// unspecified, as on the wire) but the synchronous Select API does.
const ReadyTicks = 4

// Selector computes next-eligible-entry selections through a fixed-latency
// three-stage pipeline (mask-and-filter, priority-encode,
// compare-and-select). A fresh-list latch commits 2 ticks after the
// request; an advance commits 3 ticks after.
type Selector struct {
	width uint
	list  List

	current  uint
	rollover bool

	// request input, sampled at the next tick boundary
	reqValid bool
	reqFresh bool
	reqList  List

	// stage 1 output: filtered bitsets
	s1Valid bool
	s1Fresh bool
	s1All   uint64 // eligible entries
	s1Above uint64 // eligible entries strictly above current

	// stage 2 output: encoded indices, -1 when no entry qualified
	s2Valid   bool
	s2After   int
	s2Overall int

	busy uint // readiness window countdown
}

// New builds a selector for scan lists of the given width (1..MaxWidth).
// The initial selection is index 0 with rollover asserted, the
// empty-list resting state.
func New(width uint) (*Selector, error) {
	if width == 0 || width > MaxWidth {
		return nil, fmt.Errorf("%w: %d", ErrBadWidth, width)
	}
	return &Selector{width: width, rollover: true}, nil
}

// Width returns the scan list width the selector was built for.
func (s *Selector) Width() uint { return s.width }

// Index returns the committed selection. It refers to an eligible entry,
// or equals 0 exactly when the latched list is empty (rollover asserted).
func (s *Selector) Index() uint { return s.current }

// Rollover reports whether the last committed operation wrapped (or found
// an empty list).
func (s *Selector) Rollover() bool { return s.rollover }

// Ready reports whether a new request may be issued this tick.
func (s *Selector) Ready() bool { return s.busy == 0 && !s.reqValid }

// Latch asserts a fresh-list request: the list is latched and the lowest
// eligible entry selected, ignoring the current index. The result commits
// 2 ticks after the request.
func (s *Selector) Latch(list List) {
	s.reqValid = true
	s.reqFresh = true
	s.reqList = list
	s.busy = ReadyTicks
}

// Advance asserts an advance request against the latched list. The result
// commits 3 ticks after the request.
func (s *Selector) Advance() {
	s.reqValid = true
	s.reqFresh = false
	s.busy = ReadyTicks
}

// Reset synchronously drops any in-flight request and returns the selector
// to its initial state.
func (s *Selector) Reset() {
	s.list = 0
	s.current = 0
	s.rollover = true
	s.reqValid = false
	s.s1Valid = false
	s.s2Valid = false
	s.busy = 0
}

// Tick advances the pipeline by one tick. Later stages run first so each
// stage consumes the values its predecessor registered on the previous
// tick.
func (s *Selector) Tick() {
	// compare-and-select: commit an advance result
	if s.s2Valid {
		s.s2Valid = false
		switch {
		case s.s2After >= 0:
			s.current, s.rollover = uint(s.s2After), false
		case s.s2Overall >= 0:
			s.current, s.rollover = uint(s.s2Overall), true
		default:
			s.current, s.rollover = 0, true
		}
	}

	// priority-encode; fresh latches commit here, one stage early
	if s.s1Valid {
		s.s1Valid = false
		if s.s1Fresh {
			if s.s1All == 0 {
				s.current, s.rollover = 0, true
			} else {
				s.current, s.rollover = uint(bits.TrailingZeros64(s.s1All)), false
			}
		} else {
			s.s2After = encode(s.s1Above)
			s.s2Overall = encode(s.s1All)
			s.s2Valid = true
		}
	}

	// mask-and-filter: sample the request input
	if s.reqValid {
		s.reqValid = false
		if s.reqFresh {
			s.list = s.reqList
		}
		s.s1Fresh = s.reqFresh
		s.s1All = uint64(s.list) & widthMask(s.width)
		s.s1Above = 0
		if !s.reqFresh && s.current < MaxWidth-1 {
			s.s1Above = s.s1All &^ (uint64(1)<<(s.current+1) - 1)
		}
		s.s1Valid = true
	}

	if s.busy > 0 {
		s.busy--
	}
}

func encode(set uint64) int {
	if set == 0 {
		return -1
	}
	return bits.TrailingZeros64(set)
}

// Request describes one synchronous selection operation.
type Request struct {
	// Fresh latches List and selects its lowest eligible entry; otherwise
	// the request advances past the current selection.
	Fresh bool
	List  List
}

// Select is the request/result API built atop the tick pipeline for
// callers that do not share a tick domain with the selector. Unlike the
// raw tick API it enforces the request spacing discipline, returning
// ErrSelectorBusy instead of an unspecified overlapped result.
func (s *Selector) Select(req Request) (next uint, rollover bool, err error) {
	if !s.Ready() {
		return 0, false, ErrSelectorBusy
	}
	if req.Fresh {
		s.Latch(req.List)
	} else {
		s.Advance()
	}
	for i := 0; i < ReadyTicks; i++ {
		s.Tick()
	}
	return s.current, s.rollover, nil
}
