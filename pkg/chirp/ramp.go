package chirp

// Ramp tracks the DAC code sweep for one chirp: the code climbs from the
// start bound by the step size until it reaches or exceeds the end bound,
// then one closing word at the start value returns the DAC to its resting
// level.
type Ramp struct {
	Code  uint32
	Start uint32
	End   uint32
	Step  uint32
}

// rampCodeMask bounds every latched value to the 12-bit DAC code range,
// so the stepped code can never wrap uint32 below the end bound.
const rampCodeMask = 0xFFF

// Latch loads the sweep bounds for a new chirp and rests the code at the
// start bound. Values are masked to the 12-bit DAC code range.
func (r *Ramp) Latch(start, end, step uint32) {
	r.Start, r.End, r.Step = start&rampCodeMask, end&rampCodeMask, step&rampCodeMask
	r.Code = r.Start
}

// Degenerate reports whether the sweep cannot make progress (zero step or
// an end bound at or below the start); such a ramp emits only the start
// and closing words.
func (r *Ramp) Degenerate() bool {
	return r.Step == 0 || r.End <= r.Start
}

// Advance steps the code and reports whether it reached the end bound.
// The stepped code is still transmitted; the closing word, not a clamp,
// brings the output back.
func (r *Ramp) Advance() (code uint32, done bool) {
	r.Code += r.Step
	return r.Code, r.Code >= r.End
}

// Close resets the code for the next sweep and returns the closing value,
// which is always the start bound.
func (r *Ramp) Close() uint32 {
	r.Code = r.Start + r.Step
	return r.Start
}
