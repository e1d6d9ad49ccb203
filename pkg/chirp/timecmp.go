package chirp

// TimeCompare is the 64-bit magnitude comparator used for trigger-time
// alignment: the sequencer holds in START until the free-running tick
// count reaches the configured trigger time.
type TimeCompare struct{}

// GreaterEq reports whether now has reached target.
func (TimeCompare) GreaterEq(now, target uint64) bool {
	return now >= target
}

// Equal is tied low. The equality output was never implemented in the
// original control logic; it is preserved here as permanently false and
// must not be given new semantics.
func (TimeCompare) Equal(_, _ uint64) bool {
	return false
}
