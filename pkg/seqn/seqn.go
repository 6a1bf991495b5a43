// Package seqn centralizes the mod-256 sequence arithmetic used by the
// global ordering window, the per-port ordering and the fragment counters.
// All comparisons are window-relative: a sequence is never meaningful on its
// own, only as a distance from an anchor. Windows must stay at or below 128
// so that "less than" is unambiguous.
package seqn

// Distance returns (a - anchor) mod 256: the position of a inside a window
// anchored at anchor.
func Distance(a, anchor uint8) uint8 {
	return a - anchor
}

// InWindow reports whether seq lies inside the window of the given size
// starting at anchor.
func InWindow(seq, anchor uint8, window uint16) bool {
	return uint16(Distance(seq, anchor)) < window
}

// Less reports whether a precedes b when both are interpreted relative to
// anchor.
func Less(a, b, anchor uint8) bool {
	return Distance(a, anchor) < Distance(b, anchor)
}

// Apart returns the symmetric modular distance between a and b, in 0..128:
// how far apart the two sequences are regardless of direction.
func Apart(a, b uint8) uint8 {
	d := Distance(a, b)
	if d > 128 {
		return -d
	}
	return d
}
