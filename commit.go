package metaspace

import "sync/atomic"

// CommitLimiter counts committed words across chunk managers and
// refuses commits beyond an optional cap.
type CommitLimiter struct {
	capWords  uint64 // 0 is unlimited
	committed atomic.Uint64
}

// NewCommitLimiter returns a limiter capped at capWords, zero means
// unlimited.
func NewCommitLimiter(capWords uint64) *CommitLimiter {
	return &CommitLimiter{capWords: capWords}
}

// Cap returns the cap in words, zero if unlimited.
func (cl *CommitLimiter) Cap() uint64 {
	return cl.capWords
}

// Committed returns the committed words.
func (cl *CommitLimiter) Committed() uint64 {
	return cl.committed.Load()
}

// Possible returns how many more words may be committed.
func (cl *CommitLimiter) Possible() uint64 {
	if cl.capWords == 0 {
		return MaxChunkWords << 16
	}
	if c := cl.committed.Load(); c < cl.capWords {
		return cl.capWords - c
	}
	return 0
}

// tryIncrease books words, failing without side effect when the cap
// would be exceeded.
func (cl *CommitLimiter) tryIncrease(words uint64) bool {
	for {
		old := cl.committed.Load()
		if cl.capWords > 0 && old+words > cl.capWords {
			return false
		}
		if cl.committed.CompareAndSwap(old, old+words) {
			return true
		}
	}
}

func (cl *CommitLimiter) decrease(words uint64) {
	for {
		old := cl.committed.Load()
		if old < words {
			panicerr("commit limiter underflow: %d < %d", old, words)
		}
		if cl.committed.CompareAndSwap(old, old-words) {
			return
		}
	}
}
