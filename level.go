package metaspace

import "fmt"

// WordBytes is the size of one metadata word.
const WordBytes = 8

// Level is an index into the chunk size ladder. Level i+1 is exactly
// twice the size of level i.
type Level int8

const (
	Level1K Level = iota
	Level2K
	Level4K
	Level8K
	Level16K
	Level32K
	Level64K
	Level128K
	Level256K
	Level512K
	Level1M
	Level2M
	Level4M
)

const (
	MinLevel  = Level1K
	MaxLevel  = Level4M
	NumLevels = int(MaxLevel) + 1

	// InvalidLevel is returned when no level can serve a request.
	InvalidLevel Level = -1

	MinChunkWords = uint64(1024)
	MaxChunkWords = MinChunkWords << MaxLevel

	// RootChunkBytes is the size of one virtual space node.
	RootChunkBytes = MaxChunkWords * WordBytes
)

// IsValid reports whether l lies on the ladder.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// WordSize returns the chunk size of level l, in words.
func (l Level) WordSize() uint64 {
	if !l.IsValid() {
		panicerr("invalid chunk level %d", l)
	}
	return MinChunkWords << l
}

// ByteSize returns the chunk size of level l, in bytes.
func (l Level) ByteSize() uint64 {
	return l.WordSize() * WordBytes
}

// Larger returns the next larger level, or InvalidLevel for MaxLevel.
func (l Level) Larger() Level {
	if !l.IsValid() || l == MaxLevel {
		return InvalidLevel
	}
	return l + 1
}

// Smaller returns the next smaller level, or InvalidLevel for MinLevel.
func (l Level) Smaller() Level {
	if !l.IsValid() || l == MinLevel {
		return InvalidLevel
	}
	return l - 1
}

func (l Level) String() string {
	if !l.IsValid() {
		return fmt.Sprintf("invalid(%d)", int8(l))
	}
	w := l.WordSize()
	if w >= 1<<20 {
		return fmt.Sprintf("%dM", w>>20)
	}
	return fmt.Sprintf("%dK", w>>10)
}

// LevelFitting returns the smallest level able to hold words.
// Zero words and sizes beyond the largest chunk yield InvalidLevel.
func LevelFitting(words uint64) Level {
	if words == 0 || words > MaxChunkWords {
		return InvalidLevel
	}
	level := MinLevel
	for level.WordSize() < words {
		level++
	}
	return level
}
