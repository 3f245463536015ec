package metaspace

import "fmt"

// ArenaID identifies the SpaceManager owning a chunk. Zero means the
// chunk is free and belongs to its ChunkManager.
type ArenaID uint64

// Chunk is a contiguous region at one level. Its memory layout:
//
//	base                     base+used   base+committed   base+size
//	 +--------------------------+-------------+---------------+
//	 |          used            | committed   | uncommitted   |
//	 +--------------------------+-------------+---------------+
type Chunk struct {
	level     Level
	base      Addr
	node      *node
	committed uint64 // words
	used      uint64 // words
	free      bool
	owner     ArenaID

	prev, next *Chunk
}

// Level returns the chunk level.
func (c *Chunk) Level() Level { return c.level }

// Base returns the first address of the chunk.
func (c *Chunk) Base() Addr { return c.base }

// Words returns the chunk size in words.
func (c *Chunk) Words() uint64 { return c.level.WordSize() }

// Committed returns the committed words, counted from base.
func (c *Chunk) Committed() uint64 { return c.committed }

// Used returns the allocated words, counted from base.
func (c *Chunk) Used() uint64 { return c.used }

// IsFree reports whether the chunk sits in a ChunkManager free list.
func (c *Chunk) IsFree() bool { return c.free }

// Owner returns the owning arena, 0 if free.
func (c *Chunk) Owner() ArenaID { return c.owner }

// Region returns the address range of the chunk.
func (c *Chunk) Region() Region {
	return Region{Base: c.base, Size: c.level.ByteSize()}
}

// index is the position of the chunk among same-level chunks of its node.
func (c *Chunk) index() uint64 {
	return uint64(c.base-c.node.region.Base) / c.level.ByteSize()
}

func (c *Chunk) key() chunkKey {
	return newChunkKey(c.level, c.index())
}

func (c *Chunk) isRoot() bool {
	return c.level == MaxLevel
}

// isLeader reports whether c is the lower half of its parent.
func (c *Chunk) isLeader() bool {
	return c.index()&1 == 0
}

func (c *Chunk) freeWords() uint64 {
	return c.Words() - c.used
}

func (c *Chunk) freeCommittedWords() uint64 {
	return c.committed - c.used
}

// contains reports whether [addr, addr+words) lies in the used area.
func (c *Chunk) contains(addr Addr, words uint64) bool {
	top := c.base + Addr(c.used*WordBytes)
	return addr >= c.base && addr+Addr(words*WordBytes) <= top
}

// allocate bumps the used top. Caller ensures it is committed.
func (c *Chunk) allocate(words uint64) Addr {
	if c.used+words > c.committed {
		panicerr("chunk %v: allocate %d words beyond committed %d", c, words, c.committed)
	}
	addr := c.base + Addr(c.used*WordBytes)
	c.used += words
	return addr
}

func (c *Chunk) verify() {
	if !c.level.IsValid() {
		panicerr("chunk %#x: invalid level %d", c.base, c.level)
	}
	if c.used > c.committed || c.committed > c.Words() {
		panicerr("chunk %v: used %d committed %d size %d", c, c.used, c.committed, c.Words())
	}
	if uint64(c.base-c.node.region.Base)%c.level.ByteSize() != 0 {
		panicerr("chunk %v: base not aligned to its size", c)
	}
	if c.free && c.owner != 0 {
		panicerr("chunk %v: free chunk owned by arena %d", c, c.owner)
	}
}

func (c *Chunk) String() string {
	state := "free"
	if !c.free {
		state = fmt.Sprintf("arena-%d", c.owner)
	}
	return fmt.Sprintf("%v@%#x(%d/%d,%s)", c.level, c.base, c.used, c.committed, state)
}

// isBuddy reports whether two same-level indices are the two halves of
// one parent chunk.
func isBuddy(i, j uint64) bool {
	return i^j == 1
}
