package metaspace

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ArenaState is the lifecycle state of a SpaceManager.
type ArenaState uint8

const (
	ArenaEmpty ArenaState = iota
	ArenaActive
	ArenaRetired
)

func (s ArenaState) String() string {
	switch s {
	case ArenaEmpty:
		return "empty"
	case ArenaActive:
		return "active"
	case ArenaRetired:
		return "retired"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

var arenaids atomic.Uint64

// SpaceManager is the allocation front end of one class loader arena.
// It carves word sized allocations out of chunks acquired from a
// ChunkManager, growing chunk sizes along its Sequence.
//
// The arena lock may be held while taking the ChunkManager lock, never
// the other way round.
type SpaceManager struct {
	sync.Mutex

	id   ArenaID
	name string
	cm   *ChunkManager
	seq  Sequence

	enlarge    bool
	enlargeMax Level
	salvage    bool
	verify     bool

	state    ArenaState
	current  *Chunk
	chunks   []*Chunk
	acquired int
	blocks   freeBlocks
	byLevel  [NumLevels]int

	// counters, in words.
	capacity uint64
	used     uint64
	overhead uint64
}

// NewSpaceManager returns an empty arena that follows seq when asking
// cm for chunks.
func NewSpaceManager(name string, cm *ChunkManager, seq Sequence) *SpaceManager {
	if len(seq) == 0 {
		panic(fmt.Errorf("%w: empty", ErrInvalidSequence))
	}
	sm := &SpaceManager{
		id:      ArenaID(arenaids.Add(1)),
		name:    name,
		cm:      cm,
		seq:     seq,
		enlarge: cm.options.EnlargeInPlace,
		salvage: cm.options.SalvageTails,
		verify:  cm.options.Verify,
	}
	if sm.enlarge {
		sm.enlargeMax = LevelFitting(cm.options.EnlargeMaxWords)
	}
	return sm
}

// ID returns the arena identifier stamped on owned chunks.
func (sm *SpaceManager) ID() ArenaID { return sm.id }

// Name returns the arena name.
func (sm *SpaceManager) Name() string { return sm.name }

// State returns the lifecycle state.
func (sm *SpaceManager) State() ArenaState {
	sm.Lock()
	defer sm.Unlock()
	return sm.state
}

// Allocate returns the address of words fresh words. It tries, in
// order, the free blocks, the current chunk, growing the current chunk
// in place, and a new chunk.
func (sm *SpaceManager) Allocate(words uint64) (Addr, error) {
	if words == 0 {
		return 0, ErrInvalidSize
	}
	if words > MaxChunkWords {
		return 0, fmt.Errorf("%w: %d words", ErrTooLarge, words)
	}
	sm.Lock()
	defer sm.Unlock()

	if sm.state == ArenaRetired {
		panicerr("arena %s: allocate after retire", sm.name)
	}
	if addr, ok := sm.blocks.get(words); ok {
		sm.used += words
		return addr, nil
	}
	if c := sm.current; c != nil && c.freeWords() >= words {
		return sm.allocateFrom(c, words)
	}
	if sm.enlargeCurrent(words) {
		return sm.allocateFrom(sm.current, words)
	}
	if err := sm.newChunk(words); err != nil {
		return 0, err
	}
	return sm.allocateFrom(sm.current, words)
}

func (sm *SpaceManager) allocateFrom(c *Chunk, words uint64) (Addr, error) {
	if c.freeCommittedWords() < words {
		before := c.committed
		if err := sm.cm.commit(c, c.used+words); err != nil {
			return 0, err
		}
		sm.capacity += c.committed - before
	}
	addr := c.allocate(words)
	sm.used += words
	return addr, nil
}

// enlargeCurrent grows the current chunk by merging it with free
// buddies until words fit.
func (sm *SpaceManager) enlargeCurrent(words uint64) bool {
	c := sm.current
	if !sm.enlarge || c == nil {
		return false
	}
	if want := LevelFitting(c.used + words); want == InvalidLevel || want > sm.enlargeMax {
		return false
	}
	for c.freeWords() < words {
		before, level := c.committed, c.level
		if !sm.cm.enlarge(c) {
			return false
		}
		sm.byLevel[level]--
		sm.byLevel[c.level]++
		sm.capacity += c.committed - before
	}
	return true
}

// newChunk makes a freshly acquired chunk current. The tail of the old
// current chunk is abandoned, or salvaged into the free blocks.
func (sm *SpaceManager) newChunk(words uint64) error {
	level := sm.seq.Next(sm.acquired)
	if fit := LevelFitting(words); fit > level {
		level = fit
	}
	c, err := sm.cm.acquire(level, sm.id)
	if err != nil {
		return err
	}
	if old := sm.current; old != nil {
		tail := old.freeCommittedWords()
		if sm.salvage {
			sm.blocks.put(old.base+Addr(old.used*WordBytes), tail)
			old.used += tail
		} else {
			sm.overhead += tail
		}
	}
	sm.acquired++
	sm.chunks = append(sm.chunks, c)
	sm.byLevel[c.level]++
	sm.current = c
	sm.capacity += c.committed
	sm.state = ArenaActive
	debugf("arena %s: chunk %d is %v", sm.name, sm.acquired, c)
	return nil
}

// Deallocate hands words at addr back to the arena. The space is reused
// by later allocations of this arena only.
func (sm *SpaceManager) Deallocate(addr Addr, words uint64) {
	sm.Lock()
	defer sm.Unlock()

	if sm.state == ArenaRetired {
		panicerr("arena %s: deallocate after retire", sm.name)
	}
	if words == 0 || words > sm.used {
		panicerr("arena %s: deallocate %d words, %d in use", sm.name, words, sm.used)
	}
	if sm.verify {
		sm.checkRange(addr, words)
	}
	sm.blocks.put(addr, words)
	sm.used -= words
}

func (sm *SpaceManager) checkRange(addr Addr, words uint64) {
	for _, c := range sm.chunks {
		if c.contains(addr, words) {
			if sm.blocks.overlaps(addr, words) {
				panicerr("arena %s: %#x+%d already deallocated", sm.name, addr, words)
			}
			return
		}
	}
	panicerr("arena %s: %#x+%d not allocated here", sm.name, addr, words)
}

// Retire releases every chunk to the ChunkManager. An arena is retired
// exactly once, a second call panics.
func (sm *SpaceManager) Retire() {
	sm.Lock()
	defer sm.Unlock()

	if sm.state == ArenaRetired {
		panicerr("arena %s: retired twice", sm.name)
	}
	for _, c := range sm.chunks {
		if c.owner != sm.id {
			panicerr("arena %s: chunk %v owned by arena %d", sm.name, c, c.owner)
		}
		sm.cm.Release(c)
	}
	infof("arena %s: retired %d chunks, %d/%d words used", sm.name, len(sm.chunks), sm.used, sm.capacity)

	sm.current, sm.chunks = nil, nil
	sm.blocks.clear()
	sm.byLevel = [NumLevels]int{}
	sm.capacity, sm.used, sm.overhead = 0, 0, 0
	sm.state = ArenaRetired
}

// Stats returns a snapshot of the arena counters.
func (sm *SpaceManager) Stats() ArenaStats {
	sm.Lock()
	defer sm.Unlock()

	return ArenaStats{
		ID:             sm.id,
		Name:           sm.name,
		State:          sm.state.String(),
		CapacityWords:  sm.capacity,
		UsedWords:      sm.used,
		OverheadWords:  sm.overhead,
		FreeBlockWords: sm.blocks.words,
		FreeBlocks:     sm.blocks.count,
		ChunksAcquired: sm.acquired,
		ChunksByLevel:  sm.byLevel,
	}
}
