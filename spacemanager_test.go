package metaspace

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func newTestArena(options Options, seq Sequence) (*SpaceManager, *ChunkManager) {
	cm, _ := newTestManager(options, 0)
	return NewSpaceManager("test", cm, seq), cm
}

func TestSpaceManagerSequence(t *testing.T) {
	assert := assert.New(t)

	seq, err := NewSequence(Level1K, Level1K, Level2K)
	assert.Nil(err)
	sm, _ := newTestArena(testOptions(), seq)
	assert.Equal(ArenaEmpty, sm.State())

	for _, words := range []uint64{1000, 1000, 1000, 1500} {
		_, err := sm.Allocate(words)
		assert.Nil(err)
	}
	assert.Equal(ArenaActive, sm.State())

	stat := sm.Stats()
	assert.Equal(4, stat.ChunksAcquired)
	assert.Equal(2, stat.ChunksByLevel[Level1K])
	assert.Equal(2, stat.ChunksByLevel[Level2K])
	assert.Equal(uint64(1024+1024+2048+2048), stat.CapacityWords)
	assert.Equal(uint64(4500), stat.UsedWords)
	// tails of 24, 24 and 1048 words were left behind.
	assert.Equal(uint64(24+24+1048), stat.OverheadWords)
}

func TestSpaceManagerLargeRequest(t *testing.T) {
	assert := assert.New(t)
	sm, _ := newTestArena(testOptions(), SequenceFor(StandardCategory, false))

	_, err := sm.Allocate(100 * 1024)
	assert.Nil(err)
	assert.Equal(1, sm.Stats().ChunksByLevel[Level128K])

	_, err = sm.Allocate(0)
	assert.True(errors.Is(err, ErrInvalidSize))
	_, err = sm.Allocate(MaxChunkWords + 1)
	assert.True(errors.Is(err, ErrTooLarge))

	_, err = sm.Allocate(MaxChunkWords)
	assert.Nil(err)
	assert.Equal(1, sm.Stats().ChunksByLevel[Level4M])
}

func TestSpaceManagerRoundTrip(t *testing.T) {
	assert := assert.New(t)
	sm, _ := newTestArena(testOptions(), SequenceFor(StandardCategory, false))

	a, err := sm.Allocate(100)
	assert.Nil(err)
	_, err = sm.Allocate(10)
	assert.Nil(err)

	sm.Deallocate(a, 100)
	stat := sm.Stats()
	assert.Equal(uint64(10), stat.UsedWords)
	assert.Equal(uint64(100), stat.FreeBlockWords)

	b, err := sm.Allocate(100)
	assert.Nil(err)
	assert.Equal(a, b)

	sm.Deallocate(b, 100)
	c, err := sm.Allocate(60)
	assert.Nil(err)
	assert.Equal(a, c)
	d, err := sm.Allocate(40)
	assert.Nil(err)
	assert.Equal(a+60*WordBytes, d)
	assert.Equal(0, sm.Stats().FreeBlocks)
}

func TestSpaceManagerEndToEnd(t *testing.T) {
	assert := assert.New(t)
	sm, cm := newTestArena(testOptions(), SequenceFor(StandardCategory, false))

	a, err := sm.Allocate(3000)
	assert.Nil(err)
	stat := sm.Stats()
	assert.Equal(uint64(4096), stat.CapacityWords)
	assert.Equal(uint64(3000), stat.UsedWords)

	b, err := sm.Allocate(2000)
	assert.Nil(err)
	assert.NotEqual(a, b)
	stat = sm.Stats()
	assert.Equal(2, stat.ChunksAcquired)
	assert.Equal(2, stat.ChunksByLevel[Level4K])
	assert.Equal(uint64(8192), stat.CapacityWords)
	assert.Equal(uint64(5000), stat.UsedWords)
	assert.Equal(uint64(1096), stat.OverheadWords)

	sm.Retire()
	assert.Equal(ArenaRetired, sm.State())
	stat = sm.Stats()
	assert.Equal(uint64(0), stat.CapacityWords)
	assert.Equal(uint64(0), stat.UsedWords)

	cstat := cm.Stats()
	assert.Equal(1, cstat.FreeChunks[MaxLevel])
	assert.Equal(MaxChunkWords, cstat.FreeWords)
	cm.Verify()
}

func TestSpaceManagerSalvage(t *testing.T) {
	assert := assert.New(t)
	options := testOptions()
	options.SalvageTails = true
	sm, _ := newTestArena(options, SequenceFor(StandardCategory, false))

	a, err := sm.Allocate(3000)
	assert.Nil(err)
	_, err = sm.Allocate(2000)
	assert.Nil(err)

	stat := sm.Stats()
	assert.Equal(uint64(0), stat.OverheadWords)
	assert.Equal(uint64(1096), stat.FreeBlockWords)

	c, err := sm.Allocate(1000)
	assert.Nil(err)
	assert.Equal(a+3000*WordBytes, c)
	assert.Equal(2, sm.Stats().ChunksAcquired)
}

func TestSpaceManagerEnlarge(t *testing.T) {
	assert := assert.New(t)
	options := testOptions()
	options.EnlargeInPlace = true
	sm, cm := newTestArena(options, SequenceFor(StandardCategory, false))

	a, err := sm.Allocate(3000)
	assert.Nil(err)
	b, err := sm.Allocate(2000)
	assert.Nil(err)
	assert.Equal(a+3000*WordBytes, b)

	stat := sm.Stats()
	assert.Equal(1, stat.ChunksAcquired)
	assert.Equal(0, stat.ChunksByLevel[Level4K])
	assert.Equal(1, stat.ChunksByLevel[Level8K])
	assert.Equal(uint64(8192), stat.CapacityWords)
	assert.Equal(uint64(0), stat.OverheadWords)

	sm.Retire()
	assert.Equal(MaxChunkWords, cm.Stats().FreeWords)
	cm.Verify()
}

func TestSpaceManagerCommitLimit(t *testing.T) {
	assert := assert.New(t)

	limiter := NewCommitLimiter(8 * 1024)
	cm := NewChunkManager("test", NewVirtualSpace("test", 0), limiter, testOptions())
	sm := NewSpaceManager("test", cm, SequenceFor(StandardCategory, false))

	_, err := sm.Allocate(3000)
	assert.Nil(err)
	_, err = sm.Allocate(2000)
	assert.Nil(err)
	_, err = sm.Allocate(4000)
	assert.True(errors.Is(err, ErrCommitLimit))
	assert.Equal(uint64(5000), sm.Stats().UsedWords)

	sm.Retire()
	assert.Equal(uint64(0), limiter.Committed())
}

func TestSpaceManagerRetire(t *testing.T) {
	assert := assert.New(t)
	sm, _ := newTestArena(testOptions(), SequenceFor(AnonymousCategory, false))

	// retiring an empty arena is fine.
	sm.Retire()
	assert.Panics(func() { sm.Retire() })
	assert.Panics(func() { sm.Allocate(1) })
	assert.Panics(func() { sm.Deallocate(0x1000, 1) })
}

func TestSpaceManagerVerify(t *testing.T) {
	assert := assert.New(t)
	sm, _ := newTestArena(testOptions(), SequenceFor(StandardCategory, false))

	a, err := sm.Allocate(64)
	assert.Nil(err)
	_, err = sm.Allocate(64)
	assert.Nil(err)

	assert.Panics(func() { sm.Deallocate(0x10, 8) })
	assert.Panics(func() { sm.Deallocate(a, 1000) })

	sm.Deallocate(a, 64)
	assert.Panics(func() { sm.Deallocate(a+8, 8) })
}

func TestSpaceManagerDisjoint(t *testing.T) {
	assert := assert.New(t)
	sm, cm := newTestArena(testOptions(), SequenceFor(StandardCategory, false))

	type alloc struct {
		addr  Addr
		words uint64
	}
	var live []alloc
	used := uint64(0)
	for i := 0; i < 5000; i++ {
		if len(live) > 0 && rand.Intn(3) == 0 {
			k := rand.Intn(len(live))
			sm.Deallocate(live[k].addr, live[k].words)
			used -= live[k].words
			live = slices.Delete(live, k, k+1)
			continue
		}
		words := uint64(rand.Intn(2000) + 1)
		addr, err := sm.Allocate(words)
		assert.Nil(err)
		live = append(live, alloc{addr, words})
		used += words
	}

	slices.SortFunc(live, func(a, b alloc) int { return int(a.addr>>3) - int(b.addr>>3) })
	for i := 1; i < len(live); i++ {
		prev := live[i-1]
		if prev.addr+Addr(prev.words*WordBytes) > live[i].addr {
			t.Fatalf("%#x+%d overlaps %#x", prev.addr, prev.words, live[i].addr)
		}
	}

	stat := sm.Stats()
	assert.Equal(used, stat.UsedWords)
	assert.LessOrEqual(stat.UsedWords+stat.FreeBlockWords+stat.OverheadWords, stat.CapacityWords)

	sm.Retire()
	cm.Verify()
	assert.Equal(cm.Stats().Nodes, cm.Stats().FreeChunks[MaxLevel])
}
