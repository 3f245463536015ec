package metaspace

import (
	"github.com/tidwall/hashmap"
)

// chunkKey names a chunk inside its node.
// +--------+------------------------------------------------------+
// | level  |                      index(56)                       |
// +--------+------------------------------------------------------+
type chunkKey uint64

const (
	keyLevelShift = 56
	keyIndexMask  = 1<<keyLevelShift - 1
)

func newChunkKey(level Level, index uint64) chunkKey {
	if index > keyIndexMask {
		panic("chunk index overflow")
	}
	return chunkKey(uint64(level)<<keyLevelShift | index)
}

func (k chunkKey) level() Level {
	return Level(k >> keyLevelShift)
}

func (k chunkKey) index() uint64 {
	return uint64(k & keyIndexMask)
}

// node is one reserved root-chunk region. It knows every live chunk
// carved from it and which commit granules are backed.
type node struct {
	id      uint32
	region  Region
	manager *ChunkManager
	chunks  *hashmap.Map[chunkKey, *Chunk]

	granuleWords uint64
	granules     []bool
	committed    uint64 // words
}

func newNode(id uint32, region Region, manager *ChunkManager, granuleWords uint64) *node {
	return &node{
		id:           id,
		region:       region,
		manager:      manager,
		chunks:       hashmap.New[chunkKey, *Chunk](64),
		granuleWords: granuleWords,
		granules:     make([]bool, MaxChunkWords/granuleWords),
	}
}

func (n *node) lookup(level Level, index uint64) *Chunk {
	c, _ := n.chunks.Get(newChunkKey(level, index))
	return c
}

func (n *node) insert(c *Chunk) {
	if _, replaced := n.chunks.Set(c.key(), c); replaced {
		panicerr("node %d: chunk %v inserted twice", n.id, c)
	}
}

func (n *node) remove(c *Chunk) {
	if _, ok := n.chunks.Delete(c.key()); !ok {
		panicerr("node %d: chunk %v not found", n.id, c)
	}
}

func (n *node) root() *Chunk {
	return n.lookup(MaxLevel, 0)
}

// wordOffset returns the offset of addr from the node base, in words.
func (n *node) wordOffset(addr Addr) uint64 {
	return uint64(addr-n.region.Base) / WordBytes
}

// granuleSpan returns the granules covering [off, off+words).
func (n *node) granuleSpan(off, words uint64) (from, to uint64) {
	from = off / n.granuleWords
	to = (off + words + n.granuleWords - 1) / n.granuleWords
	return from, to
}

// committedPrefix returns how many words of c, from its base, are
// committed.
func (n *node) committedPrefix(c *Chunk) uint64 {
	off, words := n.wordOffset(c.base), c.Words()
	from, to := n.granuleSpan(off, words)
	prefix := uint64(0)
	for g := from; g < to && n.granules[g]; g++ {
		prefix += n.granuleWords
	}
	return min(prefix, words)
}

// granuleRun is a run of granules sharing the same committed state.
type granuleRun struct {
	from, to uint64
}

func (n *node) runs(off, words uint64, committed bool) []granuleRun {
	var runs []granuleRun
	from, to := n.granuleSpan(off, words)
	for g := from; g < to; g++ {
		if n.granules[g] != committed {
			continue
		}
		if k := len(runs) - 1; k >= 0 && runs[k].to == g {
			runs[k].to = g + 1
		} else {
			runs = append(runs, granuleRun{from: g, to: g + 1})
		}
	}
	return runs
}

func (n *node) runRegion(run granuleRun) Region {
	gbytes := n.granuleWords * WordBytes
	return Region{
		Base: n.region.Base + Addr(run.from*gbytes),
		Size: (run.to - run.from) * gbytes,
	}
}

func (n *node) runWords(run granuleRun) uint64 {
	return (run.to - run.from) * n.granuleWords
}

func (n *node) mark(run granuleRun, committed bool) {
	for g := run.from; g < run.to; g++ {
		n.granules[g] = committed
	}
	if committed {
		n.committed += n.runWords(run)
	} else {
		n.committed -= n.runWords(run)
	}
}
