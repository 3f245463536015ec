package metaspace

import (
	"errors"
	"fmt"
	"sync"
)

// ChunkManager owns free chunks, one free list per level. Requests are
// served by exact match, by splitting a larger free chunk, or by
// reserving a new root chunk from the provider. Returned chunks are
// merged with their buddies as far as possible.
//
// One lock serializes every operation, including provider calls.
type ChunkManager struct {
	sync.Mutex

	name     string
	provider VirtualSpaceProvider
	limiter  *CommitLimiter
	options  Options
	reclaim  reclaim
	verify   bool

	free   freeLists
	nodes  []*node
	nodeid uint32

	// runtime stats.
	reserved  uint64 // bytes
	committed uint64 // words
	splits    uint64
	merges    uint64
	purged    uint64
}

// NewChunkManager returns an empty chunk manager feeding off provider.
// A nil limiter means no commit limit.
func NewChunkManager(
	name string, provider VirtualSpaceProvider, limiter *CommitLimiter, options Options) *ChunkManager {

	if limiter == nil {
		limiter = NewCommitLimiter(0)
	}
	return &ChunkManager{
		name:     name,
		provider: provider,
		limiter:  limiter,
		options:  options,
		reclaim:  options.Reclaim.settings(),
		verify:   options.Verify,
	}
}

// Name returns the name given at construction.
func (cm *ChunkManager) Name() string {
	return cm.name
}

// Acquire returns a chunk of exactly level. The chunk is in use and
// owned by the caller until handed back with Release.
func (cm *ChunkManager) Acquire(level Level) (*Chunk, error) {
	return cm.acquire(level, 0)
}

func (cm *ChunkManager) acquire(level Level, owner ArenaID) (*Chunk, error) {
	if !level.IsValid() {
		panicerr("%s: acquire of invalid level %d", cm.name, level)
	}
	cm.Lock()
	defer cm.Unlock()

	c, err := cm.take(level)
	if err != nil {
		return nil, err
	}
	if err := cm.commitLocked(c, min(c.Words(), cm.reclaim.granuleWords)); err != nil {
		cm.returnLocked(c)
		return nil, err
	}
	c.free, c.owner = false, owner
	if cm.verify {
		c.verify()
	}
	return c, nil
}

// take removes a chunk of level from the free lists, splitting or
// expanding as needed.
func (cm *ChunkManager) take(level Level) (*Chunk, error) {
	if c := cm.free.take(level); c != nil {
		return c, nil
	}
	from := cm.free.smallestAbove(level)
	if from == InvalidLevel {
		if err := cm.expand(); err != nil {
			return nil, err
		}
		from = MaxLevel
	}
	c := cm.free.take(from)
	for c.level > level {
		c = cm.split(c)
	}
	return c, nil
}

// expand reserves one root chunk and adds it to the free lists.
func (cm *ChunkManager) expand() error {
	region, err := cm.provider.Reserve(RootChunkBytes)
	if err != nil {
		if !errors.Is(err, ErrOutOfMemory) {
			err = fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		}
		warnf("%s: reserve of root chunk failed: %v", cm.name, err)
		return err
	}
	cm.nodeid++
	n := newNode(cm.nodeid, region, cm, cm.reclaim.granuleWords)
	root := &Chunk{level: MaxLevel, base: region.Base, node: n, free: true}
	n.insert(root)

	if cm.reclaim.commitWhole {
		if err := cm.commitLocked(root, root.Words()); err != nil {
			n.remove(root)
			if rerr := cm.provider.Release(region); rerr != nil {
				errorf("%s: release of node %d failed: %v", cm.name, n.id, rerr)
			}
			return err
		}
	}
	cm.nodes = append(cm.nodes, n)
	cm.reserved += region.Size
	cm.free.add(root)
	infof("%s: new node %d at %#x (%d nodes)", cm.name, n.id, region.Base, len(cm.nodes))
	return nil
}

// split halves a chunk taken off the free lists. The follower goes on
// the free lists, the leader is returned.
func (cm *ChunkManager) split(c *Chunk) *Chunk {
	n := c.node
	n.remove(c)
	c.level--
	follower := &Chunk{
		level: c.level,
		base:  c.base + Addr(c.level.ByteSize()),
		node:  n,
		free:  true,
	}
	n.insert(c)
	n.insert(follower)
	c.committed = n.committedPrefix(c)
	follower.committed = n.committedPrefix(follower)
	cm.free.add(follower)
	cm.splits++
	debugf("%s: split into %v and %v", cm.name, c, follower)
	return c
}

// merge joins two free buddies into their parent. The follower chunk
// is dead afterwards.
func (cm *ChunkManager) merge(a, b *Chunk) *Chunk {
	if a.level != b.level || a.node != b.node || !isBuddy(a.index(), b.index()) {
		panicerr("%s: merge of non-buddies %v and %v", cm.name, a, b)
	}
	leader, follower := a, b
	if b.base < a.base {
		leader, follower = b, a
	}
	n := leader.node
	n.remove(leader)
	n.remove(follower)
	leader.level++
	n.insert(leader)
	leader.committed = n.committedPrefix(leader)
	follower.node, follower.prev, follower.next = nil, nil, nil
	cm.merges++
	debugf("%s: merged into %v", cm.name, leader)
	return leader
}

// Release hands a chunk back. It is merged with free buddies and must
// not be touched by the caller afterwards.
func (cm *ChunkManager) Release(c *Chunk) {
	cm.Lock()
	defer cm.Unlock()

	cm.checkInUse(c)
	c.free, c.owner, c.used = true, 0, 0
	cm.returnLocked(c)
}

func (cm *ChunkManager) checkInUse(c *Chunk) {
	if c == nil || c.node == nil || c.node.manager != cm {
		panicerr("%s: release of unknown chunk %v", cm.name, c)
	}
	if c.free {
		panicerr("%s: release of free chunk %v", cm.name, c)
	}
	if c.node.lookup(c.level, c.index()) != c {
		panicerr("%s: chunk %v not in node %d", cm.name, c, c.node.id)
	}
}

func (cm *ChunkManager) returnLocked(c *Chunk) {
	c.free, c.owner, c.used = true, 0, 0
	for !c.isRoot() {
		buddy := c.node.lookup(c.level, c.index()^1)
		if buddy == nil || !buddy.free {
			break
		}
		cm.free.remove(buddy)
		c = cm.merge(c, buddy)
	}
	if cm.reclaim.uncommitOnReturn && c.Words() >= cm.reclaim.granuleWords {
		cm.uncommitLocked(c)
	}
	if cm.verify {
		c.verify()
	}
	cm.free.add(c)
}

// enlarge merges an in-use leader chunk with its free follower buddy.
func (cm *ChunkManager) enlarge(c *Chunk) bool {
	cm.Lock()
	defer cm.Unlock()

	if c.isRoot() || !c.isLeader() {
		return false
	}
	buddy := c.node.lookup(c.level, c.index()^1)
	if buddy == nil || !buddy.free {
		return false
	}
	cm.free.remove(buddy)
	merged := cm.merge(c, buddy)
	if merged != c {
		panicerr("%s: enlarge moved chunk %v", cm.name, c)
	}
	debugf("%s: enlarged %v in place", cm.name, c)
	return true
}

// commit makes sure the first upto words of c are committed.
func (cm *ChunkManager) commit(c *Chunk, upto uint64) error {
	cm.Lock()
	defer cm.Unlock()
	return cm.commitLocked(c, upto)
}

func (cm *ChunkManager) commitLocked(c *Chunk, upto uint64) error {
	if upto <= c.committed {
		return nil
	}
	if upto > c.Words() {
		panicerr("%s: commit %d words beyond chunk %v", cm.name, upto, c)
	}
	n := c.node
	runs := n.runs(n.wordOffset(c.base), upto, false)
	words := uint64(0)
	for _, run := range runs {
		words += n.runWords(run)
	}
	if words > 0 && !cm.limiter.tryIncrease(words) {
		warnf("%s: commit of %d words hits limit %d", cm.name, words, cm.limiter.Cap())
		return ErrCommitLimit
	}
	for i, run := range runs {
		if err := cm.provider.Commit(n.runRegion(run)); err != nil {
			for _, rest := range runs[i:] {
				cm.limiter.decrease(n.runWords(rest))
			}
			return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		}
		n.mark(run, true)
		cm.committed += n.runWords(run)
	}
	c.committed = n.committedPrefix(c)
	if c.committed < upto {
		panicerr("%s: chunk %v committed %d after commit of %d", cm.name, c, c.committed, upto)
	}
	return nil
}

// uncommitLocked gives back the granules of a free chunk. Chunks
// smaller than a granule share it with neighbours and are left alone.
func (cm *ChunkManager) uncommitLocked(c *Chunk) {
	n := c.node
	if c.Words() < n.granuleWords {
		return
	}
	for _, run := range n.runs(n.wordOffset(c.base), c.Words(), true) {
		if err := cm.provider.Uncommit(n.runRegion(run)); err != nil {
			errorf("%s: uncommit of %v failed: %v", cm.name, c, err)
			continue
		}
		n.mark(run, false)
		cm.limiter.decrease(n.runWords(run))
		cm.committed -= n.runWords(run)
	}
	c.committed = n.committedPrefix(c)
}

// Purge releases nodes whose root chunk is free back to the provider,
// and uncommits free chunks, as the reclaim strategy allows. It
// returns the number of released nodes.
func (cm *ChunkManager) Purge() int {
	cm.Lock()
	defer cm.Unlock()

	released := 0
	if cm.reclaim.deleteNodesOnPurge {
		live := cm.nodes[:0]
		for _, n := range cm.nodes {
			root := n.root()
			if root == nil || !root.free {
				live = append(live, n)
				continue
			}
			cm.free.remove(root)
			cm.uncommitLocked(root)
			if err := cm.provider.Release(n.region); err != nil {
				errorf("%s: release of node %d failed: %v", cm.name, n.id, err)
				cm.free.add(root)
				live = append(live, n)
				continue
			}
			n.remove(root)
			root.node = nil
			cm.reserved -= n.region.Size
			released++
		}
		for i := len(live); i < len(cm.nodes); i++ {
			cm.nodes[i] = nil
		}
		cm.nodes = live
	}
	if cm.reclaim.uncommitOnPurge {
		for l := range cm.free.lists {
			for c := cm.free.lists[l].head; c != nil; c = c.next {
				if c.committed > 0 {
					cm.uncommitLocked(c)
				}
			}
		}
	}
	cm.purged += uint64(released)
	if released > 0 {
		infof("%s: purged %d nodes, %d left", cm.name, released, len(cm.nodes))
	}
	return released
}

// Stats returns a snapshot of the free lists and counters.
func (cm *ChunkManager) Stats() ChunkManagerStats {
	cm.Lock()
	defer cm.Unlock()

	return ChunkManagerStats{
		Name:           cm.name,
		Nodes:          len(cm.nodes),
		FreeChunks:     cm.free.counts(),
		FreeWords:      cm.free.words,
		ReservedWords:  cm.reserved / WordBytes,
		CommittedWords: cm.committed,
		Splits:         cm.splits,
		Merges:         cm.merges,
		PurgedNodes:    cm.purged,
	}
}

// Verify walks every free list and node and panics on the first broken
// invariant.
func (cm *ChunkManager) Verify() {
	cm.Lock()
	defer cm.Unlock()

	words := uint64(0)
	for l := range cm.free.lists {
		count := 0
		for c := cm.free.lists[l].head; c != nil; c = c.next {
			if !c.free || c.level != Level(l) {
				panicerr("%s: chunk %v in free list %v", cm.name, c, Level(l))
			}
			if c.node == nil || c.node.lookup(c.level, c.index()) != c {
				panicerr("%s: free chunk %v unknown to its node", cm.name, c)
			}
			if !c.isRoot() {
				if b := c.node.lookup(c.level, c.index()^1); b != nil && b.free {
					panicerr("%s: free buddies %v and %v not merged", cm.name, c, b)
				}
			}
			c.verify()
			words += c.Words()
			count++
		}
		if count != cm.free.lists[l].count {
			panicerr("%s: free list %v counts %d, has %d", cm.name, Level(l), cm.free.lists[l].count, count)
		}
	}
	if words != cm.free.words {
		panicerr("%s: free words %d, counted %d", cm.name, cm.free.words, words)
	}
	covered := uint64(0)
	for _, n := range cm.nodes {
		n.chunks.Scan(func(_ chunkKey, c *Chunk) bool {
			covered += c.Words()
			return true
		})
	}
	if covered != uint64(len(cm.nodes))*MaxChunkWords {
		panicerr("%s: chunks cover %d words of %d nodes", cm.name, covered, len(cm.nodes))
	}
}
