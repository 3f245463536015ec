package metaspace

import (
	"fmt"
	"sync"

	"github.com/tidwall/hashmap"
	"github.com/zeebo/xxh3"
)

// Metaspace is the explicit context tying class loaders to a non-class
// and an optional class ChunkManager. Loaders are spread over shards by
// the hash of their name.
type Metaspace struct {
	options Options
	limiter *CommitLimiter

	nonClass *ChunkManager
	class    *ChunkManager // nil without class space

	mask   uint64
	shards []*shard
}

type shard struct {
	sync.RWMutex
	loaders *hashmap.Map[string, *ClassLoaderMetaspace]

	// runtime stats.
	registered uint64
	unloaded   uint64
}

// New returns a Metaspace backed by in-process virtual spaces.
func New(options Options) (*Metaspace, error) {
	var class VirtualSpaceProvider
	if options.UseClassSpace {
		class = NewVirtualSpace("class", options.ClassSpaceWords*WordBytes)
	}
	return NewWithProviders(options, NewVirtualSpace("nonclass", 0), class)
}

// NewWithProviders is New with caller supplied providers. class is
// ignored unless options.UseClassSpace is set.
func NewWithProviders(options Options, nonClass, class VirtualSpaceProvider) (*Metaspace, error) {
	if err := checkOptions(options); err != nil {
		return nil, err
	}
	if nonClass == nil || (options.UseClassSpace && class == nil) {
		return nil, fmt.Errorf("metaspace: missing virtual space provider")
	}
	limiter := NewCommitLimiter(options.CommitLimitWords)
	ms := &Metaspace{
		options:  options,
		limiter:  limiter,
		nonClass: NewChunkManager("nonclass", nonClass, limiter, options),
		mask:     uint64(options.ShardCount - 1),
		shards:   make([]*shard, options.ShardCount),
	}
	if options.UseClassSpace {
		ms.class = NewChunkManager("class", class, limiter, options)
	}
	for i := range ms.shards {
		ms.shards[i] = &shard{loaders: hashmap.New[string, *ClassLoaderMetaspace](8)}
	}
	return ms, nil
}

func (ms *Metaspace) shard(name string) *shard {
	return ms.shards[xxh3.HashString(name)&ms.mask]
}

// Options returns the options the Metaspace was built with.
func (ms *Metaspace) Options() Options {
	return ms.options
}

// Limiter returns the commit limiter shared by both chunk managers.
func (ms *Metaspace) Limiter() *CommitLimiter {
	return ms.limiter
}

// ChunkManager returns the chunk manager serving class or non-class
// metadata. Without class space both map to the non-class manager.
func (ms *Metaspace) ChunkManager(isClass bool) *ChunkManager {
	if isClass && ms.class != nil {
		return ms.class
	}
	return ms.nonClass
}

// Register creates the metaspace of a new class loader. An unknown
// category panics.
func (ms *Metaspace) Register(name string, category Category) (*ClassLoaderMetaspace, error) {
	loader := newClassLoaderMetaspace(ms, name, category)

	s := ms.shard(name)
	s.Lock()
	defer s.Unlock()

	if _, ok := s.loaders.Get(name); ok {
		return nil, fmt.Errorf("%w: %q", ErrLoaderExists, name)
	}
	s.loaders.Set(name, loader)
	s.registered++
	return loader, nil
}

// Loader returns a registered loader.
func (ms *Metaspace) Loader(name string) (*ClassLoaderMetaspace, bool) {
	s := ms.shard(name)
	s.RLock()
	defer s.RUnlock()
	return s.loaders.Get(name)
}

// Unload removes a loader and returns all of its chunks.
func (ms *Metaspace) Unload(name string) error {
	s := ms.shard(name)
	s.Lock()
	loader, ok := s.loaders.Delete(name)
	if ok {
		s.unloaded++
	}
	s.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrLoaderNotFound, name)
	}
	loader.retire()
	return nil
}

// Scan calls f for every loader until f returns false.
func (ms *Metaspace) Scan(f func(*ClassLoaderMetaspace) bool) {
	for _, s := range ms.shards {
		s.RLock()
		loaders := s.loaders.Values()
		s.RUnlock()
		for _, loader := range loaders {
			if !f(loader) {
				return
			}
		}
	}
}

// Len returns the number of registered loaders.
func (ms *Metaspace) Len() (n int) {
	for _, s := range ms.shards {
		s.RLock()
		n += s.loaders.Len()
		s.RUnlock()
	}
	return
}

// Purge gives unused nodes and free committed memory back to the
// providers. It returns the number of released nodes.
func (ms *Metaspace) Purge() int {
	n := ms.nonClass.Purge()
	if ms.class != nil {
		n += ms.class.Purge()
	}
	return n
}

// Verify checks both chunk managers.
func (ms *Metaspace) Verify() {
	ms.nonClass.Verify()
	if ms.class != nil {
		ms.class.Verify()
	}
}

// Stats
func (ms *Metaspace) Stats() (stat MetaspaceStats) {
	ms.Scan(func(loader *ClassLoaderMetaspace) bool {
		ls := loader.Stats()
		for _, as := range []ArenaStats{ls.NonClass, ls.Class} {
			stat.CapacityWords += as.CapacityWords
			stat.UsedWords += as.UsedWords
			stat.OverheadWords += as.OverheadWords
			stat.FreeBlockWords += as.FreeBlockWords
		}
		stat.Loaders++
		return true
	})
	stat.CommittedWords = ms.limiter.Committed()
	stat.CommitLimitWords = ms.limiter.Cap()
	stat.NonClass = ms.nonClass.Stats()
	if ms.class != nil {
		cs := ms.class.Stats()
		stat.Class = &cs
	}
	return
}
