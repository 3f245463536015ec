package metaspace

import (
	"errors"
	"fmt"
)

// ReclaimStrategy decides how eagerly memory goes back to the provider.
type ReclaimStrategy uint8

const (
	ReclaimBalanced ReclaimStrategy = iota
	ReclaimNone
	ReclaimAggressive
)

func (r ReclaimStrategy) String() string {
	switch r {
	case ReclaimBalanced:
		return "balanced"
	case ReclaimNone:
		return "none"
	case ReclaimAggressive:
		return "aggressive"
	}
	return fmt.Sprintf("reclaim(%d)", uint8(r))
}

// ParseReclaimStrategy is the inverse of ReclaimStrategy.String.
func ParseReclaimStrategy(s string) (ReclaimStrategy, error) {
	switch s {
	case "balanced", "":
		return ReclaimBalanced, nil
	case "none":
		return ReclaimNone, nil
	case "aggressive":
		return ReclaimAggressive, nil
	}
	return 0, fmt.Errorf("metaspace/options: invalid reclaim strategy %q", s)
}

// reclaim holds what a strategy implies.
type reclaim struct {
	granuleWords       uint64
	commitWhole        bool // fresh root chunks are fully committed
	uncommitOnReturn   bool
	deleteNodesOnPurge bool
	uncommitOnPurge    bool
}

func (r ReclaimStrategy) settings() reclaim {
	switch r {
	case ReclaimNone:
		return reclaim{granuleWords: 8 * 1024, commitWhole: true}
	case ReclaimAggressive:
		return reclaim{
			granuleWords:       2 * 1024,
			uncommitOnReturn:   true,
			deleteNodesOnPurge: true,
			uncommitOnPurge:    true,
		}
	}
	return reclaim{
		granuleWords:       8 * 1024,
		uncommitOnReturn:   true,
		deleteNodesOnPurge: true,
		uncommitOnPurge:    true,
	}
}

// Options is the configuration of a Metaspace.
type Options struct {
	// ShardCount is the number of loader registry shards, a power of two.
	ShardCount uint32

	// Reclaim selects commit granule size and uncommit behaviour.
	Reclaim ReclaimStrategy

	// CommitLimitWords caps committed words across both spaces, 0 is unlimited.
	CommitLimitWords uint64

	// UseClassSpace gives class metadata its own chunk manager.
	// ClassSpaceWords limits its reserved size, 0 is unlimited.
	UseClassSpace   bool
	ClassSpaceWords uint64

	// EnlargeInPlace lets an arena grow its current chunk by merging it
	// with a free buddy, up to EnlargeMaxWords.
	EnlargeInPlace  bool
	EnlargeMaxWords uint64

	// SalvageTails moves the unused tail of a replaced chunk into the
	// arena's free blocks instead of abandoning it.
	SalvageTails bool

	// Verify enables chunk ownership and range checks.
	Verify bool
}

// DefaultOptions
var DefaultOptions = Options{
	ShardCount:      64,
	Reclaim:         ReclaimBalanced,
	UseClassSpace:   true,
	ClassSpaceWords: 1024 * 1024 * 1024 / WordBytes, // 1 GB
	EnlargeMaxWords: 256 * 1024,
}

func checkOptions(options Options) error {
	if options.ShardCount == 0 || options.ShardCount&(options.ShardCount-1) != 0 {
		return errors.New("metaspace/options: shard count must be a power of two")
	}
	if options.Reclaim > ReclaimAggressive {
		return errors.New("metaspace/options: invalid reclaim strategy")
	}
	if options.EnlargeInPlace && LevelFitting(options.EnlargeMaxWords) == InvalidLevel {
		return errors.New("metaspace/options: invalid enlarge limit")
	}
	if w := options.ClassSpaceWords; w > 0 && w < MaxChunkWords {
		return errors.New("metaspace/options: class space smaller than one root chunk")
	}
	return nil
}
