package metaspace

import (
	"fmt"

	s "github.com/bnclabs/gosettings"
	sigar "github.com/cloudfoundry/gosigar"
)

// Defaultsettings for a Metaspace.
//
// "shards" (int64, default: 64),
//		Number of loader registry shards, a power of two.
//
// "reclaim" (string, default: "balanced"),
//		One of "none", "balanced" or "aggressive". Picks commit granule
//		size and whether free chunks and nodes are given back.
//
// "commit.limit" (int64, default: free RAM in words),
//		Maximum committed words across class and non-class space.
//		Zero is unlimited.
//
// "classspace.enable" (bool, default: true),
//		Serve class metadata from its own chunk manager.
//
// "classspace.size" (int64, default: 1GB in words),
//		Reserve limit of the class space in words, zero is unlimited.
//
// "enlarge.inplace" (bool, default: false),
//		Grow an arena's current chunk by merging it with a free buddy.
//
// "enlarge.maxwords" (int64, default: 256K),
//		Largest chunk an in place enlarge may produce.
//
// "tails.salvage" (bool, default: false),
//		Keep the tail of a replaced chunk as a free block.
//
// "verify" (bool, default: false),
//		Check chunk ownership and deallocated ranges.
//
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	return s.Settings{
		"shards":            int64(DefaultOptions.ShardCount),
		"reclaim":           DefaultOptions.Reclaim.String(),
		"commit.limit":      int64(free / WordBytes),
		"classspace.enable": DefaultOptions.UseClassSpace,
		"classspace.size":   int64(DefaultOptions.ClassSpaceWords),
		"enlarge.inplace":   DefaultOptions.EnlargeInPlace,
		"enlarge.maxwords":  int64(DefaultOptions.EnlargeMaxWords),
		"tails.salvage":     DefaultOptions.SalvageTails,
		"verify":            DefaultOptions.Verify,
	}
}

// NewOptions reads Options from setts, missing keys take their default.
func NewOptions(setts s.Settings) (Options, error) {
	setts = Defaultsettings().Mixin(setts)

	reclaim, err := ParseReclaimStrategy(setts.String("reclaim"))
	if err != nil {
		return Options{}, err
	}
	for _, key := range []string{"shards", "commit.limit", "classspace.size", "enlarge.maxwords"} {
		if setts.Int64(key) < 0 {
			return Options{}, fmt.Errorf("metaspace/options: negative %q", key)
		}
	}
	options := Options{
		ShardCount:       uint32(setts.Int64("shards")),
		Reclaim:          reclaim,
		CommitLimitWords: uint64(setts.Int64("commit.limit")),
		UseClassSpace:    setts.Bool("classspace.enable"),
		ClassSpaceWords:  uint64(setts.Int64("classspace.size")),
		EnlargeInPlace:   setts.Bool("enlarge.inplace"),
		EnlargeMaxWords:  uint64(setts.Int64("enlarge.maxwords")),
		SalvageTails:     setts.Bool("tails.salvage"),
		Verify:           setts.Bool("verify"),
	}
	if err := checkOptions(options); err != nil {
		return Options{}, err
	}
	return options, nil
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}
