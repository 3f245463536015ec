package metaspace

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dustin/go-humanize"
)

// ChunkManagerStats
type ChunkManagerStats struct {
	Name           string         `json:"name"`
	Nodes          int            `json:"nodes"`
	FreeChunks     [NumLevels]int `json:"freeChunks"`
	FreeWords      uint64         `json:"freeWords"`
	ReservedWords  uint64         `json:"reservedWords"`
	CommittedWords uint64         `json:"committedWords"`
	Splits         uint64         `json:"splits"`
	Merges         uint64         `json:"merges"`
	PurgedNodes    uint64         `json:"purgedNodes"`
}

type chunkManagerStats ChunkManagerStats

// MarshalJSON renders free chunk counts keyed by level name.
func (s ChunkManagerStats) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(struct {
		chunkManagerStats
		FreeChunks map[string]int `json:"freeChunks"`
	}{chunkManagerStats(s), levelCounts(s.FreeChunks)})
}

func (s ChunkManagerStats) String() string {
	return fmt.Sprintf("%s: %d nodes, reserved %s, committed %s, free %s [%s]",
		s.Name, s.Nodes, words(s.ReservedWords), words(s.CommittedWords),
		words(s.FreeWords), levelString(s.FreeChunks))
}

// ArenaStats
type ArenaStats struct {
	ID             ArenaID        `json:"id"`
	Name           string         `json:"name"`
	State          string         `json:"state"`
	CapacityWords  uint64         `json:"capacityWords"`
	UsedWords      uint64         `json:"usedWords"`
	OverheadWords  uint64         `json:"overheadWords"`
	FreeBlockWords uint64         `json:"freeBlockWords"`
	FreeBlocks     int            `json:"freeBlocks"`
	ChunksAcquired int            `json:"chunksAcquired"`
	ChunksByLevel  [NumLevels]int `json:"chunksByLevel"`
}

type arenaStats ArenaStats

// MarshalJSON renders owned chunk counts keyed by level name.
func (s ArenaStats) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(struct {
		arenaStats
		ChunksByLevel map[string]int `json:"chunksByLevel"`
	}{arenaStats(s), levelCounts(s.ChunksByLevel)})
}

// Utilization is the used share of capacity, in percent.
func (s ArenaStats) Utilization() float64 {
	if s.CapacityWords == 0 {
		return 0
	}
	return float64(s.UsedWords) / float64(s.CapacityWords) * 100
}

func (s ArenaStats) String() string {
	return fmt.Sprintf("%s(%s): used %s of %s, overhead %s, %s in %d free blocks",
		s.Name, s.State, words(s.UsedWords), words(s.CapacityWords),
		words(s.OverheadWords), words(s.FreeBlockWords), s.FreeBlocks)
}

// LoaderStats
type LoaderStats struct {
	Name     string     `json:"name"`
	Category string     `json:"category"`
	NonClass ArenaStats `json:"nonClass"`
	Class    ArenaStats `json:"class"`
}

// UsedWords sums both arenas.
func (s LoaderStats) UsedWords() uint64 {
	return s.NonClass.UsedWords + s.Class.UsedWords
}

// CapacityWords sums both arenas.
func (s LoaderStats) CapacityWords() uint64 {
	return s.NonClass.CapacityWords + s.Class.CapacityWords
}

// MetaspaceStats
type MetaspaceStats struct {
	Loaders          int                `json:"loaders"`
	CapacityWords    uint64             `json:"capacityWords"`
	UsedWords        uint64             `json:"usedWords"`
	OverheadWords    uint64             `json:"overheadWords"`
	FreeBlockWords   uint64             `json:"freeBlockWords"`
	CommittedWords   uint64             `json:"committedWords"`
	CommitLimitWords uint64             `json:"commitLimitWords"`
	NonClass         ChunkManagerStats  `json:"nonClass"`
	Class            *ChunkManagerStats `json:"class,omitempty"`
}

// JSON
func (s MetaspaceStats) JSON() ([]byte, error) {
	return sonic.Marshal(s)
}

// Utilization is the used share of arena capacity, in percent.
func (s MetaspaceStats) Utilization() float64 {
	if s.CapacityWords == 0 {
		return 0
	}
	return float64(s.UsedWords) / float64(s.CapacityWords) * 100
}

func (s MetaspaceStats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "loaders %s, used %s of %s (%.1f%%), overhead %s, committed %s",
		humanize.Comma(int64(s.Loaders)), words(s.UsedWords), words(s.CapacityWords),
		s.Utilization(), words(s.OverheadWords), words(s.CommittedWords))
	if s.CommitLimitWords > 0 {
		fmt.Fprintf(&sb, " of %s", words(s.CommitLimitWords))
	}
	fmt.Fprintf(&sb, "\n  %v", s.NonClass)
	if s.Class != nil {
		fmt.Fprintf(&sb, "\n  %v", s.Class)
	}
	return sb.String()
}

func words(n uint64) string {
	return humanize.IBytes(n * WordBytes)
}

func levelCounts(counts [NumLevels]int) map[string]int {
	m := make(map[string]int, NumLevels)
	for l, n := range counts {
		if n > 0 {
			m[Level(l).String()] = n
		}
	}
	return m
}

func levelString(counts [NumLevels]int) string {
	parts := make([]string, 0, NumLevels)
	for l, n := range counts {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%v:%d", Level(l), n))
		}
	}
	return strings.Join(parts, " ")
}
