package metaspace

import (
	"math/bits"
	"slices"
)

// blockBins covers block sizes up to MaxChunkWords, bin b holds sizes
// in [2^b, 2^(b+1)).
const blockBins = 10 + NumLevels

type block struct {
	addr  Addr
	words uint64
}

// freeBlocks holds fragments handed back to an arena. Every bin is kept
// sorted by size, so the first adequate block found from the wanted bin
// upward is the best fit. The remainder of a split block is put back.
type freeBlocks struct {
	bins  [blockBins][]block
	count int
	words uint64
}

func toBin(words uint64) int {
	return bits.Len64(words) - 1
}

func cmpBlock(b block, words uint64) int {
	switch {
	case b.words < words:
		return -1
	case b.words > words:
		return 1
	}
	return 0
}

// put adds a fragment. Zero sized fragments are dropped.
func (fb *freeBlocks) put(addr Addr, words uint64) {
	if words == 0 {
		return
	}
	bin := toBin(words)
	if bin >= blockBins {
		panicerr("free block of %d words exceeds largest chunk", words)
	}
	i, _ := slices.BinarySearchFunc(fb.bins[bin], words, cmpBlock)
	fb.bins[bin] = slices.Insert(fb.bins[bin], i, block{addr, words})
	fb.count++
	fb.words += words
}

// get returns the start of a best fitting fragment of at least words.
func (fb *freeBlocks) get(words uint64) (Addr, bool) {
	if words == 0 || fb.count == 0 {
		return 0, false
	}
	for bin := toBin(words); bin < blockBins; bin++ {
		i, _ := slices.BinarySearchFunc(fb.bins[bin], words, cmpBlock)
		if i == len(fb.bins[bin]) {
			continue
		}
		b := fb.bins[bin][i]
		fb.bins[bin] = slices.Delete(fb.bins[bin], i, i+1)
		fb.count--
		fb.words -= b.words
		// split the block
		fb.put(b.addr+Addr(words*WordBytes), b.words-words)
		return b.addr, true
	}
	return 0, false
}

// overlaps reports whether [addr, addr+words) intersects a free block.
func (fb *freeBlocks) overlaps(addr Addr, words uint64) bool {
	end := addr + Addr(words*WordBytes)
	for _, bin := range fb.bins {
		for _, b := range bin {
			if addr < b.addr+Addr(b.words*WordBytes) && b.addr < end {
				return true
			}
		}
	}
	return false
}

func (fb *freeBlocks) clear() {
	*fb = freeBlocks{}
}
