package metaspace

import (
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
)

func TestCommitLimiter(t *testing.T) {
	assert := assert.New(t)

	cl := NewCommitLimiter(100)
	assert.True(cl.tryIncrease(60))
	assert.False(cl.tryIncrease(41))
	assert.Equal(uint64(60), cl.Committed())
	assert.Equal(uint64(40), cl.Possible())
	assert.True(cl.tryIncrease(40))
	assert.Equal(uint64(0), cl.Possible())

	cl.decrease(100)
	assert.Equal(uint64(0), cl.Committed())
	assert.Panics(func() { cl.decrease(1) })

	unlimited := NewCommitLimiter(0)
	assert.True(unlimited.tryIncrease(1 << 40))
	assert.Greater(unlimited.Possible(), uint64(0))
}

func TestCommitLimiterConcurrent(t *testing.T) {
	cl := NewCommitLimiter(1000)

	var wg conc.WaitGroup
	var booked [16]int
	for g := 0; g < len(booked); g++ {
		g := g
		wg.Go(func() {
			for i := 0; i < 200; i++ {
				if cl.tryIncrease(1) {
					booked[g]++
				}
			}
		})
	}
	wg.Wait()

	total := 0
	for _, n := range booked {
		total += n
	}
	assert.Equal(t, 1000, total)
	assert.Equal(t, uint64(1000), cl.Committed())
}
