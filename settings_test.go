package metaspace

import (
	"testing"

	s "github.com/bnclabs/gosettings"
	"github.com/stretchr/testify/assert"
)

func TestDefaultsettings(t *testing.T) {
	assert := assert.New(t)

	setts := Defaultsettings()
	assert.Equal(int64(64), setts.Int64("shards"))
	assert.Equal("balanced", setts.String("reclaim"))
	assert.True(setts.Bool("classspace.enable"))
	assert.GreaterOrEqual(setts.Int64("commit.limit"), int64(0))

	options, err := NewOptions(s.Settings{})
	assert.Nil(err)
	assert.Equal(DefaultOptions.ShardCount, options.ShardCount)
	assert.Equal(DefaultOptions.ClassSpaceWords, options.ClassSpaceWords)
	assert.Equal(ReclaimBalanced, options.Reclaim)
}

func TestNewOptions(t *testing.T) {
	assert := assert.New(t)

	options, err := NewOptions(s.Settings{
		"shards":          int64(8),
		"reclaim":         "aggressive",
		"commit.limit":    int64(1 << 20),
		"enlarge.inplace": true,
		"tails.salvage":   true,
		"verify":          true,
	})
	assert.Nil(err)
	assert.Equal(uint32(8), options.ShardCount)
	assert.Equal(ReclaimAggressive, options.Reclaim)
	assert.Equal(uint64(1<<20), options.CommitLimitWords)
	assert.True(options.EnlargeInPlace)
	assert.True(options.SalvageTails)
	assert.True(options.Verify)

	_, err = NewOptions(s.Settings{"reclaim": "eager"})
	assert.NotNil(err)
	_, err = NewOptions(s.Settings{"shards": int64(6)})
	assert.NotNil(err)
	_, err = NewOptions(s.Settings{"commit.limit": int64(-1)})
	assert.NotNil(err)
	_, err = NewOptions(s.Settings{"classspace.size": int64(1024)})
	assert.NotNil(err)
	_, err = NewOptions(s.Settings{"enlarge.inplace": true, "enlarge.maxwords": int64(0)})
	assert.NotNil(err)
}

func TestReclaimStrategy(t *testing.T) {
	assert := assert.New(t)

	for _, r := range []ReclaimStrategy{ReclaimNone, ReclaimBalanced, ReclaimAggressive} {
		parsed, err := ParseReclaimStrategy(r.String())
		assert.Nil(err)
		assert.Equal(r, parsed)
	}
	assert.Equal(uint64(2*1024), ReclaimAggressive.settings().granuleWords)
	assert.True(ReclaimNone.settings().commitWhole)
	assert.False(ReclaimNone.settings().uncommitOnReturn)
}
