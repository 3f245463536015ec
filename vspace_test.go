package metaspace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVirtualSpaceReserve(t *testing.T) {
	assert := assert.New(t)
	vs := NewVirtualSpace("test", 2*RootChunkBytes)

	r1, err := vs.Reserve(RootChunkBytes)
	assert.Nil(err)
	assert.NotEqual(Addr(0), r1.Base)
	assert.Equal(uint64(0), uint64(r1.Base)%RootChunkBytes)

	r2, err := vs.Reserve(RootChunkBytes)
	assert.Nil(err)
	assert.Equal(r1.End(), r2.Base)

	_, err = vs.Reserve(RootChunkBytes)
	assert.True(errors.Is(err, ErrOutOfMemory))

	_, err = vs.Reserve(3 * pageBytes)
	assert.NotNil(err)
	assert.False(errors.Is(err, ErrOutOfMemory))

	assert.Nil(vs.Release(r1))
	assert.Equal(RootChunkBytes, vs.Reserved())
	assert.NotNil(vs.Release(r1))

	r3, err := vs.Reserve(RootChunkBytes)
	assert.Nil(err)
	assert.Equal(r2.End(), r3.Base)
}

func TestVirtualSpaceCommit(t *testing.T) {
	assert := assert.New(t)
	vs := NewVirtualSpace("test", 0)

	r, err := vs.Reserve(RootChunkBytes)
	assert.Nil(err)

	sub := Region{Base: r.Base + 2*pageBytes, Size: 4 * pageBytes}
	assert.Nil(vs.Commit(sub))
	assert.Equal(uint64(4*pageBytes), vs.Committed())

	// committing twice counts once.
	assert.Nil(vs.Commit(Region{Base: r.Base, Size: 3 * pageBytes}))
	assert.Equal(uint64(6*pageBytes), vs.Committed())

	assert.Nil(vs.Uncommit(sub))
	assert.Equal(uint64(2*pageBytes), vs.Committed())

	assert.NotNil(vs.Commit(Region{Base: r.Base + 1, Size: pageBytes}))
	assert.NotNil(vs.Commit(Region{Base: r.End(), Size: pageBytes}))
	assert.NotNil(vs.Uncommit(Region{Base: r.End() - pageBytes, Size: 2 * pageBytes}))

	assert.Nil(vs.Release(r))
	assert.Equal(uint64(0), vs.Committed())
	assert.Equal(uint64(0), vs.Reserved())
}
