package metaspace

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
)

func TestStatsJSON(t *testing.T) {
	assert := assert.New(t)
	ms := newTestMetaspace(t, testOptions())

	loader, err := ms.Register("app", StandardCategory)
	assert.Nil(err)
	_, err = loader.Allocate(3000, false)
	assert.Nil(err)

	data, err := ms.Stats().JSON()
	assert.Nil(err)

	var decoded map[string]interface{}
	assert.Nil(sonic.Unmarshal(data, &decoded))
	assert.Equal(float64(1), decoded["loaders"])
	assert.Equal(float64(3000), decoded["usedWords"])

	nonClass := decoded["nonClass"].(map[string]interface{})
	free := nonClass["freeChunks"].(map[string]interface{})
	assert.Equal(float64(1), free["4K"])
	assert.Equal(float64(1), free["2M"])
	assert.NotContains(free, "4M")

	data, err = sonic.Marshal(loader.Stats())
	assert.Nil(err)
	assert.Contains(string(data), `"chunksByLevel":{"4K":1}`)
}

func TestStatsString(t *testing.T) {
	assert := assert.New(t)
	ms := newTestMetaspace(t, testOptions())

	loader, err := ms.Register("app", StandardCategory)
	assert.Nil(err)
	_, err = loader.Allocate(2048, false)
	assert.Nil(err)

	stat := loader.Stats()
	assert.Equal(float64(50), stat.NonClass.Utilization())
	assert.Equal(float64(0), stat.Class.Utilization())
	assert.True(strings.HasPrefix(stat.NonClass.String(), "app/nonclass(active): used 16 KiB of 32 KiB"))

	s := ms.Stats().String()
	assert.Contains(s, "loaders 1")
	assert.Contains(s, "nonclass: 1 nodes")
	assert.Contains(s, "class: 0 nodes")
}
