package bytebuff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_MarshalJSON(t *testing.T) {
	p := NewPool()

	out, err := p.MarshalJSON(map[string]any{"type": "container:update", "room": "container:<id>"})
	require.NoError(t, err)
	assert.Equal(t, `{"room":"container:<id>","type":"container:update"}`, string(out))

	// 缓冲复用后，之前返回的结果不受影响
	_, err = p.MarshalJSON(map[string]any{"type": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"room":"container:<id>","type":"container:update"}`, string(out))

	gets, puts := p.Stats()
	assert.Equal(t, uint64(2), gets)
	assert.Equal(t, uint64(2), puts)
}

func TestPool_MarshalJSONError(t *testing.T) {
	_, err := NewPool().MarshalJSON(make(chan int))
	assert.Error(t, err)
}
