package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkKeys(t *testing.T) {
	t.Run("empty input yields no batches", func(t *testing.T) {
		assert.Nil(t, chunkKeys(nil))
		assert.Nil(t, chunkKeys([]string{}))
	})

	t.Run("fewer than the cap fits one batch", func(t *testing.T) {
		batches := chunkKeys(makeIDs(7))
		require.Len(t, batches, 1)
		assert.Len(t, batches[0], 7)
	})

	t.Run("exactly the cap fits one batch", func(t *testing.T) {
		batches := chunkKeys(makeIDs(deleteBatchSize))
		require.Len(t, batches, 1)
		assert.Len(t, batches[0], deleteBatchSize)
	})

	t.Run("one over the cap spills into a second batch", func(t *testing.T) {
		batches := chunkKeys(makeIDs(deleteBatchSize + 1))
		require.Len(t, batches, 2)
		assert.Len(t, batches[0], deleteBatchSize)
		assert.Len(t, batches[1], 1)
	})

	t.Run("order is preserved across batches", func(t *testing.T) {
		ids := makeIDs(60)
		var flattened []string
		for _, batch := range chunkKeys(ids) {
			flattened = append(flattened, batch...)
		}
		assert.Equal(t, ids, flattened)
	})
}

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("MESSAGE#2025-01-01T00:00:%02dZ#id-%d", i%60, i)
	}
	return ids
}
