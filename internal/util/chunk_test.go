package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{name: "empty", items: nil, size: 3, want: nil},
		{name: "smaller than size", items: []int{1, 2}, size: 3, want: [][]int{{1, 2}}},
		{name: "exact multiple", items: []int{1, 2, 3, 4}, size: 2, want: [][]int{{1, 2}, {3, 4}}},
		{name: "remainder", items: []int{1, 2, 3, 4, 5}, size: 2, want: [][]int{{1, 2}, {3, 4}, {5}}},
		{name: "non-positive size", items: []int{1, 2, 3}, size: 0, want: [][]int{{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.items, tt.size))
		})
	}
}

func TestChunk_AppendDoesNotClobberNeighbour(t *testing.T) {
	items := []int{1, 2, 3, 4}
	chunks := Chunk(items, 2)
	require.Len(t, chunks, 2)

	_ = append(chunks[0], 99)
	assert.Equal(t, []int{3, 4}, chunks[1])
}

func TestChunk_SingleChunkAppendKeepsCallerArray(t *testing.T) {
	backing := []int{1, 2, 3, 4}
	items := backing[:2]
	chunks := Chunk(items, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, cap(chunks[0]))

	_ = append(chunks[0], 99)
	assert.Equal(t, []int{1, 2, 3, 4}, backing)
}

func TestChunk_ThousandBatches(t *testing.T) {
	items := make([]int64, 2501)
	chunks := Chunk(items, 1000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 501)
}

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList(" 1, 2,,3 ,2")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 2}, ids)

	_, err = ParseIDList("1,abc")
	require.Error(t, err)

	_, err = ParseIDList("0")
	require.Error(t, err)
}
