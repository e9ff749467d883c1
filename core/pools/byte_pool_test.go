package pools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytePoolTiers(t *testing.T) {
	bp := NewBytePool()

	tests := []struct {
		size, capacity int
	}{
		{1, 4096},
		{4096, 4096},
		{4097, 16384},
		{65536, 65536},
	}
	for _, tt := range tests {
		buf := bp.Get(tt.size)
		assert.Len(t, buf, tt.size)
		assert.Equal(t, tt.capacity, cap(buf))
		bp.Put(buf)
	}

	big := bp.Get(1 << 20)
	assert.Len(t, big, 1<<20)
	bp.Put(big)

	stats := bp.Stats()
	assert.Equal(t, uint64(5), stats.Gets)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestBytePoolReuse(t *testing.T) {
	bp := NewBytePoolWithSizes([]int{8})
	buf := bp.Get(3)
	copy(buf, "abc")
	bp.Put(buf)

	again := bp.Get(8)
	assert.Len(t, again, 8)
	assert.Equal(t, 8, cap(again))
}
