package auth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashRingPickIsStable(t *testing.T) {
	ring := NewHashRing([]string{"cache-a", "cache-b", "cache-c"}, 100)

	first := ring.Pick("some-jwt-token")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ring.Pick("some-jwt-token"))
	}
}

func TestHashRingSpreadsKeys(t *testing.T) {
	ring := NewHashRing([]string{"cache-a", "cache-b", "cache-c"}, 100)

	hits := make(map[string]int)
	for i := 0; i < 1000; i++ {
		hits[ring.Pick(fmt.Sprintf("token-%d", i))]++
	}
	require.Len(t, hits, 3)
	for node, n := range hits {
		assert.Greater(t, n, 100, "node %s starved", node)
	}
}

func TestHashRingAddKeepsMostAssignments(t *testing.T) {
	ring := NewHashRing([]string{"cache-a", "cache-b"}, 100)

	before := make(map[string]string, 1000)
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("token-%d", i)
		before[key] = ring.Pick(key)
	}

	ring.Add("cache-c")
	assert.Equal(t, 3, ring.Nodes())

	moved := 0
	for key, node := range before {
		if ring.Pick(key) != node {
			moved++
		}
	}
	// 新节点只接管自己的区间，大多数键不迁移
	assert.Less(t, moved, 700)
}

func TestHashRingDefaults(t *testing.T) {
	ring := NewHashRing(nil, 0)
	assert.Equal(t, 1, ring.Nodes())
	assert.NotEmpty(t, ring.Pick("anything"))

	// 重复添加是空操作
	ring.Add("cache-0")
	assert.Equal(t, 1, ring.Nodes())
}
