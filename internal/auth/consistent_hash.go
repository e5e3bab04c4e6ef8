package auth

import (
	"hash/crc32"
	"sort"
	"strconv"
	"sync"
)

// HashRing 把令牌缓存键按一致性哈希分摊到多个缓存节点前缀上，
// 节点增减时只有相邻区间的键会迁移。
type HashRing struct {
	mu       sync.RWMutex
	replicas int
	points   []uint32          // 已排序的虚拟节点
	owners   map[uint32]string // 虚拟节点 -> 真实节点
	nodes    map[string]struct{}
}

// NewHashRing 创建哈希环。replicas 非正时取 50；
// 未配置节点时落到单节点，分片退化为固定前缀。
func NewHashRing(nodes []string, replicas int) *HashRing {
	if replicas <= 0 {
		replicas = 50
	}
	r := &HashRing{
		replicas: replicas,
		owners:   make(map[uint32]string),
		nodes:    make(map[string]struct{}),
	}
	if len(nodes) == 0 {
		nodes = []string{"cache-0"}
	}
	r.Add(nodes...)
	return r
}

// Add 添加节点，重复添加是空操作
func (r *HashRing) Add(nodes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, node := range nodes {
		if _, ok := r.nodes[node]; ok {
			continue
		}
		r.nodes[node] = struct{}{}
		for i := 0; i < r.replicas; i++ {
			point := crc32.ChecksumIEEE([]byte(strconv.Itoa(i) + "@" + node))
			r.points = append(r.points, point)
			r.owners[point] = node
		}
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i] < r.points[j] })
}

// Pick 返回 key 顺时针方向最近的节点
func (r *HashRing) Pick(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return ""
	}
	h := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return r.owners[r.points[idx]]
}

// Nodes 当前节点数
func (r *HashRing) Nodes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
