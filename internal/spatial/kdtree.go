package spatial

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
)

// 文档注释：KD-Tree 最近邻（二维平面）
// 背景：四叉树后端之外的自维护实现；按 x/y 交替分割，中位数建树保持平衡。
// 约束：与 QuadIndex 相同的惰性重建策略；仅支持最近一个点查询。
type kdNode struct {
	id int64
	pt orb.Point
	ax int // 0:x,1:y
	l  *kdNode
	r  *kdNode
}

type kdEntry struct {
	id int64
	pt orb.Point
}

type KDIndex struct {
	mu    sync.Mutex
	pts   []kdEntry
	root  *kdNode
	dirty bool
}

func NewKD() *KDIndex { return &KDIndex{} }

func (k *KDIndex) Insert(id int64, p orb.Point) error {
	if !finite(p) {
		return errBadCoordinate
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pts = append(k.pts, kdEntry{id: id, pt: p})
	k.dirty = true
	return nil
}

func (k *KDIndex) Nearest(p orb.Point) (int64, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.pts) == 0 {
		return 0, false
	}
	if k.dirty || k.root == nil {
		buf := make([]kdEntry, len(k.pts))
		copy(buf, k.pts)
		k.root = buildKD(buf, 0)
		k.dirty = false
	}
	id, _, ok := nearestKD(k.root, p)
	return id, ok
}

func (k *KDIndex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.pts)
}

func buildKD(es []kdEntry, depth int) *kdNode {
	if len(es) == 0 {
		return nil
	}
	ax := depth % 2
	// 选择中位数分割，避免外部排序带来的额外依赖
	mid := len(es) / 2
	selectNth(es, mid, ax)
	node := &kdNode{id: es[mid].id, pt: es[mid].pt, ax: ax}
	node.l = buildKD(es[:mid], depth+1)
	node.r = buildKD(es[mid+1:], depth+1)
	return node
}

// 原地 nth 元素选择（轴为 x/y）
func selectNth(a []kdEntry, n int, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, ax)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partition(a []kdEntry, lo, hi, pivot, ax int) int {
	pv := a[pivot]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if a[j].pt[ax] < pv.pt[ax] {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

// 最近邻查询，返回编号与平方距离
func nearestKD(node *kdNode, pt orb.Point) (int64, float64, bool) {
	if node == nil {
		return 0, 0, false
	}
	bestID := int64(0)
	bestSq := math.MaxFloat64
	found := false
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		if d := sqDist(pt, n.pt); d < bestSq {
			bestSq = d
			bestID = n.id
			found = true
		}
		diff := pt[n.ax] - n.pt[n.ax]
		first, second := n.l, n.r
		if diff > 0 {
			first, second = n.r, n.l
		}
		dfs(first)
		// 仅当分割平面到查询点的距离小于当前最优距离时才遍历另一侧
		if diff*diff < bestSq {
			dfs(second)
		}
	}
	dfs(node)
	return bestID, bestSq, found
}
