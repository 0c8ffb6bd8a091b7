package spatial

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

type quadEntry struct {
	id int64
	pt orb.Point
}

func (e quadEntry) Point() orb.Point { return e.pt }

// QuadIndex：orb 四叉树后端
// 背景：orb/quadtree 需要先知道总包围盒才能建树，这里缓冲写入、首次查询时一次性建树
// 约束：查询后再写入会触发下一次查询重建；构建流程为「先全部写入、后查询」，重建最多发生一次
type QuadIndex struct {
	mu    sync.Mutex
	pts   []quadEntry
	tree  *quadtree.Quadtree
	dirty bool
}

func NewQuad() *QuadIndex { return &QuadIndex{} }

func (q *QuadIndex) Insert(id int64, p orb.Point) error {
	if !finite(p) {
		return errBadCoordinate
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pts = append(q.pts, quadEntry{id: id, pt: p})
	q.dirty = true
	return nil
}

func (q *QuadIndex) Nearest(p orb.Point) (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pts) == 0 {
		return 0, false
	}
	if q.dirty || q.tree == nil {
		q.rebuild()
	}
	found := q.tree.Find(p)
	if found == nil {
		return 0, false
	}
	return found.(quadEntry).id, true
}

func (q *QuadIndex) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pts)
}

// rebuild：以全部点的外接包围盒建树并回灌
// 包围盒由数据推导，Add 不会因越界失败
func (q *QuadIndex) rebuild() {
	b := orb.Bound{Min: q.pts[0].pt, Max: q.pts[0].pt}
	for _, e := range q.pts[1:] {
		b = b.Extend(e.pt)
	}
	t := quadtree.New(b)
	for _, e := range q.pts {
		_ = t.Add(e)
	}
	q.tree = t
	q.dirty = false
}
