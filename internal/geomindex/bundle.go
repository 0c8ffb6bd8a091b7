// 包 geomindex：背景几何索引，产出不可变的点束（空间索引 + 编号点表）并以原子句柄发布
package geomindex

import (
	"fmt"
	"sync/atomic"
	"time"

	"snap-api/internal/spatial"

	"github.com/paulmach/orb"
)

// Bundle：一次构建的成果，发布后只读
// 约束：空间索引与点表一一对应；替换整体进行，任何消费者不得原地修改
type Bundle struct {
	idx     spatial.PointIndex
	points  map[int64]orb.Point
	runID   string
	builtAt time.Time
}

// NewEmpty：规范空束
// 背景：零点位即「兜底不可用」，句柄初始与清空场景统一用它，避免 nil 判断散落
func NewEmpty() *Bundle {
	return &Bundle{idx: spatial.New(""), points: map[int64]orb.Point{}}
}

// NewFromPoints：用既有编号点表重建束
// 背景：离线构建产物载入与回放工具都要从点表复原索引，集中在一处保证一一对应
func NewFromPoints(runID string, builtAt time.Time, backend string, pts map[int64]orb.Point) (*Bundle, error) {
	idx := spatial.New(backend)
	points := make(map[int64]orb.Point, len(pts))
	for id, p := range pts {
		if err := idx.Insert(id, p); err != nil {
			return nil, fmt.Errorf("point %d rejected: %w", id, err)
		}
		points[id] = p
	}
	return &Bundle{idx: idx, points: points, runID: runID, builtAt: builtAt}, nil
}

func (b *Bundle) Len() int      { return len(b.points) }
func (b *Bundle) IsEmpty() bool { return len(b.points) == 0 }

func (b *Bundle) RunID() string      { return b.runID }
func (b *Bundle) BuiltAt() time.Time { return b.builtAt }

// Nearest：最近点查询（k=1）
// 返回：命中点、对应编号与命中标记；空束恒为未命中
func (b *Bundle) Nearest(p orb.Point) (orb.Point, int64, bool) {
	if b.IsEmpty() {
		return orb.Point{}, 0, false
	}
	id, ok := b.idx.Nearest(p)
	if !ok {
		return orb.Point{}, 0, false
	}
	pt, ok := b.points[id]
	if !ok {
		return orb.Point{}, 0, false
	}
	return pt, id, true
}

// Point：按编号取点
func (b *Bundle) Point(id int64) (orb.Point, bool) {
	pt, ok := b.points[id]
	return pt, ok
}

// Handle：当前点束的原子句柄
// 背景：生产端整束替换、消费端无锁读取；读到的要么是旧的完整束、要么是新的完整束
type Handle struct {
	v atomic.Pointer[Bundle]
}

func NewHandle() *Handle {
	h := &Handle{}
	h.v.Store(NewEmpty())
	return h
}

func (h *Handle) Current() *Bundle {
	if b := h.v.Load(); b != nil {
		return b
	}
	return NewEmpty()
}

func (h *Handle) Swap(b *Bundle) {
	if b == nil {
		b = NewEmpty()
	}
	h.v.Store(b)
}
