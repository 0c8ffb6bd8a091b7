// 包 layers：矢量图层抽象与多来源装载（GeoJSON 目录、Postgres、MMDB 点库）
package layers

import (
	"context"
	"sync"

	"github.com/paulmach/orb"
)

// GeometryKind：图层级几何类别
type GeometryKind int

const (
	KindUnknown GeometryKind = iota
	KindPoint
	KindLine
	KindPolygon
)

func (k GeometryKind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	}
	return "unknown"
}

// ParseKind：解析存储层的类别文本
func ParseKind(s string) GeometryKind {
	switch s {
	case "point":
		return KindPoint
	case "line":
		return KindLine
	case "polygon":
		return KindPolygon
	}
	return KindUnknown
}

// KindOfGeometry：按几何对象归类
// 约束：环按面处理；集合与未知类型归入 unknown，由提取层做兜底拆解
func KindOfGeometry(g orb.Geometry) GeometryKind {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return KindPoint
	case orb.LineString, orb.MultiLineString:
		return KindLine
	case orb.Polygon, orb.MultiPolygon, orb.Ring:
		return KindPolygon
	}
	return KindUnknown
}

// Feature：一条要素，编号在图层内稳定
type Feature struct {
	ID   int64
	Geom orb.Geometry
}

// FeatureIter：要素流式遍历，参照 sql.Rows 的使用方式
type FeatureIter interface {
	Next() bool
	Feature() Feature
	Err() error
	Close() error
}

// Layer：供索引构建消费的图层描述
// 约束：Kind 探测可能失败（来源损坏、空图层），失败即取消该图层资格；
// Features 的过滤范围使用图层自身坐标系，nil 表示全量
type Layer interface {
	ID() string
	Name() string
	Valid() bool
	Vector() bool
	CRS() string
	Kind() (GeometryKind, error)
	Features(ctx context.Context, filter *orb.Bound) (FeatureIter, error)
}

// Registry：图层注册表，聚合各来源并维护可见集合
// 背景：可见性属于视图状态而非图层本身，重建任务按注册表快照取材
type Registry struct {
	mu      sync.RWMutex
	layers  []Layer
	visible map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{visible: map[string]struct{}{}}
}

func (r *Registry) Add(l Layer, visible bool) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers = append(r.layers, l)
	if visible {
		r.visible[l.ID()] = struct{}{}
	}
}

// RemovePrefix：按编号前缀摘除图层，用于目录热重载时替换同源图层
func (r *Registry) RemovePrefix(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.layers[:0]
	for _, l := range r.layers {
		if len(l.ID()) >= len(prefix) && l.ID()[:len(prefix)] == prefix {
			delete(r.visible, l.ID())
			continue
		}
		kept = append(kept, l)
	}
	r.layers = kept
}

func (r *Registry) Layers() []Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Layer, len(r.layers))
	copy(out, r.layers)
	return out
}

func (r *Registry) VisibleIDs() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]struct{}, len(r.visible))
	for id := range r.visible {
		out[id] = struct{}{}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.layers)
}

// sliceIter：内存要素切片的遍历器，GeoJSON 与 MMDB 图层共用
type sliceIter struct {
	feats  []Feature
	filter *orb.Bound
	cur    Feature
	pos    int
}

func newSliceIter(feats []Feature, filter *orb.Bound) *sliceIter {
	return &sliceIter{feats: feats, filter: filter}
}

func (it *sliceIter) Next() bool {
	for it.pos < len(it.feats) {
		f := it.feats[it.pos]
		it.pos++
		if it.filter != nil && f.Geom != nil && !f.Geom.Bound().Intersects(*it.filter) {
			continue
		}
		it.cur = f
		return true
	}
	return false
}

func (it *sliceIter) Feature() Feature { return it.cur }
func (it *sliceIter) Err() error       { return nil }
func (it *sliceIter) Close() error     { return nil }
