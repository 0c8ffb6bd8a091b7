// 包 snap：吸附解析链路，按「主引擎链 → 兜底索引」的优先级把指针位置解析为吸附点
package snap

import (
	"context"
	"math"
	"time"

	"snap-api/internal/crs"
	"snap-api/internal/geomindex"
	"snap-api/internal/logger"
	"snap-api/internal/metrics"
	"snap-api/internal/plugins"
	"snap-api/internal/settings"
	"snap-api/pkg/snapengine"

	"github.com/paulmach/orb"
)

// 命中来源
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
)

// Result：一次解析的结论
// 约束：Matched 为假时其余字段无意义；Engine 仅主引擎命中时有值
type Result struct {
	Matched bool
	Point   orb.Point
	Source  string
	Engine  string
	Kind    string
}

// Resolver：吸附解析器
// 背景：主引擎链按注册顺序逐个查询，单个引擎出错只跳过不中断；
//      全部未命中且启用兜底时，用当前点束做最近点匹配。
type Resolver struct {
	mgr    *plugins.Manager
	handle *geomindex.Handle
}

func NewResolver(mgr *plugins.Manager, handle *geomindex.Handle) *Resolver {
	return &Resolver{mgr: mgr, handle: handle}
}

// MapTolerance：把配置里的容差换算成地图单位
// 约束：像素单位乘以视口分辨率；负值与非有限值一律折算为 0（仅精确命中）
func MapTolerance(s settings.Settings, vp crs.Viewport) float64 {
	tol := s.ToleranceValue
	if s.ToleranceUnits == settings.UnitsPixels {
		tol *= vp.UnitsPerPixel()
	}
	if tol < 0 || math.IsNaN(tol) || math.IsInf(tol, 0) {
		return 0
	}
	return tol
}

// Resolve：解析一次吸附
// 约束：兜底命中判定用平方距离与容差平方的含端点比较，恰在容差圆上算命中
func (r *Resolver) Resolve(ctx context.Context, pt orb.Point, vp crs.Viewport, s settings.Settings) Result {
	metrics.SnapRequestsTotal.Inc()
	t0 := time.Now()
	defer func() {
		metrics.SnapResolveDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	}()

	tol := MapTolerance(s, vp)
	if s.SnapVertices || s.SnapSegments {
		q := snapengine.Request{X: pt[0], Y: pt[1], Tolerance: tol, Vertices: s.SnapVertices, Segments: s.SnapSegments}
		for _, e := range r.mgr.HealthyEngines() {
			t1 := time.Now()
			metrics.EngineRequestsTotal.WithLabelValues(e.Name()).Inc()
			out, err := e.Snap(ctx, q)
			metrics.EngineDurationMs.WithLabelValues(e.Name()).Observe(float64(time.Since(t1).Milliseconds()))
			if err != nil {
				metrics.EngineFailTotal.WithLabelValues(e.Name()).Inc()
				logger.L().Debug("engine_snap_error", "name", e.Name(), "err", err)
				continue
			}
			if out == nil || !out.Matched {
				continue
			}
			if !finite(out.X) || !finite(out.Y) {
				metrics.EngineFailTotal.WithLabelValues(e.Name()).Inc()
				logger.L().Debug("engine_snap_invalid", "name", e.Name(), "x", out.X, "y", out.Y)
				continue
			}
			metrics.EngineMatchTotal.WithLabelValues(e.Name()).Inc()
			metrics.SnapPrimaryHitsTotal.Inc()
			return Result{Matched: true, Point: orb.Point{out.X, out.Y}, Source: SourcePrimary, Engine: e.Name(), Kind: out.Kind}
		}
	}

	if s.UseFallbackIndex {
		b := r.handle.Current()
		if !b.IsEmpty() {
			if p, id, ok := b.Nearest(pt); ok {
				dx, dy := p[0]-pt[0], p[1]-pt[1]
				if dx*dx+dy*dy <= tol*tol {
					metrics.SnapFallbackHitsTotal.Inc()
					logger.L().Debug("snap_fallback_hit", "id", id, "run_id", b.RunID())
					return Result{Matched: true, Point: p, Source: SourceFallback}
				}
			}
		}
	}

	metrics.SnapMissesTotal.Inc()
	return Result{}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
