package geomindex

import (
	"context"
	"fmt"
	"time"

	"snap-api/internal/crs"
	"snap-api/internal/layers"
	"snap-api/internal/logger"
	"snap-api/internal/spatial"

	"github.com/oklog/ulid/v2"
	"github.com/paulmach/orb"
)

// BuildParams：一次构建的输入快照
// 背景：图层集合、可见集合与视口在任务启动时取快照，构建过程中外部变化不影响本次运行
type BuildParams struct {
	Layers      []layers.Layer
	VisibleIDs  map[string]struct{}
	Viewport    crs.Viewport
	OnlyVisible bool
}

// Report：构建运行报告
// 约束：LayerErrors 收集可恢复失败；报告存在不代表束被采纳（取消的运行同样产出报告）
type Report struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	LayersSeen    int       `json:"layers_seen"`
	LayersIndexed int       `json:"layers_indexed"`
	Points        int       `json:"points"`
	Duplicates    int       `json:"duplicates"`
	LayerErrors   []string  `json:"layer_errors,omitempty"`
}

// Builder：点束构建器
type Builder struct {
	backend string
}

// NewBuilder：backend 为空时使用默认空间索引后端
func NewBuilder(backend string) *Builder {
	return &Builder{backend: backend}
}

// 文档注释：构建点束
// 背景：逐图层走查，抽取顶点与面质心，量化去重后连续编号入索引；同一输入同一次序产出完全一致的束。
// 约束：取消在图层间与要素间均被检查，命中即返回 context 错误且不得采纳产物；
// 图层级失败记入报告继续余下图层，构建本身除取消外不以错误终止。
func (b *Builder) Build(ctx context.Context, params BuildParams) (*Bundle, *Report, error) {
	rep := &Report{RunID: ulid.Make().String(), StartedAt: time.Now()}
	log := logger.L()
	log.Info("index_build_begin", "run_id", rep.RunID, "layers", len(params.Layers), "only_visible", params.OnlyVisible)

	idx := spatial.New(b.backend)
	pts := map[int64]orb.Point{}
	used := map[pointKey]struct{}{}
	nextID := int64(0)

	for _, layer := range params.Layers {
		if err := ctx.Err(); err != nil {
			rep.FinishedAt = time.Now()
			log.Info("index_build_canceled", "run_id", rep.RunID, "points", len(pts))
			return nil, rep, err
		}
		rep.LayersSeen++
		if !eligible(layer, params) {
			continue
		}
		layerID := layer.ID()
		layerKind, _ := layer.Kind()
		fwd, inv := transformsFor(layer.CRS(), params.Viewport.CRS)

		// 范围收窄：视口范围反变换到图层坐标系；失败回退为全量查询
		var filter *orb.Bound
		if !params.Viewport.Extent.IsZero() && inv != nil {
			if fb, err := inv.Bound(params.Viewport.Extent); err == nil {
				filter = &fb
			} else {
				log.Debug("extent_narrow_skip", "layer", layerID, "err", err)
			}
		}

		iter, err := layer.Features(ctx, filter)
		if err != nil {
			rep.LayerErrors = append(rep.LayerErrors, fmt.Sprintf("layer %s: %v", layerID, err))
			continue
		}
		canceled := false
		for iter.Next() {
			if err := ctx.Err(); err != nil {
				canceled = true
				break
			}
			f := iter.Feature()
			if f.Geom == nil {
				continue
			}
			cands := pointsOf(f.Geom)
			if layerKind == layers.KindPolygon {
				if c, ok := centroidOf(f.Geom); ok {
					cands = append(cands, c)
				}
			}
			for _, p := range cands {
				mp := p
				if fwd != nil {
					out, err := fwd.Point(p)
					if err != nil {
						continue // 单点变换失败只弃该点
					}
					mp = out
				}
				k := keyOf(mp)
				if _, dup := used[k]; dup {
					rep.Duplicates++
					continue
				}
				used[k] = struct{}{}
				if err := idx.Insert(nextID, mp); err != nil {
					delete(used, k) // 索引未收录，键位回收以保持一一对应
					continue
				}
				pts[nextID] = mp
				nextID++
			}
		}
		if err := iter.Err(); err != nil {
			rep.LayerErrors = append(rep.LayerErrors, fmt.Sprintf("layer %s: %v", layerID, err))
		}
		_ = iter.Close()
		if canceled {
			rep.FinishedAt = time.Now()
			log.Info("index_build_canceled", "run_id", rep.RunID, "points", len(pts))
			return nil, rep, ctx.Err()
		}
		rep.LayersIndexed++
	}

	rep.Points = len(pts)
	rep.FinishedAt = time.Now()
	out := &Bundle{idx: idx, points: pts, runID: rep.RunID, builtAt: rep.FinishedAt}
	log.Info("index_build_done",
		"run_id", rep.RunID,
		"points", rep.Points,
		"duplicates", rep.Duplicates,
		"layers_indexed", rep.LayersIndexed,
		"layer_errors", len(rep.LayerErrors),
		"duration_ms", rep.FinishedAt.Sub(rep.StartedAt).Milliseconds(),
	)
	return out, rep, nil
}

// eligible：候选图层过滤
// 约束：空指针、失效、非矢量、判型失败、不可见（当仅收可见开启）任一不满足即静默剔除
func eligible(l layers.Layer, params BuildParams) bool {
	if l == nil || !l.Valid() || !l.Vector() {
		return false
	}
	k, err := l.Kind()
	if err != nil || k == layers.KindUnknown {
		return false
	}
	if params.OnlyVisible {
		if _, ok := params.VisibleIDs[l.ID()]; !ok {
			return false
		}
	}
	return true
}

// transformsFor：构造图层到视口的正反变换
// 约束：任一方向构造失败即双双置空，坐标按原值通过（可恢复降级语义）
func transformsFor(layerCRS, viewportCRS string) (crs.Transform, crs.Transform) {
	if layerCRS == "" || viewportCRS == "" {
		return nil, nil
	}
	fwd, err := crs.New(layerCRS, viewportCRS)
	if err != nil {
		logger.L().Debug("crs_pair_unsupported", "src", layerCRS, "dst", viewportCRS)
		return nil, nil
	}
	inv, err := crs.New(viewportCRS, layerCRS)
	if err != nil {
		logger.L().Debug("crs_pair_unsupported", "src", viewportCRS, "dst", layerCRS)
		return nil, nil
	}
	return fwd, inv
}
