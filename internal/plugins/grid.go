package plugins

import (
	"context"
	"math"
	"os"
	"strconv"

	"snap-api/pkg/snapengine"
)

// 文档注释：内置网格引擎
// 背景：没有外部引擎时提供确定性的基准吸附源，把输入点吸附到规则网格的最近
//      交点（顶点）或最近格线垂足（线段），对齐桌面端的构造网格捕捉行为。
// 约束：网格尺寸与原点用地图单位表达；顶点命中优先于线段；超出容差返回未命中而非错误。
type GridEngine struct {
	size    float64
	originX float64
	originY float64
}

func NewGrid(size, originX, originY float64) *GridEngine {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		size = 1
	}
	return &GridEngine{size: size, originX: originX, originY: originY}
}

// NewGridFromEnv：按环境变量构建网格引擎
// 环境变量：SNAP_GRID_SIZE 网格尺寸（默认 1），SNAP_GRID_ORIGIN_X/Y 网格原点（默认 0,0）
func NewGridFromEnv() *GridEngine {
	return NewGrid(
		readFloatEnv("SNAP_GRID_SIZE", 1),
		readFloatEnv("SNAP_GRID_ORIGIN_X", 0),
		readFloatEnv("SNAP_GRID_ORIGIN_Y", 0),
	)
}

func (g *GridEngine) Name() string                        { return "grid" }
func (g *GridEngine) Version() string                     { return "builtin" }
func (g *GridEngine) Heartbeat(ctx context.Context) error { return nil }

func (g *GridEngine) Snap(ctx context.Context, q snapengine.Request) (*snapengine.Response, error) {
	if q.Tolerance < 0 {
		return &snapengine.Response{}, nil
	}
	vx := g.originX + math.Round((q.X-g.originX)/g.size)*g.size
	vy := g.originY + math.Round((q.Y-g.originY)/g.size)*g.size
	if q.Vertices {
		dx, dy := vx-q.X, vy-q.Y
		if dx*dx+dy*dy <= q.Tolerance*q.Tolerance {
			return &snapengine.Response{Matched: true, X: vx, Y: vy, Kind: snapengine.KindVertex}, nil
		}
	}
	if q.Segments {
		dvx := math.Abs(vx - q.X)
		dvy := math.Abs(vy - q.Y)
		if dvx <= dvy && dvx <= q.Tolerance {
			return &snapengine.Response{Matched: true, X: vx, Y: q.Y, Kind: snapengine.KindSegment}, nil
		}
		if dvy < dvx && dvy <= q.Tolerance {
			return &snapengine.Response{Matched: true, X: q.X, Y: vy, Kind: snapengine.KindSegment}, nil
		}
	}
	return &snapengine.Response{}, nil
}

func readFloatEnv(env string, def float64) float64 {
	s := os.Getenv(env)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}
