// 包 spatial：平面点索引，封装最近邻查询，供吸附兜底与离线工具共用
package spatial

import (
	"errors"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// PointIndex：按整数编号收录平面点并回答最近邻
// 约束：写入与查询可交错，实现内部自行维护惰性重建；编号由调用方保证唯一
type PointIndex interface {
	Insert(id int64, p orb.Point) error
	Nearest(p orb.Point) (int64, bool)
	Len() int
}

var errBadCoordinate = errors.New("non-finite coordinate")

// New：按后端名构造索引
// 背景：默认四叉树（orb 实现）；kdtree 为自维护实现，保留给无第三方索引可用的场景对比验证
func New(backend string) PointIndex {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "kd", "kdtree":
		return NewKD()
	default:
		return NewQuad()
	}
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) && !math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}

func sqDist(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}
