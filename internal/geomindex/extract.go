package geomindex

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// 文档注释：要素点位提取
// 背景：吸附候选取几何的全部顶点；面状图层另补一枚质心，弥补大面要素顶点稀疏的问题。
// 约束：几何类别逐型拆解，集合类型递归展开；无法识别的对象产出零点位而不是报错。
func pointsOf(g orb.Geometry) []orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return []orb.Point{v}
	case orb.MultiPoint:
		return append([]orb.Point(nil), v...)
	case orb.LineString:
		return append([]orb.Point(nil), v...)
	case orb.MultiLineString:
		var out []orb.Point
		for _, ls := range v {
			out = append(out, ls...)
		}
		return out
	case orb.Ring:
		return ringPoints(v)
	case orb.Polygon:
		var out []orb.Point
		for _, r := range v {
			out = append(out, ringPoints(r)...)
		}
		return out
	case orb.MultiPolygon:
		var out []orb.Point
		for _, poly := range v {
			for _, r := range poly {
				out = append(out, ringPoints(r)...)
			}
		}
		return out
	case orb.Collection:
		var out []orb.Point
		for _, m := range v {
			out = append(out, pointsOf(m)...)
		}
		return out
	case orb.Bound:
		return pointsOf(v.ToRing())
	}
	return nil
}

// ringPoints：环顶点；闭合环的重复尾点在提取阶段剔除，每个角点只出现一次
func ringPoints(r orb.Ring) []orb.Point {
	if n := len(r); n > 1 && r[0] == r[n-1] {
		return append([]orb.Point(nil), r[:n-1]...)
	}
	return append([]orb.Point(nil), r...)
}

// centroidOf：平面质心
// 返回：质心与有效标记；面积为零或坐标非有限视为退化，跳过质心仅保留顶点
func centroidOf(g orb.Geometry) (orb.Point, bool) {
	if g == nil {
		return orb.Point{}, false
	}
	c, area := planar.CentroidArea(g)
	if math.Abs(area) == 0 {
		return orb.Point{}, false
	}
	if math.IsNaN(c[0]) || math.IsInf(c[0], 0) || math.IsNaN(c[1]) || math.IsInf(c[1], 0) {
		return orb.Point{}, false
	}
	return c, true
}
