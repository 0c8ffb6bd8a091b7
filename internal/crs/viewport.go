package crs

import "github.com/paulmach/orb"

// Viewport：当前地图视口，索引构建的候选过滤窗口，也是吸附容差换算的比例来源
type Viewport struct {
	Extent   orb.Bound
	CRS      string
	WidthPx  int
	HeightPx int
}

// UnitsPerPixel：视口横向地图单位 / 像素
// 约束：像素宽度未知或范围退化时返回 1，容差按地图单位原值处理
func (v Viewport) UnitsPerPixel() float64 {
	if v.WidthPx <= 0 {
		return 1
	}
	w := v.Extent.Max[0] - v.Extent.Min[0]
	if w <= 0 {
		return 1
	}
	return w / float64(v.WidthPx)
}
