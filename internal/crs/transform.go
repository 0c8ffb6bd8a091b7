// 包 crs：坐标参考系转换服务，面向图层坐标与视口坐标之间的正反变换
package crs

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	EPSG4326 = "EPSG:4326"
	EPSG3857 = "EPSG:3857"
)

// Transform：点与包围盒的坐标变换
// 约束：任一变换都可能失败（输入越界、数值溢出）；调用方需按恢复语义降级而不是中断构建
type Transform interface {
	Point(p orb.Point) (orb.Point, error)
	Bound(b orb.Bound) (orb.Bound, error)
}

// Normalize：规整 CRS 标识
// 背景：图层来源混杂，常见写法有 epsg:4326、EPSG:4326、裸数字 4326；统一成大写带前缀形式便于配对
func Normalize(id string) string {
	s := strings.ToUpper(strings.TrimSpace(id))
	if s == "" {
		return s
	}
	if !strings.Contains(s, ":") {
		return "EPSG:" + s
	}
	return s
}

// New：按源/目标 CRS 构造变换
// 背景：仅支持恒等与 EPSG:4326 / EPSG:3857 互转；其余组合返回错误，由调用方以「不变换」降级
// 返回：Transform 或不支持组合的错误
func New(src, dst string) (Transform, error) {
	s := Normalize(src)
	d := Normalize(dst)
	if s == d {
		return identity{}, nil
	}
	switch {
	case s == EPSG4326 && d == EPSG3857:
		return projection{fn: project.WGS84.ToMercator}, nil
	case s == EPSG3857 && d == EPSG4326:
		return projection{fn: project.Mercator.ToWGS84}, nil
	}
	return nil, fmt.Errorf("crs pair not supported: %s -> %s", s, d)
}

type identity struct{}

func (identity) Point(p orb.Point) (orb.Point, error) { return p, nil }
func (identity) Bound(b orb.Bound) (orb.Bound, error) { return b, nil }

// projection：包裹 orb 投影函数并校验结果有限性
// 约束：纬度越界等非法输入会产生 NaN，以错误形式上抛而不是静默放行
type projection struct {
	fn func(orb.Point) orb.Point
}

func (t projection) Point(p orb.Point) (orb.Point, error) {
	out := t.fn(p)
	if !finite(out) {
		return orb.Point{}, fmt.Errorf("projection produced non-finite coordinates from (%v, %v)", p[0], p[1])
	}
	return out, nil
}

func (t projection) Bound(b orb.Bound) (orb.Bound, error) {
	lo, err := t.Point(b.Min)
	if err != nil {
		return orb.Bound{}, err
	}
	hi, err := t.Point(b.Max)
	if err != nil {
		return orb.Bound{}, err
	}
	// 投影可能改变角点次序，重排保证 Min <= Max
	out := orb.Bound{
		Min: orb.Point{math.Min(lo[0], hi[0]), math.Min(lo[1], hi[1])},
		Max: orb.Point{math.Max(lo[0], hi[0]), math.Max(lo[1], hi[1])},
	}
	return out, nil
}

func finite(p orb.Point) bool {
	for _, v := range []float64{p[0], p[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
