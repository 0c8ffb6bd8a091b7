package geomindex

import (
	"math"

	"github.com/paulmach/orb"
)

// pointKey：六位小数量化后的坐标键
// 背景：重复点判定用量化整数对，避免浮点直接比较的相等陷阱；首次出现的点保留，后续命中同键的丢弃
type pointKey struct {
	x int64
	y int64
}

func keyOf(p orb.Point) pointKey {
	return pointKey{x: quantize(p[0]), y: quantize(p[1])}
}

func quantize(v float64) int64 {
	return int64(math.Round(v * 1e6))
}
