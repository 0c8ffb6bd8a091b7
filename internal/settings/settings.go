// 包 settings：吸附与索引行为的运行配置，含旧键名兼容与多后端存取
package settings

import (
	"math"
	"strconv"
)

// Units：容差单位
type Units string

const (
	UnitsPixels   Units = "px"
	UnitsMapUnits Units = "mu"
)

// 规范键名
const (
	KeyToleranceValue     = "tolerance_value"
	KeyToleranceUnits     = "tolerance_units"
	KeyDebounceMS         = "debounce_ms"
	KeySnapVertices       = "snap_vertices"
	KeySnapSegments       = "snap_segments"
	KeyUseFallbackIndex   = "use_fallback_index"
	KeyBuildFallbackIndex = "build_fallback_index"
)

// 旧键名：历史版本的存量配置仍在使用，读时折算、写时同步
const (
	LegacySnapCentroids      = "snap_centroids"
	LegacyBuildCentroidIndex = "build_centroid_index"
)

// legacyAliases：旧键 -> 规范键 对照表
// 背景：别名折算集中在装载入口一次完成，业务代码只见规范键
var legacyAliases = map[string]string{
	LegacySnapCentroids:      KeyUseFallbackIndex,
	LegacyBuildCentroidIndex: KeyBuildFallbackIndex,
}

// Settings：规范配置结构
type Settings struct {
	ToleranceValue     float64 `json:"tolerance_value"`
	ToleranceUnits     Units   `json:"tolerance_units"`
	DebounceMS         int     `json:"debounce_ms"`
	SnapVertices       bool    `json:"snap_vertices"`
	SnapSegments       bool    `json:"snap_segments"`
	UseFallbackIndex   bool    `json:"use_fallback_index"`
	BuildFallbackIndex bool    `json:"build_fallback_index"`
}

// Default：出厂默认值
func Default() Settings {
	return Settings{
		ToleranceValue:     12.0,
		ToleranceUnits:     UnitsPixels,
		DebounceMS:         10,
		SnapVertices:       true,
		SnapSegments:       true,
		UseFallbackIndex:   true,
		BuildFallbackIndex: true,
	}
}

// ParseUnits：单位解析，接受缩写与全称两种拼法
func ParseUnits(s string) Units {
	switch s {
	case "px", "pixels":
		return UnitsPixels
	case "mu", "map-units", "map_units":
		return UnitsMapUnits
	}
	return UnitsPixels
}

// CanonicalKey：把单个键名折算为规范键
// 背景：部分更新接口按键覆盖当前值，旧键名必须先折算，否则会被同名规范键压住
func CanonicalKey(k string) string {
	if canon, ok := legacyAliases[k]; ok {
		return canon
	}
	return k
}

// normalizeKeys：把旧键折算进规范键
// 约束：规范键已存在时优先，旧键只在规范键缺失时生效
func normalizeKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if _, isLegacy := legacyAliases[k]; isLegacy {
			continue
		}
		out[k] = v
	}
	for legacy, canon := range legacyAliases {
		v, ok := m[legacy]
		if !ok {
			continue
		}
		if _, has := out[canon]; !has {
			out[canon] = v
		}
	}
	return out
}

// FromMap：从扁平键值装载配置
// 约束：缺失与不可解析的值一律回退默认；负防抖延时在装载时即钳为 0
func FromMap(m map[string]string) Settings {
	s := Default()
	n := normalizeKeys(m)
	if v, ok := n[KeyToleranceValue]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			s.ToleranceValue = f
		}
	}
	if v, ok := n[KeyToleranceUnits]; ok && v != "" {
		s.ToleranceUnits = ParseUnits(v)
	}
	if v, ok := n[KeyDebounceMS]; ok {
		if d, err := strconv.Atoi(v); err == nil {
			if d < 0 {
				d = 0
			}
			s.DebounceMS = d
		}
	}
	s.SnapVertices = parseBool(n, KeySnapVertices, s.SnapVertices)
	s.SnapSegments = parseBool(n, KeySnapSegments, s.SnapSegments)
	s.UseFallbackIndex = parseBool(n, KeyUseFallbackIndex, s.UseFallbackIndex)
	s.BuildFallbackIndex = parseBool(n, KeyBuildFallbackIndex, s.BuildFallbackIndex)
	return s
}

// ToMap：导出为键值对，规范键与旧键同时写出
// 背景：与旧部署共享同一份存储时，双写保证双方读到一致语义
func (s Settings) ToMap() map[string]string {
	return map[string]string{
		KeyToleranceValue:        strconv.FormatFloat(s.ToleranceValue, 'f', -1, 64),
		KeyToleranceUnits:        string(s.ToleranceUnits),
		KeyDebounceMS:            strconv.Itoa(s.DebounceMS),
		KeySnapVertices:          strconv.FormatBool(s.SnapVertices),
		KeySnapSegments:          strconv.FormatBool(s.SnapSegments),
		KeyUseFallbackIndex:      strconv.FormatBool(s.UseFallbackIndex),
		KeyBuildFallbackIndex:    strconv.FormatBool(s.BuildFallbackIndex),
		LegacySnapCentroids:      strconv.FormatBool(s.UseFallbackIndex),
		LegacyBuildCentroidIndex: strconv.FormatBool(s.BuildFallbackIndex),
	}
}

func parseBool(m map[string]string, key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
