package layers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"snap-api/internal/logger"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：GeoJSON 目录装载
// 背景：一个 .geojson/.json 文件对应一个图层，文件名（去扩展名）作为图层名；
// 目录即数据源，配合文件监听实现图层集变更后的自动重建。
// 约束：坐标系默认 EPSG:4326；兼容旧版 crs 成员声明；单文件解析失败只跳过该文件。
type GeoJSONLayer struct {
	id    string
	name  string
	crs   string
	kind  GeometryKind
	kerr  error
	feats []Feature
	valid bool
}

func (l *GeoJSONLayer) ID() string   { return l.id }
func (l *GeoJSONLayer) Name() string { return l.name }
func (l *GeoJSONLayer) Valid() bool  { return l.valid }
func (l *GeoJSONLayer) Vector() bool { return true }
func (l *GeoJSONLayer) CRS() string  { return l.crs }

func (l *GeoJSONLayer) Kind() (GeometryKind, error) {
	if l.kerr != nil {
		return KindUnknown, l.kerr
	}
	return l.kind, nil
}

func (l *GeoJSONLayer) Features(ctx context.Context, filter *orb.Bound) (FeatureIter, error) {
	return newSliceIter(l.feats, filter), nil
}

// ParseGeoJSON：从字节解析 GeoJSON 要素集为图层
// 背景：文件装载与远端数据集拉取共用同一解析入口
func ParseGeoJSON(id, name string, data []byte) (*GeoJSONLayer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	l := &GeoJSONLayer{
		id:    id,
		name:  name,
		crs:   readCRSMember(data),
		valid: true,
	}
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		l.feats = append(l.feats, Feature{ID: int64(i), Geom: f.Geometry})
	}
	l.kind, l.kerr = probeKind(l.feats)
	return l, nil
}

// LoadGeoJSONFile：装载单个 GeoJSON 文件为图层
func LoadGeoJSONFile(path string) (*GeoJSONLayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseGeoJSON("file:"+base, base, data)
}

// LoadDir：扫描目录并装载全部 GeoJSON 图层
// 返回：成功装载的图层列表；目录不存在视为零图层而非错误
func LoadDir(dir string) []*GeoJSONLayer {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.L().Debug("layer_dir_missing", "dir", dir, "err", err)
		return nil
	}
	var out []*GeoJSONLayer
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".geojson" && ext != ".json" {
			continue
		}
		l, err := LoadGeoJSONFile(filepath.Join(dir, name))
		if err != nil {
			logger.L().Warn("layer_load_skip", "file", name, "err", err)
			continue
		}
		logger.L().Debug("layer_load_ok", "layer", l.id, "features", len(l.feats), "crs", l.crs)
		out = append(out, l)
	}
	return out
}

// probeKind：以首个有效几何确定图层类别
// 约束：空图层无法判型，按探测失败处理（候选过滤会静默剔除）
func probeKind(feats []Feature) (GeometryKind, error) {
	for _, f := range feats {
		if f.Geom == nil {
			continue
		}
		if k := KindOfGeometry(f.Geom); k != KindUnknown {
			return k, nil
		}
		return KindUnknown, nil
	}
	return KindUnknown, fmt.Errorf("no features to probe geometry kind")
}

// readCRSMember：读取旧版 GeoJSON 的 crs 成员
// 背景：RFC 7946 移除了 crs，但历史导出的文件仍带有该字段；缺失时按 EPSG:4326 处理
func readCRSMember(data []byte) string {
	var doc struct {
		CRS struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "EPSG:4326"
	}
	name := doc.CRS.Properties.Name
	if name == "" || strings.Contains(name, "CRS84") {
		return "EPSG:4326"
	}
	// urn:ogc:def:crs:EPSG::3857 或 EPSG:3857
	if i := strings.LastIndex(name, ":"); i >= 0 && i+1 < len(name) {
		code := name[i+1:]
		if isDigits(code) {
			return "EPSG:" + code
		}
	}
	return "EPSG:4326"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
