package layers

import (
	"context"
	"path/filepath"
	"strings"

	"snap-api/internal/logger"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
	"github.com/paulmach/orb"
)

// 文档注释：MMDB 城市点图层
// 背景：把 GeoLite2-City 库中的城市位置当作一个只读点图层接入，为稀疏区域提供参考吸附点；
// 网络段维度与 IP 语义在此无意义，只保留去重后的坐标。
// 约束：坐标系固定 EPSG:4326；(0,0) 与重复位置跳过；装载一次后常驻内存。
type MMDBLayer struct {
	id    string
	name  string
	feats []Feature
	valid bool
}

func (l *MMDBLayer) ID() string   { return l.id }
func (l *MMDBLayer) Name() string { return l.name }
func (l *MMDBLayer) Valid() bool  { return l.valid }
func (l *MMDBLayer) Vector() bool { return true }
func (l *MMDBLayer) CRS() string  { return "EPSG:4326" }

func (l *MMDBLayer) Kind() (GeometryKind, error) { return KindPoint, nil }

func (l *MMDBLayer) Features(ctx context.Context, filter *orb.Bound) (FeatureIter, error) {
	return newSliceIter(l.feats, filter), nil
}

// LoadMMDB：遍历 mmdb 网络段并抽取城市坐标
func LoadMMDB(path string) (*MMDBLayer, error) {
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	l := &MMDBLayer{id: "mmdb:" + base, name: base, valid: true}
	seen := map[[2]float64]struct{}{}
	fid := int64(0)
	networks := r.Networks(maxminddb.SkipAliasedNetworks)
	for networks.Next() {
		var rec geoip2.City
		if _, err := networks.Network(&rec); err != nil {
			continue
		}
		lat := rec.Location.Latitude
		lon := rec.Location.Longitude
		if lat == 0 && lon == 0 {
			continue
		}
		key := [2]float64{lon, lat}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		l.feats = append(l.feats, Feature{ID: fid, Geom: orb.Point{lon, lat}})
		fid++
	}
	if err := networks.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("mmdb_layer_ok", "layer", l.id, "points", len(l.feats))
	return l, nil
}
