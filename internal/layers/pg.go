package layers

import (
	"context"
	"database/sql"
	"fmt"

	"snap-api/internal/logger"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：Postgres 图层来源
// 背景：_snap_layers 存图层元信息，_snap_features 按行存 GeoJSON 几何与列式包围盒；
// 范围过滤直接下推为 WHERE 条件，避免全表拉取后再丢弃。
// 约束：geom 解析失败的行跳过不中断；srid 为 0 时坐标系未知，按「不变换」降级。
type PGProvider struct {
	db *sql.DB
}

func NewPGProvider(db *sql.DB) *PGProvider { return &PGProvider{db: db} }

type pgLayer struct {
	db      *sql.DB
	id      string
	name    string
	vector  bool
	crs     string
	kind    GeometryKind
	rawKind string
	valid   bool
}

func (l *pgLayer) ID() string   { return l.id }
func (l *pgLayer) Name() string { return l.name }
func (l *pgLayer) Valid() bool  { return l.valid }
func (l *pgLayer) Vector() bool { return l.vector }
func (l *pgLayer) CRS() string  { return l.crs }

func (l *pgLayer) Kind() (GeometryKind, error) {
	if l.kind == KindUnknown {
		return KindUnknown, fmt.Errorf("unknown geometry kind %q", l.rawKind)
	}
	return l.kind, nil
}

func (l *pgLayer) Features(ctx context.Context, filter *orb.Bound) (FeatureIter, error) {
	q := `SELECT fid, geom FROM _snap_features WHERE layer_id=$1 ORDER BY fid`
	args := []any{l.id}
	if filter != nil {
		q = `SELECT fid, geom FROM _snap_features
            WHERE layer_id=$1 AND maxx>=$2 AND minx<=$3 AND maxy>=$4 AND miny<=$5
            ORDER BY fid`
		args = append(args, filter.Min[0], filter.Max[0], filter.Min[1], filter.Max[1])
	}
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return &rowIter{rows: rows, layer: l.id}, nil
}

// rowIter：包装 sql.Rows，按行解析 GeoJSON 几何
type rowIter struct {
	rows  *sql.Rows
	layer string
	cur   Feature
}

func (it *rowIter) Next() bool {
	for it.rows.Next() {
		var fid int64
		var raw []byte
		if err := it.rows.Scan(&fid, &raw); err != nil {
			logger.L().Debug("pg_feature_scan_skip", "layer", it.layer, "err", err)
			continue
		}
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil || g == nil {
			logger.L().Debug("pg_feature_geom_skip", "layer", it.layer, "fid", fid)
			continue
		}
		it.cur = Feature{ID: fid, Geom: g.Geometry()}
		return true
	}
	return false
}

func (it *rowIter) Feature() Feature { return it.cur }
func (it *rowIter) Err() error       { return it.rows.Err() }
func (it *rowIter) Close() error     { return it.rows.Close() }

// LoadLayers：读取全部图层元信息
// 返回：图层与其默认可见性；次序按 id 稳定
func (p *PGProvider) LoadLayers(ctx context.Context) ([]Layer, map[string]bool, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, layer_type, srid, gkind, visible, valid FROM _snap_layers ORDER BY id`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var out []Layer
	vis := map[string]bool{}
	for rows.Next() {
		var (
			id, name, ltype, gk string
			srid                int
			visible, valid      bool
		)
		if err := rows.Scan(&id, &name, &ltype, &srid, &gk, &visible, &valid); err != nil {
			return nil, nil, err
		}
		crs := ""
		if srid > 0 {
			crs = fmt.Sprintf("EPSG:%d", srid)
		}
		l := &pgLayer{
			db:      p.db,
			id:      id,
			name:    name,
			vector:  ltype == "vector",
			crs:     crs,
			kind:    ParseKind(gk),
			rawKind: gk,
			valid:   valid,
		}
		out = append(out, l)
		vis[id] = visible
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	logger.L().Debug("pg_layers_loaded", "count", len(out))
	return out, vis, nil
}
