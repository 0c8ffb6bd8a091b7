package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"snap-api/internal/logger"
)

// WritePoint：向图层补写单个点要素
// 背景：运维根据未命中热点手工补点时走这条通道，不必重导整个数据集
// 约束：图层行不存在时建一个点类图层；同号要素覆盖
func WritePoint(ctx context.Context, db *sql.DB, layerID string, fid int64, x, y float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return fmt.Errorf("non-finite point (%v, %v)", x, y)
	}
	logger.L().Debug("ingest_point_begin", "layer", layerID, "fid", fid)
	_, err := db.ExecContext(ctx, `INSERT INTO _snap_layers(id,name,layer_type,gkind,updated_at)
        VALUES($1,$1,'vector','point',now())
        ON CONFLICT (id) DO UPDATE SET updated_at=now()`, layerID)
	if err != nil {
		return err
	}
	geom := fmt.Sprintf(`{"type":"Point","coordinates":[%s,%s]}`, coord(x), coord(y))
	_, err = db.ExecContext(ctx, insertFeatureSQL, layerID, fid, geom, x, y, x, y)
	if err == nil {
		logger.L().Debug("ingest_point_ok", "layer", layerID, "fid", fid)
	} else {
		logger.L().Error("ingest_point_error", "err", err)
	}
	return err
}

func coord(v float64) string { return fmt.Sprintf("%g", v) }
