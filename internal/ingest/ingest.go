// 包 ingest：图层数据集的批量导入通道，把 GeoJSON 要素灌进 Postgres 图层表
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"snap-api/internal/layers"
	"snap-api/internal/logger"

	"github.com/paulmach/orb/geojson"
)

const featureBatch = 5000

// sridOf：从 EPSG:n 形式的坐标系声明提取数字代号
// 约束：无法解析时返回 0，读取方按「坐标系未知、不做变换」降级
func sridOf(crs string) int {
	s := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(crs)), "EPSG:")
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return 0
}

func upsertLayerRow(ctx context.Context, tx *sql.Tx, id string, l layers.Layer) error {
	gkind := ""
	if k, err := l.Kind(); err == nil {
		gkind = k.String()
	}
	// 可见性是运维侧状态，重复导入不回冲
	_, err := tx.ExecContext(ctx, `INSERT INTO _snap_layers(id,name,layer_type,srid,gkind,valid,updated_at)
        VALUES($1,$2,'vector',$3,$4,$5,now())
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, srid=EXCLUDED.srid,
            gkind=EXCLUDED.gkind, valid=EXCLUDED.valid, updated_at=now()`,
		id, l.Name(), sridOf(l.CRS()), gkind, l.Valid())
	return err
}

const insertFeatureSQL = `INSERT INTO _snap_features(layer_id,fid,geom,minx,miny,maxx,maxy)
    VALUES($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (layer_id,fid) DO UPDATE SET geom=EXCLUDED.geom,
        minx=EXCLUDED.minx, miny=EXCLUDED.miny, maxx=EXCLUDED.maxx, maxy=EXCLUDED.maxy`

// ImportLayer：把一个图层的全部要素写入数据库（覆盖旧数据）
// 背景：5000 行为一批提交，降低锁持有与 WAL 压力
// 约束：导入期间读取方可能看到部分数据；索引重建应在导入完成后触发
func ImportLayer(ctx context.Context, db *sql.DB, id string, l layers.Layer) (int, error) {
	logger.L().Info("ingest_layer_start", "layer", id, "name", l.Name())
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := upsertLayerRow(ctx, tx, id, l); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM _snap_features WHERE layer_id=$1`, id); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, insertFeatureSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	it, err := l.Features(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	count := 0
	for it.Next() {
		f := it.Feature()
		if f.Geom == nil {
			continue
		}
		raw, err := geojson.NewGeometry(f.Geom).MarshalJSON()
		if err != nil {
			logger.L().Debug("ingest_geom_skip", "layer", id, "fid", f.ID, "err", err)
			continue
		}
		b := f.Geom.Bound()
		if _, err := stmt.ExecContext(ctx, id, f.ID, string(raw), b.Min[0], b.Min[1], b.Max[0], b.Max[1]); err != nil {
			return count, err
		}
		count++
		if count%featureBatch == 0 {
			logger.L().Info("ingest_progress", "layer", id, "count", count)
			if err = tx.Commit(); err != nil {
				return count, err
			}
			tx, err = db.BeginTx(ctx, nil)
			if err != nil {
				return count, err
			}
			stmt, err = tx.PrepareContext(ctx, insertFeatureSQL)
			if err != nil {
				return count, err
			}
		}
	}
	if err := it.Err(); err != nil {
		return count, err
	}
	if err := tx.Commit(); err != nil {
		return count, err
	}
	logger.L().Info("ingest_layer_done", "layer", id, "count", count)
	return count, nil
}

// ImportFile：装载单个 GeoJSON 文件并导入，图层号为 pg:文件名
func ImportFile(ctx context.Context, db *sql.DB, path string) (string, int, error) {
	l, err := layers.LoadGeoJSONFile(path)
	if err != nil {
		return "", 0, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id := "pg:" + base
	n, err := ImportLayer(ctx, db, id, l)
	return id, n, err
}

// ImportDir：导入目录下全部 GeoJSON 文件
// 返回：成功导入的要素总数；单文件失败只记日志不中断
func ImportDir(ctx context.Context, db *sql.DB, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".geojson" && ext != ".json" {
			continue
		}
		_, n, err := ImportFile(ctx, db, filepath.Join(dir, e.Name()))
		if err != nil {
			logger.L().Warn("ingest_file_skip", "file", e.Name(), "err", err)
			continue
		}
		total += n
	}
	return total, nil
}

// FetchAndImport：拉取远端 GeoJSON 数据集并导入
// 异常：网络错误/解析失败/数据库错误直接返回，不做重试（交由调度层处理）
func FetchAndImport(ctx context.Context, db *sql.DB, srcURL, layerID, name string) (int, error) {
	logger.L().Info("ingest_fetch_start", "src", srcURL, "layer", layerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bad status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if err != nil {
		return 0, err
	}
	l, err := layers.ParseGeoJSON(layerID, name, data)
	if err != nil {
		return 0, err
	}
	return ImportLayer(ctx, db, layerID, l)
}

// EnsureSeeded：图层表为空且配置了种子目录时执行一次初始化导入
// 约束：种子目录不存在视为未配置；表里已有图层则跳过
func EnsureSeeded(ctx context.Context, db *sql.DB, dir string) error {
	if dir == "" {
		return nil
	}
	var c int64
	row := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM _snap_layers`)
	_ = row.Scan(&c)
	if c > 0 {
		return nil
	}
	n, err := ImportDir(ctx, db, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	logger.L().Info("ingest_seeded", "features", n)
	return nil
}
