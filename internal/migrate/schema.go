package migrate

import (
	"database/sql"

	"snap-api/internal/logger"
)

// 背景：首次运行自动创建所需表与索引，保障后续导入与查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _snap_layers (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            layer_type TEXT NOT NULL DEFAULT 'vector',
            srid INT NOT NULL DEFAULT 0,
            gkind TEXT NOT NULL DEFAULT '',
            visible BOOLEAN NOT NULL DEFAULT TRUE,
            valid BOOLEAN NOT NULL DEFAULT TRUE,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS _snap_features (
            layer_id TEXT NOT NULL REFERENCES _snap_layers(id),
            fid BIGINT NOT NULL,
            geom TEXT NOT NULL,
            minx DOUBLE PRECISION NOT NULL,
            miny DOUBLE PRECISION NOT NULL,
            maxx DOUBLE PRECISION NOT NULL,
            maxy DOUBLE PRECISION NOT NULL,
            PRIMARY KEY (layer_id, fid)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_features_layer_minx ON _snap_features(layer_id, minx)`,
		`CREATE TABLE IF NOT EXISTS _snap_settings_kv (
            namespace TEXT NOT NULL,
            key TEXT NOT NULL,
            value TEXT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (namespace, key)
        )`,
		`CREATE TABLE IF NOT EXISTS _snap_stats_total (
            id INT PRIMARY KEY,
            total_snaps BIGINT NOT NULL DEFAULT 0,
            total_matched BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _snap_stats_daily (
            day DATE PRIMARY KEY,
            snaps BIGINT NOT NULL DEFAULT 0,
            matched BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _snap_stats_total(id, total_snaps, total_matched)
         VALUES(1, 0, 0)
         ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS _snap_recent_misses (
            cell_x BIGINT NOT NULL,
            cell_y BIGINT NOT NULL,
            last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
            misses BIGINT NOT NULL DEFAULT 0,
            PRIMARY KEY (cell_x, cell_y)
        )`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	// 外键调整为可延迟检查，降低导入事务内父子可见性问题
	if _, err := db.Exec(`ALTER TABLE _snap_features DROP CONSTRAINT IF EXISTS _snap_features_layer_id_fkey`); err != nil {
		return err
	}
	if _, err := db.Exec(`ALTER TABLE _snap_features ADD CONSTRAINT _snap_features_layer_id_fkey FOREIGN KEY (layer_id) REFERENCES _snap_layers(id) DEFERRABLE INITIALLY DEFERRED`); err != nil {
		return err
	}
	logger.L().Debug("schema_done")
	return nil
}
