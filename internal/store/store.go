// 包 store: 提供与 PostgreSQL 的数据访问层，包含设置键值、吸附统计与未命中热点读写
package store

import (
	"context"
	"database/sql"
	"math"
	"time"

	"snap-api/internal/logger"

	_ "github.com/lib/pq"
)

// Store: 数据库访问入口，持有连接池并提供设置/统计接口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return &Store{db: db}, nil
}

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// LoadSettingsKV: 读取命名空间下全部设置键值
func (s *Store) LoadSettingsKV(ctx context.Context, namespace string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM _snap_settings_kv WHERE namespace=$1", namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("settings_kv_load", "namespace", namespace, "keys", len(out))
	return out, nil
}

// UpsertSettingsKV: 写入或更新单个设置键值
func (s *Store) UpsertSettingsKV(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO _snap_settings_kv(namespace, key, value, updated_at)
        VALUES($1,$2,$3,now())
        ON CONFLICT (namespace, key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`,
		namespace, key, value,
	)
	return err
}

// DeleteSettingsKV: 删除单个设置键值，键不存在时不报错
func (s *Store) DeleteSettingsKV(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM _snap_settings_kv WHERE namespace=$1 AND key=$2", namespace, key)
	return err
}

// IncrSnapStats: 每次解析后递增总计与当日计数；命中时递增命中计数
func (s *Store) IncrSnapStats(ctx context.Context, matched bool) error {
	_, _ = s.db.ExecContext(ctx, "UPDATE _snap_stats_total SET total_snaps=total_snaps+1 WHERE id=1")
	_, _ = s.db.ExecContext(ctx, "INSERT INTO _snap_stats_daily(day, snaps) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET snaps=_snap_stats_daily.snaps+1")
	if matched {
		_, _ = s.db.ExecContext(ctx, "UPDATE _snap_stats_total SET total_matched=total_matched+1 WHERE id=1")
		_, _ = s.db.ExecContext(ctx, "INSERT INTO _snap_stats_daily(day, matched) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET matched=_snap_stats_daily.matched+1")
	}
	logger.L().Debug("stats_incr", "matched", matched)
	return nil
}

// Totals: 统计返回结构，包含累计/命中与当日解析次数
type Totals struct {
	Total   int64
	Matched int64
	Today   int64
}

// GetTotals: 读取累计与当日解析次数，用于接口返回
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, "SELECT total_snaps, total_matched FROM _snap_stats_total WHERE id=1")
	_ = row.Scan(&t.Total, &t.Matched)
	row2 := s.db.QueryRowContext(ctx, "SELECT snaps FROM _snap_stats_daily WHERE day=current_date")
	_ = row2.Scan(&t.Today)
	logger.L().Debug("stats_totals", "total", t.Total, "matched", t.Matched, "today", t.Today)
	return &t, nil
}

// cellOf: 将坐标量化到约千分之一单位的格子，作为热点聚合键
func cellOf(v float64) int64 { return int64(math.Round(v * 1000)) }

// 文档注释：记录最近未命中的查询位置（按格子去重累加）
// 背景：作为图层覆盖盲区的候选来源，保留最近未命中的位置及次数与时间；不影响主解析逻辑。
// 约束：非有限坐标静默跳过；仅更新 last_seen 与计数。
func (s *Store) RecordRecentMiss(ctx context.Context, x, y float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return nil
	}
	_, _ = s.db.ExecContext(ctx, `INSERT INTO _snap_recent_misses(cell_x, cell_y, last_seen, misses)
        VALUES($1, $2, now(), 1)
        ON CONFLICT (cell_x, cell_y) DO UPDATE SET last_seen=now(), misses=_snap_recent_misses.misses+1`,
		cellOf(x), cellOf(y))
	return nil
}

// MissCell: 未命中热点格子，坐标为格心
type MissCell struct {
	X        float64
	Y        float64
	Misses   int64
	LastSeen time.Time
}

// 文档注释：获取最近窗口内未命中次数最多的格子
// 背景：运维排查时定位“用户反复吸附但索引无覆盖”的区域，按未命中次数排序返回指定数量。
// 参数：hours 为最近窗口小时数，limit 为最大返回数量。
// 返回：热点格子列表；异常时返回 error。
func (s *Store) FetchMissHotspots(ctx context.Context, hours int, limit int) ([]MissCell, error) {
	if hours <= 0 {
		hours = 24
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT cell_x, cell_y, misses, last_seen
        FROM _snap_recent_misses
        WHERE last_seen >= now() - make_interval(hours => $1)
        ORDER BY misses DESC, last_seen DESC
        LIMIT $2`, hours, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MissCell
	for rows.Next() {
		var cx, cy int64
		var c MissCell
		if err := rows.Scan(&cx, &cy, &c.Misses, &c.LastSeen); err != nil {
			return nil, err
		}
		c.X = float64(cx) / 1000
		c.Y = float64(cy) / 1000
		out = append(out, c)
	}
	return out, rows.Err()
}
