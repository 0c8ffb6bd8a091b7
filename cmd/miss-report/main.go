// 未命中热点报表：把近期吸附未命中的聚合格点导出为 GeoJSON，供补图层或手工补点参考
package main

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"snap-api/internal/logger"
	"snap-api/internal/store"
	"snap-api/internal/utils"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 约束：MISS_HOURS 限定回看窗口（默认 24），MISS_LIMIT 限定条数（默认 100）；
//      输出写到标准输出，属性带命中次数便于按热度着色
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	hours := 24
	if s := os.Getenv("MISS_HOURS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			hours = n
		}
	}
	limit := 100
	if s := os.Getenv("MISS_LIMIT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	st := store.AttachDB(db)
	cells, err := st.FetchMissHotspots(context.Background(), hours, limit)
	if err != nil {
		l.Error("miss_query_error", "err", err)
		os.Exit(1)
	}
	fc := geojson.NewFeatureCollection()
	for _, c := range cells {
		f := geojson.NewFeature(orb.Point{c.X, c.Y})
		f.Properties["misses"] = c.Misses
		f.Properties["last_seen"] = c.LastSeen
		fc.Append(f)
	}
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(fc); err != nil {
		l.Error("encode_error", "err", err)
		os.Exit(1)
	}
	l.Info("miss_report_done", "cells", len(cells), "hours", hours)
}
