// 包 ingest：调度每周的远端数据集刷新任务，运行在服务进程内的后台协程
package ingest

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"time"

	"snap-api/internal/logger"
)

// nextMondayAt：计算下一次周一指定小时的时间点（不含当前已过时的当周）
// 约束：基于传入时区 loc 与整点 hour；仅前推至未来时间
func nextMondayAt(loc *time.Location, hour int) time.Time {
	now := time.Now().In(loc)
	d := now
	for i := 0; i <= 7; i++ {
		d = now.AddDate(0, 0, i)
		if d.Weekday() == time.Monday {
			t := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
			if t.After(now) {
				return t
			}
		}
	}
	d = now.AddDate(0, 0, 7)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
}

// StartWeeklyRefresh：每周一 3:00（Asia/Shanghai）重拉远端数据集
// 背景：跟随上游数据集的更新节奏；错误由日志记录，任务继续调度
// 约束：可用 INGEST_HOUR 覆盖小时（整数），不支持分钟级；刷新完成后由调用方
//      注册的回调触发索引重建
func StartWeeklyRefresh(db *sql.DB, srcURL, layerID, name string, onDone func()) {
	l := logger.L()
	loc, _ := time.LoadLocation("Asia/Shanghai")
	hour := 3
	if h := os.Getenv("INGEST_HOUR"); h != "" {
		if n, err := strconv.Atoi(h); err == nil {
			hour = n
		}
	}
	next := nextMondayAt(loc, hour)
	go func() {
		for {
			time.Sleep(time.Until(next))
			l.Info("ingest_refresh_start", "layer", layerID, "next", next)
			if _, err := FetchAndImport(context.Background(), db, srcURL, layerID, name); err != nil {
				l.Error("ingest_refresh_error", "err", err)
			} else {
				l.Info("ingest_refresh_done", "layer", layerID)
				if onDone != nil {
					onDone()
				}
			}
			next = next.AddDate(0, 0, 7)
		}
	}()
}
