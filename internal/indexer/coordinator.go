// 包 indexer：索引重建的调度面，统一处理触发来源、在途取消与成功后的发布落盘
package indexer

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"snap-api/internal/crs"
	"snap-api/internal/geomindex"
	"snap-api/internal/layers"
	"snap-api/internal/logger"
	"snap-api/internal/metrics"
	"snap-api/internal/settings"
)

// Options：协调器装配参数
type Options struct {
	Handle      *geomindex.Handle
	Builder     *geomindex.Builder
	Registry    *layers.Registry
	Settings    *settings.Service
	Viewport    crs.Viewport
	LayerDir    string // GeoJSON 图层目录，空则不监听
	BundleDir   string // 成功构建的落盘目录，空则不落盘
	Backend     string // 空间索引后端，载入落盘束时使用
	OnlyVisible bool
}

// Coordinator：重建协调器
// 背景：重建可能由管理接口、图层目录变更、定时器等多处触发；统一在这里做
//      「新触发取消在途构建、构建串行执行、只有成功才替换句柄」。
type Coordinator struct {
	opt      Options
	mu       sync.Mutex // 保护 cancel/building/last*
	buildMu  sync.Mutex // 串行化构建执行
	cancel   context.CancelFunc
	building bool
	lastRep  *geomindex.Report
	lastErr  error
}

func New(opt Options) *Coordinator { return &Coordinator{opt: opt} }

// LoadSaved：启动时尝试载入最近落盘的束
// 背景：先用旧束提供兜底，再在后台跑新构建，重启期间兜底不中断
func (c *Coordinator) LoadSaved() {
	if c.opt.BundleDir == "" {
		return
	}
	b, err := geomindex.LoadBundle(c.opt.BundleDir, c.opt.Backend)
	if err != nil {
		logger.L().Info("bundle_file_unavailable", "dir", c.opt.BundleDir, "err", err)
		return
	}
	c.opt.Handle.Swap(b)
	metrics.IndexPoints.Set(float64(b.Len()))
	logger.L().Info("bundle_file_adopted", "points", b.Len(), "run_id", b.RunID())
}

// Rebuild：调度一次重建
// 约束：use_fallback_index 与 build_fallback_index 任一关闭则不构建；
//      新触发取消在途构建，后到优先。
// 返回：是否已调度。
func (c *Coordinator) Rebuild(reason string) bool {
	s := c.opt.Settings.Load(context.Background())
	if !s.UseFallbackIndex || !s.BuildFallbackIndex {
		logger.L().Debug("index_rebuild_gated_off", "reason", reason,
			"use_fallback_index", s.UseFallbackIndex, "build_fallback_index", s.BuildFallbackIndex)
		return false
	}
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()
	go c.run(ctx, reason)
	return true
}

// Cancel：取消在途构建，保留当前句柄内容
// 背景：进程退出与图层批量变更前让在途构建尽快让路
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
}

func (c *Coordinator) run(ctx context.Context, reason string) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if ctx.Err() != nil {
		// 排队期间已被更新的触发取代
		metrics.IndexBuildTotal.WithLabelValues("canceled").Inc()
		return
	}
	c.mu.Lock()
	c.building = true
	c.mu.Unlock()

	t0 := time.Now()
	params := geomindex.BuildParams{
		Layers:      c.opt.Registry.Layers(),
		VisibleIDs:  c.opt.Registry.VisibleIDs(),
		Viewport:    c.opt.Viewport,
		OnlyVisible: c.opt.OnlyVisible,
	}
	b, rep, err := c.opt.Builder.Build(ctx, params)
	ms := float64(time.Since(t0).Milliseconds())
	metrics.IndexBuildDurationMs.Observe(ms)

	switch {
	case err == nil:
		c.opt.Handle.Swap(b)
		metrics.IndexBuildTotal.WithLabelValues("success").Inc()
		metrics.IndexPoints.Set(float64(b.Len()))
		if n := len(rep.LayerErrors); n > 0 {
			metrics.IndexLayerErrorsTotal.Add(float64(n))
		}
		if c.opt.BundleDir != "" {
			if err := geomindex.SaveBundle(c.opt.BundleDir, b); err != nil {
				logger.L().Warn("bundle_file_save_failed", "dir", c.opt.BundleDir, "err", err)
			}
		}
		logger.L().Info("index_rebuild_done", "reason", reason, "run_id", rep.RunID,
			"points", b.Len(), "duplicates", rep.Duplicates, "ms", ms)
	case errors.Is(err, context.Canceled):
		metrics.IndexBuildTotal.WithLabelValues("canceled").Inc()
		logger.L().Info("index_rebuild_canceled", "reason", reason, "run_id", rep.RunID)
	default:
		metrics.IndexBuildTotal.WithLabelValues("error").Inc()
		logger.L().Error("index_rebuild_failed", "reason", reason, "err", err)
	}

	// 句柄替换与落盘完成后才摘掉 building 标记，状态接口不会读到半发布的运行
	c.mu.Lock()
	c.building = false
	c.lastRep = rep
	c.lastErr = err
	c.mu.Unlock()
}

// Status：供状态接口读取的快照
type Status struct {
	Building  bool              `json:"building"`
	RunID     string            `json:"run_id"`
	BuiltAt   time.Time         `json:"built_at"`
	Points    int               `json:"points"`
	Report    *geomindex.Report `json:"last_report,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

func (c *Coordinator) Status() Status {
	b := c.opt.Handle.Current()
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Building: c.building,
		RunID:    b.RunID(),
		BuiltAt:  b.BuiltAt(),
		Points:   b.Len(),
		Report:   c.lastRep,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// StartPeriodic：按固定间隔触发重建
// 约束：间隔秒数从 SNAP_REBUILD_INTERVAL_S 读取，缺省或 0 表示关闭
func (c *Coordinator) StartPeriodic(ctx context.Context) {
	iv := 0
	if s := os.Getenv("SNAP_REBUILD_INTERVAL_S"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			iv = n
		}
	}
	if iv <= 0 {
		logger.L().Debug("index_periodic_off")
		return
	}
	t := time.NewTicker(time.Duration(iv) * time.Second)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Rebuild("periodic")
			}
		}
	}()
	logger.L().Info("index_periodic_on", "interval_s", iv)
}
