package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"snap-api/internal/layers"
	"snap-api/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// 文档注释：图层目录监听
// 背景：GeoJSON 图层以文件形式随目录分发，目录内容变化等价于桌面端的图层
//      增删改信号；监听到变化后重载 file: 前缀图层并调度重建。
// 约束：编辑器保存会连续触发多个事件，用单发定时器合并（SNAP_WATCH_DEBOUNCE_MS，
//      默认 500）；只响应 .geojson/.json 的写入、创建、删除与改名。
func (c *Coordinator) StartWatcher(ctx context.Context) error {
	if c.opt.LayerDir == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(c.opt.LayerDir); err != nil {
		w.Close()
		return err
	}
	debounce := 500
	if s := os.Getenv("SNAP_WATCH_DEBOUNCE_MS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			debounce = n
		}
	}
	var mu sync.Mutex
	var timer *time.Timer
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer == nil {
			timer = time.AfterFunc(time.Duration(debounce)*time.Millisecond, c.reloadFileLayers)
		} else {
			timer.Reset(time.Duration(debounce) * time.Millisecond)
		}
	}
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !layerFile(ev.Name) {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					logger.L().Debug("layer_dir_event", "file", ev.Name, "op", ev.Op.String())
					trigger()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.L().Warn("layer_watch_error", "err", err)
			}
		}
	}()
	logger.L().Info("layer_watch_on", "dir", c.opt.LayerDir)
	return nil
}

func layerFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".geojson", ".json":
		return true
	}
	return false
}

// reloadFileLayers：重载目录图层并调度重建
func (c *Coordinator) reloadFileLayers() {
	c.opt.Registry.RemovePrefix("file:")
	for _, l := range layers.LoadDir(c.opt.LayerDir) {
		c.opt.Registry.Add(l, true)
	}
	logger.L().Info("layer_dir_reloaded", "total_layers", c.opt.Registry.Len())
	c.Rebuild("layer_dir_change")
}
