// 轨迹回放工具：把指针轨迹文件逐行喂给追踪器，观察防抖合并与吸附标记的真实节奏
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"snap-api/internal/crs"
	"snap-api/internal/geomindex"
	"snap-api/internal/logger"
	"snap-api/internal/plugins"
	"snap-api/internal/settings"
	"snap-api/internal/snap"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
)

// stdoutMarker：把标记动作写到标准输出，一行一个事件
type stdoutMarker struct{}

func (stdoutMarker) Show(p orb.Point) { fmt.Printf("show %g %g\n", p[0], p[1]) }
func (stdoutMarker) Hide()            { fmt.Println("hide") }

// 轨迹行格式：x y [间隔毫秒]，逗号与空白都可作分隔；# 开头为注释
// 约束：未写间隔时用 SNAP_REPLAY_STEP_MS（默认 15ms）模拟指针节奏
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	if len(os.Args) < 2 {
		fmt.Println("usage: snap-replay <trace-file>")
		os.Exit(2)
	}
	f, err := os.Open(os.Args[1])
	if err != nil {
		l.Error("trace_open_error", "err", err)
		os.Exit(1)
	}
	defer f.Close()

	// 回放是离线工具，配置走 YAML 文件而不连库
	path := os.Getenv("SNAP_SETTINGS_FILE")
	if path == "" {
		path = filepath.Join("data", "settings.yaml")
	}
	ctx := context.Background()
	kv, err := settings.NewFileStore(path).Load(ctx)
	if err != nil {
		l.Warn("settings_load_fallback_default", "err", err)
		kv = map[string]string{}
	}
	s := settings.FromMap(kv)

	handle := geomindex.NewHandle()
	bundleDir := os.Getenv("SNAP_BUNDLE_DIR")
	if bundleDir == "" {
		bundleDir = filepath.Join("data", "bundles")
	}
	if b, err := geomindex.LoadBundle(bundleDir, os.Getenv("SNAP_INDEX_BACKEND")); err == nil {
		handle.Swap(b)
		l.Info("bundle_file_adopted", "points", b.Len(), "run_id", b.RunID())
	} else {
		l.Info("bundle_file_unavailable", "dir", bundleDir, "err", err)
	}

	pm := plugins.NewManager()
	if os.Getenv("SNAP_GRID_ENABLE") == "true" {
		pm.Register(plugins.NewGridFromEnv())
	}
	if eps := os.Getenv("SNAP_ENGINE_URLS"); eps != "" {
		for _, item := range strings.Split(eps, ",") {
			item = strings.TrimSpace(item)
			name, url, ok := strings.Cut(item, "=")
			if !ok || name == "" || url == "" {
				continue
			}
			pm.Register(plugins.NewHTTP(name, "1.0", url))
		}
	}

	vp := viewportFromEnv()
	step := 15 * time.Millisecond
	if v, err := strconv.Atoi(os.Getenv("SNAP_REPLAY_STEP_MS")); err == nil && v >= 0 {
		step = time.Duration(v) * time.Millisecond
	}

	tracker := snap.NewTracker(snap.NewResolver(pm, handle), stdoutMarker{}, s.DebounceMS)
	moves := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(strings.ReplaceAll(line, ",", " "))
		if len(parts) < 2 {
			l.Warn("trace_line_skip", "line", line)
			continue
		}
		x, errX := strconv.ParseFloat(parts[0], 64)
		y, errY := strconv.ParseFloat(parts[1], 64)
		if errX != nil || errY != nil {
			l.Warn("trace_line_skip", "line", line)
			continue
		}
		wait := step
		if len(parts) >= 3 {
			if ms, err := strconv.Atoi(parts[2]); err == nil && ms >= 0 {
				wait = time.Duration(ms) * time.Millisecond
			}
		}
		tracker.Move(ctx, orb.Point{x, y}, vp, s)
		moves++
		time.Sleep(wait)
	}
	if err := sc.Err(); err != nil {
		l.Error("trace_read_error", "err", err)
	}
	// 留给尾部防抖一次触发机会，再收尾隐藏标记
	time.Sleep(time.Duration(s.DebounceMS)*time.Millisecond + 50*time.Millisecond)
	tracker.Stop()
	l.Info("replay_done", "moves", moves)
}

func viewportFromEnv() crs.Viewport {
	var vp crs.Viewport
	if ext := os.Getenv("SNAP_VIEWPORT_EXTENT"); ext != "" {
		parts := strings.Split(ext, ",")
		if len(parts) == 4 {
			var vals [4]float64
			ok := true
			for i, p := range parts {
				v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
				if err != nil {
					ok = false
					break
				}
				vals[i] = v
			}
			if ok {
				vp.Extent = orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}
			}
		}
	}
	vp.CRS = os.Getenv("SNAP_VIEWPORT_CRS")
	if v, err := strconv.Atoi(os.Getenv("SNAP_VIEWPORT_WIDTH")); err == nil {
		vp.WidthPx = v
	}
	if v, err := strconv.Atoi(os.Getenv("SNAP_VIEWPORT_HEIGHT")); err == nil {
		vp.HeightPx = v
	}
	return vp
}
