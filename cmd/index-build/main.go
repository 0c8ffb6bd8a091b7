// 离线索引构建工具：装配图层、跑一次完整构建并把点束落盘，供服务启动时直接采用
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"snap-api/internal/crs"
	"snap-api/internal/geomindex"
	"snap-api/internal/layers"
	"snap-api/internal/logger"
	"snap-api/internal/utils"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
)

// 约束：离线构建不受运行时开关约束，执行本身即操作者意图；
//      可见性过滤与视口窗口仍按环境变量生效
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()

	layerDir := os.Getenv("SNAP_LAYER_DIR")
	if layerDir == "" {
		layerDir = filepath.Join("data", "layers")
	}
	reg := layers.NewRegistry()
	for _, fl := range layers.LoadDir(layerDir) {
		reg.Add(fl, true)
	}
	if os.Getenv("PG_ENABLE") != "false" {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		pgl, vis, err := layers.NewPGProvider(db).LoadLayers(context.Background())
		if err != nil {
			l.Error("pg_layers_error", "err", err)
		} else {
			for _, pl := range pgl {
				reg.Add(pl, vis[pl.ID()])
			}
		}
	}
	if mmdbPath := os.Getenv("SNAP_MMDB_PATH"); mmdbPath != "" {
		if ml, err := layers.LoadMMDB(mmdbPath); err == nil {
			reg.Add(ml, true)
		} else {
			l.Error("mmdb_layer_error", "err", err)
		}
	}
	if reg.Len() == 0 {
		l.Error("no_layers", "dir", layerDir)
		os.Exit(1)
	}

	vp := viewportFromEnv()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	builder := geomindex.NewBuilder(os.Getenv("SNAP_INDEX_BACKEND"))
	bundle, rep, err := builder.Build(ctx, geomindex.BuildParams{
		Layers:      reg.Layers(),
		VisibleIDs:  reg.VisibleIDs(),
		Viewport:    vp,
		OnlyVisible: os.Getenv("SNAP_ONLY_VISIBLE") != "false",
	})
	if err != nil {
		l.Error("index_build_error", "err", err)
		os.Exit(1)
	}

	outDir := os.Getenv("SNAP_BUNDLE_DIR")
	if outDir == "" {
		outDir = filepath.Join("data", "bundles")
	}
	if err := geomindex.SaveBundle(outDir, bundle); err != nil {
		l.Error("bundle_save_error", "err", err)
		os.Exit(1)
	}
	fmt.Println("run:", rep.RunID)
	fmt.Println("layers:", rep.LayersIndexed, "/", rep.LayersSeen)
	fmt.Println("points:", rep.Points, "dups:", rep.Duplicates)
	for _, e := range rep.LayerErrors {
		fmt.Println("layer error:", e)
	}
	fmt.Println("saved to", outDir)
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
	return vp
}
