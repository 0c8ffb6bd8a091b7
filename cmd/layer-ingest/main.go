// 图层导入工具：把 GeoJSON 数据集写入 PostgreSQL 图层表，支持文件/目录/远端拉取/单点补写
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"snap-api/internal/ingest"
	"snap-api/internal/logger"
	"snap-api/internal/migrate"
	"snap-api/internal/utils"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func usage() {
	fmt.Println("usage:")
	fmt.Println("  layer-ingest file <path>")
	fmt.Println("  layer-ingest dir <path>")
	fmt.Println("  layer-ingest url <src-url> <layer-id>")
	fmt.Println("  layer-ingest point <layer-id> <fid> <x> <y>")
}

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "file":
		id, n, err := ingest.ImportFile(ctx, db, os.Args[2])
		if err != nil {
			l.Error("ingest_error", "err", err)
			os.Exit(1)
		}
		fmt.Println("imported", n, "features into", id)
	case "dir":
		n, err := ingest.ImportDir(ctx, db, os.Args[2])
		if err != nil {
			l.Error("ingest_error", "err", err)
			os.Exit(1)
		}
		fmt.Println("imported", n, "features")
	case "url":
		if len(os.Args) < 4 {
			usage()
			os.Exit(2)
		}
		id := os.Args[3]
		n, err := ingest.FetchAndImport(ctx, db, os.Args[2], id, id)
		if err != nil {
			l.Error("ingest_error", "err", err)
			os.Exit(1)
		}
		fmt.Println("imported", n, "features into", id)
	case "point":
		if len(os.Args) < 6 {
			usage()
			os.Exit(2)
		}
		fid, err1 := strconv.ParseInt(os.Args[3], 10, 64)
		x, err2 := strconv.ParseFloat(os.Args[4], 64)
		y, err3 := strconv.ParseFloat(os.Args[5], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			usage()
			os.Exit(2)
		}
		if err := ingest.WritePoint(ctx, db, os.Args[2], fid, x, y); err != nil {
			l.Error("ingest_error", "err", err)
			os.Exit(1)
		}
		fmt.Println("ok")
	default:
		usage()
		os.Exit(2)
	}
}
