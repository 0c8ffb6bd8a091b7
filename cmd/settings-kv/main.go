// 配置键值工具：交互式读写 _snap_settings_kv，旧键名自动折算为规范键
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"

	"snap-api/internal/migrate"
	"snap-api/internal/settings"
	"snap-api/internal/store"
	"snap-api/internal/utils"

	"github.com/joho/godotenv"
)

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  show              # 解析后的生效配置")
	fmt.Println("  list              # 原始键值行")
	fmt.Println("  get <key>")
	fmt.Println("  set <key> <value> # 写入后新旧两种键名保持同步")
	fmt.Println("  del <key>")
	fmt.Println("  help")
	fmt.Println("  exit")
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	s, _ := r.ReadString('\n')
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// saveAll：整套配置落库，规范键与旧键名都写一份
func saveAll(ctx context.Context, st *store.Store, ns string, s settings.Settings) error {
	kv := s.ToMap()
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := st.UpsertSettingsKV(ctx, ns, k, kv[k]); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	var envFile string
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--env" && i+1 < len(os.Args) {
			envFile = os.Args[i+1]
			i++
		} else if strings.HasSuffix(os.Args[i], ".env") {
			envFile = os.Args[i]
		}
	}
	var db *sql.DB
	var err error
	if envFile != "" {
		_ = godotenv.Load(envFile)
		db, err = utils.OpenPostgresFromEnv()
	} else {
		r := bufio.NewReader(os.Stdin)
		fmt.Println("输入数据库连接参数，回车使用默认值")
		host := prompt(r, "PG_HOST", "127.0.0.1")
		port := prompt(r, "PG_PORT", "5432")
		user := prompt(r, "PG_USER", "postgres")
		pass := prompt(r, "PG_PASSWORD", "")
		name := prompt(r, "PG_DB", "snapapi")
		ssl := prompt(r, "PG_SSLMODE", "disable")
		dsn := "postgres://" + user
		if pass != "" {
			dsn += ":" + pass
		}
		dsn += "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
		db, err = utils.OpenPostgres(dsn)
	}
	if err != nil {
		fmt.Println("db error:", err)
		os.Exit(1)
	}
	if err := migrate.EnsureSchema(db); err != nil {
		fmt.Println("schema error:", err)
		os.Exit(1)
	}
	defer db.Close()

	ns := os.Getenv("SETTINGS_NAMESPACE")
	if ns == "" {
		ns = settings.DefaultNamespace
	}
	st := store.AttachDB(db)
	ctx := context.Background()

	fmt.Println("settings kv cli ready, namespace:", ns)
	printHelp()
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		switch cmd {
		case "exit", "quit":
			return
		case "help":
			printHelp()
		case "show":
			kv, err := st.LoadSettingsKV(ctx, ns)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			s := settings.FromMap(kv)
			fmt.Printf("tolerance_value      = %v\n", s.ToleranceValue)
			fmt.Printf("tolerance_units      = %s\n", string(s.ToleranceUnits))
			fmt.Printf("debounce_ms          = %d\n", s.DebounceMS)
			fmt.Printf("snap_vertices        = %t\n", s.SnapVertices)
			fmt.Printf("snap_segments        = %t\n", s.SnapSegments)
			fmt.Printf("use_fallback_index   = %t\n", s.UseFallbackIndex)
			fmt.Printf("build_fallback_index = %t\n", s.BuildFallbackIndex)
		case "list":
			kv, err := st.LoadSettingsKV(ctx, ns)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			keys := make([]string, 0, len(kv))
			for k := range kv {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) == 0 {
				fmt.Println("empty, defaults in effect")
			}
			for _, k := range keys {
				fmt.Printf("%s = %s\n", k, kv[k])
			}
		case "get":
			if len(parts) < 2 {
				fmt.Println("usage: get <key>")
				continue
			}
			kv, err := st.LoadSettingsKV(ctx, ns)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			k := settings.CanonicalKey(strings.ToLower(parts[1]))
			if v, ok := kv[k]; ok {
				fmt.Println(v)
			} else {
				fmt.Println("unset, default in effect")
			}
		case "set":
			if len(parts) < 3 {
				fmt.Println("usage: set <key> <value>")
				continue
			}
			kv, err := st.LoadSettingsKV(ctx, ns)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			kv[settings.CanonicalKey(strings.ToLower(parts[1]))] = parts[2]
			if err := saveAll(ctx, st, ns, settings.FromMap(kv)); err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println("ok")
			}
		case "del":
			if len(parts) < 2 {
				fmt.Println("usage: del <key>")
				continue
			}
			k := settings.CanonicalKey(strings.ToLower(parts[1]))
			if err := st.DeleteSettingsKV(ctx, ns, k); err != nil {
				fmt.Println("error:", err)
				continue
			}
			// 同步清掉旧键名镜像
			for legacy, canon := range map[string]string{
				settings.LegacySnapCentroids:      settings.KeyUseFallbackIndex,
				settings.LegacyBuildCentroidIndex: settings.KeyBuildFallbackIndex,
			} {
				if canon == k {
					_ = st.DeleteSettingsKV(ctx, ns, legacy)
				}
			}
			fmt.Println("ok")
		default:
			fmt.Println("unknown command")
		}
	}
}
