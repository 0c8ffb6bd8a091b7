package settings

import (
	"context"
	"os"
	"strconv"
	"time"

	"snap-api/internal/logger"
	"snap-api/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace：设置存储的默认命名空间
const DefaultNamespace = "snapzen"

// Store：设置存取后端，PG 与文件两种实现共用同一组语义
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, kv map[string]string) error
}

// Service：设置服务，组合后端存储与 Redis 哈希缓存
// 背景：解析热路径每次都要读容差与开关，直接打后端会放大尾延迟；
//      缓存整组键值，保存时删除缓存键让下次装载回源。
type Service struct {
	store Store
	rc    *redis.Client
	ns    string
	ttl   time.Duration
}

func NewService(st Store, rc *redis.Client, namespace string) *Service {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	ttl := 300
	if v := os.Getenv("SETTINGS_CACHE_TTL_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return &Service{store: st, rc: rc, ns: namespace, ttl: time.Duration(ttl) * time.Second}
}

func (s *Service) cacheKey() string { return "settings:" + s.ns }

// Load：读取当前生效配置
// 返回：永远可用的配置值；后端不可用时回退默认并记日志
func (s *Service) Load(ctx context.Context) Settings {
	if s.rc != nil {
		if m, err := s.rc.HGetAll(ctx, s.cacheKey()).Result(); err == nil && len(m) > 0 {
			metrics.RedisHitsTotal.Inc()
			return FromMap(m)
		}
		metrics.RedisMissesTotal.Inc()
	}
	m, err := s.store.Load(ctx)
	if err != nil {
		logger.L().Warn("settings_load_fallback_default", "err", err)
		return Default()
	}
	if s.rc != nil && len(m) > 0 {
		if err := s.rc.HSet(ctx, s.cacheKey(), m).Err(); err == nil {
			_ = s.rc.Expire(ctx, s.cacheKey(), s.ttl).Err()
		}
	}
	return FromMap(m)
}

// Save：持久化配置并失效缓存
func (s *Service) Save(ctx context.Context, v Settings) error {
	if err := s.store.Save(ctx, v.ToMap()); err != nil {
		return err
	}
	if s.rc != nil {
		_ = s.rc.Del(ctx, s.cacheKey()).Err()
	}
	logger.L().Info("settings_saved", "namespace", s.ns,
		"tolerance_value", v.ToleranceValue, "tolerance_units", string(v.ToleranceUnits),
		"debounce_ms", v.DebounceMS, "use_fallback_index", v.UseFallbackIndex)
	return nil
}
