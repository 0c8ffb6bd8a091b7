// 包 middleware：入口横切层，提供访问端限流与来源识别
package middleware

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"snap-api/internal/logger"

	"golang.org/x/time/rate"
)

// 文档注释：按访问端 IP 的令牌桶限流
// 背景：指针轨迹回放与前端高频吸附查询可能压垮解析链路；按来源 IP 各自限速，
//      单个失控客户端不拖垮全局。
// 约束：RATE_LIMIT_ENABLED=true 开启；RATE_LIMIT_QPS 每秒速率（默认 200），
//      突发额度与速率相同；超限直接返回 429；空闲桶定期回收。
type ipLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

type RateLimiter struct {
	mu    sync.Mutex
	qps   rate.Limit
	burst int
	byIP  map[string]*ipLimiter
}

func NewRateLimiter(qps int) *RateLimiter {
	rl := &RateLimiter{qps: rate.Limit(qps), burst: qps, byIP: map[string]*ipLimiter{}}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	e, ok := rl.byIP[ip]
	if !ok {
		e = &ipLimiter{lim: rate.NewLimiter(rl.qps, rl.burst)}
		rl.byIP[ip] = e
	}
	e.seen = time.Now()
	return e.lim
}

// sweep：回收三分钟未活动的桶
func (rl *RateLimiter) sweep() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for range t.C {
		cut := time.Now().Add(-3 * time.Minute)
		rl.mu.Lock()
		for ip, e := range rl.byIP {
			if e.seen.Before(cut) {
				delete(rl.byIP, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func Wrap(next http.Handler) http.Handler {
	if os.Getenv("RATE_LIMIT_ENABLED") != "true" {
		return next
	}
	qps := 200
	if s := os.Getenv("RATE_LIMIT_QPS"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			qps = n
		}
	}
	rl := NewRateLimiter(qps)
	logger.L().Info("rate_limit_on", "qps", qps)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiterFor(VisitorIP(r)).Allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
