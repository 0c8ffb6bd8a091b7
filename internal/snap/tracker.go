package snap

import (
	"context"
	"sync"
	"time"

	"snap-api/internal/crs"
	"snap-api/internal/settings"

	"github.com/paulmach/orb"
)

// Tracker：指针移动防抖器
// 背景：指针高频移动时不能每次都跑完整解析；用单发定时器合并一段时间内的
//      移动，仅对最新位置执行一次解析并更新标记。
// 约束：防抖窗口 0 表示同步立即解析；构造时负值钳为 0；窗口内的后到移动
//      重置倒计时并覆盖待解析位置。
type Tracker struct {
	mu       sync.Mutex
	res      *Resolver
	marker   Marker
	debounce time.Duration
	timer    *time.Timer
	lastPt   orb.Point
	lastVP   crs.Viewport
	lastS    settings.Settings
}

func NewTracker(res *Resolver, marker Marker, debounceMS int) *Tracker {
	if debounceMS < 0 {
		debounceMS = 0
	}
	return &Tracker{res: res, marker: marker, debounce: time.Duration(debounceMS) * time.Millisecond}
}

// Move：上报一次指针移动
func (t *Tracker) Move(ctx context.Context, pt orb.Point, vp crs.Viewport, s settings.Settings) {
	t.mu.Lock()
	t.lastPt, t.lastVP, t.lastS = pt, vp, s
	if t.debounce <= 0 {
		t.mu.Unlock()
		t.fire(ctx)
		return
	}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.debounce, func() { t.fire(context.Background()) })
	} else {
		t.timer.Reset(t.debounce)
	}
	t.mu.Unlock()
}

// Stop：取消未到期的解析并擦除标记
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
	t.marker.Hide()
}

func (t *Tracker) fire(ctx context.Context) {
	t.mu.Lock()
	pt, vp, s := t.lastPt, t.lastVP, t.lastS
	t.mu.Unlock()
	r := t.res.Resolve(ctx, pt, vp, s)
	if r.Matched {
		t.marker.Show(r.Point)
	} else {
		t.marker.Hide()
	}
}
