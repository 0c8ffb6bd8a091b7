package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"snap-api/internal/geomindex"
	"snap-api/internal/layers"
	"snap-api/internal/settings"

	"github.com/paulmach/orb"
)

type kvStore struct{ m map[string]string }

func (s *kvStore) Load(ctx context.Context) (map[string]string, error) { return s.m, nil }
func (s *kvStore) Save(ctx context.Context, kv map[string]string) error {
	s.m = kv
	return nil
}

type testIter struct {
	feats []layers.Feature
	pos   int
	hook  func(pos int)
}

func (it *testIter) Next() bool {
	if it.hook != nil {
		it.hook(it.pos)
	}
	if it.pos >= len(it.feats) {
		return false
	}
	it.pos++
	return true
}
func (it *testIter) Feature() layers.Feature { return it.feats[it.pos-1] }
func (it *testIter) Err() error              { return nil }
func (it *testIter) Close() error            { return nil }

type testLayer struct {
	id    string
	feats []layers.Feature
	hook  func(pos int)
}

func (l *testLayer) ID() string   { return l.id }
func (l *testLayer) Name() string { return l.id }
func (l *testLayer) Valid() bool  { return true }
func (l *testLayer) Vector() bool { return true }
func (l *testLayer) CRS() string  { return "" }
func (l *testLayer) Kind() (layers.GeometryKind, error) {
	return layers.KindPoint, nil
}
func (l *testLayer) Features(ctx context.Context, filter *orb.Bound) (layers.FeatureIter, error) {
	return &testIter{feats: l.feats, hook: l.hook}, nil
}

func pointsLayer(id string, pts ...orb.Point) *testLayer {
	feats := make([]layers.Feature, len(pts))
	for i, p := range pts {
		feats[i] = layers.Feature{ID: int64(i), Geom: p}
	}
	return &testLayer{id: id, feats: feats}
}

func testOpts(reg *layers.Registry, s settings.Settings) Options {
	return Options{
		Handle:   geomindex.NewHandle(),
		Builder:  geomindex.NewBuilder(""),
		Registry: reg,
		Settings: settings.NewService(&kvStore{m: s.ToMap()}, nil, "test"),
	}
}

func waitStatus(t *testing.T, co *Coordinator, cond func(Status) bool) Status {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		st := co.Status()
		if cond(st) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for status, last %+v", co.Status())
	return Status{}
}

func TestRebuildSwapsOnSuccess(t *testing.T) {
	reg := layers.NewRegistry()
	reg.Add(pointsLayer("base", orb.Point{1, 1}, orb.Point{2, 2}, orb.Point{3, 3}), true)
	co := New(testOpts(reg, settings.Default()))

	if !co.Rebuild("test") {
		t.Fatal("rebuild not scheduled")
	}
	st := waitStatus(t, co, func(s Status) bool { return !s.Building && s.Points == 3 })
	if st.RunID == "" || st.Report == nil || st.Report.Points != 3 {
		t.Fatalf("status = %+v, want run id and report", st)
	}
}

func TestRebuildGatedOffByToggles(t *testing.T) {
	reg := layers.NewRegistry()
	reg.Add(pointsLayer("base", orb.Point{1, 1}), true)

	s := settings.Default()
	s.BuildFallbackIndex = false
	co := New(testOpts(reg, s))
	if co.Rebuild("test") {
		t.Fatal("rebuild scheduled with build toggle off")
	}

	s = settings.Default()
	s.UseFallbackIndex = false
	co = New(testOpts(reg, s))
	if co.Rebuild("test") {
		t.Fatal("rebuild scheduled with use toggle off")
	}
	if st := co.Status(); st.Points != 0 {
		t.Fatalf("points = %d, want 0 with gate off", st.Points)
	}
}

func TestCancelKeepsPreviousBundle(t *testing.T) {
	reg := layers.NewRegistry()
	reg.Add(pointsLayer("base", orb.Point{1, 1}, orb.Point{2, 2}, orb.Point{3, 3}), true)
	co := New(testOpts(reg, settings.Default()))

	if !co.Rebuild("first") {
		t.Fatal("first rebuild not scheduled")
	}
	first := waitStatus(t, co, func(s Status) bool { return !s.Building && s.Points == 3 })

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := pointsLayer("slow", orb.Point{50, 50})
	slow.hook = func(pos int) {
		if pos == 0 {
			once.Do(func() { close(entered) })
			<-release
		}
	}
	reg.Add(slow, true)

	if !co.Rebuild("slow") {
		t.Fatal("second rebuild not scheduled")
	}
	<-entered
	co.Cancel()
	close(release)

	st := waitStatus(t, co, func(s Status) bool { return !s.Building && s.LastError != "" })
	if st.RunID != first.RunID || st.Points != 3 {
		t.Fatalf("canceled build must keep previous bundle, status %+v", st)
	}
}

func TestNewTriggerSupersedesInflight(t *testing.T) {
	reg := layers.NewRegistry()
	reg.Add(pointsLayer("base", orb.Point{1, 1}, orb.Point{2, 2}, orb.Point{3, 3}), true)
	co := New(testOpts(reg, settings.Default()))

	if !co.Rebuild("first") {
		t.Fatal("first rebuild not scheduled")
	}
	first := waitStatus(t, co, func(s Status) bool { return !s.Building && s.Points == 3 })

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := pointsLayer("slow", orb.Point{50, 50})
	slow.hook = func(pos int) {
		if pos == 0 {
			once.Do(func() { close(entered) })
			<-release
		}
	}
	reg.Add(slow, true)

	if !co.Rebuild("stalled") {
		t.Fatal("stalled rebuild not scheduled")
	}
	<-entered
	if !co.Rebuild("superseding") {
		t.Fatal("superseding rebuild not scheduled")
	}
	close(release)

	st := waitStatus(t, co, func(s Status) bool { return !s.Building && s.Points == 4 })
	if st.RunID == first.RunID {
		t.Fatal("superseding build should publish a new run")
	}
}

func TestLoadSavedAdoptsBundleFile(t *testing.T) {
	dir := t.TempDir()
	b, err := geomindex.NewFromPoints("run-saved", time.Now(), "", map[int64]orb.Point{0: {1, 2}, 1: {3, 4}})
	if err != nil {
		t.Fatalf("NewFromPoints: %v", err)
	}
	if err := geomindex.SaveBundle(dir, b); err != nil {
		t.Fatalf("SaveBundle: %v", err)
	}

	co := New(Options{Handle: geomindex.NewHandle(), BundleDir: dir})
	co.LoadSaved()
	if st := co.Status(); st.Points != 2 || st.RunID != "run-saved" {
		t.Fatalf("status = %+v, want adopted saved bundle", st)
	}

	co = New(Options{Handle: geomindex.NewHandle(), BundleDir: filepath.Join(dir, "absent")})
	co.LoadSaved()
	if st := co.Status(); st.Points != 0 {
		t.Fatalf("status = %+v, want empty without a saved bundle", st)
	}
}

func TestRebuildSavesBundleFile(t *testing.T) {
	reg := layers.NewRegistry()
	reg.Add(pointsLayer("base", orb.Point{1, 1}, orb.Point{2, 2}), true)
	opts := testOpts(reg, settings.Default())
	opts.BundleDir = t.TempDir()
	co := New(opts)

	if !co.Rebuild("test") {
		t.Fatal("rebuild not scheduled")
	}
	waitStatus(t, co, func(s Status) bool { return !s.Building && s.Points == 2 })

	loaded, err := geomindex.LoadBundle(opts.BundleDir, "")
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("saved bundle points = %d, want 2", loaded.Len())
	}
}

func TestWatcherReloadsAndRebuilds(t *testing.T) {
	t.Setenv("SNAP_WATCH_DEBOUNCE_MS", "50")
	dir := t.TempDir()
	reg := layers.NewRegistry()
	opts := testOpts(reg, settings.Default())
	opts.LayerDir = dir
	co := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := co.StartWatcher(ctx); err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	data := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[7,8]}}]}`
	if err := os.WriteFile(filepath.Join(dir, "roads.geojson"), []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	waitStatus(t, co, func(s Status) bool { return !s.Building && s.Points == 1 })
	if reg.Len() != 1 {
		t.Fatalf("registry layers = %d, want 1 after reload", reg.Len())
	}
}

func TestPeriodicRebuild(t *testing.T) {
	t.Setenv("SNAP_REBUILD_INTERVAL_S", "1")
	reg := layers.NewRegistry()
	reg.Add(pointsLayer("base", orb.Point{1, 1}, orb.Point{2, 2}), true)
	co := New(testOpts(reg, settings.Default()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	co.StartPeriodic(ctx)

	waitStatus(t, co, func(s Status) bool { return !s.Building && s.Points == 2 })
}
