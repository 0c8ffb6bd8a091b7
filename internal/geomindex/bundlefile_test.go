package geomindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"snap-api/internal/layers"

	"github.com/paulmach/orb"
)

func TestBundleFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := pointLayer("a", orb.Point{1.5, 2.5}, orb.Point{-3.25, 4}, orb.Point{100, -200})
	src, _, err := NewBuilder("").Build(context.Background(), BuildParams{Layers: []layers.Layer{l}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := SaveBundle(dir, src); err != nil {
		t.Fatalf("SaveBundle: %v", err)
	}
	got, err := LoadBundle(dir, "")
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if got.Len() != src.Len() {
		t.Fatalf("Len = %d, want %d", got.Len(), src.Len())
	}
	if got.RunID() != src.RunID() {
		t.Fatalf("RunID = %q, want %q", got.RunID(), src.RunID())
	}
	for id := int64(0); id < int64(src.Len()); id++ {
		a, _ := src.Point(id)
		b, ok := got.Point(id)
		if !ok || a != b {
			t.Fatalf("Point(%d) = (%v, %v), want %v", id, b, ok, a)
		}
	}
	p, _, ok := got.Nearest(orb.Point{1.4, 2.4})
	if !ok || p != (orb.Point{1.5, 2.5}) {
		t.Fatalf("Nearest = (%v, %v), want (1.5, 2.5)", p, ok)
	}
}

func TestLoadBundleMissingDir(t *testing.T) {
	if _, err := LoadBundle(filepath.Join(t.TempDir(), "nope"), ""); err == nil {
		t.Fatal("LoadBundle succeeded on a missing directory")
	}
}

func TestLoadBundleTruncated(t *testing.T) {
	dir := t.TempDir()
	l := pointLayer("a", orb.Point{1, 1}, orb.Point{2, 2})
	src, _, err := NewBuilder("").Build(context.Background(), BuildParams{Layers: []layers.Layer{l}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := SaveBundle(dir, src); err != nil {
		t.Fatalf("SaveBundle: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, pointsFileName))
	if err != nil {
		t.Fatalf("read points file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, pointsFileName), raw[:len(raw)-8], 0o644); err != nil {
		t.Fatalf("truncate points file: %v", err)
	}
	if _, err := LoadBundle(dir, ""); err == nil {
		t.Fatal("LoadBundle accepted a truncated points file")
	}
}

func TestSaveBundleEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := SaveBundle(dir, NewEmpty()); err != nil {
		t.Fatalf("SaveBundle empty: %v", err)
	}
	got, err := LoadBundle(dir, "")
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if !got.IsEmpty() {
		t.Fatalf("Len = %d, want empty", got.Len())
	}
}
