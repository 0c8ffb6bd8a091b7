package plugins

import (
	"context"
	"testing"

	"snap-api/pkg/snapengine"
)

func gridSnap(t *testing.T, g *GridEngine, q snapengine.Request) *snapengine.Response {
	t.Helper()
	out, err := g.Snap(context.Background(), q)
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if out == nil {
		t.Fatal("Snap returned nil response")
	}
	return out
}

func TestGridSnapsToNearestIntersection(t *testing.T) {
	g := NewGrid(10, 0, 0)
	out := gridSnap(t, g, snapengine.Request{X: 12, Y: 19, Tolerance: 3, Vertices: true, Segments: true})
	if !out.Matched || out.X != 10 || out.Y != 20 || out.Kind != snapengine.KindVertex {
		t.Fatalf("got %+v, want vertex (10,20)", out)
	}
}

func TestGridSnapsToNearestLine(t *testing.T) {
	g := NewGrid(10, 0, 0)
	// 距交点 sqrt(2^2+5^2) 超容差，但距竖线 x=10 仅 2
	out := gridSnap(t, g, snapengine.Request{X: 12, Y: 15, Tolerance: 3, Vertices: true, Segments: true})
	if !out.Matched || out.X != 10 || out.Y != 15 || out.Kind != snapengine.KindSegment {
		t.Fatalf("got %+v, want segment foot (10,15)", out)
	}
}

func TestGridVertexPreferredOverSegment(t *testing.T) {
	g := NewGrid(10, 0, 0)
	out := gridSnap(t, g, snapengine.Request{X: 10.5, Y: 20.5, Tolerance: 1, Vertices: true, Segments: true})
	if out.Kind != snapengine.KindVertex {
		t.Fatalf("got kind %q, want vertex when both within tolerance", out.Kind)
	}
}

func TestGridMissBeyondTolerance(t *testing.T) {
	g := NewGrid(10, 0, 0)
	out := gridSnap(t, g, snapengine.Request{X: 15, Y: 15, Tolerance: 3, Vertices: true, Segments: true})
	if out.Matched {
		t.Fatalf("got %+v, want miss at grid cell center", out)
	}
}

func TestGridHonorsDisabledParts(t *testing.T) {
	g := NewGrid(10, 0, 0)

	out := gridSnap(t, g, snapengine.Request{X: 10.5, Y: 20.5, Tolerance: 1, Vertices: false, Segments: true})
	if out.Kind != snapengine.KindSegment {
		t.Fatalf("got kind %q, want segment with vertices disabled", out.Kind)
	}

	out = gridSnap(t, g, snapengine.Request{X: 12, Y: 15, Tolerance: 3, Vertices: true, Segments: false})
	if out.Matched {
		t.Fatalf("got %+v, want miss with segments disabled", out)
	}
}

func TestGridRespectsOrigin(t *testing.T) {
	g := NewGrid(10, 5, 5)
	out := gridSnap(t, g, snapengine.Request{X: 14, Y: 16, Tolerance: 2, Vertices: true, Segments: false})
	if !out.Matched || out.X != 15 || out.Y != 15 {
		t.Fatalf("got %+v, want vertex (15,15) on shifted grid", out)
	}
}

func TestGridZeroToleranceExactOnly(t *testing.T) {
	g := NewGrid(10, 0, 0)

	out := gridSnap(t, g, snapengine.Request{X: 10, Y: 20, Tolerance: 0, Vertices: true, Segments: true})
	if !out.Matched || out.Kind != snapengine.KindVertex {
		t.Fatalf("got %+v, want exact vertex hit at zero tolerance", out)
	}

	// 点在格线 y=20 上但不在交点上，只能以线段命中
	out = gridSnap(t, g, snapengine.Request{X: 10.5, Y: 20, Tolerance: 0, Vertices: true, Segments: true})
	if !out.Matched || out.Kind != snapengine.KindSegment {
		t.Fatalf("got %+v, want exact segment hit on the grid line", out)
	}

	out = gridSnap(t, g, snapengine.Request{X: 10.5, Y: 20.5, Tolerance: 0, Vertices: true, Segments: true})
	if out.Matched {
		t.Fatalf("got %+v, want miss off every grid element", out)
	}
}
