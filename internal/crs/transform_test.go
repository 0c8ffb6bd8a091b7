package crs

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"epsg:4326", "EPSG:4326"},
		{" EPSG:3857 ", "EPSG:3857"},
		{"4326", "EPSG:4326"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIdentityTransform(t *testing.T) {
	tr, err := New("EPSG:4326", "epsg:4326")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p := orb.Point{12.5, 41.9}
	got, err := tr.Point(p)
	if err != nil {
		t.Fatalf("Point: %v", err)
	}
	if got != p {
		t.Fatalf("Point = %v, want %v", got, p)
	}
}

func TestMercatorRoundTrip(t *testing.T) {
	fwd, err := New("EPSG:4326", "EPSG:3857")
	if err != nil {
		t.Fatalf("New forward: %v", err)
	}
	inv, err := New("EPSG:3857", "EPSG:4326")
	if err != nil {
		t.Fatalf("New inverse: %v", err)
	}
	p := orb.Point{12.4924, 41.8902}
	m, err := fwd.Point(p)
	if err != nil {
		t.Fatalf("forward Point: %v", err)
	}
	back, err := inv.Point(m)
	if err != nil {
		t.Fatalf("inverse Point: %v", err)
	}
	if math.Abs(back[0]-p[0]) > 1e-9 || math.Abs(back[1]-p[1]) > 1e-9 {
		t.Fatalf("round trip = %v, want %v", back, p)
	}
}

func TestMercatorOrigin(t *testing.T) {
	fwd, err := New("EPSG:4326", "EPSG:3857")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := fwd.Point(orb.Point{0, 0})
	if err != nil {
		t.Fatalf("Point: %v", err)
	}
	if math.Abs(got[0]) > 1e-9 || math.Abs(got[1]) > 1e-9 {
		t.Fatalf("Point(0,0) = %v, want origin", got)
	}
}

func TestUnsupportedPair(t *testing.T) {
	if _, err := New("EPSG:4326", "EPSG:25832"); err == nil {
		t.Fatal("New accepted an unsupported pair")
	}
}

func TestNonFiniteRejected(t *testing.T) {
	fwd, err := New("EPSG:4326", "EPSG:3857")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := fwd.Point(orb.Point{10, 91}); err == nil {
		t.Fatal("Point accepted an out-of-range latitude")
	}
}

func TestBoundReordersCorners(t *testing.T) {
	fwd, err := New("EPSG:4326", "EPSG:3857")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b := orb.Bound{Min: orb.Point{-10, -5}, Max: orb.Point{10, 5}}
	got, err := fwd.Bound(b)
	if err != nil {
		t.Fatalf("Bound: %v", err)
	}
	if got.Min[0] >= got.Max[0] || got.Min[1] >= got.Max[1] {
		t.Fatalf("Bound returned degenerate box %v", got)
	}
}

func TestViewportUnitsPerPixel(t *testing.T) {
	v := Viewport{
		Extent:  orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 500}},
		CRS:     EPSG3857,
		WidthPx: 500,
	}
	if got := v.UnitsPerPixel(); got != 2 {
		t.Fatalf("UnitsPerPixel = %v, want 2", got)
	}
	zero := Viewport{}
	if got := zero.UnitsPerPixel(); got != 1 {
		t.Fatalf("UnitsPerPixel on zero viewport = %v, want 1", got)
	}
}
