package geomindex

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestPointsOfGeometryVariants(t *testing.T) {
	cases := []struct {
		name string
		geom orb.Geometry
		want int
	}{
		{"point", orb.Point{1, 2}, 1},
		{"multipoint", orb.MultiPoint{{1, 2}, {3, 4}}, 2},
		{"line", orb.LineString{{0, 0}, {1, 1}, {2, 2}}, 3},
		{"multiline", orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}, 4},
		{"ring_closed", orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}, 3},
		{"polygon_with_hole", orb.Polygon{
			{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
			{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}},
		}, 8},
		{"multipolygon", orb.MultiPolygon{
			{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
			{{{5, 5}, {6, 5}, {6, 6}, {5, 5}}},
		}, 6},
		{"collection", orb.Collection{orb.Point{1, 1}, orb.LineString{{0, 0}, {2, 2}}}, 3},
		{"empty_line", orb.LineString{}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := len(pointsOf(c.geom)); got != c.want {
				t.Fatalf("pointsOf(%s) yielded %d points, want %d", c.name, got, c.want)
			}
		})
	}
}

func TestCentroidOfSquare(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	c, ok := centroidOf(poly)
	if !ok {
		t.Fatal("centroidOf rejected a valid square")
	}
	if c != (orb.Point{5, 5}) {
		t.Fatalf("centroid = %v, want (5, 5)", c)
	}
}

func TestCentroidOfDegenerate(t *testing.T) {
	flat := orb.Polygon{{{0, 0}, {5, 0}, {10, 0}, {0, 0}}}
	if _, ok := centroidOf(flat); ok {
		t.Fatal("centroidOf accepted a zero-area polygon")
	}
	if _, ok := centroidOf(nil); ok {
		t.Fatal("centroidOf accepted nil geometry")
	}
}

func TestQuantizeKeyCollapsesNearbyPoints(t *testing.T) {
	a := keyOf(orb.Point{10.0000001, 20.0000004})
	b := keyOf(orb.Point{10.0000003, 20.0000002})
	if a != b {
		t.Fatalf("keys differ: %v vs %v", a, b)
	}
	c := keyOf(orb.Point{10.000001, 20.0000004})
	if a == c {
		t.Fatal("keys collapsed across a sixth-decimal boundary")
	}
}
