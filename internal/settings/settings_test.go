package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestDefaultValues(t *testing.T) {
	s := Default()
	if s.ToleranceValue != 12.0 {
		t.Errorf("ToleranceValue = %v, want 12.0", s.ToleranceValue)
	}
	if s.ToleranceUnits != UnitsPixels {
		t.Errorf("ToleranceUnits = %q, want %q", s.ToleranceUnits, UnitsPixels)
	}
	if s.DebounceMS != 10 {
		t.Errorf("DebounceMS = %d, want 10", s.DebounceMS)
	}
	if !s.SnapVertices || !s.SnapSegments || !s.UseFallbackIndex || !s.BuildFallbackIndex {
		t.Errorf("all feature toggles should default to true: %+v", s)
	}
}

func TestParseUnits(t *testing.T) {
	cases := map[string]Units{
		"px":        UnitsPixels,
		"pixels":    UnitsPixels,
		"mu":        UnitsMapUnits,
		"map-units": UnitsMapUnits,
		"map_units": UnitsMapUnits,
		"":          UnitsPixels,
		"furlongs":  UnitsPixels,
	}
	for in, want := range cases {
		if got := ParseUnits(in); got != want {
			t.Errorf("ParseUnits(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromMapLegacyAliasLoads(t *testing.T) {
	s := FromMap(map[string]string{
		LegacySnapCentroids:      "false",
		LegacyBuildCentroidIndex: "false",
	})
	if s.UseFallbackIndex {
		t.Error("legacy snap_centroids=false should disable UseFallbackIndex")
	}
	if s.BuildFallbackIndex {
		t.Error("legacy build_centroid_index=false should disable BuildFallbackIndex")
	}
}

func TestFromMapCanonicalWinsOverLegacy(t *testing.T) {
	s := FromMap(map[string]string{
		KeyUseFallbackIndex: "true",
		LegacySnapCentroids: "false",
	})
	if !s.UseFallbackIndex {
		t.Fatal("canonical key should take precedence over legacy alias")
	}
}

func TestFromMapUnparseableFallsBack(t *testing.T) {
	d := Default()
	s := FromMap(map[string]string{
		KeyToleranceValue: "abc",
		KeyDebounceMS:     "soon",
		KeySnapVertices:   "maybe",
	})
	if s.ToleranceValue != d.ToleranceValue {
		t.Errorf("ToleranceValue = %v, want default %v", s.ToleranceValue, d.ToleranceValue)
	}
	if s.DebounceMS != d.DebounceMS {
		t.Errorf("DebounceMS = %d, want default %d", s.DebounceMS, d.DebounceMS)
	}
	if s.SnapVertices != d.SnapVertices {
		t.Errorf("SnapVertices = %v, want default %v", s.SnapVertices, d.SnapVertices)
	}
}

func TestFromMapRejectsNonFiniteTolerance(t *testing.T) {
	for _, v := range []string{"NaN", "+Inf", "-Inf"} {
		s := FromMap(map[string]string{KeyToleranceValue: v})
		if s.ToleranceValue != Default().ToleranceValue {
			t.Errorf("tolerance %q should fall back to default, got %v", v, s.ToleranceValue)
		}
	}
}

func TestFromMapClampsNegativeDebounce(t *testing.T) {
	s := FromMap(map[string]string{KeyDebounceMS: "-5"})
	if s.DebounceMS != 0 {
		t.Fatalf("DebounceMS = %d, want 0", s.DebounceMS)
	}
}

func TestCanonicalKey(t *testing.T) {
	if got := CanonicalKey(LegacySnapCentroids); got != KeyUseFallbackIndex {
		t.Fatalf("CanonicalKey(%s) = %s", LegacySnapCentroids, got)
	}
	if got := CanonicalKey(LegacyBuildCentroidIndex); got != KeyBuildFallbackIndex {
		t.Fatalf("CanonicalKey(%s) = %s", LegacyBuildCentroidIndex, got)
	}
	if got := CanonicalKey(KeyToleranceValue); got != KeyToleranceValue {
		t.Fatalf("CanonicalKey should pass through canonical keys, got %s", got)
	}
}

func TestToMapWritesBothSpellings(t *testing.T) {
	s := Default()
	s.UseFallbackIndex = false
	m := s.ToMap()
	if m[KeyUseFallbackIndex] != "false" || m[LegacySnapCentroids] != "false" {
		t.Errorf("use_fallback_index must be written under both spellings: %v", m)
	}
	if m[KeyBuildFallbackIndex] != "true" || m[LegacyBuildCentroidIndex] != "true" {
		t.Errorf("build_fallback_index must be written under both spellings: %v", m)
	}
}

func TestRoundTripThroughMap(t *testing.T) {
	want := Settings{
		ToleranceValue:     7.5,
		ToleranceUnits:     UnitsMapUnits,
		DebounceMS:         0,
		SnapVertices:       false,
		SnapSegments:       true,
		UseFallbackIndex:   false,
		BuildFallbackIndex: true,
	}
	if got := FromMap(want.ToMap()); got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	fs := NewFileStore(path)
	want := Settings{
		ToleranceValue:     20,
		ToleranceUnits:     UnitsMapUnits,
		DebounceMS:         30,
		SnapVertices:       true,
		SnapSegments:       false,
		UseFallbackIndex:   true,
		BuildFallbackIndex: false,
	}
	if err := fs.Save(context.Background(), want.ToMap()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := FromMap(m); got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestFileStoreEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	fs := NewFileStore(path)
	if err := fs.Save(context.Background(), Default().ToMap()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv("SNAPZEN_TOLERANCE_VALUE", "33.5")
	m, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := FromMap(m); got.ToleranceValue != 33.5 {
		t.Fatalf("ToleranceValue = %v, want 33.5 from env override", got.ToleranceValue)
	}
}

func TestFileStoreMissingFileYieldsDefaults(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "absent.yaml"))
	m, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := FromMap(m); got != Default() {
		t.Fatalf("missing file should load defaults, got %+v", got)
	}
}

type mapStore struct{ m map[string]string }

func (s *mapStore) Load(ctx context.Context) (map[string]string, error) { return s.m, nil }
func (s *mapStore) Save(ctx context.Context, kv map[string]string) error {
	s.m = kv
	return nil
}

type failStore struct{}

func (failStore) Load(ctx context.Context) (map[string]string, error) {
	return nil, errors.New("boom")
}
func (failStore) Save(ctx context.Context, kv map[string]string) error { return errors.New("boom") }

func TestServiceFallsBackToDefaultsOnStoreError(t *testing.T) {
	svc := NewService(failStore{}, nil, "")
	if got := svc.Load(context.Background()); got != Default() {
		t.Fatalf("store failure should yield defaults, got %+v", got)
	}
}

func TestServiceSaveWritesBothSpellings(t *testing.T) {
	ms := &mapStore{}
	svc := NewService(ms, nil, "")
	v := Default()
	v.BuildFallbackIndex = false
	if err := svc.Save(context.Background(), v); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ms.m[KeyBuildFallbackIndex] != "false" || ms.m[LegacyBuildCentroidIndex] != "false" {
		t.Fatalf("saved map missing double-written keys: %v", ms.m)
	}
	if got := svc.Load(context.Background()); got.BuildFallbackIndex {
		t.Fatal("saved value should survive a reload")
	}
}
