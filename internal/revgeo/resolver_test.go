package revgeo

import (
	"math"
	"testing"

	"travel-geo/internal/catalog"
)

func embeddedResolver(t *testing.T) *Resolver {
	t.Helper()
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return NewResolver(c)
}

func TestResolveSampleLocations(t *testing.T) {
	r := embeddedResolver(t)
	tests := []struct {
		name     string
		lat, lng float64
		want     string
	}{
		{"paris single box", 48.85, 2.35, "FR"},
		{"rome single box", 41.9, 12.45, "IT"},
		{"atacama inside chile, argentina and brazil boxes", -25.0, -69.0, "CL"},
		{"singapore inside malaysia and indonesia boxes", 1.35, 103.82, "SG"},
		{"geneva inside france box", 46.2, 6.14, "CH"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := r.Resolve(tc.lat, tc.lng)
			if !ok {
				t.Fatalf("Resolve(%v,%v) missed", tc.lat, tc.lng)
			}
			if got.Code != tc.want {
				t.Fatalf("Resolve(%v,%v) = %s, want %s", tc.lat, tc.lng, got.Code, tc.want)
			}
		})
	}
}

func TestCandidatesOrderedByArea(t *testing.T) {
	r := embeddedResolver(t)
	got := r.Candidates(-25.0, -69.0)
	want := []string{"CL", "AR", "BR"}
	if len(got) != len(want) {
		t.Fatalf("Candidates len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Code != want[i] {
			t.Fatalf("Candidates[%d] = %s, want %s", i, got[i].Code, want[i])
		}
	}
}

func TestResolveMisses(t *testing.T) {
	r := embeddedResolver(t)
	pts := [][2]float64{
		{0, -140},        // 太平洋
		{6.5, 3.4},       // 拉各斯，不在目录
		{91, 0},          // 越界
		{0, 181},         // 越界
		{math.NaN(), 10}, // NaN
	}
	for _, p := range pts {
		if rec, ok := r.Resolve(p[0], p[1]); ok {
			t.Errorf("Resolve(%v,%v) = %s, want miss", p[0], p[1], rec.Code)
		}
	}
}

func TestResolveEqualAreaKeepsCatalogOrder(t *testing.T) {
	box := catalog.BBox{Lat: [2]float64{0, 10}, Lng: [2]float64{0, 10}}
	shifted := catalog.BBox{Lat: [2]float64{5, 15}, Lng: [2]float64{5, 15}}
	c, err := catalog.New([]catalog.CountryRecord{
		{Code: "PE", Name: "First", BBox: box},
		{Code: "EC", Name: "Second", BBox: shifted},
	}, nil)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	r := NewResolver(c)
	got, ok := r.Resolve(7, 7)
	if !ok || got.Code != "PE" {
		t.Fatalf("Resolve tie = %v %v, want PE", got.Code, ok)
	}
}

func TestResolveBoundaryInclusive(t *testing.T) {
	c, err := catalog.New([]catalog.CountryRecord{
		{Code: "UY", Name: "Uruguay", BBox: catalog.BBox{Lat: [2]float64{-35, -30}, Lng: [2]float64{-58.5, -53}}},
	}, nil)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	r := NewResolver(c)
	for _, p := range [][2]float64{{-35, -58.5}, {-30, -53}, {-35, -53}} {
		if _, ok := r.Resolve(p[0], p[1]); !ok {
			t.Errorf("Resolve(%v,%v) on edge missed", p[0], p[1])
		}
	}
}

func TestGuessContinent(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     string
	}{
		{48, 2, "Europa"},
		{35.7, 139.7, "Asia"},
		{6.5, 3.4, "África"},
		{45, -100, "América del Norte"},
		{-15, -60, "América del Sur"},
		{-25, 135, "Oceanía"},
		{0, -140, UnknownContinent},
		// 地中海东部同时落在欧洲与亚洲矩形，列表顺序决定为欧洲
		{36, 30, "Europa"},
	}
	for _, tc := range tests {
		if got := GuessContinent(tc.lat, tc.lng); got != tc.want {
			t.Errorf("GuessContinent(%v,%v) = %q, want %q", tc.lat, tc.lng, got, tc.want)
		}
	}
}

func TestGeohash(t *testing.T) {
	if got := Geohash(57.64911, 10.40744, 11); got != "u4pruydqqvj" {
		t.Fatalf("Geohash = %q", got)
	}
	if got := Geohash(57.64911, 10.40744, 0); len(got) != 7 {
		t.Fatalf("default precision len = %d", len(got))
	}
}
