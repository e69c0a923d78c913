package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"travel-geo/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNominatimLookup(t *testing.T) {
	var gotUA, gotAccept, gotFormat, gotLat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotFormat = r.URL.Query().Get("format")
		gotLat = r.URL.Query().Get("lat")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"display_name":"Santiago, Región Metropolitana, Chile","address":{"country":"Chile","country_code":"cl"}}`))
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL+"/", "travel-geo-test/1.0", time.Second, nil)
	res, err := n.Lookup(context.Background(), -33.45, -70.66)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.CountryCode != "CL" || res.CountryName != "Chile" {
		t.Fatalf("Lookup = %+v", res)
	}
	if gotUA != "travel-geo-test/1.0" || gotAccept != "application/json" {
		t.Fatalf("headers UA=%q Accept=%q", gotUA, gotAccept)
	}
	if gotFormat != "jsonv2" || gotLat != "-33.450000" {
		t.Fatalf("query format=%q lat=%q", gotFormat, gotLat)
	}
}

func TestNominatimFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"no country", 200, `{"error":"Unable to geocode"}`, ErrNoCountry},
		{"ocean", 200, `{"display_name":"","address":{}}`, ErrNoCountry},
		{"server error", 503, `busy`, ErrStatus},
		{"rate limited", 429, ``, ErrStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			_, err := NewNominatim(srv.URL, "", time.Second, nil).Lookup(context.Background(), 0, 0)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNominatimDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()
	if _, err := NewNominatim(srv.URL, "", time.Second, nil).Lookup(context.Background(), 1, 1); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNominatimTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	before := testutil.ToFloat64(metrics.GeocodeFailTotal.WithLabelValues("http"))
	start := time.Now()
	_, err := NewNominatim(srv.URL, "", 50*time.Millisecond, nil).Lookup(context.Background(), 1, 1)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout not honoured")
	}
	if got := testutil.ToFloat64(metrics.GeocodeFailTotal.WithLabelValues("http")); got != before+1 {
		t.Fatalf("http failures = %v, want %v", got, before+1)
	}
}

type countingGeocoder struct {
	calls atomic.Int32
	res   Result
	err   error
}

func (c *countingGeocoder) Lookup(ctx context.Context, lat, lng float64) (Result, error) {
	c.calls.Add(1)
	return c.res, c.err
}

func TestCachedMemoryTier(t *testing.T) {
	next := &countingGeocoder{res: Result{CountryCode: "FR", CountryName: "France"}}
	c := NewCached(next, 16, time.Minute, 7, nil)
	for i := 0; i < 3; i++ {
		r, err := c.Lookup(context.Background(), 48.8566, 2.3522)
		if err != nil || r.CountryCode != "FR" {
			t.Fatalf("Lookup #%d = %+v, %v", i, r, err)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Fatalf("upstream calls = %d, want 1", n)
	}
	// a different geohash cell goes upstream again
	if _, err := c.Lookup(context.Background(), 43.2965, 5.3698); err != nil {
		t.Fatal(err)
	}
	if n := next.calls.Load(); n != 2 {
		t.Fatalf("upstream calls = %d, want 2", n)
	}
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	next := &countingGeocoder{err: ErrNoCountry}
	c := NewCached(next, 16, time.Minute, 7, nil)
	for i := 0; i < 2; i++ {
		if _, err := c.Lookup(context.Background(), 0, -30); !errors.Is(err, ErrNoCountry) {
			t.Fatalf("err = %v", err)
		}
	}
	if n := next.calls.Load(); n != 2 {
		t.Fatalf("upstream calls = %d, want 2", n)
	}
}
