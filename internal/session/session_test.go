package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"travel-geo/internal/detector"
	"travel-geo/internal/tracker"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// scripted 按经度返回国家：经度 < -69 为 CL，其余为 AR；纬度 0 表示无结果
type scripted struct {
	mu    sync.Mutex
	gate  chan struct{}
	calls int
}

func (d *scripted) Detect(ctx context.Context, c detector.Coordinates) (*detector.CountryInfo, detector.Source) {
	d.mu.Lock()
	d.calls++
	gate := d.gate
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if c.Latitude == 0 {
		return nil, detector.SourceNone
	}
	code, name := "AR", "Argentina"
	if c.Longitude < -69 {
		code, name = "CL", "Chile"
	}
	return &detector.CountryInfo{Code: code, Name: name, Rich: true}, detector.SourceBoundary
}

type stubPhotos struct {
	urls  []string
	err   error
	block bool
}

func (p *stubPhotos) FetchPhotos(ctx context.Context, name, code string) ([]string, error) {
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.urls, p.err
}

var (
	inAR = detector.Coordinates{Latitude: -25, Longitude: -65}
	inCL = detector.Coordinates{Latitude: -25, Longitude: -70}
)

func fix(c detector.Coordinates, sec int) Fix {
	return Fix{Coordinates: c, Timestamp: base.Add(time.Duration(sec) * time.Second)}
}

// collect 注册收集型 sink，返回读取函数
func collect(s *Session) func() []tracker.Event {
	var mu sync.Mutex
	var got []tracker.Event
	s.AddSink(SinkFunc(func(ev tracker.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}))
	return func() []tracker.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]tracker.Event(nil), got...)
	}
}

func mustHandle(t *testing.T, s *Session, f Fix, want Status) Result {
	t.Helper()
	res, err := s.HandleFix(context.Background(), f)
	if err != nil {
		t.Fatalf("HandleFix: %v", err)
	}
	if res.Status != want {
		t.Fatalf("status = %s, want %s", res.Status, want)
	}
	return res
}

func TestSessionCrossingDeliversOnceWithPhotos(t *testing.T) {
	ph := &stubPhotos{urls: []string{"u1", "u2"}}
	s := New("s1", &scripted{}, Options{Photos: ph})
	events := collect(s)

	mustHandle(t, s, fix(inAR, 0), StatusConfirmed)
	mustHandle(t, s, fix(inCL, 1), StatusPending)
	mustHandle(t, s, fix(inCL, 2), StatusPending)
	res := mustHandle(t, s, fix(inCL, 3), StatusConfirmed)
	if res.Event == nil || res.Event.PreviousCountryCode != "AR" {
		t.Fatalf("event = %+v", res.Event)
	}
	mustHandle(t, s, fix(inCL, 4), StatusUnchanged)
	s.Stop()

	got := events()
	if len(got) != 2 {
		t.Fatalf("delivered %d events, want 2", len(got))
	}
	if got[0].CountryInfo.Code != "AR" || got[1].CountryInfo.Code != "CL" {
		t.Fatalf("order = %s,%s", got[0].CountryInfo.Code, got[1].CountryInfo.Code)
	}
	if len(got[1].CountryInfo.Photos) != 2 {
		t.Fatalf("photos = %v", got[1].CountryInfo.Photos)
	}
	if res.Event.CountryInfo.Photos != nil {
		t.Fatal("photos mutated the returned event")
	}
}

func TestSessionPhotoFailureStillDelivers(t *testing.T) {
	s := New("s1", &scripted{}, Options{Photos: &stubPhotos{err: errors.New("boom")}})
	events := collect(s)
	mustHandle(t, s, fix(inAR, 0), StatusConfirmed)
	s.Stop()
	got := events()
	if len(got) != 1 || len(got[0].CountryInfo.Photos) != 0 {
		t.Fatalf("events = %+v", got)
	}
}

func TestSessionStopCancelsPhotos(t *testing.T) {
	s := New("s1", &scripted{}, Options{Photos: &stubPhotos{block: true}, PhotoTimeout: time.Minute})
	events := collect(s)
	mustHandle(t, s, fix(inAR, 0), StatusConfirmed)

	done := make(chan struct{})
	go func() { s.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel in-flight photo request")
	}
	if got := events(); len(got) != 1 || got[0].CountryInfo.Photos != nil {
		t.Fatalf("events = %+v", got)
	}
	if _, err := s.HandleFix(context.Background(), fix(inAR, 1)); !errors.Is(err, ErrStopped) {
		t.Fatalf("HandleFix after stop err = %v", err)
	}
}

func TestSessionStaleFix(t *testing.T) {
	s := New("s1", &scripted{}, Options{})
	defer s.Stop()
	mustHandle(t, s, fix(inAR, 10), StatusConfirmed)
	mustHandle(t, s, fix(inCL, 5), StatusStale)
	if p := s.Snapshot().Pending; p != nil {
		t.Fatalf("stale fix reached the state machine: %+v", p)
	}
}

func TestSessionNoDetection(t *testing.T) {
	s := New("s1", &scripted{}, Options{})
	defer s.Stop()
	res := mustHandle(t, s, fix(detector.Coordinates{}, 0), StatusNone)
	if res.Country != nil {
		t.Fatalf("country = %+v", res.Country)
	}
}

func TestSessionResetDiscardsInFlightDetection(t *testing.T) {
	d := &scripted{gate: make(chan struct{})}
	s := New("s1", d, Options{})
	defer s.Stop()

	type out struct {
		res Result
		err error
	}
	ch := make(chan out, 1)
	go func() {
		r, err := s.HandleFix(context.Background(), fix(inAR, 0))
		ch <- out{r, err}
	}()
	for {
		d.mu.Lock()
		n := d.calls
		d.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.Reset()
	close(d.gate)
	o := <-ch
	if o.err != nil || o.res.Status != StatusStale {
		t.Fatalf("in-flight result = %+v, %v", o.res, o.err)
	}
	if s.Snapshot().LastCountry != "" {
		t.Fatal("discarded detection changed state")
	}
}

func TestSessionResetBehavesAsFirstEver(t *testing.T) {
	s := New("s1", &scripted{}, Options{})
	defer s.Stop()
	mustHandle(t, s, fix(inAR, 0), StatusConfirmed)
	mustHandle(t, s, fix(inCL, 1), StatusPending)
	s.Reset()
	snap := s.Snapshot()
	if snap.LastCountry != "" || len(snap.History) != 0 || snap.Pending != nil || snap.LastFixAt != nil {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
	// earlier timestamps are accepted again after a reset
	res := mustHandle(t, s, fix(inCL, 0), StatusConfirmed)
	if res.Event.IsReturn || res.Event.PreviousCountryCode != "" {
		t.Fatalf("event after reset = %+v", res.Event)
	}
}

func TestSessionPrime(t *testing.T) {
	s := New("s1", &scripted{}, Options{})
	defer s.Stop()
	if err := s.Prime("cl"); err != nil {
		t.Fatal(err)
	}
	mustHandle(t, s, fix(inCL, 0), StatusUnchanged)
	snap := s.Snapshot()
	if snap.LastCountry != "CL" || len(snap.History) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestSessionSubscribe(t *testing.T) {
	s := New("s1", &scripted{}, Options{})
	ch, cancel := s.Subscribe()
	defer cancel()
	mustHandle(t, s, fix(inAR, 0), StatusConfirmed)
	select {
	case ev := <-ch:
		if ev.CountryInfo.Code != "AR" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	s.Stop()
	if _, ok := <-ch; ok {
		t.Fatal("subscriber channel not closed on stop")
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(&scripted{}, Options{}, time.Hour)
	s := m.Create()
	if got, err := m.Get(s.ID()); err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if err := m.Stop(s.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after stop err = %v", err)
	}
	if err := m.Stop(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Stop err = %v", err)
	}
}

func TestManagerSweepIdle(t *testing.T) {
	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	m := NewManager(&scripted{}, Options{Now: clock}, time.Minute)
	idle := m.Create()
	busy := m.Create()

	mu.Lock()
	now = now.Add(50 * time.Second)
	mu.Unlock()
	if _, err := busy.HandleFix(context.Background(), Fix{Coordinates: inAR}); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	now = now.Add(30 * time.Second)
	mu.Unlock()

	m.sweepIdle()
	if _, err := m.Get(idle.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatal("idle session not swept")
	}
	if _, err := m.Get(busy.ID()); err != nil {
		t.Fatal("active session swept")
	}
	m.StopAll()
	if m.Len() != 0 {
		t.Fatalf("Len after StopAll = %d", m.Len())
	}
}
