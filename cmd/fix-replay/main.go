package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"travel-geo/internal/catalog"
	"travel-geo/internal/config"
	"travel-geo/internal/detector"
	"travel-geo/internal/geocode"
	"travel-geo/internal/logger"
	"travel-geo/internal/session"
	"travel-geo/internal/tracker"
)

// 文档注释：轨迹回放工具
// 背景：把一段记录下来的定位轨迹（每行 "lat,lng[,RFC3339 时间]"）送入一个会话，逐行输出确认事件，便于离线调参（阈值、超时）。
// 约束：REPLAY_INPUT_FILE 为空时读标准输入；REPLAY_OFFLINE=true 时只使用目录包围盒，不访问网络；不拉取图片。
func main() {
	config.LoadDotEnv()
	l := logger.Setup()
	cfg := config.Load()

	in := io.Reader(os.Stdin)
	if p := os.Getenv("REPLAY_INPUT_FILE"); p != "" {
		f, err := os.Open(p)
		if err != nil {
			l.Error("replay_open_error", "err", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	fixes, err := parseTrack(in)
	if err != nil {
		l.Error("replay_parse_error", "err", err)
		os.Exit(1)
	}

	cat, err := catalog.Load()
	if err != nil {
		l.Error("catalog_load_error", "err", err)
		os.Exit(1)
	}
	var g geocode.Geocoder
	if !strings.EqualFold(os.Getenv("REPLAY_OFFLINE"), "true") {
		g = geocode.NewNominatim(cfg.GeocoderBaseURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, nil)
	}
	det := detector.New(cat, nil, g, cfg.GeocoderTimeout)
	s := session.New("replay", det, session.Options{Threshold: cfg.ConfirmThreshold, Timeout: cfg.ConfirmTimeout})

	enc := json.NewEncoder(os.Stdout)
	s.AddSink(session.SinkFunc(func(ev tracker.Event) { _ = enc.Encode(ev) }))

	counts := map[session.Status]int{}
	for _, f := range fixes {
		res, err := s.HandleFix(context.Background(), f)
		if err != nil {
			l.Error("replay_fix_error", "err", err)
			break
		}
		counts[res.Status]++
	}
	s.Stop()
	l.Info("replay_done", "fixes", len(fixes), "confirmed", counts[session.StatusConfirmed], "pending", counts[session.StatusPending], "none", counts[session.StatusNone], "stale", counts[session.StatusStale])
}

// parseTrack 读取轨迹；空行与 # 开头的行被忽略
func parseTrack(r io.Reader) ([]session.Fix, error) {
	var out []session.Fix
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("line %d: want lat,lng[,time]", n)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", n, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lng: %w", n, err)
		}
		f := session.Fix{Coordinates: detector.Coordinates{Latitude: lat, Longitude: lng}}
		if len(parts) == 3 {
			ts, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[2]))
			if err != nil {
				return nil, fmt.Errorf("line %d: time: %w", n, err)
			}
			f.Timestamp = ts
		}
		out = append(out, f)
	}
	return out, sc.Err()
}
