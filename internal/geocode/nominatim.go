// 包 geocode：远程反地理适配器（Nominatim）与结果缓存
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"travel-geo/internal/logger"
	"travel-geo/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultBaseURL = "https://nominatim.openstreetmap.org"

var (
	// ErrNoCountry 上游返回成功但不含可用的国家代码（海上、争议地区等）
	ErrNoCountry = errors.New("geocode: no country in response")
	// ErrStatus 上游返回非 2xx
	ErrStatus = errors.New("geocode: unexpected status")
)

// Result：归一化后的反地理结果，CountryCode 为大写 ISO alpha-2
type Result struct {
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
	DisplayName string `json:"displayName,omitempty"`
}

// Geocoder 单次、尽力而为的反地理查询
type Geocoder interface {
	Lookup(ctx context.Context, lat, lng float64) (Result, error)
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// 文档注释：Nominatim 反地理客户端
// 背景：全球覆盖、无需密钥；仅解析国家字段，城市/州等留给其他模块。
// 约束：单次请求，不重试；超时由 timeout 与调用方 ctx 共同约束；使用策略要求设置 User-Agent。
type Nominatim struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
}

func NewNominatim(baseURL, userAgent string, timeout time.Duration, client *http.Client) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Nominatim{baseURL: strings.TrimRight(baseURL, "/"), userAgent: userAgent, timeout: timeout, client: client}
}

// 文档注释：按坐标查询国家
// 返回：成功时 CountryCode 非空；网络错误、超时、非 2xx、缺少国家字段均以 error 返回，由调用方降级处理。
func (n *Nominatim) Lookup(ctx context.Context, lat, lng float64) (Result, error) {
	ctx, span := otel.Tracer("travel-geo/geocode").Start(ctx, "nominatim.reverse")
	defer span.End()
	span.SetAttributes(attribute.Float64("lat", lat), attribute.Float64("lng", lng))

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("zoom", "3")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	t0 := time.Now()
	metrics.GeocodeRequestsTotal.Inc()
	resp, err := n.client.Do(req)
	if err != nil {
		metrics.GeocodeFailTotal.WithLabelValues("http").Inc()
		logger.L().Warn("geocode_http_error", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "http")
		return Result{}, err
	}
	defer resp.Body.Close()
	metrics.GeocodeDurationMs.Observe(float64(time.Since(t0).Milliseconds()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GeocodeFailTotal.WithLabelValues("status").Inc()
		logger.L().Warn("geocode_status_error", "status", resp.StatusCode)
		span.SetStatus(codes.Error, "status")
		return Result{}, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	var r nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		metrics.GeocodeFailTotal.WithLabelValues("decode").Inc()
		logger.L().Warn("geocode_decode_error", "err", err)
		span.RecordError(err)
		return Result{}, fmt.Errorf("decode reverse response: %w", err)
	}
	code := strings.ToUpper(strings.TrimSpace(r.Address.CountryCode))
	if len(code) != 2 {
		metrics.GeocodeFailTotal.WithLabelValues("no_country").Inc()
		logger.L().Debug("geocode_no_country", "lat", lat, "lng", lng, "upstream_error", r.Error)
		return Result{}, ErrNoCountry
	}
	metrics.GeocodeSuccessTotal.Inc()
	span.SetAttributes(attribute.String("country_code", code))
	logger.L().Debug("geocode_resp", "country_code", code, "country", r.Address.Country, "duration_ms", time.Since(t0).Milliseconds())
	return Result{CountryCode: code, CountryName: r.Address.Country, DisplayName: r.DisplayName}, nil
}
