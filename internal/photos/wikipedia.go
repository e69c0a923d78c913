// 包 photos：国家代表性图片补充（Wikipedia），失败降级为空列表
package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"travel-geo/internal/logger"
	"travel-geo/internal/metrics"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://es.wikipedia.org/w/api.php"
	// MaxPhotos 单个国家最多返回的图片数
	MaxPhotos = 5
	// 从文章图片列表中检查的前 N 项
	scanImages = 10
	thumbWidth = "800"
)

var (
	ErrNoArticle = errors.New("photos: no article found")
	ErrStatus    = errors.New("photos: unexpected status")
)

// Enricher 按国家名称/代码获取 0..MaxPhotos 个图片 URL
type Enricher interface {
	FetchPhotos(ctx context.Context, name, code string) ([]string, error)
}

var (
	excluded   = []string{"bandera", "escudo", "coat", "flag", "map", "logo", "icono"}
	rasterFile = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)
)

// usable 过滤旗帜、纹章、地图、标志与图标，只保留位图照片
func usable(title string) bool {
	t := strings.ToLower(title)
	for _, s := range excluded {
		if strings.Contains(t, s) {
			return false
		}
	}
	return rasterFile.MatchString(t)
}

// 文档注释：MediaWiki API 图片客户端
// 背景：先搜索文章，再取主缩略图与文章内图片，逐张解析为 800px 缩略图 URL。
// 约束：整体受 timeout 约束；单张图片解析失败只跳过该图；结果去重且不超过 MaxPhotos。
type Wikipedia struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
}

func NewWikipedia(baseURL, userAgent string, timeout time.Duration, client *http.Client) *Wikipedia {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Wikipedia{baseURL: baseURL, userAgent: userAgent, timeout: timeout, client: client}
}

func (w *Wikipedia) FetchPhotos(ctx context.Context, name, code string) ([]string, error) {
	ctx, span := otel.Tracer("travel-geo/photos").Start(ctx, "wikipedia.photos")
	defer span.End()
	span.SetAttributes(attribute.String("country_code", code))

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	t0 := time.Now()
	metrics.PhotoRequestsTotal.Inc()
	defer func() { metrics.PhotoDurationMs.Observe(float64(time.Since(t0).Milliseconds())) }()

	title, err := w.searchTitle(ctx, name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	page, err := w.query(ctx, url.Values{
		"titles":      {title},
		"prop":        {"pageimages|images"},
		"piprop":      {"thumbnail|original"},
		"pithumbsize": {thumbWidth},
		"imlimit":     {"10"},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	first := firstPage(page)

	var photos []string
	if thumb := first.Get("thumbnail.source").String(); thumb != "" {
		photos = append(photos, thumb)
	}

	var titles []string
	for i, img := range first.Get("images").Array() {
		if i >= scanImages {
			break
		}
		if t := img.Get("title").String(); usable(t) {
			titles = append(titles, t)
		}
		if len(titles) == MaxPhotos {
			break
		}
	}

	resolved := make([]string, len(titles))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range titles {
		i, t := i, t
		g.Go(func() error {
			u, err := w.imageURL(gctx, t)
			if err != nil {
				logger.L().Debug("photo_image_error", "title", t, "err", err)
				return nil
			}
			resolved[i] = u
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{}, len(photos)+len(resolved))
	for _, p := range photos {
		seen[p] = struct{}{}
	}
	for _, u := range resolved {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		photos = append(photos, u)
	}
	if len(photos) > MaxPhotos {
		photos = photos[:MaxPhotos]
	}
	logger.L().Debug("photo_resp", "country_code", code, "article", title, "count", len(photos), "duration_ms", time.Since(t0).Milliseconds())
	return photos, nil
}

func (w *Wikipedia) searchTitle(ctx context.Context, name string) (string, error) {
	body, err := w.query(ctx, url.Values{
		"list":     {"search"},
		"srsearch": {name},
		"srlimit":  {"1"},
	})
	if err != nil {
		return "", err
	}
	title := body.Get("query.search.0.title").String()
	if title == "" {
		return "", fmt.Errorf("%w: %s", ErrNoArticle, name)
	}
	return title, nil
}

func (w *Wikipedia) imageURL(ctx context.Context, title string) (string, error) {
	body, err := w.query(ctx, url.Values{
		"titles":     {title},
		"prop":       {"imageinfo"},
		"iiprop":     {"url"},
		"iiurlwidth": {thumbWidth},
	})
	if err != nil {
		return "", err
	}
	info := firstPage(body).Get("imageinfo.0")
	if u := info.Get("thumburl").String(); u != "" {
		return u, nil
	}
	if u := info.Get("url").String(); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("photos: no url for %s", title)
}

// firstPage 取 query.pages 下的第一个页面；页面以页面 ID 为键，无法静态建模
func firstPage(body gjson.Result) gjson.Result {
	var page gjson.Result
	body.Get("query.pages").ForEach(func(_, v gjson.Result) bool {
		page = v
		return false
	})
	return page
}

func (w *Wikipedia) query(ctx context.Context, q url.Values) (gjson.Result, error) {
	q.Set("action", "query")
	q.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(b) {
		return gjson.Result{}, errors.New("photos: invalid json response")
	}
	return gjson.ParseBytes(b), nil
}
