package goodreads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/John-Robertt/bookmeta/internal/document"
	"github.com/John-Robertt/bookmeta/internal/domain"
	"github.com/John-Robertt/bookmeta/internal/extract"
	providerx "github.com/John-Robertt/bookmeta/internal/provider"
)

const defaultBaseURL = "https://www.goodreads.com"

// Provider 实现 Goodreads 的搜索、详情页抓取与字段抽取。
//
// 约束：
// - Goodreads 需要先搜索再进入详情页；query 本身是 http(s) URL 时跳过搜索
// - Fetch/Parse 不做缓存/重试（由上层统一控制）
// - Parse 必须是纯函数（依赖输入 html + pageURL）
type Provider struct {
	// BaseURL 为空时使用 https://www.goodreads.com。
	BaseURL string
	// Options 透传给 FieldExtractor（容器缺失是否视为错误）。
	Options extract.Options
}

func (Provider) Name() string { return "goodreads" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// SearchURL 构造搜索页 URL：
// <base>/search?utf8=%E2%9C%93&q=<query>%20-cd&search_type=books
// “ -cd” 用于排除有声 CD 版本。
func (p Provider) SearchURL(query string) string {
	q := strings.ReplaceAll(url.QueryEscape(strings.TrimSpace(query)), "+", "%20")
	return p.baseURL() + "/search?utf8=%E2%9C%93&q=" + q + "%20-cd&search_type=books"
}

// Resolve 把搜索词解析为规范的详情页 URL（取搜索结果中的第一个书目）。
func (p Provider) Resolve(ctx context.Context, query string, c *http.Client) (string, error) {
	if c == nil {
		return "", errors.New("http client 不能为空")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("query 不能为空")
	}
	if isAbsHTTP(query) {
		return query, nil
	}

	searchURL := p.SearchURL(query)
	log.Debug().Str("provider", p.Name()).Str("url", searchURL).Msg("检索 Goodreads 搜索页")

	searchHTML, err := fetchURL(ctx, c, searchURL)
	if err != nil {
		return "", err
	}
	href, err := findBookHref(searchHTML)
	if err != nil {
		return "", fmt.Errorf("%w：%q", err, query)
	}
	return resolveURL(p.baseURL()+"/", href), nil
}

func (p Provider) Fetch(ctx context.Context, query string, c *http.Client) ([]byte, string, error) {
	pageURL, err := p.Resolve(ctx, query, c)
	if err != nil {
		return nil, "", err
	}
	log.Debug().Str("provider", p.Name()).Str("url", pageURL).Msg("抓取详情页")
	b, err := fetchURL(ctx, c, pageURL)
	return b, pageURL, err
}

// Parse 把详情页 HTML 抽取为 FieldRecord；url 字段等于 pageURL。
func (p Provider) Parse(html []byte, pageURL string) (domain.FieldRecord, error) {
	if len(html) == 0 {
		return domain.FieldRecord{}, errors.New("html 为空")
	}
	if strings.TrimSpace(pageURL) == "" {
		return domain.FieldRecord{}, errors.New("pageURL 不能为空")
	}
	doc, err := document.ParseBytes(html)
	if err != nil {
		return domain.FieldRecord{}, err
	}
	return extract.FieldExtractor{Options: p.Options}.Extract(doc, pageURL)
}

func findBookHref(searchHTML []byte) (string, error) {
	doc, err := document.ParseBytes(searchHTML)
	if err != nil {
		return "", err
	}
	a, ok := doc.Find("a", document.Class("bookTitle"))
	if !ok {
		return "", providerx.ErrNoResult
	}
	href, _ := a.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return "", providerx.ErrNoResult
	}
	return href, nil
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerx.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(resp.Body)
}

func isAbsHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if isAbsHTTP(href) {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
