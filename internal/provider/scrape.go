package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/bookmeta/internal/domain"
)

// Attempt 记录一次 provider 尝试（用于解释 fallback/降级原因）。
type Attempt struct {
	Provider string // provider name（小写）
	Stage    string // "fetch" / "parse" / "ok"
	Err      error  // nil when Stage=="ok"
}

// FetchParse 按“requested -> 其余 provider（字典序）”顺序抓取并解析。
//
// 返回值：
// - rec：成功解析的 FieldRecord
// - providerUsed：最终成功的 provider name
// - website：详情页 URL
func FetchParse(ctx context.Context, reg Registry, providerRequested, query string, c *http.Client) (rec domain.FieldRecord, providerUsed string, website string, err error) {
	rec, providerUsed, website, _, err = FetchParseTrace(ctx, reg, providerRequested, query, c)
	return rec, providerUsed, website, err
}

// FetchParseTrace 与 FetchParse 相同，但额外返回 provider 的尝试链路。
func FetchParseTrace(ctx context.Context, reg Registry, providerRequested, query string, c *http.Client) (rec domain.FieldRecord, providerUsed string, website string, attempts []Attempt, err error) {
	providerRequested = strings.ToLower(strings.TrimSpace(providerRequested))
	if providerRequested == "" {
		return domain.FieldRecord{}, "", "", nil, fmt.Errorf("provider_requested 不能为空")
	}
	if strings.TrimSpace(query) == "" {
		return domain.FieldRecord{}, "", "", nil, fmt.Errorf("query 不能为空")
	}

	order, err := fallbackOrder(reg, providerRequested)
	if err != nil {
		return domain.FieldRecord{}, "", "", nil, err
	}

	var lastErr error
	for _, name := range order {
		if ctx.Err() != nil {
			lastErr = &Error{Provider: name, Stage: "fetch", Err: ctx.Err()}
			break
		}
		p, _ := reg.Get(name)

		h, pageURL, ferr := p.Fetch(ctx, query, c)
		if ferr != nil {
			lastErr = &Error{Provider: name, Stage: "fetch", Err: ferr}
			attempts = append(attempts, Attempt{Provider: name, Stage: "fetch", Err: ferr})
			continue
		}

		r, perr := p.Parse(h, pageURL)
		if perr != nil {
			lastErr = &Error{Provider: name, Stage: "parse", Err: perr}
			attempts = append(attempts, Attempt{Provider: name, Stage: "parse", Err: perr})
			continue
		}

		attempts = append(attempts, Attempt{Provider: name, Stage: "ok", Err: nil})
		return r, name, pageURL, attempts, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("无可用 provider")
	}
	return domain.FieldRecord{}, "", "", attempts, lastErr
}

// Error 是 provider 阶段的可追溯错误。
// 上层据此把失败归类为 fetch_failed / not_found / parse_failed / missing_field。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // "fetch" 或 "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fallbackOrder(reg Registry, requested string) ([]string, error) {
	if _, ok := reg.Get(requested); !ok {
		return nil, fmt.Errorf("未知 provider：%q", requested)
	}
	order := []string{requested}
	for _, n := range reg.Names() {
		if n != requested {
			order = append(order, n)
		}
	}
	return order, nil
}
