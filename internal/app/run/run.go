package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/bookmeta/internal/config"
	"github.com/John-Robertt/bookmeta/internal/domain"
	"github.com/John-Robertt/bookmeta/internal/extract"
	"github.com/John-Robertt/bookmeta/internal/infra/httpx"
	"github.com/John-Robertt/bookmeta/internal/provider"
)

// Execute 对每个 query 执行一次 lookup，并返回对外稳定的 LookupReport。
// 错误尽量“降级”为 item 级失败（单条失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, queries []string) domain.LookupReport {
	return ExecuteWithObserver(ctx, eff, reg, queries, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, reg provider.Registry, queries []string, obs Observer) domain.LookupReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff, len(queries))
	}

	rr := domain.LookupReport{
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, len(queries)),
	}

	client, err := httpx.NewClient(httpx.Options{ProxyURL: eff.ProxyURL})
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	// query 之间相互独立：按 query 并发（worker pool）。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(queries) && len(queries) > 0 {
		workers = len(queries)
	}

	type job struct {
		idx   int
		query string
	}
	type execResult struct {
		res domain.ItemResult
		dur time.Duration
	}

	jobs := make(chan job)
	results := make(chan execResult, len(queries))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				oneStarted := time.Now()
				r := execOne(ctx, eff.Provider, reg, j.idx, j.query, client)
				results <- execResult{res: r, dur: time.Since(oneStarted)}
			}
		}()
	}

	go func() {
		for i, q := range queries {
			jobs <- job{idx: i, query: q}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	execStarted := time.Now()
	done, ok := 0, 0
	for it := range results {
		done++
		if it.res.Status == domain.StatusOK {
			ok++
		}
		rr.Items = append(rr.Items, it.res)
		if obs != nil {
			obs.OnItemDone(done, len(queries), it.res, it.dur)
		}
	}

	if obs != nil {
		obs.OnPhaseDone("lookup", map[string]any{
			"workers": workers,
			"total":   len(queries),
			"ok":      ok,
			"failed":  done - ok,
		}, time.Since(execStarted))
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func execOne(ctx context.Context, providerRequested string, reg provider.Registry, idx int, query string, c *http.Client) domain.ItemResult {
	item := domain.ItemResult{
		Index:             idx,
		Query:             query,
		ProviderRequested: providerRequested,
		Status:            domain.StatusOK, // 失败时覆盖
		Attempts:          []domain.ProviderAttempt{},
	}

	if strings.TrimSpace(query) == "" {
		item.Status = domain.StatusFailed
		item.ErrorCode = domain.ErrCodeInvalidQuery
		item.ErrorMsg = "query 不能为空"
		return item
	}

	rec, used, website, attempts, err := provider.FetchParseTrace(ctx, reg, providerRequested, query, c)
	item.Attempts = toReportAttempts(attempts)
	if err != nil {
		fillProviderError(&item, err)
		return item
	}
	item.ProviderUsed = used
	item.Website = website
	item.Record = &rec
	return item
}

func toReportAttempts(in []provider.Attempt) []domain.ProviderAttempt {
	out := make([]domain.ProviderAttempt, 0, len(in))
	for _, a := range in {
		pa := domain.ProviderAttempt{Provider: a.Provider, Stage: a.Stage}
		if a.Err != nil {
			pa.Error = a.Err.Error()
		}
		out = append(out, pa)
	}
	return out
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Index:     -1,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Attempts:  []domain.ProviderAttempt{},
	}
}

func fillProviderError(item *domain.ItemResult, err error) {
	item.Status = domain.StatusFailed

	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Stage {
		case "fetch":
			if errors.Is(pe.Err, provider.ErrNoResult) {
				item.ErrorCode = domain.ErrCodeNotFound
				item.ErrorMsg = fmt.Sprintf("%s 搜索无结果：请检查书名拼写，或直接传入详情页 URL", pe.Provider)
				return
			}
			item.ErrorCode = domain.ErrCodeFetchFailed
			item.ErrorMsg = humanizeFetchError(pe.Provider, pe.Err)
		case "parse":
			if extract.IsMissingField(pe.Err) {
				item.ErrorCode = domain.ErrCodeMissingField
			} else {
				item.ErrorCode = domain.ErrCodeParseFailed
			}
			item.ErrorMsg = humanizeParseError(pe.Provider, pe.Err)
		default:
			item.ErrorCode = domain.ErrCodeFetchFailed
			item.ErrorMsg = fmt.Sprintf("%s 失败：%v", pe.Provider, pe.Err)
		}
		return
	}

	item.ErrorCode = domain.ErrCodeFetchFailed
	item.ErrorMsg = err.Error()
}

func humanizeFetchError(providerName string, err error) string {
	if err == nil {
		return providerName + " 抓取失败"
	}

	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 403, 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发反爬/限流）。建议降低并发或配置 proxy.url。", providerName, hs.StatusCode)
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（详情页不存在或已下架）。", providerName)
		default:
			if loc := strings.TrimSpace(hs.Location); loc != "" {
				return fmt.Sprintf("%s 返回 HTTP %d（重定向）：%s", providerName, hs.StatusCode, loc)
			}
			return fmt.Sprintf("%s 返回 HTTP %d。", providerName, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 抓取超时。建议检查网络/代理，或降低并发后重试。", providerName)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Sprintf("%s 抓取已取消。", providerName)
	}
	return fmt.Sprintf("%s 抓取失败：%v", providerName, err)
}

func humanizeParseError(providerName string, err error) string {
	if err == nil {
		return providerName + " 解析失败"
	}
	// 必需字段缺失通常意味着站点结构漂移，或返回了非详情页（登录页/验证页）。
	return fmt.Sprintf("%s 解析失败（站点结构可能变化或返回了非详情页内容）：%v", providerName, err)
}
