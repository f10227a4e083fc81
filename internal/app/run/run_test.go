package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/bookmeta/internal/config"
	"github.com/John-Robertt/bookmeta/internal/domain"
	"github.com/John-Robertt/bookmeta/internal/extract"
	"github.com/John-Robertt/bookmeta/internal/provider"
	"github.com/John-Robertt/bookmeta/internal/provider/goodreads"
)

func TestExecute_ItemsInInputOrder(t *testing.T) {
	reg, _ := provider.NewRegistry(stubProvider{name: "goodreads"})

	queries := make([]string, 20)
	for i := range queries {
		queries[i] = fmt.Sprintf("q%02d", i)
	}
	rr := Execute(context.Background(), config.EffectiveConfig{Provider: "goodreads", Concurrency: 4}, reg, queries)

	if len(rr.Items) != len(queries) {
		t.Fatalf("期望 %d 条结果，实际 %d", len(queries), len(rr.Items))
	}
	for i, it := range rr.Items {
		if it.Index != i || it.Query != queries[i] {
			t.Fatalf("第 %d 条顺序错误：%+v", i, it)
		}
		if it.Status != domain.StatusOK || it.Record == nil {
			t.Fatalf("第 %d 条应成功：%+v", i, it)
		}
		if it.Website != "https://example.test/book/"+queries[i] || it.ProviderUsed != "goodreads" {
			t.Fatalf("第 %d 条来源不符合预期：%+v", i, it)
		}
	}
	if rr.Summary.OK != len(queries) || rr.Summary.Failed != 0 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
}

func TestExecute_ErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		p    stubProvider
		want string
	}{
		{"fetch", stubProvider{name: "goodreads", fetchErr: errors.New("boom")}, domain.ErrCodeFetchFailed},
		{"not found", stubProvider{name: "goodreads", fetchErr: fmt.Errorf("%w：%q", provider.ErrNoResult, "q")}, domain.ErrCodeNotFound},
		{"http", stubProvider{name: "goodreads", fetchErr: &provider.HTTPStatusError{StatusCode: 429}}, domain.ErrCodeFetchFailed},
		{"parse", stubProvider{name: "goodreads", parseErr: errors.New("bad html")}, domain.ErrCodeParseFailed},
		{"missing", stubProvider{name: "goodreads", parseErr: &extract.MissingFieldError{Field: domain.KeyTitle}}, domain.ErrCodeMissingField},
	}
	for _, tc := range cases {
		reg, _ := provider.NewRegistry(tc.p)
		rr := Execute(context.Background(), config.EffectiveConfig{Provider: "goodreads", Concurrency: 1}, reg, []string{"q"})
		if len(rr.Items) != 1 {
			t.Fatalf("%s：期望 1 条结果，实际 %d", tc.name, len(rr.Items))
		}
		it := rr.Items[0]
		if it.Status != domain.StatusFailed || it.ErrorCode != tc.want {
			t.Fatalf("%s：期望 failed/%s，实际 %s/%s（%s）", tc.name, tc.want, it.Status, it.ErrorCode, it.ErrorMsg)
		}
		if it.Record != nil {
			t.Fatalf("%s：失败条目不应带 record", tc.name)
		}
		if len(it.Attempts) != 1 || it.Attempts[0].Error == "" {
			t.Fatalf("%s：attempts 应记录失败原因：%+v", tc.name, it.Attempts)
		}
	}
}

func TestExecute_EmptyQueryIsInvalid(t *testing.T) {
	reg, _ := provider.NewRegistry(stubProvider{name: "goodreads"})
	rr := Execute(context.Background(), config.EffectiveConfig{Provider: "goodreads", Concurrency: 1}, reg, []string{" ", "ok"})

	if rr.Items[0].ErrorCode != domain.ErrCodeInvalidQuery {
		t.Fatalf("空 query 应为 invalid_query：%+v", rr.Items[0])
	}
	if rr.Items[1].Status != domain.StatusOK {
		t.Fatalf("单条失败不应影响其他条目：%+v", rr.Items[1])
	}
	if rr.Summary.OK != 1 || rr.Summary.Failed != 1 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
}

func TestExecute_InvalidProxyIsSyntheticFailure(t *testing.T) {
	reg, _ := provider.NewRegistry(stubProvider{name: "goodreads"})
	rr := Execute(context.Background(), config.EffectiveConfig{Provider: "goodreads", ProxyURL: "http://[::1"}, reg, []string{"q"})

	if len(rr.Items) != 1 || rr.Items[0].Index != -1 || rr.Items[0].ErrorCode != domain.ErrCodeConfigInvalid {
		t.Fatalf("代理无效应生成合成失败条目：%+v", rr.Items)
	}
}

func TestExecute_GoodreadsEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "nothing -cd" {
			_, _ = w.Write([]byte(`<html><body>No results.</body></html>`))
			return
		}
		_, _ = w.Write([]byte(`<html><body><a class="bookTitle" href="/book/show/1.Solaris">Solaris</a></body></html>`))
	})
	mux.HandleFunc("/book/show/1.Solaris", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<h1 id="bookTitle">Solaris</h1>
<a class="authorName"><span itemprop="name">Stanisław Lem</span></a>
<div class="rightContainer"><a class="bookPageGenreLink">Fiction</a><a class="bookPageGenreLink">philosophy</a></div>
</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	reg, err := provider.NewRegistry(goodreads.Provider{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	rr := Execute(context.Background(), config.EffectiveConfig{Provider: "goodreads", Concurrency: 2}, reg, []string{"solaris", "nothing"})

	ok := rr.Items[0]
	if ok.Status != domain.StatusOK || ok.Record == nil {
		t.Fatalf("solaris 应成功：%+v", ok)
	}
	if got, _ := ok.Record.Text(domain.KeyURL); got != srv.URL+"/book/show/1.Solaris" {
		t.Fatalf("url 字段不符合预期：%q", got)
	}
	if got, _ := ok.Record.List(domain.KeyGenres); len(got) != 1 || got[0] != "Philosophy" {
		t.Fatalf("Genres 不符合预期：%v", got)
	}

	miss := rr.Items[1]
	if miss.Status != domain.StatusFailed || miss.ErrorCode != domain.ErrCodeNotFound {
		t.Fatalf("nothing 应为 not_found：%+v", miss)
	}
}
