package run

import (
	"context"
	"net/http"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/bookmeta/internal/config"
	"github.com/John-Robertt/bookmeta/internal/domain"
	"github.com/John-Robertt/bookmeta/internal/provider"
)

type stubProvider struct {
	name     string
	fetchErr error
	parseErr error
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Fetch(ctx context.Context, query string, c *http.Client) ([]byte, string, error) {
	if p.fetchErr != nil {
		return nil, "", p.fetchErr
	}
	return []byte("<html/>"), "https://example.test/book/" + query, nil
}

func (p stubProvider) Parse(html []byte, pageURL string) (domain.FieldRecord, error) {
	if p.parseErr != nil {
		return domain.FieldRecord{}, p.parseErr
	}
	return domain.NewFieldRecord(map[string]domain.Value{
		domain.KeyURL:   domain.Text(pageURL),
		domain.KeyTitle: domain.Text("T"),
	}), nil
}

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	startTotal int
	phases     []string
	queries    []string
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
	o.startTotal = total
}

func (o *recordObserver) OnItemDone(done, total int, res domain.ItemResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries = append(o.queries, res.Query)
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func TestExecuteWithObserver_EmitsEvents(t *testing.T) {
	reg, err := provider.NewRegistry(stubProvider{name: "goodreads"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	obs := &recordObserver{}
	_ = ExecuteWithObserver(context.Background(), config.EffectiveConfig{
		Provider:    "goodreads",
		Concurrency: 2,
	}, reg, []string{"a", "b", "c"}, obs)

	if obs.startCalls != 1 || obs.startTotal != 3 {
		t.Fatalf("OnStart 不符合预期：calls=%d total=%d", obs.startCalls, obs.startTotal)
	}
	if !reflect.DeepEqual(obs.phases, []string{"lookup"}) {
		t.Fatalf("阶段事件不符合预期：%v", obs.phases)
	}
	got := append([]string(nil), obs.queries...)
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("条目事件不符合预期：%v", obs.queries)
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	reg, err := provider.NewRegistry(stubProvider{name: "goodreads"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	cfg := config.EffectiveConfig{Provider: "goodreads", Concurrency: 1}

	a := Execute(context.Background(), cfg, reg, []string{"x"})
	b := ExecuteWithObserver(context.Background(), cfg, reg, []string{"x"}, nil)

	a.StartedAt, a.FinishedAt = time.Time{}, time.Time{}
	b.StartedAt, b.FinishedAt = time.Time{}, time.Time{}

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}
