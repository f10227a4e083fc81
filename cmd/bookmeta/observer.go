package main

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/bookmeta/internal/config"
	"github.com/John-Robertt/bookmeta/internal/domain"
)

// logObserver 把运行事件写成结构化日志（stderr），不影响 stdout 的 JSON 契约。
type logObserver struct {
	mu  sync.Mutex
	log zerolog.Logger
}

func newLogObserver(l zerolog.Logger) *logObserver {
	return &logObserver{log: l}
}

func (o *logObserver) OnStart(eff config.EffectiveConfig, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.log.Info().
		Str("provider", eff.Provider).
		Int("concurrency", eff.Concurrency).
		Bool("proxy", eff.ProxyURL != "").
		Int("queries", total).
		Msg("开始 lookup")
}

func (o *logObserver) OnItemDone(done, total int, res domain.ItemResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if res.Status == domain.StatusOK {
		o.log.Info().
			Str("progress", progress(done, total)).
			Str("query", res.Query).
			Str("provider", res.ProviderUsed).
			Str("url", res.Website).
			Dur("took", dur).
			Msg("ok")
		return
	}
	o.log.Warn().
		Str("progress", progress(done, total)).
		Str("query", res.Query).
		Str("error_code", res.ErrorCode).
		Dur("took", dur).
		Msg(res.ErrorMsg)
}

func (o *logObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.log.Info().Fields(fields).Dur("took", dur).Msgf("%s 完成", name)
}

func progress(done, total int) string {
	return strconv.Itoa(done) + "/" + strconv.Itoa(total)
}
