package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

const (
	ErrCodeInvalidQuery   = "invalid_query"
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeNotFound       = "not_found"
	ErrCodeParseFailed    = "parse_failed"
	ErrCodeMissingField   = "missing_field"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// LookupReport 是对外稳定输出（stdout JSON / --out 文件）的结构。
type LookupReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

type ItemResult struct {
	// Index 是 query 在输入中的位置；合成条目（例如配置错误）为 -1。
	Index             int    `json:"index"`
	Query             string `json:"query"`
	ProviderRequested string `json:"provider_requested"`
	ProviderUsed      string `json:"provider_used"`
	Website           string `json:"website"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Record   *FieldRecord      `json:"record,omitempty"`
	Attempts []ProviderAttempt `json:"attempts"`
}

// ProviderAttempt 是 provider 尝试链路在报告中的投影。
type ProviderAttempt struct {
	Provider string `json:"provider"`
	Stage    string `json:"stage"`
	Error    string `json:"error,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：按输入顺序；Index<0 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *LookupReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Index
		b := r.Items[j].Index
		if a < 0 {
			return false
		}
		if b < 0 {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusOK:
			s.OK++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

func (r LookupReport) MarshalJSON() ([]byte, error) {
	type Alias LookupReport
	return json.Marshal(Alias(r))
}
