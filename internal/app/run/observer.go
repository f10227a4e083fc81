package run

import (
	"time"

	"github.com/John-Robertt/bookmeta/internal/config"
	"github.com/John-Robertt/bookmeta/internal/domain"
)

// Observer 用于把“运行进度/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 实现必须并发安全
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig, total int)
	// OnItemDone 在某个 query 处理完成时调用（done 从 1 开始）。
	OnItemDone(done, total int, res domain.ItemResult, dur time.Duration)
	// OnPhaseDone 在阶段结束时调用（用于打印统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
}
