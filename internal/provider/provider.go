package provider

import (
	"context"
	"net/http"

	"github.com/John-Robertt/bookmeta/internal/domain"
)

// Provider 把“站点变化”限制在 provider 包内部；核心流程只依赖统一接口与稳定的 FieldRecord。
//
// 约束：
// - Fetch 负责 query -> 详情页 URL -> HTML，不做缓存、不做重试（重试由 httpx 统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出
// - pageURL 必须是详情页（写入 record 的 url 字段与 report 追溯）
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query string, c *http.Client) (html []byte, pageURL string, err error)
	Parse(html []byte, pageURL string) (domain.FieldRecord, error)
}
