package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是默认配置文件名（位于 cwd，可选）。
	FileName = "bookmeta.json"

	DefaultProvider    = "goodreads"
	DefaultConcurrency = 4
	MaxConcurrency     = 16
	DefaultLogLevel    = "info"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息，
// 以保证 CLI > 配置文件 > 默认值 的覆盖优先级可实现。
type CLIArgs struct {
	ConfigPath string

	Provider    string
	ProviderSet bool

	// Verbose 等价于 log_level=debug，优先于配置文件。
	Verbose bool
}

// FileConfig 对应 bookmeta.json 的解析结构。
type FileConfig struct {
	Provider         string          `json:"provider"`
	Concurrency      int             `json:"concurrency"`
	Proxy            *ProxyConfig    `json:"proxy"`
	GoodreadsBaseURL string          `json:"goodreads_base_url"`
	Require          *RequireConfig  `json:"require"`
	LogLevel         string          `json:"log_level"`
	_                json.RawMessage `json:"-"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// RequireConfig 声明哪些“可选容器”必须存在（缺失即 missing_field）。
type RequireConfig struct {
	DataBox bool `json:"data_box"`
	Genres  bool `json:"genres"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件（不存在时为空）。
	ConfigPath string

	Provider    string
	Concurrency int
	ProxyURL    string

	GoodreadsBaseURL string

	RequireDataBox bool
	RequireGenres  bool

	LogLevel zerolog.Level
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在（相对路径以 cwd 为基准）
// 2) 否则尝试 <cwd>/bookmeta.json（可选）
//
// 覆盖优先级（固定）：
// - provider：CLI > config > 默认 goodreads
// - log_level：-v > config > 默认 info
// - 其他字段：仅由 config 控制
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath := absCleanFrom(cwdAbs, p)
		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		return merge(cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		cfgPath = ""
	}
	return merge(cli, fc, cfgPath)
}

func merge(cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	provider := DefaultProvider
	if cli.ProviderSet {
		provider = strings.ToLower(strings.TrimSpace(cli.Provider))
	} else if strings.TrimSpace(fc.Provider) != "" {
		provider = strings.ToLower(strings.TrimSpace(fc.Provider))
	}
	if err := ValidateProvider(provider); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("proxy.url 无效：%w", err)}
		}
	}

	baseURL := strings.TrimSpace(fc.GoodreadsBaseURL)
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("goodreads_base_url 无效：%q", baseURL)}
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("goodreads_base_url 必须是 http/https：%q", baseURL)}
		}
	}

	level := zerolog.InfoLevel
	if s := strings.TrimSpace(fc.LogLevel); s != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("log_level 无效：%q", s)}
		}
		level = l
	}
	if cli.Verbose {
		level = zerolog.DebugLevel
	}

	eff := EffectiveConfig{
		ConfigPath:       cfgPath,
		Provider:         provider,
		Concurrency:      concurrency,
		ProxyURL:         proxyURL,
		GoodreadsBaseURL: baseURL,
		LogLevel:         level,
	}
	if fc.Require != nil {
		eff.RequireDataBox = fc.Require.DataBox
		eff.RequireGenres = fc.Require.Genres
	}
	return eff, nil
}

// ValidateProvider 校验 provider 名称（目前只有 goodreads）。
func ValidateProvider(p string) error {
	switch p {
	case "goodreads":
		return nil
	case "":
		return fmt.Errorf("provider 不能为空")
	default:
		return fmt.Errorf("provider 只能是 goodreads，实际是 %q", p)
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件；exists 表示文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
