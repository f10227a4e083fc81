package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadEffective_NoConfigUsesDefaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("无配置文件时 ConfigPath 应为空，实际=%q", eff.ConfigPath)
	}
	if eff.Provider != DefaultProvider || eff.Concurrency != DefaultConcurrency {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.LogLevel != zerolog.InfoLevel {
		t.Fatalf("默认日志级别应为 info，实际=%v", eff.LogLevel)
	}
	if eff.RequireDataBox || eff.RequireGenres {
		t.Fatalf("默认不应要求任何容器")
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.json"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_ReadsCwdConfig(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		"concurrency": 100,
		"proxy": {"url": "http://127.0.0.1:7890"},
		"goodreads_base_url": "https://mirror.example.test",
		"require": {"data_box": true, "genres": true},
		"log_level": "WARN"
	}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(cwd, FileName) {
		t.Fatalf("ConfigPath 不符合预期：%q", eff.ConfigPath)
	}
	if eff.Concurrency != MaxConcurrency {
		t.Fatalf("concurrency 应截断到 %d，实际=%d", MaxConcurrency, eff.Concurrency)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" || eff.GoodreadsBaseURL != "https://mirror.example.test" {
		t.Fatalf("网络配置不符合预期：%+v", eff)
	}
	if !eff.RequireDataBox || !eff.RequireGenres {
		t.Fatalf("require 未生效：%+v", eff)
	}
	if eff.LogLevel != zerolog.WarnLevel {
		t.Fatalf("log_level 应为 warn，实际=%v", eff.LogLevel)
	}
}

func TestLoadEffective_CLIOverrides(t *testing.T) {
	cwd := t.TempDir()
	cfg := filepath.Join(cwd, "custom.json")
	writeFile(t, cfg, []byte(`{"provider":"goodreads","log_level":"error","concurrency":-3}`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "custom.json", Verbose: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.LogLevel != zerolog.DebugLevel {
		t.Fatalf("-v 应覆盖配置中的 log_level，实际=%v", eff.LogLevel)
	}
	if eff.Concurrency != 1 {
		t.Fatalf("负数 concurrency 应截断为 1，实际=%d", eff.Concurrency)
	}

	_, err = LoadEffective(cwd, CLIArgs{ConfigPath: cfg, Provider: "amazon", ProviderSet: true})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("CLI provider 非法时应报 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_InvalidFields(t *testing.T) {
	cases := map[string]string{
		"bad json":      `{`,
		"bad provider":  `{"provider":"nope"}`,
		"bad proxy":     `{"proxy":{"url":"http://[::1"}}`,
		"bad base url":  `{"goodreads_base_url":"mirror.test"}`,
		"ftp base url":  `{"goodreads_base_url":"ftp://mirror.test"}`,
		"bad log level": `{"log_level":"loud"}`,
	}
	for name, body := range cases {
		cwd := t.TempDir()
		writeFile(t, filepath.Join(cwd, FileName), []byte(body))

		_, err := LoadEffective(cwd, CLIArgs{})
		if Code(err) != ErrCodeInvalid {
			t.Fatalf("%s：期望 %q，实际 err=%v (code=%q)", name, ErrCodeInvalid, err, Code(err))
		}
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
