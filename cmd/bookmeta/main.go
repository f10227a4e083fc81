package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/John-Robertt/bookmeta/internal/app/run"
	"github.com/John-Robertt/bookmeta/internal/config"
	"github.com/John-Robertt/bookmeta/internal/domain"
	"github.com/John-Robertt/bookmeta/internal/extract"
	"github.com/John-Robertt/bookmeta/internal/infra/fsx"
	"github.com/John-Robertt/bookmeta/internal/provider"
	"github.com/John-Robertt/bookmeta/internal/provider/goodreads"
)

func main() {
	setupLogging(zerolog.InfoLevel)

	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "lookup":
		if code := lookupCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	case "parse":
		if code := parseCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

// setupLogging 把全局 logger 固定到 stderr（stdout 只输出 JSON/结果）。
func setupLogging(level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func lookupCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printLookupUsage()
			return 0
		}
	}

	la, err := parseLookupArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printLookupUsage()
		return 2
	}

	queries := la.Queries
	if la.FromStdin {
		queries, err = readQueries(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取 stdin 失败：%v\n", err)
			return 1
		}
	}

	eff, err := loadConfig(la.common)
	if err != nil {
		emitReport(reportForConfigError(err), la.Out)
		return 1
	}
	setupLogging(eff.LogLevel)
	if eff.ConfigPath != "" {
		log.Debug().Str("path", eff.ConfigPath).Msg("已加载配置文件")
	}

	reg, err := provider.NewRegistry(newGoodreads(eff))
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化 provider registry 失败：%v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rr := run.ExecuteWithObserver(ctx, eff, reg, queries, newLogObserver(log.Logger))

	if code := emitReport(rr, la.Out); code != 0 {
		return code
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

func parseCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printParseUsage()
			return 0
		}
	}

	pa, err := parseParseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printParseUsage()
		return 2
	}

	eff, err := loadConfig(pa.common)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	setupLogging(eff.LogLevel)

	html, err := os.ReadFile(pa.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取 HTML 失败：%v\n", err)
		return 1
	}

	rec, err := newGoodreads(eff).Parse(html, pa.URL)
	if err != nil {
		if extract.IsMissingField(err) {
			fmt.Fprintf(os.Stderr, "%s：%v\n", domain.ErrCodeMissingField, err)
		} else {
			fmt.Fprintf(os.Stderr, "%s：%v\n", domain.ErrCodeParseFailed, err)
		}
		return 1
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "编码 JSON 失败：%v\n", err)
		return 1
	}
	b = append(b, '\n')
	if pa.Out != "" {
		if err := fsx.WriteFileAtomic(pa.Out, b); err != nil {
			fmt.Fprintf(os.Stderr, "写入 %s 失败：%v\n", pa.Out, err)
			return 1
		}
		return 0
	}
	_, _ = os.Stdout.Write(b)
	return 0
}

func newGoodreads(eff config.EffectiveConfig) goodreads.Provider {
	return goodreads.Provider{
		BaseURL: eff.GoodreadsBaseURL,
		Options: extract.Options{
			RequireDataBox: eff.RequireDataBox,
			RequireGenres:  eff.RequireGenres,
		},
	}
}

func loadConfig(c common) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, &config.Error{Code: config.ErrCodeInvalid, Path: ".", Err: err}
	}
	return config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath:  c.ConfigPath,
		Provider:    c.Provider,
		ProviderSet: c.ProviderSet,
		Verbose:     c.Verbose,
	})
}

// common 是 lookup/parse 共享的参数。
type common struct {
	ConfigPath  string
	Provider    string
	ProviderSet bool
	Verbose     bool
	Out         string
}

type lookupArgs struct {
	common
	Queries   []string
	FromStdin bool
}

type parseArgs struct {
	common
	File string
	URL  string
}

// parseCommon 尝试消费 args[i] 处的共享参数；返回新的下标与是否已消费。
func parseCommon(c *common, args []string, i int) (int, bool, error) {
	a := args[i]
	value := func(name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		i++
		return args[i], nil
	}

	var err error
	switch {
	case a == "--provider":
		if c.Provider, err = value(a); err != nil {
			return i, true, err
		}
		c.ProviderSet = true
	case strings.HasPrefix(a, "--provider="):
		c.Provider = strings.TrimPrefix(a, "--provider=")
		c.ProviderSet = true
	case a == "--config":
		if c.ConfigPath, err = value(a); err != nil {
			return i, true, err
		}
	case strings.HasPrefix(a, "--config="):
		c.ConfigPath = strings.TrimPrefix(a, "--config=")
	case a == "--out":
		if c.Out, err = value(a); err != nil {
			return i, true, err
		}
	case strings.HasPrefix(a, "--out="):
		c.Out = strings.TrimPrefix(a, "--out=")
	case a == "-v" || a == "--verbose":
		c.Verbose = true
	default:
		return i, false, nil
	}
	return i, true, nil
}

func validateCommon(c common) error {
	if c.ProviderSet {
		if err := config.ValidateProvider(c.Provider); err != nil {
			return fmt.Errorf("--provider：%v", err)
		}
	}
	if c.Out != "" && strings.TrimSpace(c.Out) == "" {
		return fmt.Errorf("--out 不能为空")
	}
	return nil
}

func parseLookupArgs(args []string) (lookupArgs, error) {
	la := lookupArgs{}
	for i := 0; i < len(args); i++ {
		next, ok, err := parseCommon(&la.common, args, i)
		if err != nil {
			return lookupArgs{}, err
		}
		if ok {
			i = next
			continue
		}
		a := args[i]
		switch {
		case a == "-":
			la.FromStdin = true
		case strings.HasPrefix(a, "-"):
			return lookupArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			la.Queries = append(la.Queries, a)
		}
	}

	if la.FromStdin && len(la.Queries) > 0 {
		return lookupArgs{}, fmt.Errorf("“-”（从 stdin 读取）不能与位置参数 query 混用")
	}
	if !la.FromStdin && len(la.Queries) == 0 {
		return lookupArgs{}, fmt.Errorf("至少需要一个 query")
	}
	if err := validateCommon(la.common); err != nil {
		return lookupArgs{}, err
	}
	return la, nil
}

func parseParseArgs(args []string) (parseArgs, error) {
	pa := parseArgs{}
	for i := 0; i < len(args); i++ {
		next, ok, err := parseCommon(&pa.common, args, i)
		if err != nil {
			return parseArgs{}, err
		}
		if ok {
			i = next
			continue
		}
		a := args[i]
		switch {
		case a == "--url":
			if i+1 >= len(args) {
				return parseArgs{}, fmt.Errorf("--url 需要一个值")
			}
			i++
			pa.URL = args[i]
		case strings.HasPrefix(a, "--url="):
			pa.URL = strings.TrimPrefix(a, "--url=")
		case strings.HasPrefix(a, "-"):
			return parseArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if pa.File != "" {
				return parseArgs{}, fmt.Errorf("重复的 HTML 文件：%q 与 %q", pa.File, a)
			}
			pa.File = a
		}
	}

	if pa.File == "" {
		return parseArgs{}, fmt.Errorf("需要一个 HTML 文件")
	}
	if strings.TrimSpace(pa.URL) == "" {
		return parseArgs{}, fmt.Errorf("--url 不能为空（写入 record 的 url 字段）")
	}
	if err := validateCommon(pa.common); err != nil {
		return parseArgs{}, err
	}
	return pa, nil
}

// readQueries 每行一个 query；空行与 # 开头的行被忽略。
func readQueries(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  bookmeta lookup <query>... [--provider goodreads] [--config FILE] [--out FILE] [-v]
  bookmeta parse <file.html> --url URL [--config FILE] [--out FILE] [-v]

命令：
  lookup   搜索书名（或直接给出详情页 URL），抓取并抽取书目字段
  parse    从本地 HTML 文件抽取书目字段（不访问网络）

使用 "bookmeta <命令> --help" 查看详细说明。
`)
}

func printLookupUsage() {
	fmt.Fprint(os.Stdout, `用法：
  bookmeta lookup <query>... [--provider goodreads] [--config FILE] [--out FILE] [-v]
  bookmeta lookup - < queries.txt

参数：
  <query>     书名，或 http(s) 详情页 URL（跳过搜索）
  -           从 stdin 读取 query（每行一个；忽略空行与 # 注释）
  --provider  provider 名称（默认 goodreads）
  --config    配置文件（默认读取 ./bookmeta.json，若存在）
  --out       把 JSON 报告原子写入文件
  -v          debug 日志（输出到 stderr）
  -h, --help  显示帮助
`)
}

func printParseUsage() {
	fmt.Fprint(os.Stdout, `用法：
  bookmeta parse <file.html> --url URL [--config FILE] [--out FILE] [-v]

参数：
  --url       详情页 URL（原样写入 url 字段）
  --config    配置文件（require.data_box / require.genres 生效）
  --out       把 JSON 结果原子写入文件（默认输出到 stdout）
  -h, --help  显示帮助
`)
}

// emitReport 输出报告：stdout 是 TTY 时打印摘要，否则 stdout 只输出一个 JSON；
// out 非空时额外原子写入文件。
func emitReport(rr domain.LookupReport, out string) int {
	if out != "" {
		b, err := json.MarshalIndent(rr, "", "  ")
		if err == nil {
			b = append(b, '\n')
			err = fsx.WriteFileAtomic(out, b)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "写入报告 %s 失败：%v\n", out, err)
			return 1
		}
	}

	if isTTY(os.Stdout) {
		for _, it := range rr.Items {
			if it.Status == domain.StatusOK && it.Record != nil {
				title, _ := it.Record.Text(domain.KeyTitle)
				author, _ := it.Record.Text(domain.KeyAuthor)
				fmt.Fprintf(os.Stdout, "%s\t%s / %s\t%s\n", it.Query, title, author, it.Website)
				continue
			}
			key := it.Query
			if key == "" {
				key = "<config>"
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		fmt.Fprintf(os.Stdout, "完成：ok=%d failed=%d\n", rr.Summary.OK, rr.Summary.Failed)
		return 0
	}

	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：ok=%d failed=%d\n", rr.Summary.OK, rr.Summary.Failed)
	return 0
}

func reportForConfigError(err error) domain.LookupReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.LookupReport{
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Index:     -1,
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
			Attempts:  []domain.ProviderAttempt{},
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
