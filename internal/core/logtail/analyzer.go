package logtail

import (
	"strings"
	"sync"
	"time"

	"lss/internal/model/task"
)

// Verdict 日志标记判定结果
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictSuccess
	VerdictFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var layoutReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"SSS", "000",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// TimeLayout 把 YYYY-MM-DD HH:mm:ss.SSS 形式的格式转换为 Go 时间布局
func TimeLayout(format string) string {
	return layoutReplacer.Replace(format)
}

// Analyzer 按成功/失败标记分析日志行，失败标记优先于成功标记
// 配置了时间格式时，时间戳早于运行开始的行会被忽略
type Analyzer struct {
	success []string
	failed  []string

	start, end int
	layout     string
	hasYear    bool
	hasDate    bool
	since      time.Time

	mu       sync.Mutex
	verdict  Verdict
	matched  string
	onFailed func(line string)
	next     []LineHandler
}

// NewAnalyzer 创建标记分析器，since 为本次运行的开始时间
func NewAnalyzer(cfg *task.LogConfig, since time.Time) *Analyzer {
	a := &Analyzer{since: since}
	if cfg == nil {
		return a
	}
	a.success = nonEmpty(cfg.SuccessLog)
	a.failed = nonEmpty(cfg.FailedLog)
	if cfg.TimeFormat != "" && cfg.TimeSectionEnd > cfg.TimeSectionStart && cfg.TimeSectionStart >= 0 {
		a.start, a.end = cfg.TimeSectionStart, cfg.TimeSectionEnd
		a.layout = TimeLayout(cfg.TimeFormat)
		a.hasYear = strings.Contains(a.layout, "2006")
		a.hasDate = strings.Contains(a.layout, "02")
	}
	return a
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// OnFailed 首次命中失败标记时回调
func (a *Analyzer) OnFailed(fn func(line string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFailed = fn
}

// Chain 追加后续行处理器 (例如 logHandler 插件)
func (a *Analyzer) Chain(handlers ...LineHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = append(a.next, handlers...)
}

// Handle 处理一行日志，可作为 LineHandler 使用
func (a *Analyzer) Handle(line string) {
	if a.isStale(line) {
		return
	}

	a.mu.Lock()
	var fire func(string)
	if a.verdict != VerdictFailed {
		if containsAny(line, a.failed) {
			a.verdict = VerdictFailed
			a.matched = line
			fire = a.onFailed
		} else if a.verdict == VerdictUnknown && containsAny(line, a.success) {
			a.verdict = VerdictSuccess
			a.matched = line
		}
	}
	next := a.next
	a.mu.Unlock()

	if fire != nil {
		fire(line)
	}
	for _, h := range next {
		h(line)
	}
}

// isStale 行内时间早于运行开始；时间段越界或解析失败的行照常处理
func (a *Analyzer) isStale(line string) bool {
	if a.layout == "" || a.since.IsZero() || len(line) < a.end {
		return false
	}
	ts, err := time.ParseInLocation(a.layout, line[a.start:a.end], time.Local)
	if err != nil {
		return false
	}
	return a.complete(ts).Before(a.since.Truncate(time.Second))
}

// complete 时间格式缺少年份或日期时用运行开始时间补全
// 只有时分秒的行若比开始时间早半天以上，视为跨过了午夜
func (a *Analyzer) complete(ts time.Time) time.Time {
	if a.hasYear {
		return ts
	}
	since := a.since.In(ts.Location())
	if a.hasDate {
		return time.Date(since.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), ts.Location())
	}
	full := time.Date(since.Year(), since.Month(), since.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), ts.Location())
	if since.Sub(full) > 12*time.Hour {
		full = full.AddDate(0, 0, 1)
	}
	return full
}

func containsAny(line string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// Verdict 当前判定结果
func (a *Analyzer) Verdict() Verdict {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verdict
}

// MatchedLine 触发当前判定的日志行
func (a *Analyzer) MatchedLine() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.matched
}
