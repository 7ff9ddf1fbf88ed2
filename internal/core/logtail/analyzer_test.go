package logtail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lss/internal/model/task"
)

func TestTimeLayout(t *testing.T) {
	assert.Equal(t, "2006-01-02 15:04:05.000", TimeLayout("YYYY-MM-DD HH:mm:ss.SSS"))
}

func TestAnalyzer_Verdicts(t *testing.T) {
	cfg := &task.LogConfig{SuccessLog: []string{"finished ok"}, FailedLog: []string{"FATAL", "panic"}}

	a := NewAnalyzer(cfg, time.Time{})
	var failedLine string
	a.OnFailed(func(line string) { failedLine = line })

	a.Handle("starting")
	assert.Equal(t, VerdictUnknown, a.Verdict())

	a.Handle("job finished ok")
	assert.Equal(t, VerdictSuccess, a.Verdict())

	a.Handle("FATAL disk full")
	assert.Equal(t, VerdictFailed, a.Verdict())
	assert.Equal(t, "FATAL disk full", failedLine)

	// 失败后不再回到成功
	a.Handle("job finished ok")
	assert.Equal(t, VerdictFailed, a.Verdict())
	assert.Equal(t, "FATAL disk full", a.MatchedLine())
}

func TestAnalyzer_IgnoresLinesBeforeRunStart(t *testing.T) {
	since := time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)
	cfg := &task.LogConfig{
		FailedLog:        []string{"ERROR"},
		TimeFormat:       "YYYY-MM-DD HH:mm:ss",
		TimeSectionStart: 1,
		TimeSectionEnd:   20,
	}
	a := NewAnalyzer(cfg, since)

	a.Handle("[2026-10-18 11:59:59] ERROR from previous run")
	assert.Equal(t, VerdictUnknown, a.Verdict())

	a.Handle("[2026-10-18 12:00:03] ERROR this run")
	assert.Equal(t, VerdictFailed, a.Verdict())
}

func TestAnalyzer_TimeOnlyFormat(t *testing.T) {
	since := time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)
	cfg := &task.LogConfig{
		FailedLog:        []string{"BOOM"},
		TimeFormat:       "HH:mm:ss",
		TimeSectionStart: 0,
		TimeSectionEnd:   8,
	}
	a := NewAnalyzer(cfg, since)

	a.Handle("11:59:58 BOOM left over from yesterday's run")
	assert.Equal(t, VerdictUnknown, a.Verdict())

	a.Handle("12:00:01 BOOM disk full")
	assert.Equal(t, VerdictFailed, a.Verdict())
	assert.Equal(t, "12:00:01 BOOM disk full", a.MatchedLine())
}

func TestAnalyzer_TimeOnlyFormatAcrossMidnight(t *testing.T) {
	since := time.Date(2026, 10, 18, 23, 59, 50, 0, time.Local)
	cfg := &task.LogConfig{
		FailedLog:        []string{"BOOM"},
		TimeFormat:       "HH:mm:ss",
		TimeSectionStart: 0,
		TimeSectionEnd:   8,
	}
	a := NewAnalyzer(cfg, since)

	a.Handle("00:00:05 BOOM after midnight")
	assert.Equal(t, VerdictFailed, a.Verdict())
}

func TestAnalyzer_DateWithoutYear(t *testing.T) {
	since := time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)
	cfg := &task.LogConfig{
		FailedLog:        []string{"ERROR"},
		TimeFormat:       "MM-DD HH:mm:ss",
		TimeSectionStart: 0,
		TimeSectionEnd:   14,
	}
	a := NewAnalyzer(cfg, since)

	a.Handle("10-17 12:30:00 ERROR previous day")
	assert.Equal(t, VerdictUnknown, a.Verdict())

	a.Handle("10-18 12:00:02 ERROR this run")
	assert.Equal(t, VerdictFailed, a.Verdict())
}

func TestAnalyzer_Chain(t *testing.T) {
	a := NewAnalyzer(nil, time.Time{})
	var seen []string
	a.Chain(func(line string) { seen = append(seen, line) })

	a.Handle("one")
	a.Handle("two")

	assert.Equal(t, []string{"one", "two"}, seen)
	assert.Equal(t, VerdictUnknown, a.Verdict())
}
