package reporter

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm" // 引入 pterm 库用于控制台输出

	"lss/internal/core/orchestrator"
)

// ConsoleReporter 控制台输出运行汇总
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter out 为空时输出到 pterm 默认输出
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// Headers 汇总表表头
func Headers() []string {
	return []string{"Task", "Status", "Exit", "Verdict", "Duration", "Error"}
}

// Rows 每个任务一行
func Rows(report *orchestrator.Report) [][]string {
	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		exit := "-"
		if res.ExitCode != nil {
			exit = strconv.Itoa(*res.ExitCode)
		}
		if res.TimedOut {
			exit += " (timeout)"
		}
		rows = append(rows, []string{
			res.Name,
			res.Status.String(),
			exit,
			res.Verdict,
			res.Duration.Round(time.Millisecond).String(),
			res.Error,
		})
	}
	return rows
}

// PrintReport 打印汇总表和结论，total 为 Job 中的任务总数
func (r *ConsoleReporter) PrintReport(report *orchestrator.Report, total int) error {
	if report == nil {
		return nil
	}

	title := report.Queue
	if title == "" {
		title = "single task"
	}
	pterm.DefaultSection.WithWriter(r.out).Println(title)

	if len(report.Results) == 0 {
		pterm.Warning.WithWriter(r.out).Println("No task was run.")
	} else {
		tableData := pterm.TableData{Headers()}
		tableData = append(tableData, Rows(report)...)
		err := pterm.DefaultTable.
			WithHasHeader(true).
			WithBoxed(false). // 简洁风格
			WithData(tableData).
			WithWriter(r.out).
			Render()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	summary := fmt.Sprintf("%d/%d task(s) ran in %s", len(report.Results), total, report.Duration.Round(time.Millisecond))
	switch {
	case report.Aborted:
		pterm.Error.WithWriter(r.out).Println("Aborted: " + summary)
	case report.Succeeded(total):
		pterm.Success.WithWriter(r.out).Println(summary)
	default:
		pterm.Warning.WithWriter(r.out).Println("Finished with failures: " + summary)
	}
	return nil
}
