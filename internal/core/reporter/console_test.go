package reporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lss/internal/core/orchestrator"
	"lss/internal/model/task"
)

func TestRows(t *testing.T) {
	zero, one := 0, 1
	report := &orchestrator.Report{
		Queue: "nightly",
		Results: []orchestrator.TaskResult{
			{Name: "build", Status: task.StatusDone, ExitCode: &zero, Verdict: "success", Duration: 1500 * time.Millisecond},
			{Name: "deploy", Status: task.StatusError, ExitCode: &one, TimedOut: true, Verdict: "unknown", Error: "killed"},
			{Name: "missing", Status: task.StatusError, Error: "spawn failed"},
		},
	}

	rows := Rows(report)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"build", "done", "0", "success", "1.5s", ""}, rows[0])
	assert.Equal(t, "1 (timeout)", rows[1][2])
	assert.Equal(t, "-", rows[2][2])
	assert.Len(t, Headers(), len(rows[0]))
}

func TestPrintReport(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	zero := 0
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)
	report := &orchestrator.Report{
		Queue:   "nightly",
		Results: []orchestrator.TaskResult{{Name: "build", Status: task.StatusDone, ExitCode: &zero}},
	}
	require.NoError(t, r.PrintReport(report, 1))
	out := buf.String()
	assert.Contains(t, out, "nightly")
	assert.Contains(t, out, "build")
	assert.Contains(t, out, "1/1 task(s)")

	buf.Reset()
	report.Aborted = true
	require.NoError(t, r.PrintReport(report, 2))
	assert.Contains(t, buf.String(), "Aborted")
}
