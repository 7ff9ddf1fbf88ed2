package runner

import (
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

type childProcess struct {
	p *process.Process
}

func (c *childProcess) terminate() {
	if err := c.p.SendSignal(syscall.SIGTERM); err != nil {
		_ = c.p.Kill()
	}
}

func (c *childProcess) kill() {
	_ = c.p.Kill()
}

// descendants 递归列出 pid 的全部子孙进程，需在父进程结束前采集，否则子进程会被重新挂到 init 下
func descendants(pid int) []*childProcess {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	var out []*childProcess
	queue := []*process.Process{root}
	seen := map[int32]bool{root.Pid: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children, err := cur.Children()
		if err != nil {
			continue
		}
		for _, c := range children {
			if seen[c.Pid] {
				continue
			}
			seen[c.Pid] = true
			out = append(out, &childProcess{p: c})
			queue = append(queue, c)
		}
	}
	return out
}
