// 主机与后端进程资源信息，供后端 /health 使用
package monitor

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"lss/internal/pkg/logger"
)

// HostInfo 主机静态信息
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	Arch            string `json:"arch"`
	CPUCores        int    `json:"cpu_cores"`
	MemoryTotal     uint64 `json:"memory_total"`
}

// SystemMetrics 系统与后端进程指标
type SystemMetrics struct {
	CPUUsage      float64 `json:"cpu_usage"`
	MemoryUsage   float64 `json:"memory_usage"`
	ProcessRSS    uint64  `json:"process_rss"`
	ChildProcs    int     `json:"child_processes"` // 正在运行的任务进程数
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

// GetHostInfo 获取主机静态信息，单项失败时记录日志并使用回退值
func GetHostInfo(log *logrus.Entry) *HostInfo {
	info := &HostInfo{OS: runtime.GOOS, Arch: runtime.GOARCH, CPUCores: runtime.NumCPU()}

	if hInfo, err := host.Info(); err != nil {
		logger.LogSystemEvent(log, "host_info", "Failed to get host info: "+err.Error(), logrus.WarnLevel, nil)
	} else {
		info.Hostname = hInfo.Hostname
		info.Platform = hInfo.Platform
		info.PlatformVersion = hInfo.PlatformVersion
		if hInfo.KernelArch != "" {
			info.Arch = hInfo.KernelArch
		}
	}

	if cores, err := cpu.Counts(false); err == nil && cores > 0 {
		info.CPUCores = cores
	}

	if vMem, err := mem.VirtualMemory(); err != nil {
		logger.LogSystemEvent(log, "host_info", "Failed to get memory info: "+err.Error(), logrus.WarnLevel, nil)
	} else {
		info.MemoryTotal = vMem.Total
	}
	return info
}

// GetSystemMetrics 获取系统指标与本进程资源占用
func GetSystemMetrics(log *logrus.Entry) *SystemMetrics {
	metrics := &SystemMetrics{}

	// 采样 100ms，足够心跳类查询使用
	if pct, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		logger.LogSystemEvent(log, "metrics", "Failed to get CPU usage: "+err.Error(), logrus.WarnLevel, nil)
	} else if len(pct) > 0 {
		metrics.CPUUsage = pct[0]
	}

	if vMem, err := mem.VirtualMemory(); err != nil {
		logger.LogSystemEvent(log, "metrics", "Failed to get memory usage: "+err.Error(), logrus.WarnLevel, nil)
	} else {
		metrics.MemoryUsage = vMem.UsedPercent
	}

	if uptime, err := host.Uptime(); err == nil {
		metrics.UptimeSeconds = uptime
	}

	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return metrics
	}
	if memInfo, err := self.MemoryInfo(); err == nil {
		metrics.ProcessRSS = memInfo.RSS
	}
	if children, err := self.Children(); err == nil {
		metrics.ChildProcs = len(children)
	}
	return metrics
}
