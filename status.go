package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	memoryStats "github.com/pbnjay/memory"
	"github.com/shirou/gopsutil/v3/process"
)

func (a *app) logStatus() {
	attrs := []any{"pid", os.Getpid(), "goroutines", runtime.NumGoroutine()}

	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		a.logger.Error("Could not inspect the running process", "error", err)
	} else {
		if info, err := self.MemoryInfo(); err == nil {
			attrs = append(attrs, "rss", formatBytes(info.RSS))
		}
		if threads, err := self.NumThreads(); err == nil {
			attrs = append(attrs, "threads", threads)
		}
		if cpu, err := self.CPUPercent(); err == nil {
			attrs = append(attrs, "cpu", fmt.Sprintf("%.1f%%", cpu))
		}
	}
	a.logger.Info("Process", attrs...)

	a.logger.Info("System memory",
		"total", formatBytes(memoryStats.TotalMemory()),
		"free", formatBytes(memoryStats.FreeMemory()))

	pending := 0
	if a.async != nil {
		pending = a.async.Pending()
	}
	a.logger.Info("Console",
		"terminal", a.session.Terminal() != nil,
		"ansi", a.session.AnsiSupported(),
		"async", a.async != nil,
		"pending", pending)

	for _, c := range a.runningChildren() {
		a.logger.Info("Child "+c.quotedCommand(),
			"pid", c.pid(),
			"alive", c.isAlive(),
			"running_for", time.Since(c.startedAt).Round(time.Second))
	}
}
