// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package sysmon

import (
	"encoding/json"
	"html/template"
	"meteodash/pkg/logger"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is one reading of host and process resources.
type Snapshot struct {
	GoVersion  string        `json:"go_version"`
	Goroutines int           `json:"goroutines"`
	Uptime     time.Duration `json:"uptime_ns"`

	CPUSystemPercent  float64 `json:"cpu_system_percent"`
	CPUProcessPercent float64 `json:"cpu_process_percent"`

	MemTotal      uint64 `json:"mem_system_total"`
	MemUsed       uint64 `json:"mem_system_used"`
	MemAvailable  uint64 `json:"mem_system_free"`
	MemProcessRSS uint64 `json:"mem_process_rss"`

	DiskTotal uint64 `json:"disk_total"`
	DiskUsed  uint64 `json:"disk_used"`
	DiskFree  uint64 `json:"disk_free"`
}

type Service struct {
	dir     string
	started time.Time
	log     *logger.Logger
}

func New() *Service {
	dir, err := os.Getwd()
	if err != nil {
		dir = "/"
	}
	return &Service{
		log:     logger.New("SysMonitor"),
		dir:     dir,
		started: time.Now(),
	}
}

// Snapshot collects current stats. Individual probe failures leave
// their fields zero.
func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(s.started),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		snap.CPUSystemPercent = pct[0]
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		snap.MemTotal, snap.MemUsed, snap.MemAvailable = vmem.Total, vmem.Used, vmem.Available
	}
	if total, free, used, err := DiskUsage(s.dir); err == nil {
		snap.DiskTotal, snap.DiskFree, snap.DiskUsed = total, free, used
	} else {
		s.log.Debug("disk usage for %s: %v", s.dir, err)
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			snap.MemProcessRSS = mi.RSS
		}
		if pct, err := p.CPUPercent(); err == nil {
			snap.CPUProcessPercent = pct
		}
	}
	return snap
}

var page = template.Must(template.New("sysmon").Funcs(template.FuncMap{
	"gb": func(v uint64) float64 { return float64(v) / (1 << 30) },
	"mb": func(v uint64) float64 { return float64(v) / (1 << 20) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
	<title>System Monitor</title>
	<style>
		body { font-family: sans-serif; margin: 2em; background: #f9f9f9; }
		table { border-collapse: collapse; width: 60%; margin-top: 1em; }
		th, td { border: 1px solid #ccc; padding: 0.6em 1em; text-align: left; }
		th { background: #eee; }
	</style>
</head>
<body>
	<h1>System Monitor</h1>
	<p>Go {{.GoVersion}}, {{.Goroutines}} goroutines, up {{.Uptime}}</p>
	<h2>CPU</h2>
	<table>
		<tr><th>System %</th><th>Process %</th></tr>
		<tr><td>{{printf "%.2f" .CPUSystemPercent}}%</td><td>{{printf "%.2f" .CPUProcessPercent}}%</td></tr>
	</table>
	<h2>Memory</h2>
	<table>
		<tr><th>System Total</th><th>System Used</th><th>System Free</th><th>Process RSS</th></tr>
		<tr>
			<td>{{printf "%.2f" (gb .MemTotal)}} GB</td>
			<td>{{printf "%.2f" (gb .MemUsed)}} GB</td>
			<td>{{printf "%.2f" (gb .MemAvailable)}} GB</td>
			<td>{{printf "%.2f" (mb .MemProcessRSS)}} MB</td>
		</tr>
	</table>
	<h2>Disk</h2>
	<table>
		<tr><th>Total</th><th>Used</th><th>Free</th></tr>
		<tr>
			<td>{{printf "%.2f" (gb .DiskTotal)}} GB</td>
			<td>{{printf "%.2f" (gb .DiskUsed)}} GB</td>
			<td>{{printf "%.2f" (gb .DiskFree)}} GB</td>
		</tr>
	</table>
</body>
</html>
`))

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot()

	if r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			s.log.Error("encode snapshot: %v", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	snap.Uptime = snap.Uptime.Truncate(time.Second)
	if err := page.Execute(w, snap); err != nil {
		s.log.Error("render page: %v", err)
	}
}
