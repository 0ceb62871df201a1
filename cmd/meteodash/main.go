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

package main

import (
	"fmt"
	"meteodash/internal/config"
	"meteodash/internal/control"
	"meteodash/internal/dashboard"
	"meteodash/internal/metrics"
	"meteodash/internal/publisher"
	"meteodash/internal/receiver"
	"meteodash/internal/state"
	"meteodash/pkg/appctx"
	"meteodash/pkg/eventbus"
	"meteodash/pkg/logger"
	"meteodash/pkg/rootserv"
	"meteodash/pkg/service"
	"meteodash/pkg/sysmon"
	"os"
	"path/filepath"
)

func main() {

	rootdir := os.Getenv("PROJECT_ROOT")
	if rootdir == "" {
		rootdir = "."
	}

	logPath := filepath.Join(rootdir, "var/logs/meteodash.log")
	confPath := filepath.Join(rootdir, "var/config/meteodash.json")
	topicsPath := filepath.Join(rootdir, "var/config/topics.yml")

	if err := logger.Init(logPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	log := logger.New("Main")

	appConf := config.LoadFile(confPath)
	appConf.Topics = config.LoadTopics(topicsPath)
	if err := appConf.ApplyEnv(filepath.Join(rootdir, ".env")); err != nil {
		log.Fatal("config: %v", err)
	}

	fmt.Println(logPath)
	fmt.Println(confPath)
	fmt.Println(topicsPath)

	// use conf to pass eventbus to whoever needs it
	appConf.EventBus = eventbus.New()
	appConf.DataDir = filepath.Join(rootdir, "var/cache")
	appConf.RootDir = rootdir

	ctx, ctxCancel := appctx.New()

	// shared state and metrics
	cell := state.New()
	appMetrics := metrics.New()

	// init services
	server := rootserv.New(appConf.HTTP.Addr)
	sysMonitorService := sysmon.New()

	publisherService, err := publisher.New(appConf, appMetrics)
	if err != nil {
		log.Fatal("publisher: %v", err)
	}
	receiverService, err := receiver.New(appConf, cell, appMetrics)
	if err != nil {
		log.Fatal("receiver: %v", err)
	}
	controlService := control.New(appConf, publisherService, appMetrics)
	dashboardService := dashboard.New(appConf, cell, controlService)

	// attach web handler enabled services
	server.Attach("/dashboard", "Weather Dashboard and LED Control", dashboardService)
	server.Attach("/logger", "Logger", logger.WebService())
	server.Attach("/monitor", "System Monitor", sysMonitorService)
	server.AttachExact("/metrics", "Prometheus Metrics", appMetrics.Handler())
	server.SetMainPage("/dashboard/")

	log.Info("broker=%s publisher=%s", appConf.Broker.URL, appConf.Publisher.Discipline)

	// start runnable services
	exitCh := service.Start(ctx, ctxCancel, []service.Runnable{
		receiverService,
		publisherService,
		controlService,
		dashboardService,
		server,
	})

	// waits for all services to stop
	code := <-exitCh
	appConf.EventBus.Close()
	logger.Close()
	os.Exit(code)
}
