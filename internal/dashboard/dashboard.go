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

// Package dashboard serves the weather page, its JSON API and the
// websocket that pushes state to open browsers.
package dashboard

import (
	"context"
	"meteodash/internal/broker"
	"meteodash/internal/config"
	"meteodash/internal/control"
	"meteodash/internal/events"
	"meteodash/internal/led"
	"meteodash/internal/state"
	"meteodash/pkg/eventbus"
	"meteodash/pkg/logger"
	"net/http"
	"time"
)

// Controller is the control session as seen from the page.
type Controller interface {
	Snapshot() control.View
	SetInput(dest led.Destination, c led.RGB)
	SetMode(ctx context.Context, synchro bool) error
	SetColor(ctx context.Context, c led.RGB) error
	Drag(ctx context.Context, c led.RGB) error
}

// Request is a command sent by a browser over the websocket.
type Request struct {
	Command string `json:"command"`
	Synchro bool   `json:"synchro,omitempty"`
	R       int    `json:"r,omitempty"`
	G       int    `json:"g,omitempty"`
	B       int    `json:"b,omitempty"`
	Drag    bool   `json:"drag,omitempty"`

	// "local" or "remote"; empty means the active destination
	Target string `json:"target,omitempty"`
}

type Dashboard struct {
	cell    state.Reader
	ctl     Controller
	bus     *eventbus.Bus
	history *History
	clients *ClientSync
	queue   chan Request
	colors  *colorSlot

	broker      string
	defaultCity string
	refresh     time.Duration
	now         func() time.Time

	log     *logger.Logger
	handler http.Handler
}

func New(conf *config.Config, cell state.Reader, ctl Controller) *Dashboard {
	host := conf.Broker.URL
	if u, err := broker.ParseURL(conf.Broker.URL); err == nil {
		host = u.Host
	}

	d := &Dashboard{
		cell:        cell,
		ctl:         ctl,
		bus:         conf.EventBus,
		history:     NewHistory(conf.Dashboard.HistoryMax),
		clients:     NewClientSync(),
		queue:       make(chan Request, 16),
		colors:      newColorSlot(),
		broker:      host,
		defaultCity: conf.Dashboard.DefaultCity,
		refresh:     conf.Control.RefreshInterval(),
		now:         time.Now,
		log:         logger.New("Dashboard"),
	}
	d.handler = d.buildHTTPHandler()
	return d
}

func (d *Dashboard) String() string {
	return "Dashboard"
}

func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.handler.ServeHTTP(w, r)
}

// View builds the current page state.
func (d *Dashboard) View() View {
	return present(d.cell.Snapshot(), d.ctl.Snapshot(), d.broker, d.defaultCity, d.now())
}

func (d *Dashboard) History() []Point {
	return d.history.Points()
}

// Run samples history every refresh interval, pushes state to browsers
// on every change and executes queued browser commands.
func (d *Dashboard) Run(ctx context.Context) {
	d.log.Info("Running...")
	defer d.log.Info("Stopped")
	defer d.clients.closeAll()

	var sensorCh, remoteCh, connCh, ctrlCh <-chan eventbus.Event
	if d.bus != nil {
		var unsub func()
		sensorCh, unsub = d.bus.Subscribe(ctx, events.TopicSensor, false)
		defer unsub()
		remoteCh, unsub = d.bus.Subscribe(ctx, events.TopicRemote, false)
		defer unsub()
		connCh, unsub = d.bus.Subscribe(ctx, events.TopicConnection, false)
		defer unsub()
		ctrlCh, unsub = d.bus.Subscribe(ctx, events.TopicControl, false)
		defer unsub()
	}

	ticker := time.NewTicker(d.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sample()
			d.broadcast()
		case <-sensorCh:
			d.broadcast()
		case <-remoteCh:
			d.broadcast()
		case ev := <-connCh:
			if up, ok := ev.(events.ConnectionUpdate); ok {
				d.log.Info("broker %s connected=%v", up.Broker, up.Connected)
			}
			d.broadcast()
		case <-ctrlCh:
			d.broadcast()
		case req := <-d.queue:
			d.handleRequest(ctx, req)
		case <-d.colors.wake:
			if req, ok := d.colors.take(); ok {
				d.handleRequest(ctx, req)
			}
		}
	}
}

// sample appends one history point while a reading exists.
func (d *Dashboard) sample() {
	snap := d.cell.Snapshot()
	if snap.Sensor == nil {
		return
	}
	d.history.Record(d.now(), snap.Sensor)
}

func (d *Dashboard) broadcast() {
	if d.clients.Len() == 0 {
		return
	}
	d.clients.broadcastJSON(d.View(), d.log)
}

func (d *Dashboard) handleRequest(ctx context.Context, req Request) {
	var err error
	switch req.Command {
	case "broadcast":
		d.broadcast()
	case "mode":
		err = d.ctl.SetMode(ctx, req.Synchro)
	case "color":
		c := led.FromInts(req.R, req.G, req.B)
		if req.Drag {
			err = d.ctl.Drag(ctx, c)
		} else {
			err = d.ctl.SetColor(ctx, c)
		}
	default:
		d.log.Warn("unknown client command %q", req.Command)
	}
	if err != nil {
		d.log.Debug("client command %s: %v", req.Command, err)
	}
}
