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

package dashboard

import (
	"encoding/json"
	"meteodash/internal/led"
	"meteodash/pkg/logger"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type ClientSync struct {
	clients map[*websocket.Conn]bool
	mutex   sync.Mutex
}

func NewClientSync() *ClientSync {
	return &ClientSync{clients: make(map[*websocket.Conn]bool)}
}

func (c *ClientSync) broadcast(pm *websocket.PreparedMessage, log *logger.Logger) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for ws := range c.clients {
		if err := ws.WritePreparedMessage(pm); err != nil {
			log.Error("failed to write message: %v", err)
			ws.Close()
			delete(c.clients, ws)
		}
	}
}

func (c *ClientSync) broadcastJSON(v any, log *logger.Logger) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to marshal broadcast: %v", err)
		return
	}
	pm, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		log.Error("failed to prepare message: %v", err)
		return
	}
	c.broadcast(pm, log)
}

func (c *ClientSync) add(ws *websocket.Conn) {
	c.mutex.Lock()
	c.clients[ws] = true
	c.mutex.Unlock()
}

func (c *ClientSync) remove(ws *websocket.Conn) {
	c.mutex.Lock()
	delete(c.clients, ws)
	c.mutex.Unlock()
}

func (c *ClientSync) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.clients)
}

func (c *ClientSync) closeAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for ws := range c.clients {
		ws.Close()
		delete(c.clients, ws)
	}
}

type modeRequest struct {
	Synchro bool `json:"synchro"`
}

type colorRequest struct {
	R    int  `json:"r"`
	G    int  `json:"g"`
	B    int  `json:"b"`
	Drag bool `json:"drag"`
}

func (d *Dashboard) buildHTTPHandler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", d.servePage).Methods(http.MethodGet)
	r.HandleFunc("/api/state", d.serveState).Methods(http.MethodGet)
	r.HandleFunc("/api/history", d.serveHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/mode", d.serveMode).Methods(http.MethodPost)
	r.HandleFunc("/api/color", d.serveColor).Methods(http.MethodPost)
	r.HandleFunc("/ws", d.serveWebSockets())
	return r
}

func (d *Dashboard) servePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(htmlPage))
}

func (d *Dashboard) serveState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.View())
}

func (d *Dashboard) serveHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.History())
}

func (d *Dashboard) serveMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	err := d.ctl.SetMode(r.Context(), req.Synchro)
	d.reply(w, err)
}

func (d *Dashboard) serveColor(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	err := d.handleColor(r, req)
	d.reply(w, err)
}

func (d *Dashboard) handleColor(r *http.Request, req colorRequest) error {
	c := led.FromInts(req.R, req.G, req.B)
	if req.Drag {
		return d.ctl.Drag(r.Context(), c)
	}
	return d.ctl.SetColor(r.Context(), c)
}

// reply answers with the session state; a publish failure is reported
// as 502 alongside the same state so the page can show the caption.
func (d *Dashboard) reply(w http.ResponseWriter, err error) {
	status := http.StatusOK
	if err != nil {
		d.log.Warn("command failed: %v", err)
		status = http.StatusBadGateway
	}
	writeJSON(w, status, d.ctl.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (d *Dashboard) serveWebSockets() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			d.log.Debug("checking origin: %s", origin)
			if origin == "" {
				return false
			}
			if strings.Contains(origin, "localhost") {
				return true
			}
			return strings.Contains(origin, r.Host)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			d.log.Error("failed to upgrade websocket: %v", err)
			return
		}
		d.clients.add(ws)
		defer func() {
			d.clients.remove(ws)
			ws.Close()
		}()

		select {
		case d.queue <- Request{Command: "broadcast"}:
		default:
		}

		for {
			var req Request
			if err := ws.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					d.log.Debug("ws read: %v", err)
				}
				return
			}
			if req.Command == "color" {
				d.acceptColor(req)
				continue
			}
			select {
			case d.queue <- req:
			default:
				d.log.Debug("client queue is full; dropping client message")
			}
		}
	}
}

// acceptColor records the slider position straight away, so the control
// cycle converges on it even while publishes are slow, then hands the
// request to Run through the latest-value slot. Inactive-destination
// sliders are only recorded.
func (d *Dashboard) acceptColor(req Request) {
	c := led.FromInts(req.R, req.G, req.B)

	active := led.Local
	if d.ctl.Snapshot().Synchro {
		active = led.Remote
	}
	dest := active
	switch req.Target {
	case "local":
		dest = led.Local
	case "remote":
		dest = led.Remote
	}

	d.ctl.SetInput(dest, c)
	if dest == active {
		d.colors.put(req)
	}
}

// colorSlot holds the newest pending colour request. A newer request
// replaces an older one; the merged request is discrete if any of them was.
type colorSlot struct {
	mu      sync.Mutex
	pending *Request
	wake    chan struct{}
}

func newColorSlot() *colorSlot {
	return &colorSlot{wake: make(chan struct{}, 1)}
}

func (s *colorSlot) put(req Request) {
	s.mu.Lock()
	if s.pending != nil && !s.pending.Drag {
		req.Drag = false
	}
	s.pending = &req
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *colorSlot) take() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Request{}, false
	}
	req := *s.pending
	s.pending = nil
	return req, true
}
