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
	"meteodash/internal/telemetry"
	"sync"
	"time"
)

// Point is one history sample; missing fields are null.
type Point struct {
	Time time.Time `json:"time"`
	Temp *float64  `json:"temp"`
	Hum  *float64  `json:"hum"`
	Lum  *float64  `json:"lum"`
}

// History keeps the most recent samples, oldest first.
type History struct {
	max int

	mu     sync.RWMutex
	points []Point
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = 500
	}
	return &History{max: max, points: make([]Point, 0, max)}
}

// Record appends a sample taken from rec, dropping the oldest once full.
// The point is plotted at the reading's own ts, or at now without one.
func (h *History) Record(now time.Time, rec telemetry.Record) {
	at, ok := rec.Time()
	if !ok {
		at = now
	}
	p := Point{
		Time: at,
		Temp: field(rec, telemetry.KeyTemperature),
		Hum:  field(rec, telemetry.KeyHumidity),
		Lum:  field(rec, telemetry.KeyLight),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.points) == h.max {
		copy(h.points, h.points[1:])
		h.points = h.points[:h.max-1]
	}
	h.points = append(h.points, p)
}

func (h *History) Points() []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Point, len(h.points))
	copy(out, h.points)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.points)
}

func field(rec telemetry.Record, key string) *float64 {
	if f, ok := rec.Float(key); ok {
		return &f
	}
	return nil
}
