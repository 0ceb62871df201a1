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

// Package state holds the latest sensor reading, synchro frame and
// broker connectivity shared between the receiver and the dashboard.
package state

import (
	"meteodash/internal/telemetry"
	"sync/atomic"
	"time"
)

// Writer is the receiver's view of the cell.
type Writer interface {
	StoreSensor(rec telemetry.Record)
	StoreRemote(rec telemetry.Record)
	SetConnected(up bool) bool
}

// Reader is the presentation view of the cell.
type Reader interface {
	Snapshot() Snapshot
}

type entry struct {
	rec telemetry.Record
	at  time.Time
}

// Cell replaces each slot wholesale with a pointer swap, so readers see
// either the old record or the new one, never a mix.
type Cell struct {
	sensor    atomic.Pointer[entry]
	remote    atomic.Pointer[entry]
	connected atomic.Bool
	changedAt atomic.Int64 // unix nanos of last connectivity change
}

func New() *Cell {
	return &Cell{}
}

func (c *Cell) StoreSensor(rec telemetry.Record) {
	c.sensor.Store(&entry{rec: rec, at: time.Now()})
}

func (c *Cell) StoreRemote(rec telemetry.Record) {
	c.remote.Store(&entry{rec: rec, at: time.Now()})
}

// SetConnected updates connectivity and reports whether it changed.
func (c *Cell) SetConnected(up bool) bool {
	if c.connected.Swap(up) == up {
		return false
	}
	c.changedAt.Store(time.Now().UnixNano())
	return true
}

// Snapshot is a point-in-time view. Records are shared and read-only.
type Snapshot struct {
	Sensor        telemetry.Record
	SensorAt      time.Time
	Remote        telemetry.Record
	RemoteAt      time.Time
	Connected     bool
	ConnChangedAt time.Time
}

func (c *Cell) Snapshot() Snapshot {
	var s Snapshot
	if e := c.sensor.Load(); e != nil {
		s.Sensor, s.SensorAt = e.rec, e.at
	}
	if e := c.remote.Load(); e != nil {
		s.Remote, s.RemoteAt = e.rec, e.at
	}
	s.Connected = c.connected.Load()
	if ns := c.changedAt.Load(); ns != 0 {
		s.ConnChangedAt = time.Unix(0, ns)
	}
	return s
}
