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

package events

import (
	"meteodash/internal/telemetry"
	"meteodash/pkg/eventbus"
	"time"
)

var (
	TopicSensor     eventbus.Topic = "sensor"
	TopicRemote     eventbus.Topic = "remote"
	TopicConnection eventbus.Topic = "connection"
	TopicControl    eventbus.Topic = "control"
)

type SensorUpdate struct {
	Record telemetry.Record
	Time   time.Time
}

type RemoteUpdate struct {
	Record telemetry.Record
	Time   time.Time
}

type ConnectionUpdate struct {
	Connected bool
	Broker    string
	Time      time.Time
}

// ControlUpdate is published after the control session changes mode,
// inputs or caption.
type ControlUpdate struct {
	Mode    string
	Caption string
	Time    time.Time
}
