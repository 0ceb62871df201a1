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
	"fmt"
	"meteodash/internal/control"
	"meteodash/internal/state"
	"meteodash/internal/telemetry"
	"time"
)

const (
	FeelingHot     = "hot"
	FeelingMild    = "mild"
	FeelingCool    = "cool"
	FeelingUnknown = "unknown (waiting for data)"

	PeriodDay     = "day"
	PeriodNight   = "night"
	PeriodUnknown = "unknown (waiting for LDR data)"

	missingMetric = "-"
)

var (
	noSensorData  = map[string]string{"info": "no sensor data received yet"}
	noSynchroData = map[string]string{"info": "no synchro frame received yet"}
)

// Feeling classifies a temperature in °C.
func Feeling(temp float64, ok bool) string {
	switch {
	case !ok:
		return FeelingUnknown
	case temp >= 25:
		return FeelingHot
	case temp >= 10:
		return FeelingMild
	}
	return FeelingCool
}

// Period classifies the light sensor reading.
func Period(lum float64, ok bool) string {
	switch {
	case !ok:
		return PeriodUnknown
	case lum > 50:
		return PeriodDay
	}
	return PeriodNight
}

// FormatMetric renders one record field for display. Non-numeric values
// are shown as-is.
func FormatMetric(rec telemetry.Record, key, unit string, decimals int) string {
	v, present := rec[key]
	if !present || v == nil {
		return missingMetric
	}
	f, ok := rec.Float(key)
	if !ok {
		return fmt.Sprint(v)
	}
	s := fmt.Sprintf("%.*f", decimals, f)
	if unit != "" {
		s += " " + unit
	}
	return s
}

// View is everything the page renders on one refresh.
type View struct {
	City      string `json:"city"`
	Broker    string `json:"broker"`
	Connected bool   `json:"connected"`
	Banner    string `json:"banner"`

	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
	Light       string `json:"light"`
	Feeling     string `json:"feeling"`
	Period      string `json:"period"`

	Sensor  any `json:"sensor"`
	Synchro any `json:"synchro"`

	Control control.View `json:"control"`
	Time    time.Time    `json:"time"`
}

func present(snap state.Snapshot, ctl control.View, broker, defaultCity string, now time.Time) View {
	rec := snap.Sensor

	v := View{
		City:        defaultCity,
		Broker:      broker,
		Connected:   snap.Connected,
		Temperature: FormatMetric(rec, telemetry.KeyTemperature, "°C", 1),
		Humidity:    FormatMetric(rec, telemetry.KeyHumidity, "%", 1),
		Light:       FormatMetric(rec, telemetry.KeyLight, "", 0),
		Control:     ctl,
		Time:        now,
	}
	if city, ok := rec.String(telemetry.KeyCity); ok && city != "" {
		v.City = city
	}
	v.Feeling = Feeling(rec.Float(telemetry.KeyTemperature))
	v.Period = Period(rec.Float(telemetry.KeyLight))

	if snap.Connected {
		v.Banner = "connected to " + broker
	} else {
		v.Banner = "not connected / waiting for data from " + broker
	}

	v.Sensor, v.Synchro = any(noSensorData), any(noSynchroData)
	if rec != nil {
		v.Sensor = rec
	}
	if snap.Remote != nil {
		v.Synchro = snap.Remote
	}
	return v
}
