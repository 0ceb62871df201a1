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

// Package telemetry decodes inbound sensor readings and synchro frames
// into immutable records.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	KeyTimestamp = "ts"
	KeyRaw       = "raw"
	KeyValue     = "value"

	KeyCity        = "city"
	KeyTemperature = "temperature"
	KeyHumidity    = "humidity"
	KeyLight       = "lum"
)

var ErrNotObject = errors.New("payload is not a JSON object")

// DecodeError is a per-message failure; it never affects the connection.
type DecodeError struct {
	Topic string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Record is a decoded key/value message. Once stored it is shared with
// readers and must not be modified; build a new one instead.
type Record map[string]any

// DecodeSensor parses a sensor reading. The whole message fails if the
// payload is not a JSON object.
func DecodeSensor(topic string, payload []byte, now time.Time) (Record, error) {
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, &DecodeError{Topic: topic, Err: err}
	}
	if rec == nil {
		return nil, &DecodeError{Topic: topic, Err: ErrNotObject}
	}
	stamp(rec, now)
	return rec, nil
}

// DecodeRemote parses a synchro frame and never fails: text that is not
// JSON is wrapped as {"raw": ...}, other JSON values as {"value": ...}.
func DecodeRemote(payload []byte, now time.Time) Record {
	var v any
	_ = json.Unmarshal(payload, &v)

	var rec Record
	switch val := v.(type) {
	case map[string]any:
		rec = Record(val)
	case nil:
		// unparsable, or a literal null
		rec = Record{KeyRaw: string(bytes.ToValidUTF8(payload, []byte("\uFFFD")))}
	default:
		rec = Record{KeyValue: val}
	}
	stamp(rec, now)
	return rec
}

func stamp(rec Record, now time.Time) {
	if _, ok := rec[KeyTimestamp]; !ok {
		rec[KeyTimestamp] = float64(now.UnixNano()) / 1e9
	}
}

// Float returns a numeric field.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// Time returns the record timestamp (unix seconds) as a time.Time.
func (r Record) Time() (time.Time, bool) {
	ts, ok := r.Float(KeyTimestamp)
	if !ok || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}
