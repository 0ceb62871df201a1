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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse(strings.NewReader(`{"broker": {"url": "mqtt://localhost:1883"}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"broker", c.Broker.URL, "mqtt://localhost:1883"},
		{"backoff", c.Receiver.Backoff(), 5 * time.Second},
		{"discipline", c.Publisher.Discipline, DisciplinePersistent},
		{"ack timeout", c.Publisher.AckTimeout(), time.Second},
		{"refresh", c.Control.RefreshInterval(), 2 * time.Second},
		{"throttle", c.Control.Throttle(), 80 * time.Millisecond},
		{"history", c.Dashboard.HistoryMax, 500},
		{"city", c.Dashboard.DefaultCity, "Brussels"},
		{"http", c.HTTP.Addr, ":8080"},
		{"sensor topic", c.Topics.Sensors, "streamlit/brussels"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestParse_RejectsUnknownDiscipline(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"publisher": {"discipline": "carrier-pigeon"}}`))
	if err == nil || !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Errorf("Parse() error = %v, want unknown discipline error", err)
	}
}

func TestParse_RejectsBadQoS(t *testing.T) {
	if _, err := Parse(strings.NewReader(`{"receiver": {"qos": 3}}`)); err == nil {
		t.Error("Parse() should reject qos 3")
	}
}

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	c := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if c.Receiver.BackoffSeconds != 5 {
		t.Errorf("BackoffSeconds = %d, want 5", c.Receiver.BackoffSeconds)
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("METEODASH_HTTP_ADDR=:9999\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("METEODASH_BROKER", "mqtt://broker.test:1883")
	t.Setenv("METEODASH_PUBLISHER", "transient")
	// godotenv never overrides variables that are already set
	t.Setenv("METEODASH_HTTP_ADDR", "")
	os.Unsetenv("METEODASH_HTTP_ADDR")

	c := Default()
	if err := c.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if c.Broker.URL != "mqtt://broker.test:1883" {
		t.Errorf("Broker.URL = %q", c.Broker.URL)
	}
	if c.HTTP.Addr != ":9999" {
		t.Errorf("HTTP.Addr = %q, want :9999", c.HTTP.Addr)
	}
	if c.Publisher.Discipline != DisciplineTransient {
		t.Errorf("Discipline = %q, want transient", c.Publisher.Discipline)
	}
}

func TestApplyEnv_MissingEnvFileIsFine(t *testing.T) {
	c := Default()
	if err := c.ApplyEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("ApplyEnv() error = %v", err)
	}
}

func TestParseTopics(t *testing.T) {
	yml := []byte(`
station: RAD
local_format: json
local_json: esp32/led
`)
	topics, err := ParseTopics(yml)
	if err != nil {
		t.Fatalf("ParseTopics() error = %v", err)
	}
	if topics.Station != "RAD" || topics.LocalFormat != LocalFormatJSON || topics.LocalJSON != "esp32/led" {
		t.Errorf("unexpected topics: %+v", topics)
	}
	// untouched keys keep their defaults
	if topics.SyncSwitch != "ESP/sync" {
		t.Errorf("SyncSwitch = %q, want ESP/sync", topics.SyncSwitch)
	}
}

func TestParseTopics_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"bad format", "local_format: morse\n"},
		{"missing red", "local_red: \"\"\n"},
		{"missing switch", "sync_switch: \"\"\n"},
		{"not yaml", "::::\n  - ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTopics([]byte(tt.yml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
