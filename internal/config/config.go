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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"meteodash/pkg/eventbus"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type BrokerConfig struct {
	// mqtt://, tcp://, mqtts://, ssl:// or tls:// URL
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`

	KeepAliveSeconds int `json:"keepalive_seconds"`
}

type ReceiverConfig struct {
	BackoffSeconds int  `json:"backoff_seconds"`
	QoS            byte `json:"qos"`
}

const (
	DisciplineTransient  = "transient"
	DisciplinePersistent = "persistent"
)

type PublisherConfig struct {
	// transient: connect/publish/disconnect per call
	// persistent: one reconnecting connection reused across calls
	Discipline       string `json:"discipline"`
	AckTimeoutMillis int    `json:"ack_timeout_ms"`
	QoS              byte   `json:"qos"`
}

type ControlConfig struct {
	RefreshIntervalMillis int `json:"refresh_interval_ms"`
	ThrottleMillis        int `json:"throttle_ms"`
}

type DashboardConfig struct {
	HistoryMax  int    `json:"history_max"`
	DefaultCity string `json:"default_city"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type Config struct {
	Broker    BrokerConfig    `json:"broker"`
	Receiver  ReceiverConfig  `json:"receiver"`
	Publisher PublisherConfig `json:"publisher"`
	Control   ControlConfig   `json:"control"`
	Dashboard DashboardConfig `json:"dashboard"`
	HTTP      HTTPConfig      `json:"http"`

	// loaded from the yaml topic map, not the json file
	Topics TopicsConfig `json:"-"`

	// not loaded from file, but added here to
	// pass to all services alongside config
	EventBus *eventbus.Bus `json:"-"`
	DataDir  string        `json:"-"`
	RootDir  string        `json:"-"`
}

// Default returns the config used when no file is present.
func Default() *Config {
	c := &Config{Topics: DefaultTopics()}
	c.applyDefaults()
	return c
}

// Parse decodes a JSON config and fills in defaults.
func Parse(r io.Reader) (*Config, error) {
	var c Config
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.Topics = DefaultTopics()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads the JSON config at path. A missing file falls back to
// defaults; a malformed one is fatal.
func LoadFile(path string) *Config {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("config %s not found, using defaults", path)
		return Default()
	}
	if err != nil {
		log.Fatalf("open config: %v", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return c
}

func (c *Config) applyDefaults() {
	if c.Broker.URL == "" {
		c.Broker.URL = "mqtt://4.219.13.227:1883"
	}
	if c.Broker.KeepAliveSeconds == 0 {
		c.Broker.KeepAliveSeconds = 60
	}
	if c.Receiver.BackoffSeconds == 0 {
		c.Receiver.BackoffSeconds = 5
	}
	if c.Publisher.Discipline == "" {
		c.Publisher.Discipline = DisciplinePersistent
	}
	if c.Publisher.AckTimeoutMillis == 0 {
		c.Publisher.AckTimeoutMillis = 1000
	}
	if c.Control.RefreshIntervalMillis == 0 {
		c.Control.RefreshIntervalMillis = 2000
	}
	if c.Control.ThrottleMillis == 0 {
		c.Control.ThrottleMillis = 80
	}
	if c.Dashboard.HistoryMax == 0 {
		c.Dashboard.HistoryMax = 500
	}
	if c.Dashboard.DefaultCity == "" {
		c.Dashboard.DefaultCity = "Brussels"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

func (c *Config) Validate() error {
	switch c.Publisher.Discipline {
	case DisciplineTransient, DisciplinePersistent:
	default:
		return fmt.Errorf("publisher.discipline: unknown value %q", c.Publisher.Discipline)
	}
	if c.Publisher.QoS > 2 || c.Receiver.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	return c.Topics.Validate()
}

// ApplyEnv loads an optional .env file and applies METEODASH_* overrides.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if v := strings.TrimSpace(os.Getenv("METEODASH_BROKER")); v != "" {
		c.Broker.URL = v
	}
	if v := os.Getenv("METEODASH_BROKER_USERNAME"); v != "" {
		c.Broker.Username = v
	}
	if v := os.Getenv("METEODASH_BROKER_PASSWORD"); v != "" {
		c.Broker.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("METEODASH_HTTP_ADDR")); v != "" {
		c.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("METEODASH_PUBLISHER")); v != "" {
		c.Publisher.Discipline = v
	}
	return c.Validate()
}

func (c ReceiverConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds) * time.Second
}

func (c PublisherConfig) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutMillis) * time.Millisecond
}

func (c ControlConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMillis) * time.Millisecond
}

func (c ControlConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleMillis) * time.Millisecond
}
