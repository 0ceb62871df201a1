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
	"errors"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	LocalFormatScalar = "scalar" // three decimal-text messages, one per channel
	LocalFormatJSON   = "json"   // a single {"r","g","b"} message
)

// TopicsConfig maps topic roles to deployment-specific topic strings.
type TopicsConfig struct {
	// Station tag stamped as "source" on remote commands.
	Station     string `yaml:"station"`
	LocalFormat string `yaml:"local_format"`

	Sensors   string `yaml:"sensors"`
	SynchroRX string `yaml:"synchro_rx"`

	LocalRed   string `yaml:"local_red"`
	LocalGreen string `yaml:"local_green"`
	LocalBlue  string `yaml:"local_blue"`
	LocalJSON  string `yaml:"local_json"`

	RemoteSet  string `yaml:"remote_set"`
	SyncSwitch string `yaml:"sync_switch"`
}

func DefaultTopics() TopicsConfig {
	return TopicsConfig{
		Station:     "MINH",
		LocalFormat: LocalFormatScalar,
		Sensors:     "streamlit/brussels",
		SynchroRX:   "ESP/MINH",
		LocalRed:    "esp32/rgb/red",
		LocalGreen:  "esp32/rgb/green",
		LocalBlue:   "esp32/rgb/blue",
		LocalJSON:   "esp32/rgb",
		RemoteSet:   "ESP/MINH",
		SyncSwitch:  "ESP/sync",
	}
}

// ParseTopics decodes yaml over the defaults, so a file only needs the
// keys it changes.
func ParseTopics(data []byte) (TopicsConfig, error) {
	t := DefaultTopics()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return TopicsConfig{}, fmt.Errorf("decode topics: %w", err)
	}
	return t, t.Validate()
}

// LoadTopics reads the yaml topic map; a missing file yields defaults.
func LoadTopics(filename string) TopicsConfig {
	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultTopics()
	}
	if err != nil {
		log.Fatalf("failed to read topics file: %v", err)
	}
	t, err := ParseTopics(data)
	if err != nil {
		log.Fatalf("%s: %v", filename, err)
	}
	return t
}

func (t TopicsConfig) Validate() error {
	switch t.LocalFormat {
	case LocalFormatScalar:
		if t.LocalRed == "" || t.LocalGreen == "" || t.LocalBlue == "" {
			return fmt.Errorf("topics: scalar local format needs local_red, local_green and local_blue")
		}
	case LocalFormatJSON:
		if t.LocalJSON == "" {
			return fmt.Errorf("topics: json local format needs local_json")
		}
	default:
		return fmt.Errorf("topics: unknown local_format %q", t.LocalFormat)
	}
	if t.Sensors == "" || t.RemoteSet == "" || t.SyncSwitch == "" {
		return fmt.Errorf("topics: sensors, remote_set and sync_switch are required")
	}
	return nil
}
