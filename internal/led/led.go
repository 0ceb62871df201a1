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

// Package led defines colour commands and their wire payloads for the
// local and remote stations.
package led

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RGB is a colour triple; uint8 keeps every channel inside [0,255].
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Clamp bounds an input channel value to [0,255].
func Clamp(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// FromInts builds an RGB from unbounded inputs, clamping each channel.
func FromInts(r, g, b int) RGB {
	return RGB{R: Clamp(r), G: Clamp(g), B: Clamp(b)}
}

// On reports whether any channel is lit.
func (c RGB) On() bool {
	return c.R != 0 || c.G != 0 || c.B != 0
}

func (c RGB) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

type Destination int

const (
	Local Destination = iota
	Remote
)

func (d Destination) String() string {
	switch d {
	case Local:
		return "local"
	case Remote:
		return "remote"
	}
	return "Destination(" + strconv.Itoa(int(d)) + ")"
}

// Mode tags whether a command is addressed directly or through the
// synchro relay.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSynchro
)

func (m Mode) String() string {
	if m == ModeSynchro {
		return "SYNCHRO"
	}
	return "NORMAL"
}

// Destination returns where controls are routed in this mode.
func (m Mode) Destination() Destination {
	if m == ModeSynchro {
		return Remote
	}
	return Local
}

// ColorCommand is one outbound colour request.
type ColorCommand struct {
	RGB
	Mode Mode
}

func NewCommand(c RGB, m Mode) ColorCommand {
	return ColorCommand{RGB: c, Mode: m}
}

// ScalarPayloads encodes each channel as decimal text, in r, g, b order.
func (c ColorCommand) ScalarPayloads() [3][]byte {
	return [3][]byte{
		[]byte(strconv.Itoa(int(c.R))),
		[]byte(strconv.Itoa(int(c.G))),
		[]byte(strconv.Itoa(int(c.B))),
	}
}

// LocalPayload is the single-message local shape.
type LocalPayload struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (c ColorCommand) LocalJSON() ([]byte, error) {
	return json.Marshal(LocalPayload{R: c.R, G: c.G, B: c.B})
}

// RemotePayload is the synchro command shape. Source lets the relay and
// the far station drop frames that originated from themselves.
type RemotePayload struct {
	Source string `json:"source"`
	On     bool   `json:"on"`
	R      uint8  `json:"r"`
	G      uint8  `json:"g"`
	B      uint8  `json:"b"`
}

func (c ColorCommand) RemoteJSON(source string) ([]byte, error) {
	return json.Marshal(RemotePayload{
		Source: source,
		On:     c.On(),
		R:      c.R,
		G:      c.G,
		B:      c.B,
	})
}

// SwitchPayload is the retained mode-switch body.
func SwitchPayload(synchro bool) []byte {
	if synchro {
		return []byte("1")
	}
	return []byte("0")
}
