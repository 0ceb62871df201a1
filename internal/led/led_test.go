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

package led

import (
	"encoding/json"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		in   int
		want uint8
	}{
		{-5, 0}, {0, 0}, {128, 128}, {255, 255}, {256, 255}, {9000, 255},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRGB_On(t *testing.T) {
	if (RGB{}).On() {
		t.Error("black should be off")
	}
	if !(RGB{B: 1}).On() {
		t.Error("any nonzero channel should be on")
	}
}

func TestColorCommand_ScalarPayloads(t *testing.T) {
	p := NewCommand(RGB{R: 255, G: 0, B: 7}, ModeNormal).ScalarPayloads()
	want := []string{"255", "0", "7"}
	for i := range p {
		if string(p[i]) != want[i] {
			t.Errorf("channel %d = %q, want %q", i, p[i], want[i])
		}
	}
}

func TestColorCommand_RemoteJSON(t *testing.T) {
	b, err := NewCommand(RGB{R: 10}, ModeSynchro).RemoteJSON("MINH")
	if err != nil {
		t.Fatalf("RemoteJSON() error = %v", err)
	}
	if got, want := string(b), `{"source":"MINH","on":true,"r":10,"g":0,"b":0}`; got != want {
		t.Errorf("RemoteJSON() = %s, want %s", got, want)
	}

	var p RemotePayload
	b, _ = NewCommand(RGB{}, ModeSynchro).RemoteJSON("MINH")
	if err := json.Unmarshal(b, &p); err != nil {
		t.Fatal(err)
	}
	if p.On {
		t.Error("on should be false for black")
	}
}

func TestColorCommand_LocalJSON(t *testing.T) {
	b, err := NewCommand(RGB{R: 1, G: 2, B: 3}, ModeNormal).LocalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"r":1,"g":2,"b":3}` {
		t.Errorf("LocalJSON() = %s", b)
	}
}

func TestMode_Destination(t *testing.T) {
	if ModeNormal.Destination() != Local || ModeSynchro.Destination() != Remote {
		t.Error("mode to destination mapping is wrong")
	}
	if SwitchPayload(true)[0] != '1' || SwitchPayload(false)[0] != '0' {
		t.Error("switch payload should be 1/0")
	}
}
