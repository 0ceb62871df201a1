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

// Package gate decides whether a candidate colour should be published,
// suppressing repeats and rate-limiting continuous slider input.
package gate

import (
	"meteodash/internal/led"
	"time"
)

const DefaultMinInterval = 80 * time.Millisecond

type Decision int

const (
	Send Decision = iota
	Suppressed
	Throttled
)

func (d Decision) String() string {
	switch d {
	case Send:
		return "send"
	case Suppressed:
		return "suppressed"
	case Throttled:
		return "throttled"
	}
	return "unknown"
}

// Admit reports whether candidate differs from the last accepted value.
// A nil last means nothing is known to have been sent.
func Admit(candidate led.RGB, last *led.RGB) bool {
	return last == nil || *last != candidate
}

// Throttle reports whether a send at now must be rejected because the
// previous admitted send at lastSentAt was less than minInterval ago.
func Throttle(now, lastSentAt time.Time, minInterval time.Duration) bool {
	if lastSentAt.IsZero() {
		return false
	}
	return now.Sub(lastSentAt) < minInterval
}

// Gate holds the suppression memory for one destination. It is not safe
// for concurrent use; callers serialize access.
type Gate struct {
	minInterval time.Duration
	last        *led.RGB
	lastSentAt  time.Time
}

func New() *Gate {
	return &Gate{minInterval: DefaultMinInterval}
}

func (g *Gate) WithMinInterval(d time.Duration) *Gate {
	g.minInterval = d
	return g
}

// Offer is the fast path for continuous input: throttle first, then
// change detection. An admitted candidate stamps the send time.
func (g *Gate) Offer(now time.Time, c led.RGB) Decision {
	if Throttle(now, g.lastSentAt, g.minInterval) {
		return Throttled
	}
	return g.OfferDiscrete(now, c)
}

// OfferDiscrete skips throttling; used for one-off events such as a
// mode change or the periodic control cycle.
func (g *Gate) OfferDiscrete(now time.Time, c led.RGB) Decision {
	if !Admit(c, g.last) {
		return Suppressed
	}
	g.lastSentAt = now
	return Send
}

// Commit records c as successfully sent. Never call it after a failed publish.
func (g *Gate) Commit(c led.RGB) {
	g.last = &c
}

// Reset forgets the last sent value so the next candidate is admitted.
func (g *Gate) Reset() {
	g.last = nil
}

// Last returns the last committed value, if any.
func (g *Gate) Last() (led.RGB, bool) {
	if g.last == nil {
		return led.RGB{}, false
	}
	return *g.last, true
}
