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

// Package control owns the LED mode, the slider inputs for each
// destination and the gates that decide what reaches the broker.
package control

import (
	"context"
	"meteodash/internal/config"
	"meteodash/internal/events"
	"meteodash/internal/gate"
	"meteodash/internal/led"
	"meteodash/internal/metrics"
	"meteodash/pkg/eventbus"
	"meteodash/pkg/logger"
	"sync"
	"time"
)

const (
	CaptionSentLocal  = "values sent (LOCAL)"
	CaptionSentRemote = "values sent (REMOTE)"
	CaptionSendFailed = "send failed (broker?)"
)

// Commander is the outbound side used by the session.
type Commander interface {
	PublishColor(ctx context.Context, dest led.Destination, cmd led.ColorCommand) error
	PublishModeSwitch(ctx context.Context, synchro bool) error
}

type Session struct {
	pub     Commander
	bus     *eventbus.Bus
	metrics *metrics.Metrics
	log     *logger.Logger
	refresh time.Duration
	now     func() time.Time

	// serializes gate decisions with their publish and commit
	sendMu sync.Mutex

	mu      sync.Mutex
	mode    led.Mode
	inputs  [2]led.RGB
	gates   [2]*gate.Gate
	caption string
}

func New(conf *config.Config, pub Commander, m *metrics.Metrics) *Session {
	throttle := conf.Control.Throttle()
	return &Session{
		pub:     pub,
		bus:     conf.EventBus,
		metrics: m,
		log:     logger.New("Control"),
		refresh: conf.Control.RefreshInterval(),
		now:     time.Now,
		gates: [2]*gate.Gate{
			led.Local:  gate.New().WithMinInterval(throttle),
			led.Remote: gate.New().WithMinInterval(throttle),
		},
	}
}

func (s *Session) String() string {
	return "Control"
}

// Run executes one control cycle per refresh interval until ctx ends.
func (s *Session) Run(ctx context.Context) {
	s.log.Info("Running... refresh=%s", s.refresh)
	defer s.log.Info("Stopped")

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// SetInput records slider positions for dest without sending anything.
// Inputs for the inactive destination are kept for the next mode switch.
func (s *Session) SetInput(dest led.Destination, c led.RGB) {
	s.mu.Lock()
	s.inputs[dest] = c
	s.mu.Unlock()
	s.notify()
}

// Drag is the continuous slider path: the active input is updated and
// offered through the throttle.
func (s *Session) Drag(ctx context.Context, c led.RGB) error {
	return s.apply(ctx, c, true)
}

// SetColor updates the active input and offers it without throttling.
func (s *Session) SetColor(ctx context.Context, c led.RGB) error {
	return s.apply(ctx, c, false)
}

func (s *Session) apply(ctx context.Context, c led.RGB, throttled bool) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	mode := s.mode
	dest := mode.Destination()
	s.inputs[dest] = c
	s.mu.Unlock()

	return s.offer(ctx, mode, c, throttled)
}

// Cycle is one periodic control step: the active inputs are offered
// without throttling, so unchanged inputs send nothing.
func (s *Session) Cycle(ctx context.Context) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	mode := s.mode
	c := s.inputs[mode.Destination()]
	s.mu.Unlock()

	return s.offer(ctx, mode, c, false)
}

// SetMode switches between NORMAL and SYNCHRO. The switch flag is
// published first, then the new destination's memory is reset and its
// current inputs are sent. The mode follows the user even if the
// switch publish fails; the failure shows in the caption.
func (s *Session) SetMode(ctx context.Context, synchro bool) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	target := led.ModeNormal
	if synchro {
		target = led.ModeSynchro
	}

	s.mu.Lock()
	if s.mode == target {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.log.Info("mode -> %s", target)
	switchErr := s.pub.PublishModeSwitch(ctx, synchro)

	s.mu.Lock()
	s.mode = target
	dest := target.Destination()
	s.gates[dest].Reset()
	c := s.inputs[dest]
	if switchErr != nil {
		s.caption = CaptionSendFailed
	}
	s.mu.Unlock()
	s.notify()

	if err := s.offer(ctx, target, c, false); err != nil {
		return err
	}
	if switchErr != nil {
		// a delivered initial frame must not hide the failed switch
		s.mu.Lock()
		s.caption = CaptionSendFailed
		s.mu.Unlock()
		s.notify()
	}
	return switchErr
}

// offer runs c through the gate of mode's destination and publishes it
// when admitted. Callers hold sendMu.
func (s *Session) offer(ctx context.Context, mode led.Mode, c led.RGB, throttled bool) error {
	dest := mode.Destination()
	g := s.gates[dest]
	now := s.now()

	s.mu.Lock()
	var d gate.Decision
	if throttled {
		d = g.Offer(now, c)
	} else {
		d = g.OfferDiscrete(now, c)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.GateDecisions.WithLabelValues(dest.String(), d.String()).Inc()
	}
	if d != gate.Send {
		return nil
	}

	err := s.pub.PublishColor(ctx, dest, led.NewCommand(c, mode))

	s.mu.Lock()
	if err != nil {
		s.caption = CaptionSendFailed
	} else {
		g.Commit(c)
		if dest == led.Remote {
			s.caption = CaptionSentRemote
		} else {
			s.caption = CaptionSentLocal
		}
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// View is the session state shown by the dashboard.
type View struct {
	Mode    string `json:"mode"`
	Synchro bool   `json:"synchro"`
	Caption string `json:"caption"`

	Local      led.RGB  `json:"local"`
	Remote     led.RGB  `json:"remote"`
	LastLocal  *led.RGB `json:"last_local"`
	LastRemote *led.RGB `json:"last_remote"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Mode:    s.mode.String(),
		Synchro: s.mode == led.ModeSynchro,
		Caption: s.caption,
		Local:   s.inputs[led.Local],
		Remote:  s.inputs[led.Remote],
	}
	if c, ok := s.gates[led.Local].Last(); ok {
		v.LastLocal = &c
	}
	if c, ok := s.gates[led.Remote].Last(); ok {
		v.LastRemote = &c
	}
	return v
}

func (s *Session) notify() {
	if s.bus == nil {
		return
	}
	v := s.Snapshot()
	s.bus.Publish(events.TopicControl, events.ControlUpdate{
		Mode:    v.Mode,
		Caption: v.Caption,
		Time:    s.now(),
	})
}
