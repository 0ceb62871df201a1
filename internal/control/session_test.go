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

package control

import (
	"context"
	"errors"
	"meteodash/internal/config"
	"meteodash/internal/led"
	"meteodash/internal/metrics"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type sentColor struct {
	dest led.Destination
	cmd  led.ColorCommand
}

type fakeCommander struct {
	mu       sync.Mutex
	colors   []sentColor
	switches []bool
	err      error

	// fails only the mode switch
	switchErr error
}

func (f *fakeCommander) PublishColor(_ context.Context, dest led.Destination, cmd led.ColorCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.colors = append(f.colors, sentColor{dest, cmd})
	return nil
}

func (f *fakeCommander) PublishModeSwitch(_ context.Context, synchro bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.switchErr != nil {
		return f.switchErr
	}
	if f.err != nil {
		return f.err
	}
	f.switches = append(f.switches, synchro)
	return nil
}

func (f *fakeCommander) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeCommander) sent() ([]sentColor, []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentColor(nil), f.colors...), append([]bool(nil), f.switches...)
}

// clock advances by step on every read.
type clock struct {
	t    time.Time
	step time.Duration
}

func (c *clock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestSession(t *testing.T) (*Session, *fakeCommander, *metrics.Metrics, *clock) {
	t.Helper()
	pub := &fakeCommander{}
	m := metrics.New()
	s := New(config.Default(), pub, m)
	clk := &clock{t: time.Unix(1700000000, 0), step: time.Second}
	s.now = clk.now
	return s, pub, m, clk
}

func TestSetMode_SynchroSendsSwitchThenInitialFrame(t *testing.T) {
	s, pub, _, _ := newTestSession(t)
	ctx := context.Background()

	s.SetInput(led.Remote, led.RGB{R: 10})
	if err := s.SetMode(ctx, true); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}

	colors, switches := pub.sent()
	if len(switches) != 1 || !switches[0] {
		t.Fatalf("switches = %v, want [true]", switches)
	}
	if len(colors) != 1 {
		t.Fatalf("colour commands = %d, want 1", len(colors))
	}
	got := colors[0]
	if got.dest != led.Remote || got.cmd.RGB != (led.RGB{R: 10}) || !got.cmd.On() {
		t.Errorf("initial frame = %+v", got)
	}
	if got.cmd.Mode != led.ModeSynchro {
		t.Errorf("initial frame mode = %s", got.cmd.Mode)
	}

	// the initial frame is committed, so the next cycle has nothing to do
	s.Cycle(ctx)
	if colors, _ := pub.sent(); len(colors) != 1 {
		t.Errorf("cycle after switch sent %d commands, want 1 total", len(colors))
	}

	v := s.Snapshot()
	if !v.Synchro || v.Mode != "SYNCHRO" {
		t.Errorf("view mode = %s", v.Mode)
	}
	if v.LastRemote == nil || *v.LastRemote != (led.RGB{R: 10}) {
		t.Errorf("LastRemote = %v", v.LastRemote)
	}
	if v.Caption != CaptionSentRemote {
		t.Errorf("caption = %q", v.Caption)
	}
}

func TestSetMode_SameModeIsNoop(t *testing.T) {
	s, pub, _, _ := newTestSession(t)
	s.SetMode(context.Background(), false)

	colors, switches := pub.sent()
	if len(colors) != 0 || len(switches) != 0 {
		t.Errorf("no-op mode change published %d colours, %d switches", len(colors), len(switches))
	}
}

func TestSetMode_BackToNormalResendsLocal(t *testing.T) {
	s, pub, _, _ := newTestSession(t)
	ctx := context.Background()

	s.SetColor(ctx, led.RGB{G: 5})
	s.SetMode(ctx, true)
	s.SetMode(ctx, false)

	colors, switches := pub.sent()
	if len(switches) != 2 || switches[1] {
		t.Fatalf("switches = %v, want [true false]", switches)
	}
	last := colors[len(colors)-1]
	if last.dest != led.Local || last.cmd.RGB != (led.RGB{G: 5}) {
		t.Errorf("resent local = %+v, want local (0,5,0)", last)
	}
}

func TestCycle_IdenticalInputsPublishOnce(t *testing.T) {
	s, pub, m, _ := newTestSession(t)
	ctx := context.Background()

	s.SetInput(led.Local, led.RGB{R: 1, G: 2, B: 3})
	for range 10 {
		s.Cycle(ctx)
	}

	colors, _ := pub.sent()
	if len(colors) != 1 {
		t.Errorf("10 identical cycles published %d times, want 1", len(colors))
	}
	if got := testutil.ToFloat64(m.GateDecisions.WithLabelValues("local", "suppressed")); got != 9 {
		t.Errorf("suppressed decisions = %v, want 9", got)
	}
}

func TestCycle_OnlyActiveDestinationPublishes(t *testing.T) {
	s, pub, _, _ := newTestSession(t)
	ctx := context.Background()

	s.SetInput(led.Local, led.RGB{R: 1})
	s.SetInput(led.Remote, led.RGB{B: 9})
	s.Cycle(ctx)

	colors, _ := pub.sent()
	if len(colors) != 1 || colors[0].dest != led.Local {
		t.Fatalf("NORMAL cycle sent %+v, want one local command", colors)
	}

	s.SetMode(ctx, true)
	s.SetInput(led.Local, led.RGB{R: 200})
	s.Cycle(ctx)

	colors, _ = pub.sent()
	for _, c := range colors[1:] {
		if c.dest != led.Remote {
			t.Errorf("SYNCHRO published to %s", c.dest)
		}
	}
}

func TestCycle_FailureKeepsLastSentAndRetries(t *testing.T) {
	s, pub, _, _ := newTestSession(t)
	ctx := context.Background()

	pub.setErr(errors.New("broker down"))
	s.SetInput(led.Local, led.RGB{R: 50})
	for range 3 {
		if err := s.Cycle(ctx); err == nil {
			t.Fatal("Cycle() should report the publish failure")
		}
	}

	v := s.Snapshot()
	if v.LastLocal != nil {
		t.Errorf("LastLocal = %v after failures, want unknown", v.LastLocal)
	}
	if v.Caption != CaptionSendFailed {
		t.Errorf("caption = %q, want %q", v.Caption, CaptionSendFailed)
	}

	pub.setErr(nil)
	if err := s.Cycle(ctx); err != nil {
		t.Fatalf("Cycle() after recovery error = %v", err)
	}
	colors, _ := pub.sent()
	if len(colors) != 1 {
		t.Errorf("recovered cycle sent %d commands, want 1", len(colors))
	}
	if v := s.Snapshot(); v.LastLocal == nil || *v.LastLocal != (led.RGB{R: 50}) {
		t.Errorf("LastLocal = %v, want (50,0,0)", v.LastLocal)
	}
}

func TestDrag_Throttled(t *testing.T) {
	s, pub, _, clk := newTestSession(t)
	ctx := context.Background()
	clk.step = 10 * time.Millisecond

	for i := range 8 {
		s.Drag(ctx, led.RGB{R: uint8(i + 1)})
	}

	colors, _ := pub.sent()
	if len(colors) == 0 || len(colors) >= 8 {
		t.Errorf("drag published %d of 8 changes, want throttled subset", len(colors))
	}
	if v := s.Snapshot(); v.Local != (led.RGB{R: 8}) {
		t.Errorf("local input = %s, want last drag value", v.Local)
	}

	// the next cycle delivers the final position
	s.Cycle(ctx)
	colors, _ = pub.sent()
	if last := colors[len(colors)-1]; last.cmd.RGB != (led.RGB{R: 8}) {
		t.Errorf("final frame = %s, want (8,0,0)", last.cmd.RGB)
	}
}

func TestSetMode_SwitchFailureStillChangesMode(t *testing.T) {
	s, pub, _, _ := newTestSession(t)
	pub.setErr(errors.New("broker down"))

	if err := s.SetMode(context.Background(), true); err == nil {
		t.Fatal("SetMode() should report the failure")
	}
	v := s.Snapshot()
	if !v.Synchro {
		t.Error("mode should follow the user")
	}
	if v.Caption != CaptionSendFailed {
		t.Errorf("caption = %q", v.Caption)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, pub, _, _ := newTestSession(t)
	s.refresh = 5 * time.Millisecond
	s.SetInput(led.Local, led.RGB{B: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if colors, _ := pub.sent(); len(colors) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if colors, _ := pub.sent(); len(colors) != 1 {
		t.Errorf("run published %d commands, want 1", len(colors))
	}
}

func TestSetMode_SwitchFailureWithDeliveredFrame(t *testing.T) {
	s, pub, _, _ := newTestSession(t)
	pub.switchErr = errors.New("broker down")

	s.SetInput(led.Remote, led.RGB{R: 10})
	if err := s.SetMode(context.Background(), true); err == nil {
		t.Fatal("SetMode() should report the switch failure")
	}

	colors, _ := pub.sent()
	if len(colors) != 1 || colors[0].dest != led.Remote {
		t.Fatalf("initial frame = %+v, want one remote command", colors)
	}
	if v := s.Snapshot(); v.Caption != CaptionSendFailed {
		t.Errorf("caption = %q, want %q", v.Caption, CaptionSendFailed)
	}
}
