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

// Package publisher sends colour commands and mode switches to the
// broker using either a per-call or a long-lived connection.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"meteodash/internal/config"
	"meteodash/internal/led"
	"meteodash/internal/metrics"
	"meteodash/pkg/logger"
	"time"
)

const labelSwitch = "switch"

// PublishError reports a failed delivery to one topic.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

type Publisher struct {
	topics config.TopicsConfig
	qos    byte

	// colour commands use the configured discipline,
	// the mode switch is always transient
	colour Transport
	sw     Transport

	metrics *metrics.Metrics
	log     *logger.Logger
}

// New builds the transports selected by conf.Publisher.Discipline.
func New(conf *config.Config, m *metrics.Metrics) (*Publisher, error) {
	timeout := conf.Publisher.AckTimeout()

	sw, err := NewTransient(conf.Broker, timeout)
	if err != nil {
		return nil, err
	}

	var colour Transport = sw
	if conf.Publisher.Discipline == config.DisciplinePersistent {
		pt, err := NewPersistent(conf.Broker, timeout)
		if err != nil {
			return nil, err
		}
		if m != nil {
			pt.WithDiscardHook(m.HandleDiscards.Inc)
		}
		colour = pt
	}
	return NewWithTransports(conf.Topics, conf.Publisher.QoS, colour, sw, m), nil
}

func NewWithTransports(topics config.TopicsConfig, qos byte, colour, sw Transport, m *metrics.Metrics) *Publisher {
	return &Publisher{
		topics:  topics,
		qos:     qos,
		colour:  colour,
		sw:      sw,
		metrics: m,
		log:     logger.New("Publisher"),
	}
}

func (p *Publisher) String() string {
	return "Publisher"
}

// Run holds the long-lived connection open until shutdown.
func (p *Publisher) Run(ctx context.Context) {
	p.log.Info("Running... colour=%s switch=%s", p.colour, p.sw)
	<-ctx.Done()
	p.Close()
	p.log.Info("Stopped")
}

func (p *Publisher) Close() {
	p.colour.Close()
	p.sw.Close()
}

// PublishColor encodes cmd for dest and sends it on the colour path.
func (p *Publisher) PublishColor(ctx context.Context, dest led.Destination, cmd led.ColorCommand) error {
	var err error
	switch dest {
	case led.Local:
		err = p.publishLocal(ctx, cmd)
	case led.Remote:
		err = p.publishRemote(ctx, cmd)
	default:
		err = fmt.Errorf("unknown destination %v", dest)
	}
	p.observe(dest.String(), err)
	if err != nil {
		p.log.Error("%s colour %s: %v", dest, cmd.RGB, err)
		return err
	}
	p.log.Debug("%s colour %s sent", dest, cmd.RGB)
	return nil
}

func (p *Publisher) publishLocal(ctx context.Context, cmd led.ColorCommand) error {
	if p.topics.LocalFormat == config.LocalFormatJSON {
		payload, err := cmd.LocalJSON()
		if err != nil {
			return err
		}
		return p.send(ctx, p.colour, p.message(p.topics.LocalJSON, payload, false))
	}

	// all three channels go out on one connection
	topics := [3]string{p.topics.LocalRed, p.topics.LocalGreen, p.topics.LocalBlue}
	msgs := make([]Message, 0, len(topics))
	for i, payload := range cmd.ScalarPayloads() {
		msgs = append(msgs, p.message(topics[i], payload, false))
	}
	return p.send(ctx, p.colour, msgs...)
}

func (p *Publisher) publishRemote(ctx context.Context, cmd led.ColorCommand) error {
	payload, err := cmd.RemoteJSON(p.topics.Station)
	if err != nil {
		return err
	}
	return p.send(ctx, p.colour, p.message(p.topics.RemoteSet, payload, false))
}

// PublishModeSwitch sends the retained switch flag.
func (p *Publisher) PublishModeSwitch(ctx context.Context, synchro bool) error {
	err := p.send(ctx, p.sw, p.message(p.topics.SyncSwitch, led.SwitchPayload(synchro), true))
	p.observe(labelSwitch, err)
	if err != nil {
		p.log.Error("mode switch: %v", err)
		return err
	}
	p.log.Info("mode switch sent, synchro=%v", synchro)
	return nil
}

func (p *Publisher) message(topic string, payload []byte, retain bool) Message {
	return Message{Topic: topic, Payload: payload, QoS: p.qos, Retain: retain}
}

func (p *Publisher) send(ctx context.Context, t Transport, msgs ...Message) error {
	start := time.Now()
	err := t.Publish(ctx, msgs...)
	if p.metrics != nil {
		p.metrics.PublishLatency.WithLabelValues(t.String()).Observe(time.Since(start).Seconds())
	}
	if err == nil {
		return nil
	}
	var pe *PublishError
	if errors.As(err, &pe) {
		return err
	}
	return &PublishError{Topic: msgs[0].Topic, Err: err}
}

func (p *Publisher) observe(dest string, err error) {
	if p.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.metrics.Publishes.WithLabelValues(dest, result).Inc()
}
