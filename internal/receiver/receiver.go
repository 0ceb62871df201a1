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

// Package receiver keeps one subscriber connection to the broker alive
// and feeds decoded messages into the shared state cell.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"meteodash/internal/broker"
	"meteodash/internal/config"
	"meteodash/internal/events"
	"meteodash/internal/metrics"
	"meteodash/internal/state"
	"meteodash/internal/telemetry"
	"meteodash/pkg/eventbus"
	"meteodash/pkg/logger"
	"net"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/paho"
)

const (
	connectTimeout = 10 * time.Second
	inboundBuffer  = 64

	roleSensor  = "sensor"
	roleSynchro = "synchro"
)

type inbound struct {
	topic   string
	payload []byte
}

type Receiver struct {
	brokerURL *url.URL
	broker    config.BrokerConfig
	conf      config.ReceiverConfig
	topics    config.TopicsConfig

	cell    state.Writer
	bus     *eventbus.Bus
	metrics *metrics.Metrics
	log     *logger.Logger

	backoff time.Duration
	dial    func(ctx context.Context, u *url.URL) (net.Conn, error)
	now     func() time.Time
}

func New(conf *config.Config, cell state.Writer, m *metrics.Metrics) (*Receiver, error) {
	u, err := broker.ParseURL(conf.Broker.URL)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		brokerURL: u,
		broker:    conf.Broker,
		conf:      conf.Receiver,
		topics:    conf.Topics,
		cell:      cell,
		bus:       conf.EventBus,
		metrics:   m,
		log:       logger.New("Receiver"),
		backoff:   conf.Receiver.Backoff(),
		dial:      broker.Dial,
		now:       time.Now,
	}, nil
}

func (r *Receiver) String() string {
	return "Receiver"
}

// Run connects, subscribes and processes messages until the connection
// drops, then waits the backoff and tries again. It returns only when
// ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) {
	r.log.Info("Running... broker=%s", r.brokerURL.Host)
	defer r.log.Info("Stopped")

	for {
		err := r.session(ctx)
		r.setConnected(false)
		if ctx.Err() != nil {
			return
		}

		r.log.Error("connection lost: %v (retry in %s)", err, r.backoff)
		if r.metrics != nil {
			r.metrics.Reconnects.Inc()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.backoff):
		}
	}
}

func (r *Receiver) session(ctx context.Context) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := r.dial(sessCtx, r.brokerURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.brokerURL.Host, err)
	}

	msgs := make(chan inbound, inboundBuffer)
	failed := make(chan error, 1)
	fail := func(err error) {
		select {
		case failed <- err:
		default:
		}
	}

	clientID := broker.ClientID("rx")
	cli := paho.NewClient(paho.ClientConfig{
		ClientID: clientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				select {
				case msgs <- inbound{topic: pr.Packet.Topic, payload: pr.Packet.Payload}:
				case <-sessCtx.Done():
				}
				return true, nil
			},
		},
		OnClientError: func(err error) {
			fail(err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			fail(fmt.Errorf("server disconnect, reason code %d", d.ReasonCode))
		},
	})

	cp := &paho.Connect{
		KeepAlive:  uint16(r.broker.KeepAliveSeconds),
		ClientID:   clientID,
		CleanStart: true,
	}
	if r.broker.Username != "" {
		cp.Username = r.broker.Username
		cp.UsernameFlag = true
	}
	if r.broker.Password != "" {
		cp.Password = []byte(r.broker.Password)
		cp.PasswordFlag = true
	}

	connCtx, connCancel := context.WithTimeout(sessCtx, connectTimeout)
	defer connCancel()

	ca, err := cli.Connect(connCtx, cp)
	if err != nil {
		conn.Close()
		return fmt.Errorf("connect: %w", err)
	}
	if ca.ReasonCode >= 0x80 {
		conn.Close()
		return fmt.Errorf("connect refused, reason code %d", ca.ReasonCode)
	}
	defer cli.Disconnect(&paho.Disconnect{ReasonCode: 0})

	subs := r.subscriptions()
	sa, err := cli.Subscribe(connCtx, &paho.Subscribe{Subscriptions: subs})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	for i, code := range sa.Reasons {
		if code >= 0x80 && i < len(subs) {
			return fmt.Errorf("subscribe %s refused, reason code %d", subs[i].Topic, code)
		}
	}

	r.log.Info("connected as %s, subscribed to %s and %s", clientID, r.topics.Sensors, r.topics.SynchroRX)
	r.setConnected(true)

	for {
		select {
		case <-sessCtx.Done():
			return ctx.Err()
		case err := <-failed:
			return err
		case m := <-msgs:
			r.Handle(m.topic, m.payload)
		}
	}
}

func (r *Receiver) subscriptions() []paho.SubscribeOptions {
	subs := []paho.SubscribeOptions{{Topic: r.topics.Sensors, QoS: r.conf.QoS}}
	if r.topics.SynchroRX != "" && r.topics.SynchroRX != r.topics.Sensors {
		subs = append(subs, paho.SubscribeOptions{Topic: r.topics.SynchroRX, QoS: r.conf.QoS})
	}
	return subs
}

func (r *Receiver) setConnected(up bool) {
	if !r.cell.SetConnected(up) {
		return
	}
	if r.metrics != nil {
		if up {
			r.metrics.Connected.Set(1)
		} else {
			r.metrics.Connected.Set(0)
		}
	}
	if r.bus != nil {
		r.bus.Publish(events.TopicConnection, events.ConnectionUpdate{
			Connected: up,
			Broker:    r.brokerURL.Host,
			Time:      r.now(),
		})
	}
}

// Handle routes one inbound message by topic. A sensor payload that does
// not decode is dropped; a synchro payload is always stored, wrapped if
// needed. Errors never stop the receive loop.
func (r *Receiver) Handle(topic string, payload []byte) error {
	now := r.now()

	switch {
	case broker.Match(r.topics.Sensors, topic):
		r.received(roleSensor)
		rec, err := telemetry.DecodeSensor(topic, payload, now)
		if err != nil {
			r.decodeFailed(roleSensor)
			r.log.Error("dropping sensor message: %v", err)
			return err
		}
		r.cell.StoreSensor(rec)
		if r.bus != nil {
			r.bus.Publish(events.TopicSensor, events.SensorUpdate{Record: rec, Time: now})
		}
		return nil

	case r.topics.SynchroRX != "" && broker.Match(r.topics.SynchroRX, topic):
		r.received(roleSynchro)
		rec := telemetry.DecodeRemote(payload, now)
		if _, raw := rec[telemetry.KeyRaw]; raw {
			r.decodeFailed(roleSynchro)
			r.log.Warn("synchro payload on %s is not JSON, stored raw", topic)
		}
		r.cell.StoreRemote(rec)
		if r.bus != nil {
			r.bus.Publish(events.TopicRemote, events.RemoteUpdate{Record: rec, Time: now})
		}
		return nil
	}

	r.log.Debug("ignoring message on %s", topic)
	return errUnrouted
}

var errUnrouted = errors.New("no handler for topic")

func (r *Receiver) received(role string) {
	if r.metrics != nil {
		r.metrics.MessagesReceived.WithLabelValues(role).Inc()
	}
}

func (r *Receiver) decodeFailed(role string) {
	if r.metrics != nil {
		r.metrics.DecodeErrors.WithLabelValues(role).Inc()
	}
}
