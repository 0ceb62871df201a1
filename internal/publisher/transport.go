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

package publisher

import (
	"context"
	"errors"
	"fmt"
	"meteodash/internal/broker"
	"meteodash/internal/config"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const disconnectQuiesceMillis = 250

var (
	ErrNotConnected = errors.New("broker not connected")
	ErrTimeout      = errors.New("timed out waiting for broker")
)

// Message is one outbound publish.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Transport delivers messages to the broker in order, stopping at the
// first failure.
type Transport interface {
	Publish(ctx context.Context, msgs ...Message) error
	Close()
	String() string
}

// TransientTransport opens a fresh connection for every call and closes
// it again once all of its messages are acknowledged.
type TransientTransport struct {
	brokerURL *url.URL
	broker    config.BrokerConfig
	timeout   time.Duration
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func NewTransient(conf config.BrokerConfig, timeout time.Duration) (*TransientTransport, error) {
	u, err := broker.ParseURL(conf.URL)
	if err != nil {
		return nil, err
	}
	return &TransientTransport{
		brokerURL: u,
		broker:    conf,
		timeout:   timeout,
		newClient: mqtt.NewClient,
	}, nil
}

func (t *TransientTransport) String() string {
	return config.DisciplineTransient
}

func (t *TransientTransport) Publish(ctx context.Context, msgs ...Message) error {
	opts := mqtt.NewClientOptions().
		AddBroker(broker.LegacyURL(t.brokerURL)).
		SetClientID(broker.ClientID("tx")).
		SetConnectTimeout(t.timeout).
		SetAutoReconnect(false).
		SetConnectRetry(false)
	if t.broker.Username != "" {
		opts.SetUsername(t.broker.Username)
		opts.SetPassword(t.broker.Password)
	}
	if tlsCfg := broker.TLSConfig(t.brokerURL); tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}

	cli := t.newClient(opts)
	if err := wait(ctx, cli.Connect(), t.timeout); err != nil {
		// a connect still in flight must not outlive this call
		cli.Disconnect(0)
		return fmt.Errorf("connect: %w", err)
	}
	defer cli.Disconnect(disconnectQuiesceMillis)

	for _, m := range msgs {
		if err := wait(ctx, cli.Publish(m.Topic, m.QoS, m.Retain, m.Payload), t.timeout); err != nil {
			return &PublishError{Topic: m.Topic, Err: err}
		}
	}
	return nil
}

func (t *TransientTransport) Close() {}

func wait(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PersistentTransport keeps one reconnecting connection and reuses it
// for every message. Any failure throws the connection away so the
// next call starts from scratch.
type PersistentTransport struct {
	brokerURL *url.URL
	broker    config.BrokerConfig
	timeout   time.Duration

	// called after a connection is discarded
	onDiscard func()

	mu     sync.Mutex
	cm     *autopaho.ConnectionManager
	cancel context.CancelFunc
}

func NewPersistent(conf config.BrokerConfig, timeout time.Duration) (*PersistentTransport, error) {
	u, err := broker.ParseURL(conf.URL)
	if err != nil {
		return nil, err
	}
	return &PersistentTransport{brokerURL: u, broker: conf, timeout: timeout}, nil
}

func (p *PersistentTransport) WithDiscardHook(fn func()) *PersistentTransport {
	p.onDiscard = fn
	return p
}

func (p *PersistentTransport) String() string {
	return config.DisciplinePersistent
}

func (p *PersistentTransport) Publish(ctx context.Context, msgs ...Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cm, err := p.handleLocked(ctx)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
		_, err := cm.Publish(pubCtx, &paho.Publish{
			Topic:   m.Topic,
			Payload: m.Payload,
			QoS:     m.QoS,
			Retain:  m.Retain,
		})
		cancel()
		if err != nil {
			p.discardLocked()
			return &PublishError{Topic: m.Topic, Err: err}
		}
	}
	return nil
}

// handleLocked returns the live connection, creating it on first use.
func (p *PersistentTransport) handleLocked(ctx context.Context) (*autopaho.ConnectionManager, error) {
	if p.cm != nil {
		return p.cm, nil
	}

	cmCtx, cancel := context.WithCancel(context.Background())
	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{p.brokerURL},
		TlsCfg:                        broker.TLSConfig(p.brokerURL),
		KeepAlive:                     uint16(p.broker.KeepAliveSeconds),
		CleanStartOnInitialConnection: true,
		ConnectUsername:               p.broker.Username,
		ConnectPassword:               []byte(p.broker.Password),
		OnConnectError:                func(error) {},
		ClientConfig: paho.ClientConfig{
			ClientID: broker.ClientID("pub"),
		},
	}

	cm, err := autopaho.NewConnection(cmCtx, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	p.cm, p.cancel = cm, cancel

	awaitCtx, awaitCancel := context.WithTimeout(ctx, p.timeout)
	defer awaitCancel()
	if err := cm.AwaitConnection(awaitCtx); err != nil {
		p.discardLocked()
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return cm, nil
}

// discardLocked drops a failed handle.
func (p *PersistentTransport) discardLocked() {
	if p.cm == nil {
		return
	}
	p.dropLocked()
	if p.onDiscard != nil {
		p.onDiscard()
	}
}

// dropLocked clears the handle and disconnects it in the background.
func (p *PersistentTransport) dropLocked() {
	if p.cm == nil {
		return
	}
	cm, cancel := p.cm, p.cancel
	p.cm, p.cancel = nil, nil

	go func() {
		ctx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		_ = cm.Disconnect(ctx)
		cancel()
	}()
}

// connected reports whether a connection handle is currently held.
func (p *PersistentTransport) connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cm != nil
}

func (p *PersistentTransport) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropLocked()
}
