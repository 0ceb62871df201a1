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
	"meteodash/internal/config"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// token completes when done is closed.
type token struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *token {
	t := &token{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *token) Wait() bool {
	<-t.done
	return true
}

func (t *token) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *token) Done() <-chan struct{} { return t.done }
func (t *token) Error() error          { return t.err }

// recordingClient stands in for a v3 client; only the calls the
// transport makes are implemented.
type recordingClient struct {
	mqtt.Client
	connect mqtt.Token

	mu          sync.Mutex
	connects    int
	published   []string
	disconnects int
}

func (c *recordingClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	return c.connect
}

func (c *recordingClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, topic)
	return doneToken(nil)
}

func (c *recordingClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func newTransientWith(t *testing.T, cli *recordingClient, timeout time.Duration) *TransientTransport {
	t.Helper()
	tr, err := NewTransient(config.BrokerConfig{URL: "mqtt://broker.test"}, timeout)
	if err != nil {
		t.Fatalf("NewTransient() error = %v", err)
	}
	tr.newClient = func(*mqtt.ClientOptions) mqtt.Client { return cli }
	return tr
}

func TestTransient_OneConnectionPerCall(t *testing.T) {
	cli := &recordingClient{connect: doneToken(nil)}
	tr := newTransientWith(t, cli, time.Second)

	err := tr.Publish(context.Background(),
		Message{Topic: "esp32/rgb/red", Payload: []byte("1")},
		Message{Topic: "esp32/rgb/green", Payload: []byte("2")},
		Message{Topic: "esp32/rgb/blue", Payload: []byte("3")},
	)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if cli.connects != 1 || cli.disconnects != 1 {
		t.Errorf("connects=%d disconnects=%d, want 1 and 1", cli.connects, cli.disconnects)
	}
	want := []string{"esp32/rgb/red", "esp32/rgb/green", "esp32/rgb/blue"}
	if len(cli.published) != 3 {
		t.Fatalf("published = %v, want %v", cli.published, want)
	}
	for i := range want {
		if cli.published[i] != want[i] {
			t.Errorf("published[%d] = %q, want %q", i, cli.published[i], want[i])
		}
	}
}

func TestTransient_ConnectTimeoutClosesClient(t *testing.T) {
	cli := &recordingClient{connect: &token{done: make(chan struct{})}}
	tr := newTransientWith(t, cli, 20*time.Millisecond)

	err := tr.Publish(context.Background(), Message{Topic: "ESP/sync", Payload: []byte("1"), Retain: true})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if cli.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1 after a stalled connect", cli.disconnects)
	}
	if len(cli.published) != 0 {
		t.Errorf("published %v without a connection", cli.published)
	}
}

func TestTransient_CancelledConnectClosesClient(t *testing.T) {
	cli := &recordingClient{connect: &token{done: make(chan struct{})}}
	tr := newTransientWith(t, cli, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Publish(ctx, Message{Topic: "t"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if cli.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", cli.disconnects)
	}
}
