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

// Package broker holds the MQTT connection helpers shared by the
// receiver and the publishers.
package broker

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dialTimeout = 10 * time.Second

// ParseURL accepts mqtt, tcp, mqtts, ssl and tls URLs and fills in the
// default port for the scheme. A bare host:port is treated as mqtt.
func ParseURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "mqtt://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("broker url %q has no host", raw)
	}

	var port string
	switch u.Scheme {
	case "mqtt", "tcp":
		port = "1883"
	case "mqtts", "ssl", "tls":
		port = "8883"
	default:
		return nil, fmt.Errorf("broker url: unsupported scheme %q", u.Scheme)
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return u, nil
}

// IsTLS reports whether the URL scheme asks for TLS.
func IsTLS(u *url.URL) bool {
	switch u.Scheme {
	case "mqtts", "ssl", "tls":
		return true
	}
	return false
}

// TLSConfig returns the client TLS settings for u, or nil for plain TCP.
func TLSConfig(u *url.URL) *tls.Config {
	if !IsTLS(u) {
		return nil
	}
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: u.Hostname(),
	}
}

// Dial opens the raw network connection for an MQTT session.
func Dial(ctx context.Context, u *url.URL) (net.Conn, error) {
	d := &net.Dialer{Timeout: dialTimeout}
	if cfg := TLSConfig(u); cfg != nil {
		td := &tls.Dialer{NetDialer: d, Config: cfg}
		return td.DialContext(ctx, "tcp", u.Host)
	}
	return d.DialContext(ctx, "tcp", u.Host)
}

// LegacyURL rewrites u into the tcp:// or ssl:// form understood by the
// v3.1.1 client.
func LegacyURL(u *url.URL) string {
	if IsTLS(u) {
		return "ssl://" + u.Host
	}
	return "tcp://" + u.Host
}

// ClientID returns a unique client identifier for one connection role.
func ClientID(role string) string {
	return "meteodash-" + role + "-" + uuid.NewString()[:8]
}

// Match reports whether topic matches an MQTT subscription filter,
// honouring the + and # wildcards.
func Match(filter, topic string) bool {
	if filter == topic {
		return true
	}
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return i == len(fp)-1
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}
