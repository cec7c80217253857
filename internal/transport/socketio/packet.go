// Package socketio is a minimal Socket.IO v5 client over the Engine.IO v4
// websocket transport. It supports the default namespace and server to
// client events, which is all the runner uses.
package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Engine.IO packet types
const (
	packetOpen    = '0'
	packetClose   = '1'
	packetPing    = '2'
	packetPong    = '3'
	packetMessage = '4'
	packetNoop    = '6'
)

// Socket.IO packet types carried inside an Engine.IO message
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketConnectError = '4'
)

var (
	ErrHandshake      = errors.New("socket.io handshake failed")
	ErrServerClosed   = errors.New("server closed the connection")
	ErrMalformedFrame = errors.New("malformed socket.io frame")
)

// OpenPacket is the Engine.IO handshake sent by the server
type OpenPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload,omitempty"`
}

// Deadline returns how long the client waits for the next frame before
// declaring the connection dead
func (o OpenPacket) Deadline() time.Duration {
	interval := time.Duration(o.PingInterval) * time.Millisecond
	timeout := time.Duration(o.PingTimeout) * time.Millisecond

	if interval <= 0 {
		interval = 25 * time.Second
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return interval + timeout
}

// EndpointURL turns the runner base URL into the websocket endpoint
func EndpointURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("failed to parse runner url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported runner url scheme %q", u.Scheme)
	}

	u.Path += "/socket.io/"
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()

	return u.String(), nil
}

// EncodeOpen builds the server handshake frame
func EncodeOpen(o OpenPacket) ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}

	return append([]byte{packetOpen}, data...), nil
}

// EncodeConnect builds the namespace connect frame. A non-empty sid makes it
// the server acknowledgement.
func EncodeConnect(sid string) []byte {
	if sid == "" {
		return []byte{packetMessage, socketConnect}
	}

	data, _ := json.Marshal(map[string]string{"sid": sid})
	return append([]byte{packetMessage, socketConnect}, data...)
}

// EncodeEvent builds an event frame: 42["name",payload]
func EncodeEvent(name string, payload any) ([]byte, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return append([]byte{packetMessage, socketEvent}, data...), nil
}

// Ping and Pong frames
var (
	PingFrame = []byte{packetPing}
	PongFrame = []byte{packetPong}
)

// decodeEvent parses the body of a socket.io event packet (after "42").
// An optional namespace and ack id are skipped.
func decodeEvent(data string) (string, json.RawMessage, error) {
	if strings.HasPrefix(data, "/") {
		idx := strings.IndexByte(data, ',')
		if idx < 0 {
			return "", nil, ErrMalformedFrame
		}
		data = data[idx+1:]
	}

	i := 0
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		i++
	}
	data = data[i:]

	var args []json.RawMessage
	if err := json.Unmarshal([]byte(data), &args); err != nil || len(args) == 0 {
		return "", nil, ErrMalformedFrame
	}

	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, ErrMalformedFrame
	}

	var payload json.RawMessage
	if len(args) > 1 {
		payload = args[1]
	}

	return name, payload, nil
}
