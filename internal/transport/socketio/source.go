package socketio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/transport"
)

const sourceName = "socketio"

// Config holds the event stream connection settings
type Config struct {
	// RunnerURL is the runner base URL, e.g. http://localhost:5001
	RunnerURL string
	// APIToken is sent as a bearer token during the websocket handshake
	APIToken string
	// HandshakeTimeout bounds dialing and the namespace connect
	HandshakeTimeout time.Duration
	Backoff          transport.Backoff
	Logger           logrus.FieldLogger
}

// Source is a reconnecting Socket.IO event source
type Source struct {
	endpoint         string
	header           http.Header
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	backoff          transport.Backoff
	log              logrus.FieldLogger
}

// New creates a Source for the runner in cfg
func New(cfg Config) (*Source, error) {
	endpoint, err := EndpointURL(cfg.RunnerURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if cfg.APIToken != "" {
		header.Set("Authorization", "Bearer "+cfg.APIToken)
	}

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	backoff := cfg.Backoff
	if backoff.Initial <= 0 {
		backoff = transport.DefaultBackoff()
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Source{
		endpoint:         endpoint,
		header:           header,
		dialer:           &websocket.Dialer{HandshakeTimeout: timeout, Proxy: http.ProxyFromEnvironment},
		handshakeTimeout: timeout,
		backoff:          backoff,
		log:              log.WithField("component", "socketio"),
	}, nil
}

// Name implements transport.Source
func (s *Source) Name() string {
	return sourceName
}

// Run connects and delivers events until ctx ends. Connection loss is
// reported downstream and followed by a reconnect with backoff.
func (s *Source) Run(ctx context.Context, out chan<- transport.Event) error {
	policy := s.backoff.Policy()

	for {
		connected, err := s.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}

		if connected {
			policy.Reset()
			if !transport.Emit(ctx, out, transport.Disconnected(sourceName, err)) {
				return nil
			}
		}

		delay := policy.NextBackOff()

		s.log.WithError(err).WithField("retry_in", delay).Warn("event stream unavailable")

		if !transport.Sleep(ctx, delay) {
			return nil
		}
	}
}

// session runs one connection. connected reports whether the namespace
// handshake completed, so the caller knows a disconnect must be announced.
func (s *Source) session(ctx context.Context, out chan<- transport.Event) (connected bool, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	conn, _, err := s.dialer.DialContext(dialCtx, s.endpoint, s.header)
	cancel()
	if err != nil {
		return false, fmt.Errorf("failed to dial %s: %w", s.endpoint, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer func() {
		stop()
		_ = conn.Close()
	}()

	open, err := s.handshake(conn)
	if err != nil {
		return false, err
	}

	s.log.WithField("sid", open.SID).Info("connected to runner")

	if !transport.Emit(ctx, out, transport.Connected()) {
		return true, ctx.Err()
	}

	return true, s.readLoop(ctx, conn, open.Deadline(), out)
}

func (s *Source) handshake(conn *websocket.Conn) (OpenPacket, error) {
	var open OpenPacket

	_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		return open, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	if len(data) == 0 || data[0] != packetOpen {
		return open, fmt.Errorf("%w: expected open packet, got %q", ErrHandshake, data)
	}

	if err := json.Unmarshal(data[1:], &open); err != nil {
		return open, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, EncodeConnect("")); err != nil {
		return open, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return open, fmt.Errorf("%w: %v", ErrHandshake, err)
		}

		if len(data) == 1 && data[0] == packetPing {
			if err := conn.WriteMessage(websocket.TextMessage, PongFrame); err != nil {
				return open, fmt.Errorf("%w: %v", ErrHandshake, err)
			}
			continue
		}

		if len(data) < 2 || data[0] != packetMessage {
			continue
		}

		switch data[1] {
		case socketConnect:
			return open, nil
		case socketConnectError:
			return open, fmt.Errorf("%w: namespace refused: %s", ErrHandshake, data[2:])
		}
	}
}

func (s *Source) readLoop(ctx context.Context, conn *websocket.Conn, deadline time.Duration, out chan<- transport.Event) error {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(deadline))

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if len(data) == 0 {
			continue
		}

		switch data[0] {
		case packetPing:
			if err := conn.WriteMessage(websocket.TextMessage, PongFrame); err != nil {
				return err
			}
		case packetClose:
			return ErrServerClosed
		case packetNoop, packetPong, packetOpen:
		case packetMessage:
			ev, ok, err := s.decode(data[1:])
			if err != nil {
				return err
			}
			if ok && !transport.Emit(ctx, out, ev) {
				return ctx.Err()
			}
		default:
			s.log.WithField("frame", string(data)).Debug("ignoring unknown engine.io packet")
		}
	}
}

// decode handles a socket.io packet. ok is false for packets that carry no event.
func (s *Source) decode(data []byte) (transport.Event, bool, error) {
	if len(data) == 0 {
		return transport.Event{}, false, nil
	}

	switch data[0] {
	case socketEvent:
		name, payload, err := decodeEvent(string(data[1:]))
		if err != nil {
			s.log.WithError(err).WithField("frame", string(data)).Warn("dropping malformed event")
			return transport.Event{}, false, nil
		}
		return transport.Event{Name: name, Payload: payload}, true, nil
	case socketDisconnect:
		return transport.Event{}, false, ErrServerClosed
	default:
		return transport.Event{}, false, nil
	}
}
