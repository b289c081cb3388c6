package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrServerDisconnect is returned when the server closes the namespace.
// Such a disconnect is deliberate and is not retried.
var ErrServerDisconnect = errors.New("server disconnected the namespace")

// socket is one Engine.IO websocket session joined to a namespace.
type socket struct {
	conn      *websocket.Conn
	namespace string
	handshake Handshake
	sid       string

	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

// SocketURL converts a backend base URL into the Engine.IO websocket
// endpoint. ws:// and wss:// URLs with a path are used as given.
func SocketURL(raw, path string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid socket URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported socket URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("socket URL %q has no host", raw)
	}

	if path == "" {
		path = "/socket.io/"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = path
	}

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dialSocket opens the websocket, reads the open packet and joins namespace.
func dialSocket(ctx context.Context, dialer *websocket.Dialer, endpoint, namespace string, header http.Header, auth interface{}) (*socket, error) {
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	s := &socket{conn: conn, namespace: namespace, closed: make(chan struct{})}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	// unblock handshake reads if ctx is cancelled
	stopWatch := context.AfterFunc(ctx, func() { conn.Close() })

	if err := s.readOpen(); err != nil {
		conn.Close()
		return nil, err
	}

	connect, err := encodeConnect(namespace, auth)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.write(connect); err != nil {
		conn.Close()
		return nil, err
	}

	if err := s.awaitConnect(); err != nil {
		conn.Close()
		return nil, err
	}

	if !stopWatch() {
		return nil, ctx.Err()
	}
	_ = conn.SetReadDeadline(time.Time{})
	return s, nil
}

func (s *socket) readOpen() error {
	msg, err := s.read()
	if err != nil {
		return fmt.Errorf("reading open packet: %w", err)
	}
	if msg == "" || msg[0] != engineOpen {
		return fmt.Errorf("expected engine.io open packet, got %q", truncate(msg))
	}
	if err := json.Unmarshal([]byte(msg[1:]), &s.handshake); err != nil {
		return fmt.Errorf("invalid open packet: %w", err)
	}
	return nil
}

// awaitConnect waits for the namespace connect ack, answering pings meanwhile.
func (s *socket) awaitConnect() error {
	for {
		msg, err := s.read()
		if err != nil {
			return fmt.Errorf("waiting for namespace connect: %w", err)
		}
		if msg == "" {
			continue
		}

		switch msg[0] {
		case enginePing:
			if err := s.write(string(enginePong)); err != nil {
				return err
			}
		case engineMessage:
			p, err := DecodePacket(msg[1:])
			if err != nil {
				return err
			}
			if p.Namespace != s.nspOrRoot() {
				continue
			}
			switch p.Type {
			case socketConnect:
				var ack struct {
					SID string `json:"sid"`
				}
				_ = json.Unmarshal(p.Data, &ack)
				s.sid = ack.SID
				return nil
			case socketConnectError:
				return fmt.Errorf("namespace %s refused connection: %s", s.nspOrRoot(), connectError(p))
			}
		case engineClose:
			return fmt.Errorf("server closed the session during connect")
		}
	}
}

// run reads frames until the connection ends, dispatching events to onEvent.
// It returns ErrServerDisconnect for a server-initiated namespace disconnect.
func (s *socket) run(onEvent func(p *Packet), onFrame func()) error {
	timeout := s.heartbeatTimeout()

	for {
		if timeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
		}
		msg, err := s.read()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
			}
			return err
		}
		if onFrame != nil {
			onFrame()
		}
		if msg == "" {
			continue
		}

		switch msg[0] {
		case enginePing:
			if err := s.write(string(enginePong)); err != nil {
				return err
			}
		case engineClose:
			return fmt.Errorf("engine.io session closed by server")
		case engineMessage:
			p, err := DecodePacket(msg[1:])
			if err != nil {
				// a malformed frame is dropped; the session stays up
				continue
			}
			if p.Namespace != s.nspOrRoot() {
				continue
			}
			switch p.Type {
			case socketEvent:
				onEvent(p)
			case socketDisconnect:
				return ErrServerDisconnect
			}
		}
	}
}

// heartbeatTimeout is how long the connection may stay silent before it is
// considered dead: one ping interval plus the ping timeout.
func (s *socket) heartbeatTimeout() time.Duration {
	if s.handshake.PingInterval <= 0 {
		return 0
	}
	return time.Duration(s.handshake.PingInterval+s.handshake.PingTimeout) * time.Millisecond
}

func (s *socket) emit(event string, args ...interface{}) error {
	frame, err := EncodeEvent(s.namespace, event, args...)
	if err != nil {
		return err
	}
	return s.write(frame)
}

func (s *socket) read() (string, error) {
	kind, data, err := s.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	if kind != websocket.TextMessage {
		return "", nil
	}
	return string(data), nil
}

func (s *socket) write(frame string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// close leaves the namespace and closes the websocket
func (s *socket) close() {
	s.once.Do(func() {
		close(s.closed)
		_ = s.write(encodeDisconnect(s.namespace))
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

func (s *socket) nspOrRoot() string {
	if s.namespace == "" {
		return "/"
	}
	return s.namespace
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return strings.TrimSpace(s)
}
