package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pravochat/cli/internal/config"
	model "github.com/pravochat/cli/internal/model/chat"
	"github.com/pravochat/cli/internal/token"
)

// ErrSocketClosed means an operation ran against a closed socket.
var ErrSocketClosed = errors.New("socket closed")

// Socket maintains the WebSocket to the chat backend. After an unclean
// disconnect it schedules exactly one reconnect attempt; a clean close or an
// explicit Close stays down. Close cancels a pending reconnect.
type Socket struct {
	mu       sync.Mutex
	url      string
	clientID string
	tokens   *token.Store
	dialer   *websocket.Dialer
	onFrame  func(model.ServerFrame)

	reconnectDelay time.Duration
	reconnectTimer *time.Timer
	reconnected    bool

	conn       *websocket.Conn
	connecting bool
	closed     bool
}

// NewSocket builds a socket from the given config. onFrame receives every
// decoded server frame; it runs on the read goroutine.
func NewSocket(cfg config.SocketConfig, tokens *token.Store, onFrame func(model.ServerFrame)) *Socket {
	return &Socket{
		url:      cfg.URL,
		clientID: uuid.NewString(),
		tokens:   tokens,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		onFrame:        onFrame,
		reconnectDelay: cfg.ReconnectDelay,
	}
}

// ClientID returns the per-process client identifier sent with the dial.
func (s *Socket) ClientID() string {
	return s.clientID
}

// Connected reports whether a connection is currently up.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Connect dials the backend, authenticates, and starts the read loop. A
// successful connect re-arms the single-reconnect allowance. Overlapping
// calls coalesce: while one dial is in flight, or a connection is up, the
// others return without dialing.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSocketClosed
	}
	if s.conn != nil || s.connecting {
		// A connection is already up or another Connect holds the dial.
		s.mu.Unlock()
		return nil
	}
	s.connecting = true
	s.mu.Unlock()

	conn, err := s.dial(ctx)

	s.mu.Lock()
	s.connecting = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return ErrSocketClosed
	}
	s.conn = conn
	s.reconnected = false
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// dial opens the connection and authenticates it.
func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := s.dialURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := s.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	if tok, ok := s.tokens.Get(); ok {
		if err := conn.WriteJSON(model.NewAuthFrame(tok)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("send auth frame: %w", err)
		}
	}
	return conn, nil
}

// Send writes a frame to the server.
func (s *Socket) Send(frame any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrSocketClosed
	}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close shuts the socket down for good: a pending reconnect is cancelled and
// no further attempt is made.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return conn.Close()
}

// readLoop drains the connection until it errors, dispatching every decoded
// frame. Unknown frame types are skipped.
func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(conn, err)
			return
		}

		frame, err := model.DecodeServerFrame(data)
		if err != nil {
			var unknown *model.ErrUnknownFrame
			if errors.As(err, &unknown) {
				log.Printf("[ws] skipping frame type %q", unknown.Type)
				continue
			}
			log.Printf("[ws] bad frame: %v", err)
			continue
		}

		if s.onFrame != nil {
			s.onFrame(frame)
		}
	}
}

// handleDisconnect tears down the dead connection and, for an unclean close,
// arms the one reconnect attempt.
func (s *Socket) handleDisconnect(conn *websocket.Conn, err error) {
	conn.Close()

	clean := websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	if s.closed || clean {
		s.mu.Unlock()
		if clean {
			log.Printf("[ws] connection closed cleanly")
		}
		return
	}
	if s.reconnected {
		// The one allowed attempt was already spent; stay down.
		s.mu.Unlock()
		log.Printf("[ws] connection lost again, giving up: %v", err)
		return
	}
	s.reconnected = true
	delay := s.reconnectDelay
	s.reconnectTimer = time.AfterFunc(delay, s.reconnect)
	s.mu.Unlock()

	log.Printf("[ws] connection lost (%v), reconnecting in %s", err, delay)
}

func (s *Socket) reconnect() {
	s.mu.Lock()
	s.reconnectTimer = nil
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	if err := s.Connect(context.Background()); err != nil {
		log.Printf("[ws] reconnect failed: %v", err)
	}
}

// dialURL builds the per-client endpoint under the configured socket origin.
func (s *Socket) dialURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse socket url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/chat/" + s.clientID
	return u.String(), nil
}
