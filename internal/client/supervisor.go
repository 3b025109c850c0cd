package client

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-multilingo/internal/server"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
	writeWait      = 10 * time.Second
	eventBuffer    = 64
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrNotJoined     = errors.New("not joined to a room")
	ErrRoomNotFound  = errors.New("room not found")
)

type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateJoined
)

// SessionConfig carries everything needed to join a room and keep the
// connection alive.
type SessionConfig struct {
	URL         string // websocket endpoint, e.g. ws://host:8000/ws
	Token       string // session cookie value from /api/auth/login
	RoomId      string
	UserId      int
	UserName    string
	Language    string
	TranslateTo string
}

// Session maintains a live room connection, transparently reconnecting and
// re-joining when the transport drops. Server events are delivered in order
// on Events. The session is terminal once the room session ends, the room
// is not found, or Close is called; Events is closed at that point and Err
// reports why.
type Session struct {
	cfg    SessionConfig
	log    *log.Logger
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	state  atomic.Int32
	events chan *server.ServerMessage
	done   chan struct{}
	once   sync.Once

	errMu sync.Mutex
	err   error
}

func NewSession(cfg SessionConfig, logger *log.Logger) (*Session, error) {
	if cfg.URL == "" || cfg.RoomId == "" || cfg.UserId == 0 || cfg.UserName == "" {
		return nil, fmt.Errorf("incomplete session config")
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.TranslateTo == "" {
		cfg.TranslateTo = cfg.Language
	}

	s := &Session{
		cfg:    cfg,
		log:    logger,
		dialer: websocket.DefaultDialer,
		events: make(chan *server.ServerMessage, eventBuffer),
		done:   make(chan struct{}),
	}

	go s.supervise()

	return s, nil
}

// Events yields server messages in arrival order. The channel is closed
// when the session becomes terminal.
func (s *Session) Events() <-chan *server.ServerMessage {
	return s.events
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Err reports why the session ended. Valid after Events is closed.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// supervise owns the connect/join/read cycle. Each pass dials, replays the
// join, then reads until the transport fails or a terminal event arrives.
func (s *Session) supervise() {
	defer close(s.events)

	backoff := initialBackoff
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.state.Store(int32(StateConnecting))

		conn, err := s.dial()
		if err != nil {
			s.log.Printf("dial: %v", err)
			if !s.sleep(backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		s.mu.Lock()
		s.conn = conn
		translateTo := s.cfg.TranslateTo
		s.mu.Unlock()

		if err := s.write(&server.ClientMessage{
			Type:        server.TypeJoin,
			UserId:      s.cfg.UserId,
			UserName:    s.cfg.UserName,
			Language:    s.cfg.Language,
			TranslateTo: translateTo,
		}); err != nil {
			s.log.Printf("join: %v", err)
			conn.Close()
		} else {
			backoff = initialBackoff
			terminal := s.readLoop(conn)
			conn.Close()
			if terminal {
				s.Close()
				return
			}
		}

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		s.state.Store(int32(StateDisconnected))

		if !s.sleep(backoff) {
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (s *Session) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if s.cfg.Token != "" {
		header.Add("Cookie", (&http.Cookie{Name: "token", Value: s.cfg.Token}).String())
	}

	conn, _, err := s.dialer.Dial(s.cfg.URL+"?room_id="+s.cfg.RoomId, header)
	return conn, err
}

// readLoop consumes server messages until the connection dies. It reports
// whether the failure is terminal, in which case the supervisor must not
// reconnect.
func (s *Session) readLoop(conn *websocket.Conn) bool {
	for {
		var msg server.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == server.CloseNotFound {
				s.setErr(ErrRoomNotFound)
				return true
			}
			s.log.Printf("read: %v", err)
			return false
		}

		if msg.Type == server.TypeParticipantsList {
			s.state.Store(int32(StateJoined))
		}

		select {
		case s.events <- &msg:
		case <-s.done:
			return true
		}

		if msg.Type == server.TypeSessionEnded {
			return true
		}
	}
}

// sleep waits for d unless the session is closed first.
func (s *Session) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) write(msg *server.ClientMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotJoined
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

// SendAudio ships one finalized WAV unit as a binary frame.
func (s *Session) SendAudio(unit []byte) error {
	if s.State() != StateJoined {
		return ErrNotJoined
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotJoined
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, unit)
}

// SetLanguage changes the transcript language this participant receives.
// The new preference is carried on subsequent rejoins as well.
func (s *Session) SetLanguage(translateTo string) error {
	s.mu.Lock()
	s.cfg.TranslateTo = translateTo
	s.mu.Unlock()

	return s.write(&server.ClientMessage{
		Type:        server.TypeLanguageChange,
		UserId:      s.cfg.UserId,
		TranslateTo: translateTo,
	})
}

func (s *Session) SetSpeaking(speaking bool) error {
	return s.write(&server.ClientMessage{
		Type:       server.TypeSpeakingStatus,
		UserId:     s.cfg.UserId,
		IsSpeaking: speaking,
	})
}

// EndSession asks the server to end the room session for everyone. Only
// honored for the room creator.
func (s *Session) EndSession() error {
	return s.write(&server.ClientMessage{
		Type:   server.TypeEndSession,
		UserId: s.cfg.UserId,
	})
}

// Leave announces departure without tearing down the supervisor.
func (s *Session) Leave() error {
	return s.write(&server.ClientMessage{
		Type:   server.TypeLeave,
		UserId: s.cfg.UserId,
	})
}

// Close ends the session permanently.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.setErr(ErrSessionClosed)
		close(s.done)

		s.mu.Lock()
		if s.conn != nil {
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()

		s.state.Store(int32(StateDisconnected))
	})

	return nil
}
