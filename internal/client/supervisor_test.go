package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-multilingo/internal/server"
	"github.com/npezzotti/go-multilingo/internal/testutil"
	"github.com/npezzotti/go-multilingo/internal/types"
	"github.com/stretchr/testify/assert"
)

// fakeRoomServer accepts websocket connections and hands them to the test
// so it can script the server side of the protocol.
type fakeRoomServer struct {
	ts    *httptest.Server
	conns chan *websocket.Conn
}

func newFakeRoomServer(t *testing.T) *fakeRoomServer {
	t.Helper()

	f := &fakeRoomServer{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	f.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		f.conns <- conn
	}))
	t.Cleanup(f.ts.Close)

	return f
}

func (f *fakeRoomServer) url() string {
	return "ws" + strings.TrimPrefix(f.ts.URL, "http")
}

// accept waits for the next client connection.
func (f *fakeRoomServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()

	select {
	case conn := <-f.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

// expectJoin reads one message off conn and asserts it is the join replay.
func expectJoin(t *testing.T, conn *websocket.Conn) *server.ClientMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg server.ClientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read join: %v", err)
	}
	assert.Equal(t, server.TypeJoin, msg.Type)
	return &msg
}

func sendRoster(t *testing.T, conn *websocket.Conn, participants ...types.Participant) {
	t.Helper()

	err := conn.WriteJSON(&server.ServerMessage{
		Type:         server.TypeParticipantsList,
		Timestamp:    server.Now(),
		Participants: participants,
	})
	assert.NoError(t, err)
}

func testSessionConfig(url string) SessionConfig {
	return SessionConfig{
		URL:      url,
		RoomId:   "test-room",
		UserId:   1,
		UserName: "alice",
		Language: "en",
	}
}

func waitEvent(t *testing.T, s *Session, wantType string) *server.ServerMessage {
	t.Helper()

	select {
	case msg, ok := <-s.Events():
		if !ok {
			t.Fatalf("events closed while waiting for %s", wantType)
		}
		assert.Equal(t, wantType, msg.Type)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", wantType)
		return nil
	}
}

func TestNewSession(t *testing.T) {
	t.Run("rejects incomplete config", func(t *testing.T) {
		_, err := NewSession(SessionConfig{URL: "ws://localhost/ws"}, testutil.TestLogger(t))
		assert.Error(t, err)
	})

	t.Run("translate target defaults to spoken language", func(t *testing.T) {
		f := newFakeRoomServer(t)

		cfg := testSessionConfig(f.url())
		cfg.Language = "fr"
		s, err := NewSession(cfg, testutil.TestLogger(t))
		assert.NoError(t, err)
		defer s.Close()

		conn := f.accept(t)
		defer conn.Close()

		join := expectJoin(t, conn)
		assert.Equal(t, "fr", join.TranslateTo)
	})
}

func TestSession_joinAndEvents(t *testing.T) {
	f := newFakeRoomServer(t)

	s, err := NewSession(testSessionConfig(f.url()), testutil.TestLogger(t))
	assert.NoError(t, err)
	defer s.Close()

	conn := f.accept(t)
	defer conn.Close()

	join := expectJoin(t, conn)
	assert.Equal(t, 1, join.UserId)
	assert.Equal(t, "alice", join.UserName)

	sendRoster(t, conn, types.Participant{UserId: 1, UserName: "alice", Language: "en", TranslateTo: "en", Online: true})

	msg := waitEvent(t, s, server.TypeParticipantsList)
	assert.Len(t, msg.Participants, 1)
	assert.Equal(t, StateJoined, s.State())
}

func TestSession_reconnectReplaysJoin(t *testing.T) {
	f := newFakeRoomServer(t)

	s, err := NewSession(testSessionConfig(f.url()), testutil.TestLogger(t))
	assert.NoError(t, err)
	defer s.Close()

	conn := f.accept(t)
	expectJoin(t, conn)
	sendRoster(t, conn, types.Participant{UserId: 1, UserName: "alice", Online: true})
	waitEvent(t, s, server.TypeParticipantsList)

	// drop the transport without a close frame
	conn.Close()

	conn2 := f.accept(t)
	defer conn2.Close()

	join := expectJoin(t, conn2)
	assert.Equal(t, 1, join.UserId, "expected join to be replayed on reconnect")

	sendRoster(t, conn2, types.Participant{UserId: 1, UserName: "alice", Online: true})
	waitEvent(t, s, server.TypeParticipantsList)
	assert.Equal(t, StateJoined, s.State())
}

func TestSession_languageChangeSurvivesReconnect(t *testing.T) {
	f := newFakeRoomServer(t)

	s, err := NewSession(testSessionConfig(f.url()), testutil.TestLogger(t))
	assert.NoError(t, err)
	defer s.Close()

	conn := f.accept(t)
	expectJoin(t, conn)
	sendRoster(t, conn, types.Participant{UserId: 1, UserName: "alice", Online: true})
	waitEvent(t, s, server.TypeParticipantsList)

	assert.NoError(t, s.SetLanguage("de"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg server.ClientMessage
	assert.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, server.TypeLanguageChange, msg.Type)
	assert.Equal(t, "de", msg.TranslateTo)

	conn.Close()

	conn2 := f.accept(t)
	defer conn2.Close()

	join := expectJoin(t, conn2)
	assert.Equal(t, "de", join.TranslateTo, "expected updated preference in the join replay")
}

func TestSession_sendAudio(t *testing.T) {
	f := newFakeRoomServer(t)

	s, err := NewSession(testSessionConfig(f.url()), testutil.TestLogger(t))
	assert.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.SendAudio([]byte{1, 2, 3}), ErrNotJoined, "expected audio to be rejected before join")

	conn := f.accept(t)
	defer conn.Close()
	expectJoin(t, conn)
	sendRoster(t, conn, types.Participant{UserId: 1, UserName: "alice", Online: true})
	waitEvent(t, s, server.TypeParticipantsList)

	assert.NoError(t, s.SendAudio([]byte{1, 2, 3}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	assert.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestSession_sessionEndedIsTerminal(t *testing.T) {
	f := newFakeRoomServer(t)

	s, err := NewSession(testSessionConfig(f.url()), testutil.TestLogger(t))
	assert.NoError(t, err)
	defer s.Close()

	conn := f.accept(t)
	defer conn.Close()
	expectJoin(t, conn)
	sendRoster(t, conn, types.Participant{UserId: 1, UserName: "alice", Online: true})
	waitEvent(t, s, server.TypeParticipantsList)

	assert.NoError(t, conn.WriteJSON(&server.ServerMessage{
		Type:      server.TypeSessionEnded,
		Timestamp: server.Now(),
		EndedBy:   "alice",
	}))

	waitEvent(t, s, server.TypeSessionEnded)

	select {
	case _, ok := <-s.Events():
		assert.False(t, ok, "expected events channel to close after session end")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events to close")
	}

	select {
	case conn := <-f.conns:
		conn.Close()
		t.Fatal("expected no reconnect after session end")
	case <-time.After(250 * time.Millisecond):
	}
}

func TestSession_notFoundIsTerminal(t *testing.T) {
	f := newFakeRoomServer(t)

	s, err := NewSession(testSessionConfig(f.url()), testutil.TestLogger(t))
	assert.NoError(t, err)
	defer s.Close()

	conn := f.accept(t)
	expectJoin(t, conn)

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(server.CloseNotFound, "room not found"), time.Now().Add(time.Second))
	conn.Close()

	select {
	case _, ok := <-s.Events():
		assert.False(t, ok, "expected events channel to close")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events to close")
	}

	assert.ErrorIs(t, s.Err(), ErrRoomNotFound)

	select {
	case conn := <-f.conns:
		conn.Close()
		t.Fatal("expected no reconnect after not found close")
	case <-time.After(250 * time.Millisecond):
	}
}

func TestSession_close(t *testing.T) {
	f := newFakeRoomServer(t)

	s, err := NewSession(testSessionConfig(f.url()), testutil.TestLogger(t))
	assert.NoError(t, err)

	conn := f.accept(t)
	defer conn.Close()
	expectJoin(t, conn)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "expected close to be idempotent")

	select {
	case _, ok := <-s.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events to close")
	}

	assert.Equal(t, StateDisconnected, s.State())
	assert.ErrorIs(t, s.Err(), ErrSessionClosed)
}
