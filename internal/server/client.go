package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-multilingo/internal/stats"
	"github.com/npezzotti/go-multilingo/internal/types"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	// audio units are whole recording turns, not chat lines
	maxMessageSize = 10 << 20
	audioQueueSize = 16
)

type closeFrame struct {
	code   int
	reason string
}

// Client is one participant's transport. The write pump is the only writer
// on the conn; the read pump is the only reader. A connection is bound to
// its room at connect time but joins it only after the join message, which
// must be the first inbound frame.
type Client struct {
	conn   *websocket.Conn
	server *RoomServer
	log    *log.Logger
	stats  stats.StatsProvider
	user   types.User
	room   *Room
	joined bool

	send      chan *ServerMessage
	closeReq  chan closeFrame
	audioChan chan []byte
	stop      chan struct{}
	stopOnce  sync.Once
	audioOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, rs *RoomServer, room *Room, l *log.Logger, sp stats.StatsProvider) *Client {
	return &Client{
		conn:      conn,
		server:    rs,
		room:      room,
		log:       l,
		stats:     sp,
		user:      user,
		send:      make(chan *ServerMessage, 256),
		closeReq:  make(chan closeFrame, 1),
		audioChan: make(chan []byte, audioQueueSize),
		stop:      make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := c.serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case cf := <-c.closeReq:
			// events queued before the close request must still go out,
			// a session_ended in particular
			c.flushSend()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(cf.code, cf.reason))
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		mt, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		if mt == websocket.BinaryMessage {
			if !c.joined {
				c.requestClose(websocket.ClosePolicyViolation, "audio before join")
				break
			}

			c.enqueueAudio(raw)
			continue
		}

		msg, err := parseClientMessage(raw)
		if err != nil {
			c.log.Println("protocol violation:", err)
			c.requestClose(websocket.ClosePolicyViolation, "invalid message")
			break
		}

		msg.client = c
		msg.timestamp = Now()

		if !c.joined && msg.Type != TypeJoin {
			c.log.Printf("%q before join from user %d", msg.Type, c.user.Id)
			c.requestClose(websocket.ClosePolicyViolation, "join required")
			break
		}

		// inbound identity must match the authenticated one
		if msg.UserId != c.user.Id {
			c.log.Printf("user id mismatch: got %d, authenticated as %d", msg.UserId, c.user.Id)
			c.requestClose(websocket.ClosePolicyViolation, "user id mismatch")
			break
		}

		switch msg.Type {
		case TypeJoin:
			c.joined = true
			c.room.joinChan <- msg
			c.audioOnce.Do(func() { go c.processAudio() })
		case TypeLeave:
			c.room.leaveChan <- msg
		case TypeLanguageChange, TypeSpeakingStatus:
			select {
			case c.room.statusChan <- msg:
			default:
				c.log.Printf("statusChan full for room %q", c.room.externalId)
			}
		case TypeEndSession:
			c.room.endChan <- msg
		}
	}
}

// enqueueAudio buffers one finalized unit for the per-speaker worker.
// Dropping on overload is a transient, silent outcome.
func (c *Client) enqueueAudio(unit []byte) {
	select {
	case c.audioChan <- unit:
	default:
		c.stats.Incr(stats.UnitsDropped)
		c.log.Printf("audio queue full for user %d, dropping unit", c.user.Id)
	}
}

// processAudio is the per-speaker worker: units are processed strictly in
// arrival order, and each unit's dispatch completes before the next unit
// starts, so a speaker's transcript never reorders.
func (c *Client) processAudio() {
	for {
		select {
		case unit := <-c.audioChan:
			c.processUnit(unit)
		case <-c.stop:
			return
		}
	}
}

func (c *Client) processUnit(unit []byte) {
	roster, ok := c.room.snapshotRoster()
	if !ok {
		c.log.Printf("roster snapshot unavailable for room %q, dropping unit", c.room.externalId)
		c.stats.Incr(stats.UnitsDropped)
		return
	}

	messages, ok := c.server.pipeline.Process(context.Background(), c.room.id, c.user.Id, roster, unit)
	if !ok {
		return
	}

	done := make(chan struct{})
	select {
	case c.room.dispatchChan <- &dispatchReq{messages: messages, done: done}:
	case <-c.stop:
		return
	}

	select {
	case <-done:
	case <-c.stop:
	}
}

// flushSend writes out whatever is already queued on the send channel.
func (c *Client) flushSend() {
	for {
		select {
		case msg := <-c.send:
			bytes, err := c.serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// requestClose asks the write pump to send a close frame and shut the
// connection down.
func (c *Client) requestClose(code int, reason string) {
	select {
	case c.closeReq <- closeFrame{code: code, reason: reason}:
	default:
	}
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.server.DeregisterClient(c)
	if c.joined {
		c.room.leaveChan <- &ClientMessage{
			Type:   TypeLeave,
			UserId: c.user.Id,
			client: c,
		}
	}
	c.stopClient()
}
