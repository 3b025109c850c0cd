package server

import (
	"log"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-multilingo/internal/database"
	"github.com/npezzotti/go-multilingo/internal/stats"
	"github.com/npezzotti/go-multilingo/internal/types"
)

const idleRoomTimeout = time.Minute

type exitReq struct {
	done chan string
}

type unloadRoomRequest struct {
	roomId string
}

// rosterReq asks the room loop for a snapshot of its participants. The
// reply is a copy, so callers never hold the room's state across blocking
// engine calls.
type rosterReq struct {
	reply chan rosterSnapshot
}

type rosterSnapshot struct {
	participants []types.Participant
	creatorId    int
}

// dispatchReq carries the personalized variants of one transcript unit.
// The room queues every variant before acknowledging, so a unit is never
// interleaved with the next one from the same speaker.
type dispatchReq struct {
	messages map[int]*ServerMessage
	done     chan struct{}
}

// Room owns the authoritative participant set for one session. All
// mutations flow through the start loop: single writer, no locks held
// during network I/O.
type Room struct {
	id         int
	externalId string
	name       string
	creatorId  int

	// participants are never deleted while the room lives; leave only
	// marks them offline so late history stays attributable
	participants map[int]*types.Participant
	// at most one open transport per participant
	clients map[int]*Client

	rs           *RoomServer
	joinChan     chan *ClientMessage
	leaveChan    chan *ClientMessage
	statusChan   chan *ClientMessage
	endChan      chan *ClientMessage
	dispatchChan chan *dispatchReq
	rosterChan   chan rosterReq
	log          *log.Logger
	stats        stats.StatsProvider
	// killTimer unloads the room once no transports remain
	killTimer *time.Timer
	exit      chan exitReq
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.externalId)
	// armed only once the last transport is gone; a freshly loaded room
	// still has its first connector's join in flight
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.statusChan:
			switch msg.Type {
			case TypeLanguageChange:
				r.handleLanguageChange(msg)
			case TypeSpeakingStatus:
				r.handleSpeakingStatus(msg)
			}
		case msg := <-r.endChan:
			r.handleEndSession(msg)
		case req := <-r.dispatchChan:
			r.handleDispatch(req)
		case req := <-r.rosterChan:
			req.reply <- rosterSnapshot{
				participants: r.snapshotParticipants(),
				creatorId:    r.creatorId,
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client

	// a reconnect must retire the stale transport before the new one is
	// admitted
	if stale, ok := r.clients[join.UserId]; ok && stale != c {
		r.log.Printf("retiring stale transport for user %d in room %q", join.UserId, r.externalId)
		stale.requestClose(websocket.CloseNormalClosure, "superseded by new connection")
	}
	r.clients[join.UserId] = c

	p, ok := r.participants[join.UserId]
	if !ok {
		translateTo := join.TranslateTo
		if translateTo == "" {
			translateTo = join.Language
		}

		p = &types.Participant{
			UserId:      join.UserId,
			UserName:    join.UserName,
			Language:    join.Language,
			TranslateTo: translateTo,
		}
		r.participants[join.UserId] = p

		// persistence is best-effort; the live roster is authoritative
		go func(params database.AddParticipantParams) {
			if err := r.rs.db.AddParticipant(params); err != nil {
				r.log.Println("AddParticipant:", err)
			}
		}(database.AddParticipantParams{
			AccountId:   p.UserId,
			RoomId:      r.id,
			Language:    p.Language,
			TranslateTo: p.TranslateTo,
		})
	}
	p.Online = true
	p.IsSpeaking = false

	// answer the joining transport with the full roster, then tell the rest
	c.queueMessage(newParticipantsList(r.snapshotParticipants(), r.creatorId))
	r.broadcast(newParticipantJoined(*p), c)
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	p, ok := r.participants[leaveMsg.UserId]
	if !ok {
		r.log.Printf("leave for unknown participant %d in room %q", leaveMsg.UserId, r.externalId)
		return
	}

	// a stale transport's cleanup must not kick out a fresh one
	if c, ok := r.clients[leaveMsg.UserId]; ok && (leaveMsg.client == nil || c == leaveMsg.client) {
		delete(r.clients, leaveMsg.UserId)
	} else if ok {
		return
	}

	p.Online = false
	p.IsSpeaking = false

	r.broadcast(newParticipantLeft(p.UserId), leaveMsg.client)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.externalId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleLanguageChange(msg *ClientMessage) {
	p, ok := r.participants[msg.UserId]
	if !ok {
		r.log.Printf("language change for unknown participant %d in room %q", msg.UserId, r.externalId)
		if msg.client != nil {
			msg.client.requestClose(CloseNotFound, "participant not found")
		}
		return
	}

	// future roster snapshots see the new target immediately; in-flight
	// units keep the snapshot captured before their engine calls
	p.TranslateTo = msg.TranslateTo

	go func(userId, roomId int, translateTo string) {
		if err := r.rs.db.UpdateParticipantLanguage(userId, roomId, translateTo); err != nil {
			r.log.Println("UpdateParticipantLanguage:", err)
		}
	}(msg.UserId, r.id, msg.TranslateTo)
}

func (r *Room) handleSpeakingStatus(msg *ClientMessage) {
	p, ok := r.participants[msg.UserId]
	if !ok {
		r.log.Printf("speaking status for unknown participant %d in room %q", msg.UserId, r.externalId)
		if msg.client != nil {
			msg.client.requestClose(CloseNotFound, "participant not found")
		}
		return
	}

	p.IsSpeaking = msg.IsSpeaking
	r.broadcast(newSpeakingStatus(p.UserId, p.IsSpeaking), nil)
}

// handleEndSession ends the session for everyone. Only the creator may end
// it; requests from anyone else are dropped without a broadcast. The room
// record survives for historical queries.
func (r *Room) handleEndSession(msg *ClientMessage) {
	if msg.UserId != r.creatorId {
		r.log.Printf("end_session from non-creator %d in room %q", msg.UserId, r.externalId)
		if msg.client != nil {
			msg.client.requestClose(websocket.ClosePolicyViolation, "only the creator can end the session")
		}
		return
	}

	endedBy := ""
	if p, ok := r.participants[msg.UserId]; ok {
		endedBy = p.UserName
	}

	r.log.Printf("creator %q ended session in room %q", endedBy, r.externalId)
	r.broadcast(newSessionEnded(endedBy), nil)

	for userId, c := range r.clients {
		c.requestClose(websocket.CloseNormalClosure, "session ended")
		delete(r.clients, userId)
		if p, ok := r.participants[userId]; ok {
			p.Online = false
			p.IsSpeaking = false
		}
	}

	r.killTimer.Reset(idleRoomTimeout)
}

// handleDispatch delivers the personalized variants of one unit. All
// variants are queued before done is closed, which is what keeps a
// speaker's units from interleaving.
func (r *Room) handleDispatch(req *dispatchReq) {
	for userId, msg := range req.messages {
		c, ok := r.clients[userId]
		if !ok {
			// best-effort delivery: a closed transport misses the event
			continue
		}

		if c.queueMessage(msg) {
			r.stats.Incr(stats.MessagesSent)
		}
	}

	if req.done != nil {
		close(req.done)
	}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.externalId)
	select {
	case r.rs.unloadRoomChan <- unloadRoomRequest{roomId: r.externalId}:
	default:
		r.log.Printf("unload channel full for room %q, retrying later", r.externalId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.externalId)

	for userId, c := range r.clients {
		c.requestClose(websocket.CloseGoingAway, "server shutting down")
		delete(r.clients, userId)
	}

	if e.done != nil {
		e.done <- r.externalId
	}
}

// snapshotParticipants returns a copy ordered by user id.
func (r *Room) snapshotParticipants() []types.Participant {
	participants := make([]types.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		participants = append(participants, *p)
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].UserId < participants[j].UserId
	})

	return participants
}

// snapshotRoster is called from pipeline goroutines; it round-trips through
// the room loop so reads never race mutations.
func (r *Room) snapshotRoster() ([]types.Participant, bool) {
	req := rosterReq{reply: make(chan rosterSnapshot, 1)}
	select {
	case r.rosterChan <- req:
	case <-time.After(time.Second):
		return nil, false
	}

	select {
	case snap := <-req.reply:
		return snap.participants, true
	case <-time.After(time.Second):
		return nil, false
	}
}

// broadcast sends a presence or status event verbatim to every open
// transport except skip.
func (r *Room) broadcast(msg *ServerMessage, skip *Client) {
	for _, client := range r.clients {
		if client == skip {
			continue
		}

		client.queueMessage(msg)
	}
}
