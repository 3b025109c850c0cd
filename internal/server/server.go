package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/npezzotti/go-multilingo/internal/database"
	"github.com/npezzotti/go-multilingo/internal/stats"
	"github.com/npezzotti/go-multilingo/internal/types"
)

var ErrRoomNotFound = errors.New("room not found")

type connectReq struct {
	roomExternalId string
	client         *Client
	reply          chan error
}

// RoomServer loads rooms on demand and owns their lifecycle. The rooms map
// is touched only by the Run loop.
type RoomServer struct {
	log      *log.Logger
	db       database.MultilingoRepository
	stats    stats.StatsProvider
	pipeline *Pipeline

	clients     map[*Client]struct{}
	clientsLock sync.Mutex

	rooms          map[string]*Room
	connectChan    chan *connectReq
	unloadRoomChan chan unloadRoomRequest
	stop           chan struct{}
	done           chan struct{}
}

func NewRoomServer(logger *log.Logger, db database.MultilingoRepository, sp stats.StatsProvider, pipeline *Pipeline) (*RoomServer, error) {
	return &RoomServer{
		log:            logger,
		db:             db,
		stats:          sp,
		pipeline:       pipeline,
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		connectChan:    make(chan *connectReq),
		unloadRoomChan: make(chan unloadRoomRequest, 16),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

func (rs *RoomServer) Run() {
	for {
		select {
		case req := <-rs.connectChan:
			req.reply <- rs.handleConnect(req)
		case unload := <-rs.unloadRoomChan:
			rs.unloadRoom(unload.roomId)
		case <-rs.stop:
			rs.log.Println("shutting down rooms")
			for _, r := range rs.rooms {
				rs.log.Println("shutting down room", r.externalId)
				done := make(chan string, 1)
				r.exit <- exitReq{done: done}
				<-done
				rs.stats.Decr(stats.ActiveRooms)
			}

			close(rs.done)
			return
		}
	}
}

// handleConnect binds a client's transport to a room, loading the room from
// the database on first use. Known participants are preloaded offline so a
// reconnecting user keeps their language preferences.
func (rs *RoomServer) handleConnect(req *connectReq) error {
	room, ok := rs.rooms[req.roomExternalId]
	if !ok {
		dbRoom, err := rs.db.GetRoomByExternalId(req.roomExternalId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRoomNotFound
			}
			return err
		}

		room = rs.newRoom(dbRoom)

		dbParticipants, err := rs.db.GetParticipantsByRoomId(dbRoom.Id)
		if err != nil {
			rs.log.Printf("failed to preload participants for room %q: %v", dbRoom.ExternalId, err)
		}
		for _, p := range dbParticipants {
			room.participants[p.AccountId] = &types.Participant{
				UserId:      p.AccountId,
				UserName:    p.Username,
				Language:    p.Language,
				TranslateTo: p.TranslateTo,
			}
		}

		rs.rooms[room.externalId] = room
		rs.stats.Incr(stats.ActiveRooms)
		go room.start()
	}

	req.client.room = room
	return nil
}

func (rs *RoomServer) newRoom(dbRoom database.Room) *Room {
	return &Room{
		id:           dbRoom.Id,
		externalId:   dbRoom.ExternalId,
		name:         dbRoom.Name,
		creatorId:    dbRoom.CreatorId,
		participants: make(map[int]*types.Participant),
		clients:      make(map[int]*Client),
		rs:           rs,
		joinChan:     make(chan *ClientMessage, 256),
		leaveChan:    make(chan *ClientMessage, 256),
		statusChan:   make(chan *ClientMessage, 256),
		endChan:      make(chan *ClientMessage, 16),
		dispatchChan: make(chan *dispatchReq, 16),
		rosterChan:   make(chan rosterReq, 16),
		log:          rs.log,
		stats:        rs.stats,
		exit:         make(chan exitReq),
	}
}

// Connect attaches client to the room with the given external id. It is
// called from the HTTP layer before the pumps start.
func (rs *RoomServer) Connect(client *Client, roomExternalId string) error {
	req := &connectReq{
		roomExternalId: roomExternalId,
		client:         client,
		reply:          make(chan error, 1),
	}

	select {
	case rs.connectChan <- req:
	case <-rs.stop:
		return errors.New("server is shutting down")
	}

	return <-req.reply
}

func (rs *RoomServer) RegisterClient(c *Client) {
	rs.clientsLock.Lock()
	defer rs.clientsLock.Unlock()
	rs.clients[c] = struct{}{}
	rs.stats.Incr(stats.ActiveConnections)
}

func (rs *RoomServer) DeregisterClient(c *Client) {
	rs.clientsLock.Lock()
	defer rs.clientsLock.Unlock()
	if _, ok := rs.clients[c]; !ok {
		return
	}
	delete(rs.clients, c)
	rs.stats.Decr(stats.ActiveConnections)
}

func (rs *RoomServer) unloadRoom(roomId string) {
	r, ok := rs.rooms[roomId]
	if !ok {
		return
	}

	rs.log.Printf("removing room %q", r.externalId)
	done := make(chan string, 1)
	r.exit <- exitReq{done: done}
	<-done

	delete(rs.rooms, roomId)
	rs.stats.Decr(stats.ActiveRooms)
}

// Shutdown stops every client transport and then the room loops. It waits
// for the Run loop to drain or the context to expire.
func (rs *RoomServer) Shutdown(ctx context.Context) error {
	rs.log.Println("received shutdown signal")

	rs.clientsLock.Lock()
	for c := range rs.clients {
		c.stopClient()
	}
	rs.clientsLock.Unlock()

	close(rs.stop)

	select {
	case <-rs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
