package server

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/npezzotti/go-multilingo/internal/database"
	"github.com/npezzotti/go-multilingo/internal/stats"
	"github.com/npezzotti/go-multilingo/internal/testutil"
	"github.com/npezzotti/go-multilingo/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newTestRoomServer creates a RoomServer wired to mocks. Counter updates
// are incidental to most tests, so they are allowed but not required.
func newTestRoomServer(t *testing.T, db database.MultilingoRepository, su *stats.MockStatsUpdater) *RoomServer {
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	rs, err := NewRoomServer(logger, db, su, nil)
	if err != nil {
		t.Fatalf("failed to create test RoomServer: %v", err)
	}
	return rs
}

func TestNewRoomServer(t *testing.T) {
	db := &database.MockMultilingoRepository{}
	defer db.AssertExpectations(t)

	logger := testutil.TestLogger(t)
	rs, err := NewRoomServer(logger, db, &stats.MockStatsUpdater{}, nil)
	assert.NoError(t, err, "expected no error creating RoomServer")
	assert.NotNil(t, rs, "expected RoomServer to be non-nil")
	assert.Equal(t, logger, rs.log, "expected logger to be set")
	assert.Equal(t, db, rs.db, "expected database repository to be set")
	assert.NotNil(t, rs.connectChan, "expected connectChan to be initialized")
	assert.NotNil(t, rs.unloadRoomChan, "expected unloadRoomChan to be initialized")
	assert.NotNil(t, rs.stop, "expected stop channel to be initialized")
	assert.NotNil(t, rs.clients, "expected clients map to be initialized")
	assert.NotNil(t, rs.rooms, "expected rooms map to be initialized")
}

func Test_handleConnect(t *testing.T) {
	t.Run("loads room from database", func(t *testing.T) {
		db := &database.MockMultilingoRepository{}
		defer db.AssertExpectations(t)

		rs := newTestRoomServer(t, db, &stats.MockStatsUpdater{})

		db.On("GetRoomByExternalId", "room-1").Return(database.Room{
			Id:         1,
			ExternalId: "room-1",
			Name:       "standup",
			CreatorId:  1,
		}, nil).Once()
		db.On("GetParticipantsByRoomId", 1).Return([]database.RoomParticipant{
			{AccountId: 1, RoomId: 1, Username: "alice", Language: "en", TranslateTo: "en"},
			{AccountId: 2, RoomId: 1, Username: "bob", Language: "fr", TranslateTo: "fr"},
		}, nil).Once()

		c := &Client{user: types.User{Id: 1, Username: "alice"}}
		err := rs.handleConnect(&connectReq{roomExternalId: "room-1", client: c})
		assert.NoError(t, err, "expected connect to succeed")

		room, ok := rs.rooms["room-1"]
		if !assert.True(t, ok, "expected room to be loaded") {
			return
		}
		assert.Equal(t, room, c.room, "expected client to be bound to room")
		assert.Len(t, room.participants, 2, "expected known participants to be preloaded")
		assert.False(t, room.participants[2].Online, "expected preloaded participant to be offline")

		// unload so the room goroutine exits before the test returns
		rs.unloadRoom("room-1")
	})

	t.Run("reuses loaded room", func(t *testing.T) {
		db := &database.MockMultilingoRepository{}
		defer db.AssertExpectations(t)

		rs := newTestRoomServer(t, db, &stats.MockStatsUpdater{})
		room := rs.newRoom(database.Room{Id: 1, ExternalId: "room-1"})
		rs.rooms["room-1"] = room

		c := &Client{user: types.User{Id: 1}}
		err := rs.handleConnect(&connectReq{roomExternalId: "room-1", client: c})
		assert.NoError(t, err, "expected connect to succeed")
		assert.Equal(t, room, c.room, "expected client to be bound to existing room")
		db.AssertNotCalled(t, "GetRoomByExternalId", "room-1")
	})

	t.Run("unknown room", func(t *testing.T) {
		db := &database.MockMultilingoRepository{}
		defer db.AssertExpectations(t)

		rs := newTestRoomServer(t, db, &stats.MockStatsUpdater{})

		db.On("GetRoomByExternalId", "nope").Return(database.Room{}, sql.ErrNoRows).Once()

		err := rs.handleConnect(&connectReq{roomExternalId: "nope", client: &Client{}})
		assert.ErrorIs(t, err, ErrRoomNotFound, "expected ErrRoomNotFound")
		assert.NotContains(t, rs.rooms, "nope", "expected no room to be created")
	})
}

func Test_registerAndDeregisterClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", stats.ActiveConnections).Once()
	su.On("Decr", stats.ActiveConnections).Once()
	defer su.AssertExpectations(t)

	rs := newTestRoomServer(t, &database.MockMultilingoRepository{}, su)

	c := &Client{user: types.User{Id: 1}}
	rs.RegisterClient(c)
	assert.Contains(t, rs.clients, c, "expected client to be registered")

	rs.DeregisterClient(c)
	assert.NotContains(t, rs.clients, c, "expected client to be deregistered")

	// deregistering twice must not double-decrement
	rs.DeregisterClient(c)
}

func TestRoomServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		rs := newTestRoomServer(t, &database.MockMultilingoRepository{}, &stats.MockStatsUpdater{})
		go rs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := rs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("shuts down loaded rooms", func(t *testing.T) {
		db := &database.MockMultilingoRepository{}
		defer db.AssertExpectations(t)

		rs := newTestRoomServer(t, db, &stats.MockStatsUpdater{})

		db.On("GetRoomByExternalId", "room-1").Return(database.Room{Id: 1, ExternalId: "room-1"}, nil).Once()
		db.On("GetParticipantsByRoomId", 1).Return([]database.RoomParticipant{}, nil).Once()

		go rs.Run()

		err := rs.Connect(&Client{user: types.User{Id: 1}}, "room-1")
		assert.NoError(t, err, "expected connect to succeed")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err = rs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		rs := newTestRoomServer(t, &database.MockMultilingoRepository{}, &stats.MockStatsUpdater{})
		// Run loop never started, so done is never closed

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := rs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded, "expected deadline exceeded")
	})
}
