/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTopicSet() *TopicSet {
	ts := &TopicSet{topics: make(map[string]*Topic)}
	ts.add(testTopic())
	ts.add(newListTopic("mini", "Mini", []string{"Alpha", "Beta", "Gamma"}, nil))
	return ts
}

// testEngine builds an engine whose turn timers never fire on their own;
// tests inject tick and timeout events directly with the live generation.
func testEngine() *Engine {
	e := newEngine(&Config{}, testTopicSet())
	e.spawnTimer = func(code string, gen uint64, seconds int, stop <-chan struct{}) {}
	return e
}

func newTestClient(e *Engine, id string) *Client {
	c := &Client{id: id, send: make(chan any, 64)}
	e.clients[id] = c
	return c
}

func drainMsgs(c *Client) []serverMessage {
	var msgs []serverMessage
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return msgs
			}
			msgs = append(msgs, m.(serverMessage))
		default:
			return msgs
		}
	}
}

func findEvent(msgs []serverMessage, event string) (serverMessage, bool) {
	for _, m := range msgs {
		if m.Event == event {
			return m, true
		}
	}
	return serverMessage{}, false
}

func requireEvent(t *testing.T, msgs []serverMessage, event string) serverMessage {
	t.Helper()
	msg, ok := findEvent(msgs, event)
	require.True(t, ok, "expected a %s event", event)
	return msg
}

// startPvpGame creates a room with n players (ids p0..pn-1, p0 hosting) and
// starts the game.
func startPvpGame(t *testing.T, e *Engine, n int) (*Room, map[string]*Client) {
	t.Helper()

	clients := make(map[string]*Client)
	host := newTestClient(e, "p0")
	clients["p0"] = host
	e.roomCreate(host, roomCreateRequest{Name: "p0"})

	room := e.registry.Get(host.roomCode)
	require.NotNil(t, room)

	for i := 1; i < n; i++ {
		id := fmt.Sprintf("p%d", i)
		c := newTestClient(e, id)
		clients[id] = c
		e.roomJoin(c, roomJoinRequest{RoomCode: room.Code, Name: id})
	}

	e.gameStart(host, gameStartRequest{RoomCode: room.Code})
	require.Equal(t, phasePlaying, room.Phase)

	return room, clients
}

// forceOrder pins the rotation so assertions about specific seats hold.
func forceOrder(e *Engine, room *Room, ids ...string) {
	room.Order = append([]string(nil), ids...)
	room.beginRound(0)
	e.startTurn(room)
}

func fireTimeout(e *Engine, room *Room) {
	e.handleTurnTimeout(turnTimeoutEvent{code: room.Code, gen: room.timer.gen})
}

func TestRoomCreateAnnouncesCode(t *testing.T) {
	e := testEngine()
	c := newTestClient(e, "host")

	e.roomCreate(c, roomCreateRequest{Name: "Ann"})

	msgs := drainMsgs(c)
	created := requireEvent(t, msgs, "room:created").Data.(roomCreatedMsg)
	assert.Len(t, created.RoomCode, roomCodeLength)

	update := requireEvent(t, msgs, "room:update").Data.(roomUpdateMsg)
	assert.Equal(t, phaseLobby, update.Phase)
	require.NotNil(t, update.HostID)
	assert.Equal(t, "host", *update.HostID)
	assert.Nil(t, update.CurrentPlayerID)
	assert.Equal(t, []string{}, update.Used)
}

func TestJoinErrorsOverSocket(t *testing.T) {
	e := testEngine()
	host := newTestClient(e, "host")
	e.roomCreate(host, roomCreateRequest{Name: "Ann"})
	code := host.roomCode

	c := newTestClient(e, "guest")

	e.roomJoin(c, roomJoinRequest{RoomCode: "ZZZZZZ", Name: "Bob"})
	msg := requireEvent(t, drainMsgs(c), "error:msg").Data.(errorMsg)
	assert.Equal(t, "Room not found.", msg.Message)

	e.roomJoin(c, roomJoinRequest{RoomCode: code, Name: "   "})
	msg = requireEvent(t, drainMsgs(c), "error:msg").Data.(errorMsg)
	assert.Equal(t, "Name is required.", msg.Message)

	e.roomJoin(c, roomJoinRequest{RoomCode: code, Name: "Bob"})
	requireEvent(t, drainMsgs(c), "room:update")

	e.gameStart(host, gameStartRequest{RoomCode: code})

	late := newTestClient(e, "late")
	e.roomJoin(late, roomJoinRequest{RoomCode: code, Name: "Cat"})
	msg = requireEvent(t, drainMsgs(late), "error:msg").Data.(errorMsg)
	assert.Equal(t, "Game already started.", msg.Message)
}

func TestGameStartRequiresTwoPlayers(t *testing.T) {
	e := testEngine()
	c := newTestClient(e, "host")
	e.roomCreate(c, roomCreateRequest{Name: "Ann"})
	drainMsgs(c)

	e.gameStart(c, gameStartRequest{RoomCode: c.roomCode})

	msg := requireEvent(t, drainMsgs(c), "error:msg").Data.(errorMsg)
	assert.Equal(t, "Need at least 2 players.", msg.Message)

	room := e.registry.Get(c.roomCode)
	assert.Equal(t, phaseLobby, room.Phase)
}

func TestGameStartOpensFirstTurn(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 3)

	currentID := room.currentPlayerID()
	require.NotEmpty(t, currentID)
	assert.True(t, room.playerByID(currentID).Alive)
	assert.Equal(t, 3, len(room.Round.Pending))
	require.NotNil(t, room.timer)

	for _, c := range clients {
		msgs := drainMsgs(c)
		start := requireEvent(t, msgs, "turn:start").Data.(turnStartMsg)
		assert.Equal(t, currentID, start.CurrentPlayerID)
		assert.Equal(t, room.PerTurn, start.Remaining)
	}
}

func TestAnswerAcceptedAdvancesTurn(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")
	for _, c := range clients {
		drainMsgs(c)
	}

	e.answerSubmit(clients["p0"], answerSubmitRequest{RoomCode: room.Code, Answer: "usa"})

	msgs := drainMsgs(clients["p0"])
	accepted := requireEvent(t, msgs, "answer:accepted").Data.(answerAcceptedMsg)
	assert.Equal(t, "United States", accepted.Value)

	update := requireEvent(t, msgs, "room:update").Data.(roomUpdateMsg)
	assert.Equal(t, []string{"United States"}, update.Used)

	start := requireEvent(t, msgs, "turn:start").Data.(turnStartMsg)
	assert.Equal(t, "p1", start.CurrentPlayerID)

	assert.Equal(t, 1, room.playerByID("p0").Score)
	assert.Equal(t, "p1", room.currentPlayerID())
}

func TestAnswerRejectedNotYourTurn(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")
	for _, c := range clients {
		drainMsgs(c)
	}

	e.answerSubmit(clients["p1"], answerSubmitRequest{RoomCode: room.Code, Answer: "Canada"})

	msg := requireEvent(t, drainMsgs(clients["p1"]), "error:msg").Data.(errorMsg)
	assert.Equal(t, "Not your turn.", msg.Message)
	assert.Equal(t, "p0", room.currentPlayerID())
	assert.False(t, room.isUsed("Canada"))
}

func TestAnswerRejectedInvalidAndRepeated(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")
	for _, c := range clients {
		drainMsgs(c)
	}

	e.answerSubmit(clients["p0"], answerSubmitRequest{RoomCode: room.Code, Answer: "Atlantis"})
	rejected := requireEvent(t, drainMsgs(clients["p0"]), "answer:rejected").Data.(answerRejectedMsg)
	assert.Equal(t, rejectInvalid, rejected.Reason)
	assert.Equal(t, "p0", room.currentPlayerID(), "a rejection must not consume the turn")

	e.answerSubmit(clients["p0"], answerSubmitRequest{RoomCode: room.Code, Answer: "Canada"})
	drainMsgs(clients["p0"])

	e.answerSubmit(clients["p1"], answerSubmitRequest{RoomCode: room.Code, Answer: "CANADA!"})
	rejected = requireEvent(t, drainMsgs(clients["p1"]), "answer:rejected").Data.(answerRejectedMsg)
	assert.Equal(t, rejectRepeated, rejected.Reason)
	assert.Equal(t, "Canada", rejected.Country)
	assert.Equal(t, "p1", room.currentPlayerID())
}

func TestAnswerRejectedTooSoon(t *testing.T) {
	e := newEngine(&Config{minSubmit: time.Minute}, testTopicSet())
	e.spawnTimer = func(code string, gen uint64, seconds int, stop <-chan struct{}) {}

	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")
	for _, c := range clients {
		drainMsgs(c)
	}

	e.answerSubmit(clients["p0"], answerSubmitRequest{RoomCode: room.Code, Answer: "Canada"})

	rejected := requireEvent(t, drainMsgs(clients["p0"]), "answer:rejected").Data.(answerRejectedMsg)
	assert.Equal(t, rejectTooSoon, rejected.Reason)
	assert.Equal(t, int64(60000), rejected.Min)
	assert.Less(t, rejected.Elapsed, rejected.Min)
	assert.False(t, room.isUsed("Canada"))
	assert.Equal(t, "p0", room.currentPlayerID())
}

func TestTimeoutEliminatesPlayer(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 3)
	forceOrder(e, room, "p0", "p1", "p2")
	for _, c := range clients {
		drainMsgs(c)
	}

	fireTimeout(e, room)

	assert.False(t, room.playerByID("p0").Alive)
	assert.Equal(t, phasePlaying, room.Phase)
	assert.Equal(t, "p1", room.currentPlayerID())

	msgs := drainMsgs(clients["p1"])
	timeout := requireEvent(t, msgs, "turn:timeout").Data.(turnTimeoutMsg)
	assert.Equal(t, "p0", timeout.PlayerID)
	start := requireEvent(t, msgs, "turn:start").Data.(turnStartMsg)
	assert.Equal(t, "p1", start.CurrentPlayerID)
}

func TestTimeoutAfterOpponentAnsweredEndsGame(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")
	for _, c := range clients {
		drainMsgs(c)
	}

	e.answerSubmit(clients["p0"], answerSubmitRequest{RoomCode: room.Code, Answer: "France"})
	for _, c := range clients {
		drainMsgs(c)
	}

	fireTimeout(e, room)

	assert.Equal(t, phaseEnded, room.Phase)
	over := requireEvent(t, drainMsgs(clients["p0"]), "game:over").Data.(gameOverMsg)
	require.NotNil(t, over.WinnerID)
	assert.Equal(t, "p0", *over.WinnerID)
	require.Len(t, over.Players, 2)
}

func TestRoundOfTimeoutsEndsInDraw(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")
	for _, c := range clients {
		drainMsgs(c)
	}

	fireTimeout(e, room)
	require.Equal(t, phasePlaying, room.Phase)
	require.Equal(t, "p1", room.currentPlayerID())

	fireTimeout(e, room)

	assert.Equal(t, phaseEnded, room.Phase)
	draw := requireEvent(t, drainMsgs(clients["p0"]), "game:draw").Data.(gameDrawMsg)
	require.Len(t, draw.Players, 2)
	for _, p := range draw.Players {
		assert.False(t, p.Alive)
	}
}

func TestStaleTimerEventsIgnored(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")

	staleGen := room.timer.gen

	// A new turn supersedes the old timer.
	e.answerSubmit(clients["p0"], answerSubmitRequest{RoomCode: room.Code, Answer: "Spain"})
	for _, c := range clients {
		drainMsgs(c)
	}

	e.handleTurnTick(turnTickEvent{code: room.Code, gen: staleGen})
	e.handleTurnTimeout(turnTimeoutEvent{code: room.Code, gen: staleGen})

	assert.Equal(t, phasePlaying, room.Phase)
	assert.Equal(t, "p1", room.currentPlayerID())
	assert.True(t, room.playerByID("p1").Alive)
	assert.Empty(t, drainMsgs(clients["p0"]))
}

func TestTickCountsDown(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")
	for _, c := range clients {
		drainMsgs(c)
	}

	before := room.Remaining
	e.handleTurnTick(turnTickEvent{code: room.Code, gen: room.timer.gen})

	assert.Equal(t, before-1, room.Remaining)
	tick := requireEvent(t, drainMsgs(clients["p0"]), "turn:tick").Data.(turnTickMsg)
	assert.Equal(t, before-1, tick.Remaining)
}

func TestCurrentPlayerLeaveAdvancesTurn(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 3)
	forceOrder(e, room, "p0", "p1", "p2")
	for _, c := range clients {
		drainMsgs(c)
	}

	e.leaveRoom(clients["p0"], true)

	left := requireEvent(t, drainMsgs(clients["p0"]), "room:left").Data.(roomLeftMsg)
	assert.True(t, left.OK)
	assert.Empty(t, clients["p0"].roomCode)

	assert.Equal(t, []string{"p1", "p2"}, room.Order)
	assert.Equal(t, "p1", room.currentPlayerID())
	assert.Equal(t, phasePlaying, room.Phase)
	assert.Equal(t, "p1", room.HostID)

	msgs := drainMsgs(clients["p1"])
	start := requireEvent(t, msgs, "turn:start").Data.(turnStartMsg)
	assert.Equal(t, "p1", start.CurrentPlayerID)
	update := requireEvent(t, msgs, "room:update").Data.(roomUpdateMsg)
	assert.Len(t, update.Players, 2)
}

func TestEarlierSeatLeaveKeepsCurrentPlayer(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 3)
	forceOrder(e, room, "p0", "p1", "p2")
	for _, c := range clients {
		drainMsgs(c)
	}

	e.answerSubmit(clients["p0"], answerSubmitRequest{RoomCode: room.Code, Answer: "Mexico"})
	require.Equal(t, "p1", room.currentPlayerID())

	e.leaveRoom(clients["p0"], true)

	assert.Equal(t, "p1", room.currentPlayerID())
	assert.Equal(t, 0, room.Idx)
	assert.Equal(t, []string{"p1", "p2"}, room.Order)
	assert.Equal(t, phasePlaying, room.Phase)
}

func TestLastPendingPlayerLeaveClosesRound(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")

	e.answerSubmit(clients["p0"], answerSubmitRequest{RoomCode: room.Code, Answer: "Canada"})
	for _, c := range clients {
		drainMsgs(c)
	}

	e.leaveRoom(clients["p1"], true)

	assert.Equal(t, phaseEnded, room.Phase)
	over := requireEvent(t, drainMsgs(clients["p0"]), "game:over").Data.(gameOverMsg)
	require.NotNil(t, over.WinnerID)
	assert.Equal(t, "p0", *over.WinnerID)
}

func TestHostLeavePromotesNextPlayer(t *testing.T) {
	e := testEngine()
	host := newTestClient(e, "host")
	e.roomCreate(host, roomCreateRequest{Name: "Ann"})
	room := e.registry.Get(host.roomCode)

	guest := newTestClient(e, "guest")
	e.roomJoin(guest, roomJoinRequest{RoomCode: room.Code, Name: "Bob"})
	drainMsgs(guest)

	e.leaveRoom(host, true)

	assert.Equal(t, "guest", room.HostID)
	update := requireEvent(t, drainMsgs(guest), "room:update").Data.(roomUpdateMsg)
	require.NotNil(t, update.HostID)
	assert.Equal(t, "guest", *update.HostID)
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	e := testEngine()
	c := newTestClient(e, "host")
	e.roomCreate(c, roomCreateRequest{Name: "Ann"})
	code := c.roomCode

	e.leaveRoom(c, true)

	assert.Nil(t, e.registry.Get(code))
	assert.Equal(t, 0, e.registry.Len())
}

func TestGameResetReturnsRoomToLobby(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")

	e.answerSubmit(clients["p0"], answerSubmitRequest{RoomCode: room.Code, Answer: "Spain"})

	// Mid-game only the host may reset.
	e.gameReset(clients["p1"], gameResetRequest{RoomCode: room.Code})
	require.Equal(t, phasePlaying, room.Phase)

	fireTimeout(e, room)
	require.Equal(t, phaseEnded, room.Phase)

	// After the game ends anyone may reset.
	e.gameReset(clients["p1"], gameResetRequest{RoomCode: room.Code})

	assert.Equal(t, phaseLobby, room.Phase)
	assert.Nil(t, room.timer)
	assert.Empty(t, room.usedAnswers())
	for _, p := range room.Players {
		assert.True(t, p.Alive)
		assert.Zero(t, p.Score)
	}
}

func TestSoloCompletion(t *testing.T) {
	e := testEngine()
	c := newTestClient(e, "solo")

	e.soloStart(c, soloStartRequest{TopicKey: "mini", Name: "Ann"})
	room := e.registry.Get(c.roomCode)
	require.NotNil(t, room)
	assert.Equal(t, modeSolo, room.Mode)
	assert.Empty(t, room.HostID)
	drainMsgs(c)

	for _, answer := range []string{"alpha", "beta"} {
		e.answerSubmit(c, answerSubmitRequest{RoomCode: room.Code, Answer: answer})
		msgs := drainMsgs(c)
		requireEvent(t, msgs, "answer:accepted")
		requireEvent(t, msgs, "turn:start")
	}

	e.answerSubmit(c, answerSubmitRequest{RoomCode: room.Code, Answer: "gamma"})

	over := requireEvent(t, drainMsgs(c), "solo:over").Data.(soloOverMsg)
	assert.Equal(t, soloReasonCompleted, over.Reason)
	assert.Equal(t, 3, over.UsedCount)
	assert.Equal(t, 3, over.Total)
	require.Len(t, over.Players, 1)
	assert.Equal(t, 3, over.Players[0].Score)
	assert.Equal(t, phaseEnded, room.Phase)
}

func TestSoloTimeout(t *testing.T) {
	e := testEngine()
	c := newTestClient(e, "solo")

	e.soloStart(c, soloStartRequest{})
	room := e.registry.Get(c.roomCode)
	require.NotNil(t, room)
	assert.Equal(t, defaultSoloTurn, room.PerTurn)
	assert.Equal(t, "You", room.Players[0].Name)
	drainMsgs(c)

	e.answerSubmit(c, answerSubmitRequest{RoomCode: room.Code, Answer: "Mexico"})
	drainMsgs(c)

	fireTimeout(e, room)

	over := requireEvent(t, drainMsgs(c), "solo:over").Data.(soloOverMsg)
	assert.Equal(t, soloReasonTimeout, over.Reason)
	assert.Equal(t, 1, over.UsedCount)
	assert.Equal(t, phaseEnded, room.Phase)
}

func TestMatchmakingFormsRoom(t *testing.T) {
	e := testEngine()
	a := newTestClient(e, "a")
	b := newTestClient(e, "b")

	e.matchQueue(a, matchQueueRequest{Opponents: 1, Name: "Ann"})
	searching := requireEvent(t, drainMsgs(a), "match:searching").Data.(matchSearchingMsg)
	assert.Equal(t, 2, searching.Size)
	assert.Equal(t, defaultPvpTurn, searching.PerTurn)

	e.matchQueue(b, matchQueueRequest{Opponents: 1, Name: "Bob"})

	foundA := requireEvent(t, drainMsgs(a), "match:found").Data.(matchFoundMsg)
	msgsB := drainMsgs(b)
	foundB := requireEvent(t, msgsB, "match:found").Data.(matchFoundMsg)
	assert.Equal(t, foundA.RoomCode, foundB.RoomCode)

	room := e.registry.Get(foundA.RoomCode)
	require.NotNil(t, room)
	assert.Equal(t, phasePlaying, room.Phase)
	assert.Empty(t, room.HostID)
	require.NotNil(t, room.timer)

	start := requireEvent(t, msgsB, "turn:start").Data.(turnStartMsg)
	assert.Equal(t, room.currentPlayerID(), start.CurrentPlayerID)
	assert.Nil(t, a.matchKey)
	assert.Nil(t, b.matchKey)
}

func TestMatchCancelLeavesQueue(t *testing.T) {
	e := testEngine()
	a := newTestClient(e, "a")
	b := newTestClient(e, "b")

	e.matchQueue(a, matchQueueRequest{Opponents: 1, Name: "Ann"})
	drainMsgs(a)

	e.matchCancel(a)
	requireEvent(t, drainMsgs(a), "match:cancelled")
	assert.Nil(t, a.matchKey)

	e.matchQueue(b, matchQueueRequest{Opponents: 1, Name: "Bob"})

	_, found := findEvent(drainMsgs(b), "match:found")
	assert.False(t, found)
	assert.Empty(t, b.roomCode)
}

func TestDisconnectCleansUp(t *testing.T) {
	e := testEngine()
	room, clients := startPvpGame(t, e, 2)
	forceOrder(e, room, "p0", "p1")

	e.handleDisconnect(clients["p1"])

	_, registered := e.clients["p1"]
	assert.False(t, registered)
	assert.Len(t, room.Players, 1)

	// Departure messages are not sent on disconnect.
	_, gotAck := findEvent(drainMsgs(clients["p1"]), "room:left")
	assert.False(t, gotAck)
}
