/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Engine events. Everything that can mutate game state arrives on one
// channel and is handled to completion by the single engine goroutine, so
// rooms never see concurrent mutation.

type connectEvent struct {
	c *Client
}

type disconnectEvent struct {
	c *Client
}

type clientEvent struct {
	c   *Client
	env envelope
}

type turnTickEvent struct {
	code string
	gen  uint64
}

type turnTimeoutEvent struct {
	code string
	gen  uint64
}

// Engine owns the room registry, the matchmaking queues, and every
// connected client. All handlers run on the engine goroutine.
type Engine struct {
	cfg      *Config
	topics   *TopicSet
	registry *Registry
	queue    *matchQueue
	clients  map[string]*Client
	events   chan any
	lastGen  uint64

	// spawnTimer launches the countdown for a started turn; swapped out in
	// tests for a recording stub.
	spawnTimer func(code string, gen uint64, seconds int, stop <-chan struct{})
}

func newEngine(cfg *Config, topics *TopicSet) *Engine {
	e := &Engine{
		cfg:      cfg,
		topics:   topics,
		registry: newRegistry(),
		queue:    newMatchQueue(),
		clients:  make(map[string]*Client),
		events:   make(chan any, 256),
	}
	e.spawnTimer = func(code string, gen uint64, seconds int, stop <-chan struct{}) {
		go e.runTurnTimer(code, gen, seconds, stop)
	}
	return e
}

func (e *Engine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

func (e *Engine) dispatch(ev any) {
	switch v := ev.(type) {
	case connectEvent:
		e.clients[v.c.id] = v.c
	case disconnectEvent:
		e.handleDisconnect(v.c)
	case clientEvent:
		e.handleClientEvent(v.c, v.env)
	case turnTickEvent:
		e.handleTurnTick(v)
	case turnTimeoutEvent:
		e.handleTurnTimeout(v)
	}
}

func (e *Engine) handleClientEvent(c *Client, env envelope) {
	switch env.Event {
	case "solo:start":
		var req soloStartRequest
		if unmarshal(env.Data, &req) {
			e.soloStart(c, req)
		}
	case "match:queue":
		var req matchQueueRequest
		if unmarshal(env.Data, &req) {
			e.matchQueue(c, req)
		}
	case "match:cancel":
		e.matchCancel(c)
	case "room:create":
		var req roomCreateRequest
		if unmarshal(env.Data, &req) {
			e.roomCreate(c, req)
		}
	case "room:join":
		var req roomJoinRequest
		if unmarshal(env.Data, &req) {
			e.roomJoin(c, req)
		}
	case "game:start":
		var req gameStartRequest
		if unmarshal(env.Data, &req) {
			e.gameStart(c, req)
		}
	case "game:reset":
		var req gameResetRequest
		if unmarshal(env.Data, &req) {
			e.gameReset(c, req)
		}
	case "room:leave":
		e.leaveRoom(c, true)
	case "answer:submit":
		var req answerSubmitRequest
		if unmarshal(env.Data, &req) {
			e.answerSubmit(c, req)
		}
	}
}

func unmarshal(data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return true
	}
	return json.Unmarshal(data, v) == nil
}

// ---- Outbound plumbing ----

func (e *Engine) sendTo(c *Client, event string, data any) {
	c.trySend(serverMessage{Event: event, Data: data})
}

func (e *Engine) emitRoom(room *Room, event string, data any) {
	msg := serverMessage{Event: event, Data: data}
	for _, p := range room.Players {
		if cl, ok := e.clients[p.ID]; ok {
			cl.trySend(msg)
		}
	}
}

// broadcastRoom pushes the authoritative room snapshot to every member.
func (e *Engine) broadcastRoom(room *Room) {
	players := make([]playerInfo, 0, len(room.Players))
	for _, p := range room.Players {
		players = append(players, playerInfo{
			ID:    p.ID,
			Name:  p.Name,
			Alive: p.Alive,
			Score: p.Score,
		})
	}

	var hostID *string
	if room.HostID != "" {
		hostID = &room.HostID
	}

	var currentID *string
	if room.Phase == phasePlaying {
		if id := room.currentPlayerID(); id != "" {
			currentID = &id
		}
	}

	used := room.usedAnswers()
	if used == nil {
		used = []string{}
	}

	e.emitRoom(room, "room:update", roomUpdateMsg{
		RoomCode:        room.Code,
		HostID:          hostID,
		Phase:           room.Phase,
		PerTurn:         room.PerTurn,
		TopicKey:        room.Topic.Key,
		TopicLabel:      room.Topic.Label,
		Mode:            room.Mode,
		Players:         players,
		CurrentPlayerID: currentID,
		Used:            used,
	})
}

// ---- Game termination ----

func (e *Engine) finalPlayers(room *Room) []finalPlayer {
	players := make([]finalPlayer, 0, len(room.Players))
	for _, p := range room.Players {
		players = append(players, finalPlayer{
			ID:    p.ID,
			Name:  p.Name,
			Score: p.Score,
			Alive: p.Alive,
		})
	}
	return players
}

func (e *Engine) endGame(room *Room) {
	e.stopTimer(room)
	room.Phase = phaseEnded

	var winnerID *string
	for _, p := range room.Players {
		if p.Alive {
			winnerID = &p.ID
			break
		}
	}

	e.emitRoom(room, "game:over", gameOverMsg{
		WinnerID: winnerID,
		Players:  e.finalPlayers(room),
	})
	e.broadcastRoom(room)

	logf(e.cfg, "GAMES: Game over in %s", room.Code)
}

func (e *Engine) declareDraw(room *Room) {
	e.stopTimer(room)
	room.Phase = phaseEnded

	e.emitRoom(room, "game:draw", gameDrawMsg{Players: e.finalPlayers(room)})
	e.broadcastRoom(room)

	logf(e.cfg, "GAMES: Draw in %s", room.Code)
}

func (e *Engine) soloOver(room *Room, reason string) {
	e.stopTimer(room)
	room.Phase = phaseEnded

	players := make([]soloPlayer, 0, len(room.Players))
	for _, p := range room.Players {
		players = append(players, soloPlayer{ID: p.ID, Name: p.Name, Score: p.Score})
	}

	e.emitRoom(room, "solo:over", soloOverMsg{
		Reason:     reason,
		TopicLabel: room.Topic.Label,
		UsedCount:  len(room.usedAnswers()),
		Total:      room.Topic.Total(),
		Players:    players,
	})
	e.broadcastRoom(room)

	logf(e.cfg, "GAMES: Solo game in %s ended (%s)", room.Code, reason)
}

// applyOutcome acts on a round coordinator decision.
func (e *Engine) applyOutcome(room *Room, outcome roundOutcome) {
	switch outcome {
	case roundAdvance:
		e.startTurn(room)
	case roundDraw:
		e.declareDraw(room)
	case roundWinner:
		e.endGame(room)
	}
}

// ---- Session creation ----

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func nameOrDefault(name, fallback string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return fallback
}

func (e *Engine) soloStart(c *Client, req soloStartRequest) {
	if c.roomCode != "" {
		e.leaveRoom(c, true)
	}

	secs := req.PerTurn
	if secs == 0 {
		secs = defaultSoloTurn
	}
	secs = clampInt(secs, minTurnSeconds, maxTurnSeconds)

	topic := e.topics.Resolve(req.TopicKey)

	room := e.registry.Create(modeSolo, "", topic, secs)
	room.Phase = phasePlaying
	room.addPlayer(&Player{
		ID:       c.id,
		Name:     nameOrDefault(req.Name, "You"),
		Alive:    true,
		JoinedAt: time.Now(),
	})
	c.roomCode = room.Code

	logf(e.cfg, "GAMES: Solo game %s started (%s, %ds)", room.Code, topic.Key, secs)

	e.broadcastRoom(room)
	e.startSoloTurn(room)
}

func (e *Engine) roomCreate(c *Client, req roomCreateRequest) {
	if c.roomCode != "" {
		e.leaveRoom(c, true)
	}

	topic := e.topics.Resolve(req.TopicKey)

	room := e.registry.Create(modePvp, c.id, topic, defaultPvpTurn)
	room.addPlayer(&Player{
		ID:       c.id,
		Name:     nameOrDefault(req.Name, "Host"),
		Alive:    true,
		JoinedAt: time.Now(),
	})
	c.roomCode = room.Code

	logf(e.cfg, "GAMES: Room %s created by %s", room.Code, c.id)

	e.sendTo(c, "room:created", roomCreatedMsg{RoomCode: room.Code})
	e.broadcastRoom(room)
}

func (e *Engine) roomJoin(c *Client, req roomJoinRequest) {
	player := &Player{
		ID:       c.id,
		Name:     req.Name,
		Alive:    true,
		JoinedAt: time.Now(),
	}

	room, err := e.registry.Join(normalizeCode(req.RoomCode), player)
	switch err {
	case nil:
	case errRoomNotFound:
		e.sendTo(c, "error:msg", errorMsg{Message: "Room not found."})
		return
	case errGameAlreadyStarted:
		e.sendTo(c, "error:msg", errorMsg{Message: "Game already started."})
		return
	case errNameRequired:
		e.sendTo(c, "error:msg", errorMsg{Message: "Name is required."})
		return
	default:
		e.sendTo(c, "error:msg", errorMsg{Message: "Unable to join room."})
		return
	}

	c.roomCode = room.Code

	logf(e.cfg, "GAMES: Player %q joined %s", player.Name, room.Code)

	e.broadcastRoom(room)
}

func (e *Engine) gameStart(c *Client, req gameStartRequest) {
	room := e.registry.Get(normalizeCode(req.RoomCode))
	if room == nil || c.id != room.HostID {
		return
	}
	if len(room.Players) < minRoomSize {
		e.sendTo(c, "error:msg", errorMsg{Message: "Need at least 2 players."})
		return
	}

	secs := req.PerTurn
	if secs == 0 {
		secs = room.PerTurn
	}
	room.PerTurn = clampInt(secs, minTurnSeconds, maxTurnSeconds)

	room.resetGame()
	room.Phase = phasePlaying

	// Fresh shuffle each start for fairness.
	order := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		order = append(order, p.ID)
	}
	shuffleInPlace(order)
	room.Order = order
	room.Idx = 0

	if e.topics.Has(req.TopicKey) {
		room.Topic = e.topics.Resolve(req.TopicKey)
	}

	logf(e.cfg, "GAMES: Game started in %s (%d players, %s)", room.Code, len(room.Players), room.Topic.Key)

	e.broadcastRoom(room)
	room.beginRound(0)
	e.startTurn(room)
}

func (e *Engine) gameReset(c *Client, req gameResetRequest) {
	room := e.registry.Get(normalizeCode(req.RoomCode))
	if room == nil {
		return
	}

	// Only private rooms have a reusable lobby.
	if room.Mode != modePvp || room.HostID == "" {
		return
	}
	// Before the game has ended only the host may reset; afterwards anyone.
	if room.Phase != phaseEnded && c.id != room.HostID {
		return
	}

	e.stopTimer(room)
	room.Phase = phaseLobby
	room.resetGame()

	order := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		order = append(order, p.ID)
	}
	room.Order = order

	logf(e.cfg, "GAMES: Room %s reset to lobby", room.Code)

	e.broadcastRoom(room)
}

// ---- Matchmaking ----

func (e *Engine) matchQueue(c *Client, req matchQueueRequest) {
	if c.roomCode != "" {
		e.leaveRoom(c, true)
	}

	opponents := req.Opponents
	if opponents == 0 {
		opponents = 1
	}
	size := clampInt(opponents+1, minRoomSize, maxRoomSize)

	secs := req.PerTurn
	if secs == 0 {
		secs = defaultPvpTurn
	}
	secs = clampInt(secs, minTurnSeconds, maxTurnSeconds)

	topicKey := req.TopicKey
	if !e.topics.Has(topicKey) {
		topicKey = defaultTopicKey
	}

	key := queueKey{size: size, perTurn: secs, topicKey: topicKey}
	e.queue.enqueue(key, waiter{id: c.id, name: nameOrDefault(req.Name, "Player")})
	c.matchKey = &key

	e.sendTo(c, "match:searching", matchSearchingMsg{
		Size:       size,
		PerTurn:    secs,
		TopicLabel: e.topics.Resolve(topicKey).Label,
	})

	e.tryFormMatches(key)
}

func (e *Engine) matchCancel(c *Client) {
	if c.matchKey == nil {
		return
	}
	e.queue.cancel(*c.matchKey, c.id)
	c.matchKey = nil
	e.sendTo(c, "match:cancelled", emptyMsg{})
}

// tryFormMatches drains the bucket for key, forming as many full rooms as
// a burst of queued waiters allows.
func (e *Engine) tryFormMatches(key queueKey) {
	for {
		batch := e.queue.takeBatch(key)
		if batch == nil {
			return
		}
		e.formMatch(key, batch)
	}
}

func (e *Engine) formMatch(key queueKey, batch []waiter) {
	topic := e.topics.Resolve(key.topicKey)
	room := e.registry.Create(modePvp, "", topic, key.perTurn)
	room.Phase = phasePlaying

	now := time.Now()
	seen := make(map[string]bool, len(batch))
	for _, w := range batch {
		room.Players = append(room.Players, &Player{
			ID:       w.id,
			Name:     uniqueName(seen, w.name),
			Alive:    true,
			JoinedAt: now,
		})
	}

	order := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		order = append(order, p.ID)
	}
	shuffleInPlace(order)
	room.Order = order
	room.Idx = 0

	for _, w := range batch {
		cl, ok := e.clients[w.id]
		if !ok {
			continue
		}
		cl.roomCode = room.Code
		cl.matchKey = nil
		e.sendTo(cl, "match:found", matchFoundMsg{RoomCode: room.Code})
	}

	logf(e.cfg, "MATCH: Formed room %s (%d players, %s, %ds)", room.Code, len(batch), key.topicKey, key.perTurn)

	e.broadcastRoom(room)
	room.beginRound(0)
	e.startTurn(room)
}

// ---- Departure ----

func (e *Engine) handleDisconnect(c *Client) {
	if c.matchKey != nil {
		e.queue.cancel(*c.matchKey, c.id)
		c.matchKey = nil
	}

	e.leaveRoom(c, false)

	delete(e.clients, c.id)
	close(c.send)

	logf(e.cfg, "SERVE: Connection %s closed", c.id)
}

// leaveRoom removes the client from its current room, repairing turn order,
// host assignment, and the in-flight round as needed. With notify set the
// client is told the departure completed (explicit room:leave); disconnects
// skip the acknowledgement.
func (e *Engine) leaveRoom(c *Client, notify bool) {
	ack := func() {
		if notify {
			e.sendTo(c, "room:left", roomLeftMsg{OK: true})
		}
	}

	room := e.registry.Get(c.roomCode)
	if room == nil {
		c.roomCode = ""
		ack()
		return
	}

	playerIdx := -1
	for i, p := range room.Players {
		if p.ID == c.id {
			playerIdx = i
			break
		}
	}
	if playerIdx < 0 {
		c.roomCode = ""
		ack()
		return
	}

	wasHost := room.HostID == c.id
	orderIdx := room.orderIndex(c.id)
	wasCurrent := room.Phase == phasePlaying && orderIdx == room.Idx
	if wasCurrent {
		e.stopTimer(room)
	}

	room.Players[playerIdx].Alive = false
	if orderIdx >= 0 {
		room.Order = append(room.Order[:orderIdx], room.Order[orderIdx+1:]...)
	}
	room.Players = append(room.Players[:playerIdx], room.Players[playerIdx+1:]...)
	c.roomCode = ""

	if wasHost && len(room.Players) > 0 {
		room.HostID = room.Players[0].ID
	}

	if len(room.Players) == 0 {
		e.stopTimer(room)
		e.registry.Delete(room.Code)
		logf(e.cfg, "GAMES: Room %s drained and deleted", room.Code)
		ack()
		return
	}

	if room.Phase == phasePlaying {
		if room.Round != nil {
			delete(room.Round.Pending, c.id)
		}

		if wasCurrent {
			if room.Round != nil && len(room.Round.Pending) == 0 {
				e.applyOutcome(room, room.endRound())
			} else {
				// The seat after the departed player slid into their slot.
				room.Idx = clampInt(orderIdx, 0, len(room.Order)-1)
				e.startTurn(room)
			}
		} else {
			if orderIdx != -1 && orderIdx < room.Idx {
				room.Idx = max(0, room.Idx-1)
			}
			if room.Round != nil && len(room.Round.Pending) == 0 {
				e.applyOutcome(room, room.endRound())
			}
		}

		if room.Phase == phasePlaying && room.aliveCount() == 0 {
			e.declareDraw(room)
		}
	}

	e.broadcastRoom(room)
	ack()
}
