/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "time"

// turnTimer is the live tick/timeout pair for one turn. The generation
// number lets the engine discard events from a timer that has since been
// superseded or whose room is gone; playerID pins the seat the countdown
// was started for.
type turnTimer struct {
	gen      uint64
	playerID string
	stop     chan struct{}
}

func (e *Engine) nextGen() uint64 {
	e.lastGen++
	return e.lastGen
}

// stopTimer cancels the room's live timer, if any. Rooms hold at most one
// timer pair; every path that starts a turn cancels the old pair first.
func (e *Engine) stopTimer(room *Room) {
	if room.timer == nil {
		return
	}
	close(room.timer.stop)
	room.timer = nil
}

// beginTurnTimer stamps the turn start and launches the countdown for the
// player currently holding the turn.
func (e *Engine) beginTurnTimer(room *Room, playerID string) {
	room.Remaining = room.PerTurn
	room.TurnStarted = time.Now()

	t := &turnTimer{
		gen:      e.nextGen(),
		playerID: playerID,
		stop:     make(chan struct{}),
	}
	room.timer = t

	e.emitRoom(room, "turn:start", turnStartMsg{
		CurrentPlayerID: playerID,
		Remaining:       room.Remaining,
	})

	e.spawnTimer(room.Code, t.gen, room.PerTurn, t.stop)
}

// runTurnTimer is the countdown goroutine: a 1-second tick feed plus the
// turn timeout, folded into one select loop so a turn owns exactly one
// timer pair. It only posts events; the engine goroutine owns all state.
func (e *Engine) runTurnTimer(code string, gen uint64, seconds int, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	timeout := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timeout.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.events <- turnTickEvent{code: code, gen: gen}
		case <-timeout.C:
			e.events <- turnTimeoutEvent{code: code, gen: gen}
			return
		}
	}
}

// startTurn announces the turn of the player at the current rotation index
// in a pvp room, advancing past dead seats first.
func (e *Engine) startTurn(room *Room) {
	if room.Phase != phasePlaying || room.Mode == modeSolo {
		return
	}
	e.stopTimer(room)

	currentID := room.currentPlayerID()
	if p := room.playerByID(currentID); p == nil || !p.Alive {
		ni := room.nextAliveIndex(room.Idx)
		if ni == -1 {
			e.applyOutcome(room, room.endRound())
			return
		}
		room.Idx = ni
		currentID = room.currentPlayerID()
	}

	e.beginTurnTimer(room, currentID)
}

// startSoloTurn resets the countdown for the lone solo player.
func (e *Engine) startSoloTurn(room *Room) {
	if room.Phase != phasePlaying || room.Mode != modeSolo {
		return
	}
	e.stopTimer(room)
	e.beginTurnTimer(room, room.currentPlayerID())
}

// timerCurrent reports whether an event from timer generation gen should
// still be acted on: the room must exist, be mid-game, and still own that
// exact timer. Stale events (room deleted, timer superseded) are no-ops.
func (e *Engine) timerCurrent(room *Room, gen uint64) bool {
	return room != nil &&
		room.Phase == phasePlaying &&
		room.timer != nil &&
		room.timer.gen == gen
}

func (e *Engine) handleTurnTick(ev turnTickEvent) {
	room := e.registry.Get(ev.code)
	if !e.timerCurrent(room, ev.gen) {
		return
	}

	room.Remaining--
	e.emitRoom(room, "turn:tick", turnTickMsg{Remaining: max(0, room.Remaining)})
}

func (e *Engine) handleTurnTimeout(ev turnTimeoutEvent) {
	room := e.registry.Get(ev.code)
	if !e.timerCurrent(room, ev.gen) {
		return
	}

	// The countdown goroutine exits after firing; drop the handle rather
	// than closing its stop channel.
	timedOut := room.timer.playerID
	room.timer = nil

	e.emitRoom(room, "turn:tick", turnTickMsg{Remaining: 0})

	if room.Mode == modeSolo {
		e.emitRoom(room, "turn:timeout", turnTimeoutMsg{PlayerID: timedOut})
		e.soloOver(room, soloReasonTimeout)
		return
	}

	if p := room.playerByID(timedOut); p != nil {
		p.Alive = false
	}
	e.emitRoom(room, "turn:timeout", turnTimeoutMsg{PlayerID: timedOut})
	e.broadcastRoom(room)

	logf(e.cfg, "GAMES: Player %s timed out in %s", timedOut, room.Code)

	e.applyOutcome(room, room.resolveTurn(timedOut, false))
}
