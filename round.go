/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// roundOutcome is the round coordinator's decision after a turn resolves.
type roundOutcome int

const (
	// roundAdvance: rotation continues, the caller starts the turn at the
	// (already updated) current index.
	roundAdvance roundOutcome = iota
	// roundDraw: the rotation produced zero accepted answers, or nobody is
	// left standing. The game ends with no winner.
	roundDraw
	// roundWinner: at most one alive player remains. The game ends and the
	// surviving player (if any) wins.
	roundWinner
)

// beginRound snapshots a fresh rotation: every alive player is owed one
// turn, starting at startIdx. If the player there has since died, the index
// slides forward to the next alive player.
func (r *Room) beginRound(startIdx int) {
	pending := make(map[string]bool)
	for _, id := range r.aliveIDsInOrder() {
		pending[id] = true
	}
	r.Round = &roundState{Pending: pending}
	r.Idx = startIdx

	if p := r.playerByID(r.currentPlayerID()); p == nil || !p.Alive {
		if ni := r.nextAliveIndex(r.Idx); ni != -1 {
			r.Idx = ni
		}
	}
}

// resolveTurn marks playerID's turn as taken and decides what happens next.
// When the rotation still has pending players, the current index moves to
// the next alive player and the round continues; otherwise the round ends.
func (r *Room) resolveTurn(playerID string, accepted bool) roundOutcome {
	if r.Round == nil {
		return roundDraw
	}

	delete(r.Round.Pending, playerID)
	if accepted {
		r.Round.Answered++
	}

	if len(r.Round.Pending) == 0 {
		return r.endRound()
	}

	ni := r.nextAliveIndex(r.Idx)
	if ni == -1 {
		return r.endRound()
	}
	r.Idx = ni

	return roundAdvance
}

// endRound closes the current rotation. A rotation with zero accepted
// answers is always a draw, even when a lone surviving player timed out by
// themselves. Otherwise the game ends once at most one player is alive, or
// a new rotation begins at the next alive seat.
func (r *Room) endRound() roundOutcome {
	if r.Round == nil {
		return roundDraw
	}
	if r.Round.Answered == 0 {
		return roundDraw
	}
	if r.aliveCount() <= 1 {
		return roundWinner
	}

	ni := r.nextAliveIndex(r.Idx)
	if ni == -1 {
		return roundWinner
	}
	r.beginRound(ni)

	return roundAdvance
}
