/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"time"
)

const (
	minTurnSeconds = 5
	maxTurnSeconds = 120
	minRoomSize    = 2
	maxRoomSize    = 8

	defaultSoloTurn = 10
	defaultPvpTurn  = 15

	modeSolo = "solo"
	modePvp  = "pvp"

	phaseLobby   = "lobby"
	phasePlaying = "playing"
	phaseEnded   = "ended"
)

// Player is one seat in a room. ID doubles as the connection identity; a
// departed player cannot resume their seat.
type Player struct {
	ID       string
	Name     string
	Alive    bool
	Score    int
	JoinedAt time.Time
}

// roundState tracks one rotation: the alive players still owed a turn, and
// how many answers were accepted so far this rotation.
type roundState struct {
	Pending  map[string]bool
	Answered int
}

// Room is a single game session.
type Room struct {
	Code    string
	Mode    string
	HostID  string
	Phase   string
	Players []*Player

	// Order is the turn rotation; always a permutation of the ids in
	// Players. Idx points at the player whose turn it is while playing.
	Order []string
	Idx   int

	PerTurn     int
	Remaining   int
	TurnStarted time.Time
	timer       *turnTimer

	Round *roundState

	usedSet  map[string]bool
	usedList []string

	Topic *Topic
}

func newRoom(code, mode, hostID string, topic *Topic, perTurn int) *Room {
	return &Room{
		Code:    code,
		Mode:    mode,
		HostID:  hostID,
		Phase:   phaseLobby,
		PerTurn: perTurn,
		usedSet: make(map[string]bool),
		Topic:   topic,
	}
}

func (r *Room) addPlayer(p *Player) {
	r.Players = append(r.Players, p)
	r.Order = append(r.Order, p.ID)
}

func (r *Room) playerByID(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) orderIndex(id string) int {
	for i, pid := range r.Order {
		if pid == id {
			return i
		}
	}
	return -1
}

func (r *Room) currentPlayerID() string {
	if r.Idx < 0 || r.Idx >= len(r.Order) {
		return ""
	}
	return r.Order[r.Idx]
}

func (r *Room) aliveCount() int {
	count := 0
	for _, p := range r.Players {
		if p.Alive {
			count++
		}
	}
	return count
}

func (r *Room) aliveIDsInOrder() []string {
	ids := make([]string, 0, len(r.Order))
	for _, pid := range r.Order {
		if p := r.playerByID(pid); p != nil && p.Alive {
			ids = append(ids, pid)
		}
	}
	return ids
}

// nextAliveIndex scans the rotation clockwise from fromIdx and returns the
// index of the next alive player, or -1 if no one else is standing.
func (r *Room) nextAliveIndex(fromIdx int) int {
	n := len(r.Order)
	for step := 1; step <= n; step++ {
		i := (fromIdx + step) % n
		if p := r.playerByID(r.Order[i]); p != nil && p.Alive {
			return i
		}
	}
	return -1
}

// isUsed reports whether a canonical answer was already claimed this game.
func (r *Room) isUsed(canonical string) bool {
	return r.usedSet[canonical]
}

func (r *Room) addUsed(canonical string) {
	if r.usedSet[canonical] {
		return
	}
	r.usedSet[canonical] = true
	r.usedList = append(r.usedList, canonical)
}

func (r *Room) usedAnswers() []string {
	return r.usedList
}

// resetGame returns the room to a clean pre-game state, keeping the roster.
func (r *Room) resetGame() {
	r.usedSet = make(map[string]bool)
	r.usedList = nil
	r.Round = nil
	r.Idx = 0
	for _, p := range r.Players {
		p.Alive = true
		p.Score = 0
	}
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// shuffleInPlace is a Fisher-Yates shuffle seeded from crypto/rand.
func shuffleInPlace[T any](s []T) {
	for i := len(s) - 1; i > 0; i-- {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			continue
		}
		j := int(b[0]) % (i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
