/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"errors"
	"strconv"
	"strings"
)

var (
	errRoomNotFound       = errors.New("room not found")
	errGameAlreadyStarted = errors.New("game already started")
	errNameRequired       = errors.New("name is required")
)

// Room codes avoid easily-confused characters (no I/O/0/1).
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const roomCodeLength = 6

// Registry owns every active room, keyed by room code.
type Registry struct {
	rooms map[string]*Room
}

func newRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (reg *Registry) newRoomCode() string {
	for {
		buf := make([]byte, roomCodeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, roomCodeLength)
		for i := range out {
			out[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
		}
		code := string(out)

		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

// Create makes a new room under a fresh code. The room starts in the lobby
// phase; callers transition it as needed.
func (reg *Registry) Create(mode, hostID string, topic *Topic, perTurn int) *Room {
	room := newRoom(reg.newRoomCode(), mode, hostID, topic, perTurn)
	reg.rooms[room.Code] = room
	return room
}

func (reg *Registry) Get(code string) *Room {
	return reg.rooms[code]
}

func (reg *Registry) Delete(code string) {
	delete(reg.rooms, code)
}

func (reg *Registry) Len() int {
	return len(reg.rooms)
}

// Join seats a player in a private room. Only lobby-phase rooms accept
// joins; the player's name is deduplicated against the current roster.
func (reg *Registry) Join(code string, player *Player) (*Room, error) {
	room := reg.Get(code)
	if room == nil {
		return nil, errRoomNotFound
	}
	if room.Phase != phaseLobby {
		return nil, errGameAlreadyStarted
	}
	if strings.TrimSpace(player.Name) == "" {
		return nil, errNameRequired
	}

	player.Name = dedupeName(room, strings.TrimSpace(player.Name))
	room.addPlayer(player)

	return room, nil
}

// dedupeName suffixes a joining player's name ("Name 2", "Name 3", ...)
// until it no longer collides, case-insensitively, with the roster.
func dedupeName(room *Room, base string) string {
	taken := make(map[string]bool, len(room.Players))
	for _, p := range room.Players {
		taken[strings.ToLower(p.Name)] = true
	}
	return uniqueName(taken, base)
}

func uniqueName(taken map[string]bool, base string) string {
	candidate := base
	for suffix := 2; taken[strings.ToLower(candidate)]; suffix++ {
		candidate = base + " " + strconv.Itoa(suffix)
	}
	taken[strings.ToLower(candidate)] = true
	return candidate
}
