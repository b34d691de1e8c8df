/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "encoding/json"

// Events travel in both directions as {"event": name, "data": payload}.

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type serverMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client → server payloads.

type soloStartRequest struct {
	PerTurn  int    `json:"perTurn"`
	TopicKey string `json:"topicKey"`
	Name     string `json:"name"`
}

type matchQueueRequest struct {
	Opponents int    `json:"opponents"`
	PerTurn   int    `json:"perTurn"`
	TopicKey  string `json:"topicKey"`
	Name      string `json:"name"`
}

type roomCreateRequest struct {
	Name     string `json:"name"`
	TopicKey string `json:"topicKey"`
}

type roomJoinRequest struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

type gameStartRequest struct {
	RoomCode string `json:"roomCode"`
	PerTurn  int    `json:"perTurn"`
	TopicKey string `json:"topicKey"`
}

type gameResetRequest struct {
	RoomCode string `json:"roomCode"`
}

type answerSubmitRequest struct {
	RoomCode string `json:"roomCode"`
	Answer   string `json:"answer"`
}

// Server → client payloads.

type playerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Alive bool   `json:"alive"`
	Score int    `json:"score"`
}

type finalPlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Alive bool   `json:"alive"`
}

type soloPlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type roomCreatedMsg struct {
	RoomCode string `json:"roomCode"`
}

type roomUpdateMsg struct {
	RoomCode        string       `json:"roomCode"`
	HostID          *string      `json:"hostId"`
	Phase           string       `json:"phase"`
	PerTurn         int          `json:"perTurn"`
	TopicKey        string       `json:"topicKey"`
	TopicLabel      string       `json:"topicLabel"`
	Mode            string       `json:"mode"`
	Players         []playerInfo `json:"players"`
	CurrentPlayerID *string      `json:"currentPlayerId"`
	Used            []string     `json:"used"`
}

type matchSearchingMsg struct {
	Size       int    `json:"size"`
	PerTurn    int    `json:"perTurn"`
	TopicLabel string `json:"topicLabel"`
}

type matchFoundMsg struct {
	RoomCode string `json:"roomCode"`
}

type turnStartMsg struct {
	CurrentPlayerID string `json:"currentPlayerId"`
	Remaining       int    `json:"remaining"`
}

type turnTickMsg struct {
	Remaining int `json:"remaining"`
}

type turnTimeoutMsg struct {
	PlayerID string `json:"playerId"`
}

type answerAcceptedMsg struct {
	Value string `json:"value"`
}

// answerRejectedMsg reasons: "invalid", "repeated" (Country carries the
// canonical form already claimed), "toosoon" (Min/Elapsed in milliseconds).
type answerRejectedMsg struct {
	Reason  string `json:"reason"`
	Country string `json:"country,omitempty"`
	Min     int64  `json:"min,omitempty"`
	Elapsed int64  `json:"elapsed,omitempty"`
}

const (
	rejectInvalid  = "invalid"
	rejectRepeated = "repeated"
	rejectTooSoon  = "toosoon"
)

type gameOverMsg struct {
	WinnerID *string       `json:"winnerId"`
	Players  []finalPlayer `json:"players"`
}

type gameDrawMsg struct {
	Players []finalPlayer `json:"players"`
}

type soloOverMsg struct {
	Reason     string       `json:"reason"`
	TopicLabel string       `json:"topicLabel"`
	UsedCount  int          `json:"usedCount"`
	Total      int          `json:"total"`
	Players    []soloPlayer `json:"players"`
}

const (
	soloReasonTimeout   = "timeout"
	soloReasonCompleted = "completed"
)

type errorMsg struct {
	Message string `json:"message"`
}

type roomLeftMsg struct {
	OK bool `json:"ok"`
}

type emptyMsg struct{}
