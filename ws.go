/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. The id is minted per connection;
// reconnecting yields a fresh identity. roomCode and matchKey are owned by
// the engine goroutine after registration.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan any

	roomCode string
	matchKey *queueKey
}

// trySend queues msg for the write pump without blocking; a client whose
// buffer is full misses the message rather than stalling the engine.
func (c *Client) trySend(msg any) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) readPump(e *Engine) {
	defer func() {
		e.events <- disconnectEvent{c: c}
		_ = c.conn.Close()
	}()

	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}

		e.events <- clientEvent{c: c, env: env}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func serveWS(cfg *Config, e *Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, 32),
		}

		logf(cfg, "SERVE: Connection %s from %s", client.id, realIP(r))

		e.events <- connectEvent{c: client}

		go client.writePump()
		client.readPump(e)
	}
}
