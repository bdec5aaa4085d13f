/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	feedBuffer = 8
	writeWait  = 10 * time.Second
)

// FeedMessage is pushed to every open ranking page.
type FeedMessage struct {
	Type   string `json:"type"` // "hello" or "refresh"
	Reason string `json:"reason,omitempty"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan FeedMessage
}

// Feed fans reveal updates out to connected ranking pages.
type Feed struct {
	clients map[*feedClient]bool

	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan FeedMessage
	done       <-chan struct{}

	connected prometheus.Gauge
}

func newFeed(ctx context.Context, connected prometheus.Gauge) *Feed {
	f := &Feed{
		clients:    make(map[*feedClient]bool),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan FeedMessage),
		done:       ctx.Done(),
		connected:  connected,
	}

	go f.run()

	return f
}

func (f *Feed) run() {
	for {
		select {
		case c := <-f.register:
			f.clients[c] = true
			c.send <- FeedMessage{Type: "hello"}

		case c := <-f.unregister:
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}

		case msg := <-f.broadcast:
			for c := range f.clients {
				select {
				case c.send <- msg:
				default:
					delete(f.clients, c)
					close(c.send)
				}
			}

		case <-f.done:
			for c := range f.clients {
				delete(f.clients, c)
				close(c.send)
			}
			f.gauge()

			return
		}

		f.gauge()
	}
}

func (f *Feed) gauge() {
	if f.connected != nil {
		f.connected.Set(float64(len(f.clients)))
	}
}

// Publish sends msg to every connected client. It is a no-op once the
// feed has shut down.
func (f *Feed) Publish(msg FeedMessage) {
	if f == nil {
		return
	}

	select {
	case f.broadcast <- msg:
	case <-f.done:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func serveFeed(cfg *Config, f *Feed) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "FEED: Upgrade from %s failed: %v", realIP(r), err)
			return
		}

		c := &feedClient{
			conn: conn,
			send: make(chan FeedMessage, feedBuffer),
		}

		select {
		case f.register <- c:
		case <-f.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "FEED: Ranking viewer connected from %s", realIP(r))

		go c.writePump()
		c.readPump(f)
	}
}

// readPump discards client input and unregisters on disconnect.
func (c *feedClient) readPump(f *Feed) {
	defer func() {
		select {
		case f.unregister <- c:
		case <-f.done:
		}
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (c *feedClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
