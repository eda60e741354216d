// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package websocket pushes ranking refresh announcements to connected
// clients. Clients subscribe once and receive an epoch message after
// every materialization sweep; payloads stay small because clients
// refetch the boards they care about over HTTP.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/metrics"
)

// Message types.
const (
	MessageTypeRankingRefresh = "ranking_refresh"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// Message is one websocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// RankingRefreshData announces a new materialization epoch.
type RankingRefreshData struct {
	Epoch     int64  `json:"epoch"`
	BuiltAt   string `json:"built_at"`
	Timestamp string `json:"timestamp"`
}

// Hub maintains the set of connected clients and fans out broadcasts.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Serve runs the hub loop until the context is cancelled. Lifecycle
// events take priority over broadcasts so client state is settled
// before messages fan out.
func (h *Hub) Serve(ctx context.Context) error {
	logging.Info().Msg("Ranking hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			logging.Info().Msg("Ranking hub stopped")
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll()
			logging.Info().Msg("Ranking hub stopped")
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// String implements the suture service name.
func (h *Hub) String() string {
	return "ranking-hub"
}

// BroadcastRankingRefresh announces a completed refresh sweep. Safe to
// call from the refresher goroutine; drops the message when the
// broadcast buffer is full rather than blocking the sweep.
func (h *Hub) BroadcastRankingRefresh(epoch int64, builtAt time.Time) {
	message := Message{
		Type: MessageTypeRankingRefresh,
		Data: RankingRefreshData{
			Epoch:     epoch,
			BuiltAt:   builtAt.Format(time.RFC3339),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Int64("epoch", epoch).Msg("Broadcast channel full, dropping refresh announcement")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(n))
	logging.Info().Int("clients", n).Msg("Ranking hub client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(n))
	logging.Info().Int("clients", n).Msg("Ranking hub client disconnected")
}

// fanOut sends a message to every client in ID order. Clients whose
// send buffer is full are dropped; a stalled reader must not hold back
// the rest.
func (h *Hub) fanOut(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	metrics.WebSocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketClients.Set(0)
}
