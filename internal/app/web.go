// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/record"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local network use
	},
}

// wsClient is one browser connection.
type wsClient struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Hub keeps the latest record of each kind and relays every record to the
// connected websocket clients.
type Hub struct {
	mu      sync.RWMutex
	latest  map[record.Kind]json.RawMessage
	clients map[*wsClient]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		latest:  make(map[record.Kind]json.RawMessage),
		clients: make(map[*wsClient]struct{}),
	}
}

// Publish stores payload as the latest record of its kind and forwards it.
// Payloads that are not records are rejected.
func (h *Hub) Publish(payload []byte) error {
	r, err := record.Decode(payload)
	if err != nil {
		return err
	}
	msg := append([]byte(nil), payload...)

	h.mu.Lock()
	h.latest[r.Kind()] = msg
	for c := range h.clients {
		select {
		case c.sendCh <- msg:
		case <-c.done:
		default:
			// Slow client: drop rather than stall the MQTT callback.
		}
	}
	h.mu.Unlock()
	return nil
}

// HandleLatest serves the latest record per kind as one JSON object.
func (h *Hub) HandleLatest(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.latest) == 0 {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.latest); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// HandleWS upgrades the connection and streams records until it closes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	c := &wsClient{conn: conn, sendCh: make(chan []byte, 256), done: make(chan struct{})}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.close()
	}()

	go c.writePump()

	// Read until the browser goes away; incoming messages are ignored.
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("web: websocket read error: %v", err)
			}
			return
		}
	}
}

// Handler wires the hub endpoints and the static files under dir.
func (h *Hub) Handler(dir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/latest", h.HandleLatest)
	mux.HandleFunc("/ws", h.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(dir)))
	return mux
}

// RunWeb subscribes to the record topics and serves them to browsers.
func RunWeb() error {
	cfg := config.Get()
	hub := NewHub()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to every record kind
	topic := cfg.MQTTTopicPrefix + "/#"
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := hub.Publish(msg.Payload()); err != nil {
			log.Printf("MQTT payload on %s: %v", msg.Topic(), err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", topic)

	// 3) API, websocket relay and static files from ./web
	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, hub.Handler("web"))
}
