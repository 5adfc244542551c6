package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chainwage/payroll_layer/internal/wallet"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

const (
	subscriberWriteTimeout = 10 * time.Second
	subscriberPongWait     = 60 * time.Second
	subscriberPingPeriod   = 50 * time.Second
	maxSubscribers         = 512
)

// Event is pushed to websocket subscribers when wallet state changes.
type Event struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
	Magic   uint32 `json:"magic,omitempty"`
	Network string `json:"network,omitempty"`
}

// EventHub fans wallet account and network changes out to websocket
// subscribers.
type EventHub struct {
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	conn    *websocket.Conn
	hub     *EventHub
	writeMu sync.Mutex
}

// NewEventHub creates the hub and wires it to the connector's change
// callbacks.
func NewEventHub(connector *wallet.Connector, log *logger.Logger) *EventHub {
	if log == nil {
		log = logger.NewDefault("events")
	}
	hub := &EventHub{
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:         log,
		subscribers: make(map[*subscriber]struct{}),
	}
	connector.OnAccountChanged(func(account wallet.Account) {
		hub.Broadcast(Event{Type: "account_changed", Address: account.Address})
	})
	connector.OnNetworkChanged(func(network wallet.Network) {
		hub.Broadcast(Event{Type: "network_changed", Magic: network.Magic, Network: network.Name})
	})
	return hub
}

// Broadcast writes an event to every subscriber, dropping connections that
// fail.
func (h *EventHub) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.writeMu.Lock()
		_ = sub.conn.SetWriteDeadline(time.Now().Add(subscriberWriteTimeout))
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			sub.writeMu.Unlock()
			sub.stop(err)
			continue
		}
		sub.writeMu.Unlock()
	}
}

// ServeHTTP upgrades the request to a websocket and registers the subscriber.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, hub: h}
	h.mu.Lock()
	if len(h.subscribers) >= maxSubscribers {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	sub.start()
}

func (h *EventHub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
}

// SubscriberCount reports the number of live subscribers.
func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (s *subscriber) start() {
	_ = s.conn.SetReadDeadline(time.Now().Add(subscriberPongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(subscriberPongWait))
		return nil
	})
	go s.readLoop()
	go s.pingLoop()
}

// readLoop drains inbound frames so control messages are processed; the hub
// never expects client data.
func (s *subscriber) readLoop() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.stop(err)
			return
		}
	}
}

func (s *subscriber) pingLoop() {
	ticker := time.NewTicker(subscriberPingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		s.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(subscriberWriteTimeout))
		if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			s.writeMu.Unlock()
			s.stop(err)
			return
		}
		s.writeMu.Unlock()
	}
}

func (s *subscriber) stop(err error) {
	if err != nil {
		s.hub.log.WithError(err).Debug("websocket subscriber closed")
	}
	_ = s.conn.Close()
	s.hub.remove(s)
}
