package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chainwage/payroll_layer/internal/wallet"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *EventHub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", want, hub.SubscriberCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventHubBroadcast(t *testing.T) {
	connector := wallet.NewConnector(&fakeProvider{}, nil)
	hub := NewEventHub(connector, nil)
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	hub.Broadcast(Event{Type: "network_changed", Magic: 860833102})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != "network_changed" || event.Magic != 860833102 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestEventHubForwardsConnectorChanges(t *testing.T) {
	addr := testAddress(t)
	provider := &fakeProvider{
		account: wallet.Account{Address: addr},
		network: wallet.Network{Magic: 860833102},
	}
	connector := wallet.NewConnector(provider, nil)
	hub := NewEventHub(connector, nil)
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	if _, err := connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Moving the wallet to another account is observed and fanned out.
	provider.account = wallet.Account{Address: testAddress(t)}
	if err := connector.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != "account_changed" || event.Address != provider.account.Address {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestEventHubDropsClosedSubscribers(t *testing.T) {
	connector := wallet.NewConnector(&fakeProvider{}, nil)
	hub := NewEventHub(connector, nil)
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	conn.Close()
	// The read loop notices the close and unregisters.
	waitForSubscribers(t, hub, 0)

	hub.Broadcast(Event{Type: "account_changed"})
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers, have %d", hub.SubscriberCount())
	}
}
