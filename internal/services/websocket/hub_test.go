package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"badgeserver/internal/config"
	"badgeserver/internal/logger"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) *HubService {
	t.Helper()
	log := logger.NewLogger(&config.Config{LogDirectory: t.TempDir(), LogBufferSize: 16})
	hub := NewHubService(log)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub := newTestHub(t)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(Event{Type: EventEnqueued, ID: 7, UniqueID: "badge-1", FirmwareHash: "ABCDEF0123456789"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != EventEnqueued || got.ID != 7 || got.UniqueID != "badge-1" {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.Time.IsZero() {
		t.Error("event time should be filled in")
	}
}

func TestHub_PublishAfterStop(t *testing.T) {
	hub := newTestHub(t)
	hub.Stop()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(Event{Type: EventDeleted, ID: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked after Stop")
	}
}
