package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"badgeserver/internal/logger"

	"github.com/gorilla/websocket"
)

// Queue event types pushed to admin viewers.
const (
	EventEnqueued  = "enqueued"
	EventProcessed = "processed"
	EventDeleted   = "deleted"
)

// Event describes a change in the personalisation work queue.
type Event struct {
	Type         string    `json:"type"`
	ID           int64     `json:"id"`
	UniqueID     string    `json:"unique_id,omitempty"`
	Name         string    `json:"name,omitempty"`
	ImageLabel   string    `json:"image_label,omitempty"`
	FirmwareHash string    `json:"firmware_hash,omitempty"`
	Time         time.Time `json:"time"`
}

// HubService fans queue events out to every connected websocket client.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until Stop is called. Remaining clients are closed on exit.
func (h *HubService) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Queue viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Queue viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending queue event: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop terminates Run.
func (h *HubService) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish broadcasts an event. It never blocks the caller: when the hub is
// saturated or stopped the event is dropped.
func (h *HubService) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Error encoding queue event: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		h.logger.Warning("Queue event %s for item %d dropped, hub is busy", event.Type, event.ID)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
