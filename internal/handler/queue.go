package handler

import (
	"net/http"
	"strconv"

	"badgeserver/internal/logger"
	"badgeserver/internal/models"
	"badgeserver/internal/services"
	"badgeserver/internal/services/websocket"

	gorilla "github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// ListQueueHandler lists pending work; ?include_processed=1 adds handled items.
func ListQueueHandler(queue *services.Queue, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		items, err := queue.List(formBool(q.Get("include_processed")), atoiDefault(q.Get("limit"), services.DefaultQueueLimit))
		if err != nil {
			logger.Error("%v", err)
			writeDetail(w, logger, http.StatusInternalServerError, "Failed to load the work queue.")
			return
		}
		if items == nil {
			items = []models.WorkItem{}
		}
		writeJSON(w, logger, http.StatusOK, items)
	}
}

// MarkProcessedHandler marks a work item processed.
func MarkProcessedHandler(queue *services.Queue, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeDetail(w, logger, http.StatusBadRequest, "Invalid work item id.")
			return
		}

		result, err := queue.MarkProcessed(id)
		if err != nil {
			logger.Error("%v", err)
			writeDetail(w, logger, http.StatusInternalServerError, "Failed to update the work item.")
			return
		}

		switch result {
		case models.WorkNotFound:
			writeDetail(w, logger, http.StatusNotFound, "Work item not found.")
		case models.WorkAlreadyProcessed:
			writeJSON(w, logger, http.StatusConflict, map[string]interface{}{"status": result, "id": id})
		default:
			writeJSON(w, logger, http.StatusOK, map[string]interface{}{"status": result, "id": id})
		}
	}
}

// DeleteWorkItemHandler removes a work item.
func DeleteWorkItemHandler(queue *services.Queue, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeDetail(w, logger, http.StatusBadRequest, "Invalid work item id.")
			return
		}

		deleted, err := queue.Delete(id)
		if err != nil {
			logger.Error("%v", err)
			writeDetail(w, logger, http.StatusInternalServerError, "Failed to delete the work item.")
			return
		}
		if !deleted {
			writeDetail(w, logger, http.StatusNotFound, "Work item not found.")
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{"status": "deleted", "id": id})
	}
}

type claimedItem struct {
	models.WorkItem
	Image []byte `json:"image"`
}

// ClaimWorkHandler hands the oldest pending item, including its rendered
// image, to an operator. An empty queue answers 204.
func ClaimWorkHandler(queue *services.Queue, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := queue.Claim()
		if err != nil {
			logger.Error("%v", err)
			writeDetail(w, logger, http.StatusInternalServerError, "Failed to claim a work item.")
			return
		}
		if item == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, logger, http.StatusOK, claimedItem{WorkItem: *item, Image: item.Image})
	}
}

// QueueWebsocketHandler streams queue events to admin viewers.
func QueueWebsocketHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if !gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
					logger.Warning("Queue viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
