package route

import (
	"net/http"

	"badgeserver/internal/config"
	"badgeserver/internal/handler"
	"badgeserver/internal/logger"
	"badgeserver/internal/middleware"
	"badgeserver/internal/repository"
	"badgeserver/internal/services"
	"badgeserver/internal/services/websocket"
)

// Dependencies groups everything the HTTP surface needs.
type Dependencies struct {
	Config       *config.Config
	Logger       *logger.Logger
	Badges       repository.BadgeRepository
	Gallery      repository.GalleryRepository
	Personalizer *services.Personalizer
	Queue        *services.Queue
	Hub          *websocket.HubService
}

// SetupRoutes registers the public API and the basic-auth protected admin API.
func SetupRoutes(d Dependencies) http.Handler {
	cfg, log := d.Config, d.Logger
	mux := http.NewServeMux()

	// System
	mux.HandleFunc("GET /healthz", handler.HealthHandler(log))

	// Public badge endpoints
	mux.HandleFunc("GET /api/badges/{id}", handler.GetBadgeHandler(d.Personalizer, log))
	mux.HandleFunc("POST /api/badges/{id}", handler.PersonalizeBadgeHandler(d.Personalizer, cfg.MaxUploadSize, log))
	mux.HandleFunc("GET /api/badges/mac/{mac}", handler.FirmwareByMACHandler(d.Badges, log))
	mux.HandleFunc("GET /api/badges/mac/{mac}/firmware", handler.FirmwareDownloadHandler(d.Badges, log))

	// Admin endpoints
	admin := http.NewServeMux()
	admin.HandleFunc("POST /admin/api/badges", handler.CreateBadgeHandler(d.Badges, log))
	admin.HandleFunc("GET /admin/api/badges", handler.ListBadgesHandler(d.Badges, log))
	admin.HandleFunc("DELETE /admin/api/badges/{id}", handler.DeleteBadgeHandler(d.Badges, log))

	admin.HandleFunc("POST /admin/api/images", handler.UploadImageHandler(d.Gallery, cfg, log))
	admin.HandleFunc("GET /admin/api/images", handler.ListImagesHandler(d.Gallery, log))
	admin.HandleFunc("PUT /admin/api/images/{label}", handler.UpdateImageHandler(d.Gallery, cfg, log))
	admin.HandleFunc("DELETE /admin/api/images/{label}", handler.DeleteImageHandler(d.Gallery, log))
	admin.HandleFunc("GET /admin/api/fonts", handler.ListFontsHandler(cfg, log))

	admin.HandleFunc("GET /admin/api/queue", handler.ListQueueHandler(d.Queue, log))
	admin.HandleFunc("POST /admin/api/queue/claim", handler.ClaimWorkHandler(d.Queue, log))
	admin.HandleFunc("POST /admin/api/queue/{id}/processed", handler.MarkProcessedHandler(d.Queue, log))
	admin.HandleFunc("DELETE /admin/api/queue/{id}", handler.DeleteWorkItemHandler(d.Queue, log))
	admin.HandleFunc("GET /admin/api/queue/ws", handler.QueueWebsocketHandler(d.Hub, log))

	// Log endpoints
	admin.HandleFunc("GET /admin/api/logs", handler.RecentLogsHandler(log))
	admin.HandleFunc("GET /admin/api/logs/{level}", handler.ShowLogFileHandler(cfg, log))
	admin.HandleFunc("POST /admin/api/logs/{level}/clear", handler.ClearLogFileHandler(log))

	mux.Handle("/admin/api/", middleware.BasicAuth(cfg.BasicAuthUsername, cfg.BasicAuthPassword, log, admin))

	return mux
}
