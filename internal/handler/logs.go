package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"badgeserver/internal/config"
	"badgeserver/internal/logger"
)

const defaultLogLimit = 200

// logFiles maps the level segment of /admin/api/logs/{level} to its file.
var logFiles = map[string]string{
	"info":    "info.log",
	"warning": "warning.log",
	"error":   "error.log",
}

// RecentLogsHandler returns the newest in-memory log entries, newest first.
func RecentLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), defaultLogLimit)
		writeJSON(w, logger, http.StatusOK, logger.Recent(limit))
	}
}

// ShowLogFileHandler serves the log file for {level} as text/plain.
func ShowLogFileHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[r.PathValue("level")]
		if !ok {
			writeDetail(w, logger, http.StatusNotFound, "Unknown log level.")
			return
		}
		serveLogFile(w, r, cfg.LogDirectory, filename)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogFileHandler truncates the log file for {level}.
func ClearLogFileHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[r.PathValue("level")]
		if !ok {
			writeDetail(w, logger, http.StatusNotFound, "Unknown log level.")
			return
		}
		if err := logger.CleanLogs(filename); err != nil {
			writeDetail(w, logger, http.StatusInternalServerError, "Failed to clear log file.")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
