package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"badgeserver/internal/logger"
	"badgeserver/internal/macaddr"
	"badgeserver/internal/models"
	"badgeserver/internal/repository"
	"badgeserver/internal/services"
	"badgeserver/internal/services/builder"
)

// HealthHandler handles GET /healthz.
func HealthHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// GetBadgeHandler returns the badge profile with the images it can choose from.
func GetBadgeHandler(personalizer *services.Personalizer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uniqueID := r.PathValue("id")

		profile, err := personalizer.Profile(uniqueID)
		if errors.Is(err, services.ErrBadgeNotFound) {
			writeDetail(w, logger, http.StatusNotFound, "Badge not found.")
			return
		}
		if err != nil {
			logger.Error("Failed to load badge %s: %v", uniqueID, err)
			writeDetail(w, logger, http.StatusInternalServerError, "Something went wrong while retrieving your badge. Please try again.")
			return
		}

		writeJSON(w, logger, http.StatusOK, profile)
	}
}

type personalizeJSON struct {
	ImageLabel   string   `json:"image_label"`
	FontSize     *int     `json:"font_size"`
	TextX        *float64 `json:"text_x"`
	TextY        *float64 `json:"text_y"`
	OverrideName string   `json:"override_name"`
	SecretCode   string   `json:"secret_code"`
}

func floatCoordinate(f *float64) *int {
	if f == nil {
		return nil
	}
	return coordinate(*f)
}

// parsePersonalizeRequest accepts either a JSON body or form fields.
func parsePersonalizeRequest(r *http.Request) (services.PersonalizeRequest, error) {
	req := services.PersonalizeRequest{UniqueID: r.PathValue("id")}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body personalizeJSON
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return req, errors.New("invalid JSON body")
		}
		req.ImageLabel = body.ImageLabel
		req.OverrideName = body.OverrideName
		req.SecretCode = body.SecretCode
		req.TextX = floatCoordinate(body.TextX)
		req.TextY = floatCoordinate(body.TextY)
		if body.FontSize != nil {
			req.FontSize = *body.FontSize
			if req.FontSize < models.MinFontSize || req.FontSize > models.MaxFontSize {
				return req, fmt.Errorf("font size must be between %d and %d", models.MinFontSize, models.MaxFontSize)
			}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, errors.New("invalid form body")
		}
		req.ImageLabel = r.FormValue("image_label")
		req.OverrideName = r.FormValue("override_name")
		req.SecretCode = r.FormValue("secret_code")
		req.TextX = parseCoordinate(r.FormValue("text_x"))
		req.TextY = parseCoordinate(r.FormValue("text_y"))
		if raw := strings.TrimSpace(r.FormValue("font_size")); raw != "" {
			size, err := strconv.Atoi(raw)
			if err != nil || size < models.MinFontSize || size > models.MaxFontSize {
				return req, fmt.Errorf("font size must be between %d and %d", models.MinFontSize, models.MaxFontSize)
			}
			req.FontSize = size
		}
	}

	req.ImageLabel = strings.TrimSpace(req.ImageLabel)
	switch {
	case req.ImageLabel == "":
		return req, errors.New("please select a valid image")
	case len(req.ImageLabel) > models.MaxImageLabelLength:
		return req, fmt.Errorf("image label must be %d characters or fewer", models.MaxImageLabelLength)
	case len(req.OverrideName) > models.MaxBadgeNameLength:
		return req, fmt.Errorf("name must be %d characters or fewer", models.MaxBadgeNameLength)
	case len(req.SecretCode) > models.MaxSecretCodeLength:
		return req, fmt.Errorf("secret code must be %d characters or fewer", models.MaxSecretCodeLength)
	}
	return req, nil
}

// PersonalizeBadgeHandler renders the selection, generates firmware and queues the badge.
func PersonalizeBadgeHandler(personalizer *services.Personalizer, maxBody int64, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)

		req, err := parsePersonalizeRequest(r)
		if err != nil {
			writeDetail(w, logger, http.StatusBadRequest, detailMessage(err))
			return
		}

		result, err := personalizer.Personalize(req)
		if err != nil {
			var validationErr *services.ValidationError
			var generationErr *builder.GenerationError
			switch {
			case errors.Is(err, services.ErrBadgeNotFound):
				writeDetail(w, logger, http.StatusNotFound, "Badge not found.")
			case errors.Is(err, services.ErrImageNotFound):
				writeDetail(w, logger, http.StatusBadRequest, "Please select a valid image.")
			case errors.Is(err, services.ErrSecretRequired):
				writeDetail(w, logger, http.StatusForbidden, "That image requires a valid secret code.")
			case errors.As(err, &validationErr):
				writeDetail(w, logger, http.StatusBadRequest, sentence(validationErr.Message))
			case errors.As(err, &generationErr):
				writeDetail(w, logger, http.StatusInternalServerError, "We couldn't prepare the firmware right now. Please try again.")
			default:
				logger.Error("Failed to personalise badge %s: %v", req.UniqueID, err)
				writeDetail(w, logger, http.StatusInternalServerError, "We couldn't save your badge right now. Please try again.")
			}
			return
		}

		writeJSON(w, logger, http.StatusOK, result)
	}
}

// sentence turns a lower-case error message into user-facing text.
func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

func detailMessage(err error) string {
	return sentence(err.Error())
}

// lookupFirmware resolves the badge for a MAC path value and writes the
// error response itself when there is nothing to return.
func lookupFirmware(w http.ResponseWriter, r *http.Request, badges repository.BadgeRepository, logger *logger.Logger) *models.Badge {
	raw := r.PathValue("mac")
	mac, ok := macaddr.Normalize(raw)
	if !ok || len(raw) > macaddr.MaxInputLength {
		writeDetail(w, logger, http.StatusBadRequest, "Invalid MAC address. Use format AA:BB:CC:DD:EE:FF:00:11.")
		return nil
	}

	badge, err := badges.GetByMAC(mac)
	if err != nil {
		logger.Error("Failed to look up badge for MAC %s: %v", mac, err)
		writeDetail(w, logger, http.StatusInternalServerError, "Failed to look up that badge. Please try again.")
		return nil
	}
	if badge == nil {
		writeDetail(w, logger, http.StatusNotFound, "Badge not found.")
		return nil
	}
	if len(badge.Firmware) == 0 {
		writeDetail(w, logger, http.StatusNotFound, "Firmware has not been generated for this badge yet.")
		return nil
	}
	return badge
}

// FirmwareByMACHandler returns the badge firmware as base64 JSON for devices.
func FirmwareByMACHandler(badges repository.BadgeRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		badge := lookupFirmware(w, r, badges, logger)
		if badge == nil {
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{
			"firmware_base64": base64.StdEncoding.EncodeToString(badge.Firmware),
			"firmware_hash":   badge.FirmwareHash,
		})
	}
}

// FirmwareDownloadHandler streams the raw firmware binary.
func FirmwareDownloadHandler(badges repository.BadgeRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		badge := lookupFirmware(w, r, badges, logger)
		if badge == nil {
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="badge-%s.bin"`, badge.FirmwareHash))
		w.Header().Set("Content-Length", strconv.Itoa(len(badge.Firmware)))
		w.Header().Set("ETag", `"`+badge.FirmwareHash+`"`)
		w.Write(badge.Firmware)
	}
}
