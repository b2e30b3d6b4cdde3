package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"badgeserver/internal/config"
	"badgeserver/internal/logger"
	"badgeserver/internal/macaddr"
	"badgeserver/internal/models"
	"badgeserver/internal/repository"
	"badgeserver/internal/services/render"
)

type badgePayload struct {
	UniqueID   string `json:"unique_id"`
	Name       string `json:"name"`
	MACAddress string `json:"mac_address"`
}

// CreateBadgeHandler creates or updates a badge registration.
func CreateBadgeHandler(badges repository.BadgeRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload badgePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeDetail(w, logger, http.StatusBadRequest, "Invalid JSON body.")
			return
		}
		payload.UniqueID = strings.TrimSpace(payload.UniqueID)
		payload.Name = strings.TrimSpace(payload.Name)
		payload.MACAddress = strings.TrimSpace(payload.MACAddress)

		switch {
		case payload.UniqueID == "" || len(payload.UniqueID) > models.MaxBadgeIDLength:
			writeDetail(w, logger, http.StatusBadRequest, fmt.Sprintf("Badge ID is required and must be %d characters or fewer.", models.MaxBadgeIDLength))
			return
		case payload.Name == "" || len(payload.Name) > models.MaxBadgeNameLength:
			writeDetail(w, logger, http.StatusBadRequest, fmt.Sprintf("Name is required and must be %d characters or fewer.", models.MaxBadgeNameLength))
			return
		}

		mac, ok := macaddr.Normalize(payload.MACAddress)
		if !ok || len(payload.MACAddress) > macaddr.MaxInputLength {
			writeDetail(w, logger, http.StatusBadRequest, "Invalid MAC address. Use format AA:BB:CC:DD:EE:FF:00:11.")
			return
		}

		outcome, err := badges.Upsert(&models.Badge{UniqueID: payload.UniqueID, Name: payload.Name, MACAddress: mac})
		if errors.Is(err, repository.ErrDuplicateMAC) {
			writeDetail(w, logger, http.StatusBadRequest, "That MAC address is already assigned to another badge.")
			return
		}
		if err != nil {
			logger.Error("Failed to create or update badge %s: %v", payload.UniqueID, err)
			writeDetail(w, logger, http.StatusInternalServerError, "Something went wrong while saving the badge. Please try again.")
			return
		}

		status, message := http.StatusOK, "Badge updated successfully."
		if outcome == models.BadgeCreated {
			status, message = http.StatusCreated, "Badge created successfully."
		}
		logger.Info("Badge %s %s (MAC %s)", payload.UniqueID, outcome, mac)
		writeJSON(w, logger, status, map[string]string{
			"status":      string(outcome),
			"unique_id":   payload.UniqueID,
			"name":        payload.Name,
			"mac_address": mac,
			"message":     message,
		})
	}
}

// ListBadgesHandler lists registered badges; ?limit=N bounds the result.
func ListBadgesHandler(badges repository.BadgeRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := badges.List(atoiDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			logger.Error("Failed to list badges: %v", err)
			writeDetail(w, logger, http.StatusInternalServerError, "Failed to list badges.")
			return
		}
		if list == nil {
			list = []models.Badge{}
		}
		writeJSON(w, logger, http.StatusOK, list)
	}
}

// DeleteBadgeHandler removes a badge together with its unlocked images.
func DeleteBadgeHandler(badges repository.BadgeRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uniqueID := r.PathValue("id")
		deleted, err := badges.Delete(uniqueID)
		if err != nil {
			logger.Error("Failed to delete badge %s: %v", uniqueID, err)
			writeDetail(w, logger, http.StatusInternalServerError, "Failed to delete badge.")
			return
		}
		if !deleted {
			writeDetail(w, logger, http.StatusNotFound, "Badge not found.")
			return
		}
		logger.Info("Deleted badge: %s", uniqueID)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "unique_id": uniqueID})
	}
}

// imageSettings reads and validates the metadata fields shared by upload and update.
func imageSettings(r *http.Request, cfg *config.Config, img *models.GalleryImage) error {
	img.Color = strings.ToLower(strings.TrimSpace(r.FormValue("image_color")))
	img.Font = strings.TrimSpace(r.FormValue("image_font"))
	img.SecretCode = strings.TrimSpace(r.FormValue("secret_code"))
	img.RequiresSecretCode = formBool(r.FormValue("requires_secret_code"))

	img.DisplayOrder = 0
	if raw := strings.TrimSpace(r.FormValue("display_order")); raw != "" {
		order, err := strconv.Atoi(raw)
		if err != nil {
			return errors.New("display order must be a whole number")
		}
		img.DisplayOrder = order
	}

	if img.Color == "" {
		img.Color = models.DefaultColor
	}
	if !models.ValidColor(img.Color) {
		return errors.New("please choose a valid color option")
	}

	if img.Font == "" {
		img.Font = cfg.DefaultFont
	}
	fonts, err := render.FontChoices(cfg.FontsDirectory, cfg.DefaultFont)
	if err != nil {
		return errors.New("font options are unavailable right now")
	}
	if !slices.Contains(fonts, img.Font) {
		return errors.New("please choose a valid font option")
	}

	if img.RequiresSecretCode && img.SecretCode == "" {
		return errors.New("secret code is required when locking the image")
	}
	if len(img.SecretCode) > models.MaxSecretCodeLength {
		return fmt.Errorf("secret code must be %d characters or fewer", models.MaxSecretCodeLength)
	}
	return nil
}

func validLabel(label string) error {
	if label == "" {
		return errors.New("image label is required")
	}
	if len(label) > models.MaxImageLabelLength {
		return fmt.Errorf("image label must be %d characters or fewer", models.MaxImageLabelLength)
	}
	return nil
}

func imageResponse(img *models.GalleryImage, status, message string) map[string]interface{} {
	return map[string]interface{}{
		"status":               status,
		"message":              message,
		"image_label":          img.Label,
		"image_color":          img.Color,
		"image_font":           img.Font,
		"requires_secret_code": img.RequiresSecretCode,
		"display_order":        img.DisplayOrder,
		"secret_code_set":      img.SecretCode != "",
	}
}

// UploadImageHandler stores a gallery image from a multipart upload.
func UploadImageHandler(gallery repository.GalleryRepository, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)
		if err := r.ParseMultipartForm(cfg.MaxUploadSize); err != nil {
			writeDetail(w, logger, http.StatusBadRequest, "Could not read the uploaded file.")
			return
		}

		img := &models.GalleryImage{Label: strings.TrimSpace(r.FormValue("image_label"))}
		if err := validLabel(img.Label); err != nil {
			writeDetail(w, logger, http.StatusBadRequest, detailMessage(err))
			return
		}
		if err := imageSettings(r, cfg, img); err != nil {
			writeDetail(w, logger, http.StatusBadRequest, detailMessage(err))
			return
		}

		file, header, err := r.FormFile("image_file")
		if err != nil {
			writeDetail(w, logger, http.StatusBadRequest, "Image file is required.")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			logger.Error("Failed to read uploaded file for %s: %v", img.Label, err)
			writeDetail(w, logger, http.StatusBadRequest, "Could not read the uploaded file.")
			return
		}
		if len(content) == 0 {
			writeDetail(w, logger, http.StatusBadRequest, "Uploaded file is empty.")
			return
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(content)); err != nil {
			writeDetail(w, logger, http.StatusBadRequest, "Uploaded file is not a supported image.")
			return
		}

		img.Data = content
		img.MimeType = header.Header.Get("Content-Type")
		if img.MimeType == "" || img.MimeType == "application/octet-stream" {
			img.MimeType = http.DetectContentType(content)
		}

		created, err := gallery.Store(img)
		if err != nil {
			logger.Error("Failed to store gallery image %s: %v", img.Label, err)
			writeDetail(w, logger, http.StatusInternalServerError, "Something went wrong while saving the image. Please try again.")
			return
		}

		if created {
			logger.Info("Gallery image %s uploaded", img.Label)
			writeJSON(w, logger, http.StatusCreated, imageResponse(img, "created", "Badge image uploaded successfully."))
			return
		}
		logger.Info("Gallery image %s replaced", img.Label)
		writeJSON(w, logger, http.StatusOK, imageResponse(img, "updated", "Badge image updated successfully."))
	}
}

// UpdateImageHandler changes an image's settings, keeping its data.
func UpdateImageHandler(gallery repository.GalleryRepository, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img := &models.GalleryImage{Label: strings.TrimSpace(r.PathValue("label"))}
		if err := validLabel(img.Label); err != nil {
			writeDetail(w, logger, http.StatusBadRequest, detailMessage(err))
			return
		}
		if err := r.ParseForm(); err != nil {
			writeDetail(w, logger, http.StatusBadRequest, "Invalid form body.")
			return
		}
		if err := imageSettings(r, cfg, img); err != nil {
			writeDetail(w, logger, http.StatusBadRequest, detailMessage(err))
			return
		}

		updated, err := gallery.Update(img)
		if err != nil {
			logger.Error("Failed to update gallery image %s: %v", img.Label, err)
			writeDetail(w, logger, http.StatusInternalServerError, "Something went wrong while saving the image. Please try again.")
			return
		}
		if !updated {
			writeDetail(w, logger, http.StatusNotFound, "Image not found.")
			return
		}
		writeJSON(w, logger, http.StatusOK, imageResponse(img, "updated", "Badge image updated successfully."))
	}
}

// DeleteImageHandler removes an image from the gallery.
func DeleteImageHandler(gallery repository.GalleryRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		label := r.PathValue("label")
		deleted, err := gallery.Delete(label)
		if err != nil {
			logger.Error("Failed to delete gallery image %s: %v", label, err)
			writeDetail(w, logger, http.StatusInternalServerError, "Failed to delete image.")
			return
		}
		if !deleted {
			writeDetail(w, logger, http.StatusNotFound, "Image not found.")
			return
		}
		logger.Info("Deleted gallery image: %s", label)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "image_label": label})
	}
}

// ListImagesHandler lists every gallery image, locked ones included.
func ListImagesHandler(gallery repository.GalleryRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		images, err := gallery.List()
		if err != nil {
			logger.Error("Failed to list gallery images: %v", err)
			writeDetail(w, logger, http.StatusInternalServerError, "Failed to list images.")
			return
		}
		if images == nil {
			images = []models.GalleryImage{}
		}
		writeJSON(w, logger, http.StatusOK, images)
	}
}

// ListFontsHandler lists the fonts images can be configured with.
func ListFontsHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fonts, err := render.FontChoices(cfg.FontsDirectory, cfg.DefaultFont)
		if err != nil {
			logger.Error("Failed to read font directory %s: %v", cfg.FontsDirectory, err)
			fonts = []string{cfg.DefaultFont}
		}
		writeJSON(w, logger, http.StatusOK, fonts)
	}
}
