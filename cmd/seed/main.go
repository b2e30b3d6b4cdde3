// Command seed imports a directory of images into the badge gallery and
// optionally registers badges from a CSV file (unique_id,name,mac_address).
package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"badgeserver/internal/macaddr"
	"badgeserver/internal/models"
	"badgeserver/internal/repository"
	"badgeserver/internal/repository/sqlite"

	_ "badgeserver/internal/pixel"
)

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".webp": true}

func main() {
	imagesDir := flag.String("images", "static/images", "Directory containing gallery images")
	dbPath := flag.String("db", "data/badges.db", "Database path")
	font := flag.String("font", "Awkward.ttf", "Font assigned to imported images")
	color := flag.String("color", models.DefaultColor, "Text color assigned to imported images (black or white)")
	badgesCSV := flag.String("badges", "", "Optional CSV file with unique_id,name,mac_address rows")
	flag.Parse()

	if !models.ValidColor(*color) {
		log.Fatalf("Invalid color %q, use black or white", *color)
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}
	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Importing images from %s to database %s\n", *imagesDir, *dbPath)
	created, updated, skipped, err := importImages(sqlite.NewGalleryRepository(db), *imagesDir, *font, *color)
	if err != nil {
		log.Fatalf("Failed to import images: %v", err)
	}
	fmt.Printf("Gallery: %d created, %d updated, %d skipped\n", created, updated, skipped)

	if *badgesCSV != "" {
		f, err := os.Open(*badgesCSV)
		if err != nil {
			log.Fatalf("Failed to open badges file: %v", err)
		}
		defer f.Close()

		n, err := importBadges(sqlite.NewBadgeRepository(db), f)
		if err != nil {
			log.Fatalf("Failed to import badges: %v", err)
		}
		fmt.Printf("Badges: %d imported\n", n)
	}
}

// importImages stores every decodable image in dir using its file name
// (without extension) as the label. Files are ordered as os.ReadDir returns them.
func importImages(gallery repository.GalleryRepository, dir, font, color string) (created, updated, skipped int, err error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to read images directory: %w", err)
	}

	order := 0
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if file.IsDir() || !imageExtensions[ext] {
			continue
		}

		label := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		if label == "" || len(label) > models.MaxImageLabelLength {
			log.Printf("Skipping %s: label must be 1-%d characters", file.Name(), models.MaxImageLabelLength)
			skipped++
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			log.Printf("Skipping %s: not a supported image: %v", file.Name(), err)
			skipped++
			continue
		}

		isNew, err := gallery.Store(&models.GalleryImage{
			Label:        label,
			Data:         data,
			MimeType:     http.DetectContentType(data),
			Color:        color,
			Font:         font,
			DisplayOrder: order,
		})
		if err != nil {
			return created, updated, skipped, err
		}
		order++
		if isNew {
			created++
		} else {
			updated++
		}
	}
	return created, updated, skipped, nil
}

// importBadges upserts badges from CSV rows. A header row starting with
// "unique_id" is skipped.
func importBadges(badges repository.BadgeRepository, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	count := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "unique_id") {
			continue
		}
		if len(record) < 2 {
			return count, fmt.Errorf("line %d: expected unique_id,name[,mac_address]", line)
		}

		badge := &models.Badge{
			UniqueID: strings.TrimSpace(record[0]),
			Name:     strings.TrimSpace(record[1]),
		}
		if badge.UniqueID == "" || len(badge.UniqueID) > models.MaxBadgeIDLength {
			return count, fmt.Errorf("line %d: invalid unique_id", line)
		}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			mac, ok := macaddr.Normalize(record[2])
			if !ok {
				return count, fmt.Errorf("line %d: invalid MAC address %q", line, record[2])
			}
			badge.MACAddress = mac
		}

		if _, err := badges.Upsert(badge); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}
}
