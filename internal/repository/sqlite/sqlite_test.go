package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"badgeserver/internal/models"
	"badgeserver/internal/repository"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "badges_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "test.db")
	db, err := New(dbPath)
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tempDir)
	}

	return db, cleanup
}

func intPtr(v int) *int { return &v }

// ========================================
// Database Tests
// ========================================

func TestDatabase_Connection(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrateTwice(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.migrate(); err != nil {
		t.Errorf("Second migration should be a no-op, got %v", err)
	}
}

// ========================================
// Badge Repository Tests
// ========================================

func TestBadgeRepository_Upsert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBadgeRepository(db)

	result, err := repo.Upsert(&models.Badge{UniqueID: "B001", Name: "Ada", MACAddress: "AA:BB:CC:DD:EE:FF:00:11"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if result != models.BadgeCreated {
		t.Errorf("Expected created, got %s", result)
	}

	result, err = repo.Upsert(&models.Badge{UniqueID: "B001", Name: "Ada L.", MACAddress: "AA:BB:CC:DD:EE:FF:00:11"})
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if result != models.BadgeUpdated {
		t.Errorf("Expected updated, got %s", result)
	}

	badge, err := repo.GetByID("B001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if badge == nil || badge.Name != "Ada L." {
		t.Fatalf("Expected renamed badge, got %+v", badge)
	}
	if badge.Selection != nil {
		t.Error("New badge should have no selection")
	}
}

func TestBadgeRepository_DuplicateMAC(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBadgeRepository(db)
	mac := "01:02:03:04:05:06:07:08"

	if _, err := repo.Upsert(&models.Badge{UniqueID: "A", Name: "A", MACAddress: mac}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := repo.Upsert(&models.Badge{UniqueID: "B", Name: "B", MACAddress: mac}); !errors.Is(err, repository.ErrDuplicateMAC) {
		t.Errorf("Expected ErrDuplicateMAC, got %v", err)
	}

	// Badges without a MAC do not collide.
	if _, err := repo.Upsert(&models.Badge{UniqueID: "C", Name: "C"}); err != nil {
		t.Errorf("Upsert without MAC failed: %v", err)
	}
	if _, err := repo.Upsert(&models.Badge{UniqueID: "D", Name: "D"}); err != nil {
		t.Errorf("Upsert without MAC failed: %v", err)
	}
}

func TestBadgeRepository_GetByID_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	badge, err := NewBadgeRepository(db).GetByID("missing")
	if err != nil {
		t.Fatalf("GetByID should not error for non-existent ID: %v", err)
	}
	if badge != nil {
		t.Error("Expected nil for non-existent badge")
	}
}

func TestBadgeRepository_SaveRenderAndGetByMAC(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBadgeRepository(db)
	mac := "AA:BB:CC:DD:EE:FF:00:11"
	if _, err := repo.Upsert(&models.Badge{UniqueID: "B1", Name: "Grace", MACAddress: mac}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	render := &models.BadgeRender{
		Selection: models.Selection{
			ImageLabel: "cats",
			Image:      []byte{0x89, 'P', 'N', 'G'},
			MimeType:   "image/png",
			Font:       "Awkward.ttf",
			Color:      models.ColorWhite,
			FontSize:   20,
			TextX:      intPtr(10),
		},
		Firmware:     []byte{1, 2, 3},
		FirmwareHash: "0011223344556677",
	}

	saved, err := repo.SaveRender("B1", render, nil)
	if err != nil {
		t.Fatalf("SaveRender failed: %v", err)
	}
	if !saved {
		t.Fatal("Expected SaveRender to report saved")
	}

	badge, err := repo.GetByMAC(mac)
	if err != nil {
		t.Fatalf("GetByMAC failed: %v", err)
	}
	if badge == nil {
		t.Fatal("Expected badge, got nil")
	}
	if badge.FirmwareHash != "0011223344556677" || len(badge.Firmware) != 3 {
		t.Errorf("Firmware not stored: %q %v", badge.FirmwareHash, badge.Firmware)
	}
	if badge.Selection == nil || badge.Selection.ImageLabel != "cats" || badge.Selection.FontSize != 20 {
		t.Fatalf("Selection not stored: %+v", badge.Selection)
	}
	if badge.Selection.TextX == nil || *badge.Selection.TextX != 10 {
		t.Error("Expected text_x 10")
	}
	if badge.Selection.TextY != nil {
		t.Error("Expected text_y to be unset")
	}

	saved, err = repo.SaveRender("missing", render, &models.WorkItem{Token: "t-missing", UniqueID: "missing", Name: "x", ImageLabel: "cats", Image: []byte{1}})
	if err != nil {
		t.Fatalf("SaveRender failed: %v", err)
	}
	if saved {
		t.Error("SaveRender should report false for a missing badge")
	}
	items, err := NewWorkQueueRepository(db).List(true, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no work items for a missing badge, got %d", len(items))
	}
}

func TestBadgeRepository_SaveRenderQueuesAtomically(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBadgeRepository(db)
	work := NewWorkQueueRepository(db)
	if _, err := repo.Upsert(&models.Badge{UniqueID: "B1", Name: "Grace"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	render := &models.BadgeRender{
		Selection:    models.Selection{ImageLabel: "cats", Image: []byte{1}, MimeType: "image/png", FontSize: 16},
		Name:         "Grace Hopper",
		Firmware:     []byte{1, 2, 3},
		FirmwareHash: "0011223344556677",
	}
	item := &models.WorkItem{Token: "tok-1", UniqueID: "B1", Name: "Grace Hopper", ImageLabel: "cats", Image: []byte{1}, FirmwareHash: "0011223344556677"}

	saved, err := repo.SaveRender("B1", render, item)
	if err != nil || !saved {
		t.Fatalf("SaveRender failed: saved=%v err=%v", saved, err)
	}
	if item.ID == 0 {
		t.Error("Expected work item ID to be set")
	}

	badge, _ := repo.GetByID("B1")
	if badge.Name != "Grace Hopper" {
		t.Errorf("Expected renamed badge, got %q", badge.Name)
	}

	// Reusing the token makes the queue insert fail; the badge must be untouched.
	second := &models.BadgeRender{
		Selection:    models.Selection{ImageLabel: "dogs", Image: []byte{2}, MimeType: "image/png", FontSize: 16},
		Name:         "Someone Else",
		Firmware:     []byte{9},
		FirmwareHash: "FFFFFFFFFFFFFFFF",
	}
	dup := &models.WorkItem{Token: "tok-1", UniqueID: "B1", Name: "Someone Else", ImageLabel: "dogs", Image: []byte{2}, FirmwareHash: "FFFFFFFFFFFFFFFF"}
	if _, err := repo.SaveRender("B1", second, dup); err == nil {
		t.Fatal("Expected error for duplicate work token")
	}

	badge, _ = repo.GetByID("B1")
	if badge.Name != "Grace Hopper" || badge.FirmwareHash != "0011223344556677" {
		t.Errorf("Badge changed by failed save: name=%q hash=%q", badge.Name, badge.FirmwareHash)
	}
	if badge.Selection == nil || badge.Selection.ImageLabel != "cats" {
		t.Errorf("Selection changed by failed save: %+v", badge.Selection)
	}

	items, err := work.List(true, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 work item, got %d", len(items))
	}
}

func TestBadgeRepository_UnlockAndDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBadgeRepository(db)
	if _, err := repo.Upsert(&models.Badge{UniqueID: "B1", Name: "X"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	for _, label := range []string{"secret", "secret", "another"} {
		if err := repo.Unlock("B1", label); err != nil {
			t.Fatalf("Unlock failed: %v", err)
		}
	}

	labels, err := repo.UnlockedLabels("B1")
	if err != nil {
		t.Fatalf("UnlockedLabels failed: %v", err)
	}
	if len(labels) != 2 || labels[0] != "another" || labels[1] != "secret" {
		t.Errorf("Unexpected unlocked labels: %v", labels)
	}

	deleted, err := repo.Delete("B1")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	deleted, err = repo.Delete("B1")
	if err != nil || deleted {
		t.Errorf("Second delete = %v, %v; expected false", deleted, err)
	}

	labels, err = repo.UnlockedLabels("B1")
	if err != nil {
		t.Fatalf("UnlockedLabels failed: %v", err)
	}
	if len(labels) != 0 {
		t.Errorf("Expected unlocks to be removed with the badge, got %v", labels)
	}
}

func TestBadgeRepository_List(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBadgeRepository(db)
	for _, id := range []string{"C", "A", "B"} {
		if _, err := repo.Upsert(&models.Badge{UniqueID: id, Name: id}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	badges, err := repo.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(badges) != 2 || badges[0].UniqueID != "A" || badges[1].UniqueID != "B" {
		t.Errorf("Unexpected badges: %+v", badges)
	}
}

// ========================================
// Gallery Repository Tests
// ========================================

func TestGalleryRepository_StoreAndList(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewGalleryRepository(db)

	images := []models.GalleryImage{
		{Label: "zebra", Data: []byte("z"), MimeType: "image/png", Color: "black", DisplayOrder: 0},
		{Label: "apple", Data: []byte("a"), MimeType: "image/png", Color: "white", DisplayOrder: 0},
		{Label: "first", Data: []byte("f"), MimeType: "image/png", Color: "black", DisplayOrder: -1},
	}
	for i := range images {
		created, err := repo.Store(&images[i])
		if err != nil {
			t.Fatalf("Store failed: %v", err)
		}
		if !created {
			t.Errorf("Expected %s to be created", images[i].Label)
		}
		if images[i].ID <= 0 {
			t.Errorf("Expected positive ID, got %d", images[i].ID)
		}
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	expected := []string{"first", "apple", "zebra"}
	if len(list) != len(expected) {
		t.Fatalf("Expected %d images, got %d", len(expected), len(list))
	}
	for i, img := range list {
		if img.Label != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], img.Label)
		}
	}
}

func TestGalleryRepository_StoreReplaces(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewGalleryRepository(db)

	img := &models.GalleryImage{Label: "cats", Data: []byte("v1"), MimeType: "image/png", Color: "black"}
	if _, err := repo.Store(img); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	firstID := img.ID

	replacement := &models.GalleryImage{Label: "cats", Data: []byte("v2"), MimeType: "image/jpeg", Color: "white",
		SecretCode: "meow", RequiresSecretCode: true}
	created, err := repo.Store(replacement)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if created {
		t.Error("Expected replacement, not creation")
	}
	if replacement.ID != firstID {
		t.Errorf("Expected ID %d to be kept, got %d", firstID, replacement.ID)
	}

	got, err := repo.GetByLabel("cats")
	if err != nil {
		t.Fatalf("GetByLabel failed: %v", err)
	}
	if string(got.Data) != "v2" || got.MimeType != "image/jpeg" || !got.Locked() {
		t.Errorf("Unexpected image after replace: %+v", got)
	}
}

func TestGalleryRepository_UpdateAndDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewGalleryRepository(db)
	if _, err := repo.Store(&models.GalleryImage{Label: "dogs", Data: []byte("d"), MimeType: "image/png", Color: "black"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	updated, err := repo.Update(&models.GalleryImage{Label: "dogs", Color: "white", Font: "Other.ttf", DisplayOrder: 5})
	if err != nil || !updated {
		t.Fatalf("Update = %v, %v", updated, err)
	}

	got, err := repo.GetByLabel("dogs")
	if err != nil {
		t.Fatalf("GetByLabel failed: %v", err)
	}
	if got.Color != "white" || got.Font != "Other.ttf" || got.DisplayOrder != 5 || string(got.Data) != "d" {
		t.Errorf("Unexpected image after update: %+v", got)
	}

	updated, err = repo.Update(&models.GalleryImage{Label: "missing"})
	if err != nil || updated {
		t.Errorf("Update of missing image = %v, %v", updated, err)
	}

	deleted, err := repo.Delete("dogs")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	got, err = repo.GetByLabel("dogs")
	if err != nil || got != nil {
		t.Errorf("Expected nil after delete, got %+v, %v", got, err)
	}
}

// ========================================
// Work Queue Repository Tests
// ========================================

func enqueue(t *testing.T, repo *WorkQueueRepository, token string, created time.Time) int64 {
	t.Helper()

	id, err := repo.Enqueue(&models.WorkItem{
		Token:      token,
		UniqueID:   "B1",
		Name:       "Ada",
		ImageLabel: "cats",
		Image:      []byte("png"),
		MimeType:   "image/png",
		CreatedAt:  created,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return id
}

func TestWorkQueueRepository_ListAndMark(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewWorkQueueRepository(db)
	base := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	first := enqueue(t, repo, "t1", base)
	second := enqueue(t, repo, "t2", base.Add(time.Minute))

	items, err := repo.List(false, 50)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != second {
		t.Fatalf("Expected newest first, got %+v", items)
	}

	result, err := repo.MarkProcessed(first)
	if err != nil || result != models.WorkMarked {
		t.Fatalf("MarkProcessed = %s, %v", result, err)
	}
	result, err = repo.MarkProcessed(first)
	if err != nil || result != models.WorkAlreadyProcessed {
		t.Errorf("Second MarkProcessed = %s, %v", result, err)
	}
	result, err = repo.MarkProcessed(999)
	if err != nil || result != models.WorkNotFound {
		t.Errorf("MarkProcessed(999) = %s, %v", result, err)
	}

	pending, err := repo.List(false, 50)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second {
		t.Errorf("Expected only the second item pending, got %+v", pending)
	}

	all, err := repo.List(true, 50)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 items including processed, got %d", len(all))
	}
	for _, item := range all {
		if item.ID == first && !item.Processed() {
			t.Error("First item should be processed")
		}
	}
}

func TestWorkQueueRepository_ClaimOldest(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewWorkQueueRepository(db)

	item, err := repo.ClaimOldest()
	if err != nil || item != nil {
		t.Fatalf("Expected empty queue, got %+v, %v", item, err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	enqueue(t, repo, "late", base.Add(time.Hour))
	oldest := enqueue(t, repo, "early", base)

	item, err = repo.ClaimOldest()
	if err != nil {
		t.Fatalf("ClaimOldest failed: %v", err)
	}
	if item == nil || item.ID != oldest || item.Token != "early" {
		t.Fatalf("Expected oldest item, got %+v", item)
	}
	if !item.Processed() {
		t.Error("Claimed item should be marked processed")
	}

	item, err = repo.ClaimOldest()
	if err != nil || item == nil || item.Token != "late" {
		t.Fatalf("Expected late item, got %+v, %v", item, err)
	}

	item, err = repo.ClaimOldest()
	if err != nil || item != nil {
		t.Errorf("Expected queue to be drained, got %+v, %v", item, err)
	}
}

func TestWorkQueueRepository_TokenAndDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewWorkQueueRepository(db)
	id := enqueue(t, repo, "abc", time.Now())

	item, err := repo.GetByToken("abc")
	if err != nil || item == nil || item.ID != id {
		t.Fatalf("GetByToken = %+v, %v", item, err)
	}

	deleted, err := repo.Delete(id)
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	item, err = repo.GetByToken("abc")
	if err != nil || item != nil {
		t.Errorf("Expected nil after delete, got %+v, %v", item, err)
	}
}

func TestDatabase_ConcurrentEnqueue(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewWorkQueueRepository(db)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			_, err := repo.Enqueue(&models.WorkItem{
				Token:      "concurrent_" + string(rune('a'+idx)),
				UniqueID:   "B1",
				Name:       "N",
				ImageLabel: "L",
				Image:      []byte("x"),
			})
			if err != nil {
				t.Errorf("Concurrent enqueue %d failed: %v", idx, err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	items, err := repo.List(true, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 10 {
		t.Errorf("Expected 10 items, got %d", len(items))
	}
}
