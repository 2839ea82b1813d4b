package collection

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/pagevault/pagevault/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Collection{}, &domain.Recording{}, &domain.Page{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCollection(t *testing.T, db *gorm.DB, ownerID uint, slug string) *domain.Collection {
	t.Helper()
	coll := &domain.Collection{Slug: slug, OwnerID: ownerID, Title: slug}
	if err := db.Create(coll).Error; err != nil {
		t.Fatalf("seed collection %s: %v", slug, err)
	}
	return coll
}

func TestListByOwner_NestedTree(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	coll := seedCollection(t, db, 1, "web-archive")
	rec := &domain.Recording{Slug: "session-1", CollectionID: coll.ID, Title: "First session", Size: 2048}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("seed recording: %v", err)
	}
	page := &domain.Page{RecordingID: rec.ID, URL: "https://example.com/", Title: "Example"}
	if err := db.Create(page).Error; err != nil {
		t.Fatalf("seed page: %v", err)
	}

	colls, err := repo.ListByOwner(ctx, 1, true)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(colls) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(colls))
	}
	if len(colls[0].Recordings) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(colls[0].Recordings))
	}
	if len(colls[0].Recordings[0].Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(colls[0].Recordings[0].Pages))
	}
	if colls[0].Recordings[0].Pages[0].URL != "https://example.com/" {
		t.Errorf("unexpected page: %+v", colls[0].Recordings[0].Pages[0])
	}
}

func TestListByOwner_WithoutRecordings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionRepository(db)

	coll := seedCollection(t, db, 1, "web-archive")
	rec := &domain.Recording{Slug: "session-1", CollectionID: coll.ID, Title: "First session"}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("seed recording: %v", err)
	}

	colls, err := repo.ListByOwner(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(colls) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(colls))
	}
	if len(colls[0].Recordings) != 0 {
		t.Errorf("recordings must not be loaded, got %d", len(colls[0].Recordings))
	}
}

func TestListByOwner_ScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionRepository(db)

	seedCollection(t, db, 1, "mine")
	seedCollection(t, db, 2, "theirs")

	colls, err := repo.ListByOwner(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(colls) != 1 || colls[0].Slug != "mine" {
		t.Errorf("expected only owner's collections, got %+v", colls)
	}
}

func TestCountByOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionRepository(db)

	seedCollection(t, db, 1, "a")
	seedCollection(t, db, 1, "b")
	seedCollection(t, db, 2, "c")

	n, err := repo.CountByOwner(context.Background(), 1)
	if err != nil {
		t.Fatalf("CountByOwner: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d; want 2", n)
	}
}

func TestDeleteByOwner_CascadesNestedRows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	coll := seedCollection(t, db, 1, "web-archive")
	rec := &domain.Recording{Slug: "session-1", CollectionID: coll.ID, Title: "First session"}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("seed recording: %v", err)
	}
	if err := db.Create(&domain.Page{RecordingID: rec.ID, URL: "https://example.com/"}).Error; err != nil {
		t.Fatalf("seed page: %v", err)
	}
	keep := seedCollection(t, db, 2, "other-owner")

	if err := repo.DeleteByOwner(ctx, 1); err != nil {
		t.Fatalf("DeleteByOwner: %v", err)
	}

	for _, probe := range []struct {
		name  string
		model any
	}{
		{"collections", &domain.Collection{}},
		{"recordings", &domain.Recording{}},
		{"pages", &domain.Page{}},
	} {
		var n int64
		if err := db.Model(probe.model).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", probe.name, err)
		}
		want := int64(0)
		if probe.name == "collections" {
			want = 1 // the other owner's collection stays
		}
		if n != want {
			t.Errorf("%s count = %d; want %d", probe.name, n, want)
		}
	}

	var still domain.Collection
	if err := db.First(&still, keep.ID).Error; err != nil {
		t.Errorf("other owner's collection should survive: %v", err)
	}
}
