package user

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/pagevault/pagevault/internal/domain"
)

// setupTestDB creates an in-memory SQLite database with the account tables.
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

func seedUser(t *testing.T, repo domain.UserRepository, username, email string) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:  username,
		Email:     email,
		Role:      domain.RoleArchivist,
		LastLogin: time.Now().UTC(),
		MaxSize:   1 << 30,
		MaxColl:   10,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return u
}

func TestCreateAndGetByUsername(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	user := seedUser(t, repo, "alice", "alice@example.com")
	if user.ID == 0 {
		t.Fatal("expected non-zero ID after Create")
	}

	got, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.Email != "alice@example.com" || got.Role != domain.RoleArchivist {
		t.Errorf("got %+v; want email=alice@example.com role=archivist", got)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	_, err := repo.GetByUsername(context.Background(), "nobody")
	if !domain.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByEmail(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	seedUser(t, repo, "alice", "alice@example.com")

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("username = %q; want alice", got.Username)
	}

	if _, err := repo.GetByEmail(context.Background(), "none@example.com"); !domain.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_DuplicateUsername(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	seedUser(t, repo, "alice", "alice@example.com")

	err := repo.Create(context.Background(), &domain.User{
		Username: "alice",
		Email:    "other@example.com",
		Role:     domain.RoleArchivist,
	})
	if !domain.IsAlreadyExists(err) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestList_SortOrder(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	seedUser(t, repo, "carol", "carol@example.com")
	seedUser(t, repo, "alice", "alice@example.com")
	seedUser(t, repo, "bob", "bob@example.com")

	users, err := repo.List(ctx, "username", false)
	if err != nil {
		t.Fatalf("List asc: %v", err)
	}
	gotAsc := usernames(users)
	wantAsc := []string{"alice", "bob", "carol"}
	for i := range wantAsc {
		if gotAsc[i] != wantAsc[i] {
			t.Fatalf("asc order = %v; want %v", gotAsc, wantAsc)
		}
	}

	users, err = repo.List(ctx, "username", true)
	if err != nil {
		t.Fatalf("List desc: %v", err)
	}
	gotDesc := usernames(users)
	wantDesc := []string{"carol", "bob", "alice"}
	for i := range wantDesc {
		if gotDesc[i] != wantDesc[i] {
			t.Fatalf("desc order = %v; want %v", gotDesc, wantDesc)
		}
	}
}

func TestList_TieBreakOnUsername(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	// Same email domain sort value is impossible; use name, which can tie.
	for _, username := range []string{"zoe", "amy"} {
		u := &domain.User{Username: username, Email: username + "@example.com", Name: "Same Name", Role: domain.RoleArchivist}
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("create %s: %v", username, err)
		}
	}

	users, err := repo.List(ctx, "name", false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := usernames(users)
	if got[0] != "amy" || got[1] != "zoe" {
		t.Errorf("tie-break order = %v; want [amy zoe]", got)
	}
}

func TestUpdateFields_Atomic(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()
	seedUser(t, repo, "alice", "alice@example.com")

	err := repo.UpdateFields(ctx, "alice", map[string]any{
		"max_size": int64(42),
		"desc":     "updated",
	})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	got, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.MaxSize != 42 || got.Desc != "updated" {
		t.Errorf("got max_size=%d desc=%q; want 42/updated", got.MaxSize, got.Desc)
	}
}

func TestUpdateFields_NotFound(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	err := repo.UpdateFields(context.Background(), "ghost", map[string]any{"desc": "x"})
	if !domain.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()
	seedUser(t, repo, "alice", "alice@example.com")

	if err := repo.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByUsername(ctx, "alice"); !domain.IsNotFound(err) {
		t.Errorf("expected user to be gone, got %v", err)
	}

	if err := repo.Delete(ctx, "alice"); !domain.IsNotFound(err) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func usernames(users []domain.User) []string {
	out := make([]string, len(users))
	for i := range users {
		out[i] = users[i].Username
	}
	return out
}
