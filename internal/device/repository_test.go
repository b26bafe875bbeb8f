package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/nerrad567/otg-controller/internal/infrastructure/database"
	"github.com/nerrad567/otg-controller/migrations"
)

// setupTestDB opens an in-memory database with the production schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db.DB
}

func testDevice(id, label string) *Device {
	d := &Device{ID: id, Label: label, Width: 390, Height: 844, ScreenWidth: 1170, ScreenHeight: 2532}
	_ = d.Coords.Set(PlatformTikTok, "like", Point{XNorm: 0.92, YNorm: 0.55}) //nolint:errcheck // Constant input
	return d
}

func TestSQLiteRepository_SaveAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("FA:01", "Phone 1")
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "FA:01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Label != "Phone 1" || got.ScreenWidth != 1170 {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.HasLike(PlatformTikTok) {
		t.Error("coords did not survive the JSON column")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be populated")
	}
}

func TestSQLiteRepository_SaveReplaces(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("FA:01", "Phone 1")
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	created := d.CreatedAt

	d.Label = "Renamed"
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "FA:01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Label != "Renamed" {
		t.Errorf("Label = %q, want Renamed", got.Label)
	}
	if got.CreatedAt.Unix() != created.Unix() {
		t.Errorf("CreatedAt changed on update: %v -> %v", created, got.CreatedAt)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_ListOrdersByLabel(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, d := range []*Device{testDevice("c", "Charlie"), testDevice("a", "Alpha"), testDevice("b", "Bravo")} {
		if err := repo.Save(ctx, d); err != nil {
			t.Fatalf("Save(%s) error = %v", d.ID, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 3 || devices[0].Label != "Alpha" || devices[2].Label != "Charlie" {
		t.Errorf("List() order = %v", devices)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Save(ctx, testDevice("a", "Alpha")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "a"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Delete() error = %v, want ErrDeviceNotFound", err)
	}
}
