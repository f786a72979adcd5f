package fleet

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE devices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		host TEXT NOT NULL UNIQUE,
		mac TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return NewSQLiteRepository(db)
}

func TestCreateAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	device := &Device{Name: "Kitchen", Host: "192.168.1.10", MAC: "00:22:6C:AA:BB:CC"}
	if err := repo.Create(ctx, device); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if device.ID == "" {
		t.Error("Create did not generate an ID")
	}
	if device.CreatedAt.IsZero() {
		t.Error("Create did not stamp CreatedAt")
	}

	byID, err := repo.GetByID(ctx, device.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if byID.Host != device.Host || byID.Name != "Kitchen" {
		t.Errorf("GetByID = %+v", byID)
	}

	byHost, err := repo.GetByHost(ctx, device.Host)
	if err != nil {
		t.Fatalf("GetByHost returned error: %v", err)
	}
	if byHost.ID != device.ID {
		t.Errorf("GetByHost ID = %q, want %q", byHost.ID, device.ID)
	}
}

func TestCreateRequiresHost(t *testing.T) {
	repo := openTestRepo(t)

	err := repo.Create(context.Background(), &Device{Name: "nameless"})
	if !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("expected ErrInvalidDevice, got %v", err)
	}
}

func TestCreateDuplicateHostFails(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Device{Host: "192.168.1.10"}); err != nil {
		t.Fatalf("first Create returned error: %v", err)
	}
	if err := repo.Create(ctx, &Device{Host: "192.168.1.10"}); err == nil {
		t.Error("duplicate host Create should fail")
	}
}

func TestGetMissing(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestListOrdered(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, d := range []*Device{
		{Name: "Zulu", Host: "192.168.1.30"},
		{Name: "Alpha", Host: "192.168.1.10"},
	} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(devices) != 2 || devices[0].Name != "Alpha" {
		t.Errorf("List order wrong: %v, %v", devices[0].Name, devices[1].Name)
	}
}

func TestUpdate(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	device := &Device{Name: "Kitchen", Host: "192.168.1.10"}
	if err := repo.Create(ctx, device); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	device.Name = "Kitchen Speaker"
	if err := repo.Update(ctx, device); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	got, err := repo.GetByID(ctx, device.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.Name != "Kitchen Speaker" {
		t.Errorf("Name = %q after update", got.Name)
	}

	if err := repo.Update(ctx, &Device{ID: "missing", Host: "x"}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("updating missing device: got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	device := &Device{Host: "192.168.1.10"}
	if err := repo.Create(ctx, device); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := repo.Delete(ctx, device.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := repo.GetByID(ctx, device.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("device still present after delete: %v", err)
	}
	if err := repo.Delete(ctx, device.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("deleting missing device: got %v", err)
	}
}

func TestUpsertByHost(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first := &Device{Name: "Kitchen", Host: "192.168.1.10"}
	if err := repo.UpsertByHost(ctx, first); err != nil {
		t.Fatalf("initial upsert returned error: %v", err)
	}

	second := &Device{Name: "Kitchen Speaker", Host: "192.168.1.10", MAC: "00:22:6C:AA:BB:CC"}
	if err := repo.UpsertByHost(ctx, second); err != nil {
		t.Fatalf("second upsert returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created a new row: %q vs %q", second.ID, first.ID)
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "Kitchen Speaker" {
		t.Errorf("directory after upsert: %+v", devices)
	}
}
