package fleet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Device is one directory entry: a device the service polls, keyed by a
// generated ID and unique on host address.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	MAC       string    `json:"mac,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists the device directory.
type Repository interface {
	Create(ctx context.Context, device *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)
	GetByHost(ctx context.Context, host string) (*Device, error)
	List(ctx context.Context) ([]*Device, error)
	Update(ctx context.Context, device *Device) error
	Delete(ctx context.Context, id string) error
	UpsertByHost(ctx context.Context, device *Device) error
}

// SQLiteRepository implements Repository on an SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open database handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new device. A missing ID is generated; timestamps are
// set to now.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	if device == nil {
		return fmt.Errorf("fleet: create: %w", ErrInvalidDevice)
	}
	if device.Host == "" {
		return fmt.Errorf("fleet: create: host required: %w", ErrInvalidDevice)
	}
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, name, host, mac, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		device.ID, device.Name, device.Host, device.MAC,
		device.CreatedAt.Format(time.RFC3339), device.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("fleet: create device %s: %w", device.Host, err)
	}
	return nil
}

// GetByID fetches a device by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	return r.getOne(ctx,
		`SELECT id, name, host, mac, created_at, updated_at FROM devices WHERE id = ?`, id)
}

// GetByHost fetches a device by host address.
func (r *SQLiteRepository) GetByHost(ctx context.Context, host string) (*Device, error) {
	return r.getOne(ctx,
		`SELECT id, name, host, mac, created_at, updated_at FROM devices WHERE host = ?`, host)
}

// List returns all devices ordered by name, then host.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, host, mac, created_at, updated_at FROM devices ORDER BY name, host`)
	if err != nil {
		return nil, fmt.Errorf("fleet: list devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fleet: list devices: %w", err)
	}
	return devices, nil
}

// Update rewrites a device's mutable fields.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	if device == nil || device.ID == "" {
		return fmt.Errorf("fleet: update: %w", ErrInvalidDevice)
	}
	device.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET name = ?, host = ?, mac = ?, updated_at = ? WHERE id = ?`,
		device.Name, device.Host, device.MAC,
		device.UpdatedAt.Format(time.RFC3339), device.ID)
	if err != nil {
		return fmt.Errorf("fleet: update device %s: %w", device.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fleet: update device %s: %w", device.ID, err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("fleet: delete device %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fleet: delete device %s: %w", id, err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// UpsertByHost creates the device or refreshes the existing row for its
// host. Used at startup to fold configured devices into the directory.
func (r *SQLiteRepository) UpsertByHost(ctx context.Context, device *Device) error {
	if device == nil || device.Host == "" {
		return fmt.Errorf("fleet: upsert: %w", ErrInvalidDevice)
	}

	existing, err := r.GetByHost(ctx, device.Host)
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return r.Create(ctx, device)
	case err != nil:
		return err
	}

	existing.Name = device.Name
	existing.MAC = device.MAC
	if err := r.Update(ctx, existing); err != nil {
		return err
	}
	*device = *existing
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg any) (*Device, error) {
	device, err := scanDevice(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	return device, err
}

func scanDevice(row rowScanner) (*Device, error) {
	var device Device
	var createdAt, updatedAt string

	if err := row.Scan(&device.ID, &device.Name, &device.Host, &device.MAC,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("fleet: scan device: %w", err)
	}

	var err error
	if device.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("fleet: parse created_at: %w", err)
	}
	if device.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("fleet: parse updated_at: %w", err)
	}
	return &device, nil
}
