package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices ordered by label.
	List(ctx context.Context) ([]Device, error)

	// Save inserts the device or replaces the stored row with the same ID.
	Save(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDeviceColumns = `
	SELECT id, label, width, height, screen_width, screen_height,
		group_name, state, coords, created_at, updated_at
	FROM devices`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDeviceColumns+` WHERE id = ?`, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDeviceColumns+` ORDER BY label, id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Save inserts or replaces a device. CreatedAt is preserved for existing
// rows; UpdatedAt is always set to now.
func (r *SQLiteRepository) Save(ctx context.Context, device *Device) error {
	coordsJSON, err := json.Marshal(device.Coords)
	if err != nil {
		return fmt.Errorf("marshalling coords: %w", err)
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, label, width, height, screen_width, screen_height,
			group_name, state, coords, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			width = excluded.width,
			height = excluded.height,
			screen_width = excluded.screen_width,
			screen_height = excluded.screen_height,
			group_name = excluded.group_name,
			state = excluded.state,
			coords = excluded.coords,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		device.Label,
		device.Width,
		device.Height,
		device.ScreenWidth,
		device.ScreenHeight,
		device.Group,
		device.State,
		string(coordsJSON),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving device: %w", err)
	}
	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var coordsJSON, createdAt, updatedAt string

	if err := scanner.Scan(
		&d.ID, &d.Label, &d.Width, &d.Height, &d.ScreenWidth, &d.ScreenHeight,
		&d.Group, &d.State, &coordsJSON, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if coordsJSON != "" {
		if err := json.Unmarshal([]byte(coordsJSON), &d.Coords); err != nil {
			return nil, fmt.Errorf("unmarshalling coords: %w", err)
		}
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Zero time on malformed legacy rows
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Zero time on malformed legacy rows

	return &d, nil
}
