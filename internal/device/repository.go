package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// ListByOwner retrieves all devices owned by ownerID, ordered by name.
	ListByOwner(ctx context.Context, ownerID string) ([]Device, error)

	// Create inserts a new device without a profile.
	Create(ctx context.Context, device *Device) error

	// CreateWithProfile inserts a device and its profile in one transaction.
	CreateWithProfile(ctx context.Context, device *Device, profile Profile) error

	// GetProfile returns the device's profile.
	// Returns ErrDeviceNotFound or ErrProfileNotFound.
	GetProfile(ctx context.Context, deviceID string) (Profile, error)

	// AddProfile attaches a profile to an existing device.
	// Returns ErrDeviceNotFound or ErrProfileExists.
	AddProfile(ctx context.Context, profile Profile) error

	// Delete removes a device and its profile in one transaction.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
//
// Profile rows are stored by the ProfileType registered for the device's
// type, so the repository never names a concrete profile table.
type SQLiteRepository struct {
	db    *sql.DB
	types *TypeRegistry
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB, types *TypeRegistry) *SQLiteRepository {
	return &SQLiteRepository{db: db, types: types}
}

const deviceColumns = `id, name, description, owner_id, type_id, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	return getDevice(ctx, r.db, id)
}

// ListByOwner retrieves all devices owned by ownerID.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE owner_id = ? ORDER BY name, created_at`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	return insertDevice(ctx, r.db, device)
}

// CreateWithProfile inserts device and profile atomically. If the profile
// insert fails the device row is rolled back.
func (r *SQLiteRepository) CreateWithProfile(ctx context.Context, device *Device, profile Profile) error {
	pt, err := r.types.profileType(device.TypeID)
	if err != nil {
		return err
	}
	if pt.Variant() != profile.Variant() {
		return fmt.Errorf("%w: %s profile for %s device type", ErrInvalidProfile, profile.Variant(), pt.Variant())
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := insertDevice(ctx, tx, device); err != nil {
		return err
	}
	if err := pt.Insert(ctx, tx, profile); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device: %w", err)
	}
	return nil
}

// GetProfile returns the profile for deviceID.
func (r *SQLiteRepository) GetProfile(ctx context.Context, deviceID string) (Profile, error) {
	d, err := getDevice(ctx, r.db, deviceID)
	if err != nil {
		return nil, err
	}

	pt, err := r.types.profileType(d.TypeID)
	if err != nil {
		return nil, err
	}
	return pt.Load(ctx, r.db, deviceID)
}

// AddProfile attaches profile to its device. The device lookup and insert
// share a transaction so a concurrent delete cannot orphan the profile.
func (r *SQLiteRepository) AddProfile(ctx context.Context, profile Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	d, err := getDevice(ctx, tx, profile.DeviceID())
	if err != nil {
		return err
	}

	pt, err := r.types.profileType(d.TypeID)
	if err != nil {
		return err
	}
	if pt.Variant() != profile.Variant() {
		return fmt.Errorf("%w: %s profile for %s device", ErrInvalidProfile, profile.Variant(), pt.Variant())
	}

	if err := pt.Insert(ctx, tx, profile); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing profile: %w", err)
	}
	return nil
}

// Delete removes the device's profile and then the device in a single
// transaction. Either both rows go or neither does.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	d, err := getDevice(ctx, tx, id)
	if err != nil {
		return err
	}

	pt, err := r.types.profileType(d.TypeID)
	if err != nil {
		return err
	}
	if err := pt.DeleteByDevice(ctx, tx, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

func getDevice(ctx context.Context, q Querier, id string) (*Device, error) {
	d, err := scanDevice(q.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return d, nil
}

func insertDevice(ctx context.Context, q Querier, device *Device) error {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	_, err := q.ExecContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		device.ID,
		device.Name,
		device.Description,
		device.OwnerID,
		int(device.TypeID),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidDevice, device.ID)
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var typeID int
	var createdAt, updatedAt string

	if err := scanner.Scan(&d.ID, &d.Name, &d.Description, &d.OwnerID, &typeID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.TypeID = TypeID(typeID)

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}

// isForeignKeyError checks if an error is a SQLite foreign key violation.
func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
