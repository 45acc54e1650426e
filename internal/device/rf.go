package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// VariantRF is the profile variant for RF-switched devices.
const VariantRF Variant = "rf"

// RFDevice holds the codes an RF transmitter sends to switch a socket.
type RFDevice struct {
	ID          int64     `json:"id"`
	DeviceRef   string    `json:"device_id"`
	OnCode      int       `json:"on_code"`
	OffCode     int       `json:"off_code"`
	PulseLength int       `json:"pulse_length"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RFCommand is the message an RF transmitter bridge consumes.
type RFCommand struct {
	OnCode      int    `json:"onCode"`
	OffCode     int    `json:"offCode"`
	PulseLength int    `json:"pulseLength"`
	Action      string `json:"action"`
}

// Variant implements Profile.
func (r *RFDevice) Variant() Variant { return VariantRF }

// DeviceID implements Profile.
func (r *RFDevice) DeviceID() string { return r.DeviceRef }

// Fields implements Profile. Order: on_code, off_code, pulse_length.
func (r *RFDevice) Fields() []Field {
	return []Field{
		{Name: "on_code", Value: r.OnCode},
		{Name: "off_code", Value: r.OffCode},
		{Name: "pulse_length", Value: r.PulseLength},
	}
}

// Command implements Profile.
func (r *RFDevice) Command(action string) any {
	return RFCommand{
		OnCode:      r.OnCode,
		OffCode:     r.OffCode,
		PulseLength: r.PulseLength,
		Action:      action,
	}
}

// Validate checks the profile names its device. Codes and pulse length are
// passed through to the transmitter unchanged, so any integer is accepted.
func (r *RFDevice) Validate() error {
	if r.DeviceRef == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidProfile)
	}
	return nil
}

// RFProfileType stores RFDevice profiles in the rf_devices table.
type RFProfileType struct{}

// Variant implements ProfileType.
func (RFProfileType) Variant() Variant { return VariantRF }

// Decode implements ProfileType.
func (RFProfileType) Decode(deviceID string, params []byte) (Profile, error) {
	var in struct {
		OnCode      *int `json:"on_code"`
		OffCode     *int `json:"off_code"`
		PulseLength *int `json:"pulse_length"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if in.OnCode == nil || in.OffCode == nil || in.PulseLength == nil {
		return nil, fmt.Errorf("%w: on_code, off_code and pulse_length are required", ErrInvalidProfile)
	}

	rf := &RFDevice{
		DeviceRef:   deviceID,
		OnCode:      *in.OnCode,
		OffCode:     *in.OffCode,
		PulseLength: *in.PulseLength,
	}
	if err := rf.Validate(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Load implements ProfileType.
func (RFProfileType) Load(ctx context.Context, q Querier, deviceID string) (Profile, error) {
	var rf RFDevice
	var createdAt, updatedAt string

	err := q.QueryRowContext(ctx, `
		SELECT id, device_id, on_code, off_code, pulse_length, created_at, updated_at
		FROM rf_devices
		WHERE device_id = ?`, deviceID,
	).Scan(&rf.ID, &rf.DeviceRef, &rf.OnCode, &rf.OffCode, &rf.PulseLength, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying rf device: %w", err)
	}

	rf.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by Insert
	rf.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by Insert
	return &rf, nil
}

// Insert implements ProfileType.
func (RFProfileType) Insert(ctx context.Context, q Querier, p Profile) error {
	rf, ok := p.(*RFDevice)
	if !ok {
		return fmt.Errorf("%w: expected rf profile, got %s", ErrInvalidProfile, p.Variant())
	}
	if err := rf.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if rf.CreatedAt.IsZero() {
		rf.CreatedAt = now
	}
	rf.UpdatedAt = now

	result, err := q.ExecContext(ctx, `
		INSERT INTO rf_devices (device_id, on_code, off_code, pulse_length, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rf.DeviceRef, rf.OnCode, rf.OffCode, rf.PulseLength,
		rf.CreatedAt.Format(time.RFC3339),
		rf.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrProfileExists
		}
		if isForeignKeyError(err) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("inserting rf device: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		rf.ID = id
	}
	return nil
}

// DeleteByDevice implements ProfileType.
func (RFProfileType) DeleteByDevice(ctx context.Context, q Querier, deviceID string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM rf_devices WHERE device_id = ?", deviceID); err != nil {
		return fmt.Errorf("deleting rf device: %w", err)
	}
	return nil
}
