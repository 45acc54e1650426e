package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry manages the device lifecycle: adding devices and their
// profiles, owner-scoped lookups, and cascade deletion.
//
// Every owner-scoped method takes the requester ID explicitly. All methods
// are safe for concurrent use; consistency comes from the repository's
// transactions rather than in-memory state.
type Registry struct {
	repo   Repository
	types  *TypeRegistry
	guard  *OwnershipGuard
	logger Logger
}

// NewRegistry creates a device registry over repo. types must be the same
// registry the repository was built with.
func NewRegistry(repo Repository, types *TypeRegistry) *Registry {
	return &Registry{
		repo:   repo,
		types:  types,
		guard:  NewOwnershipGuard(repo),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Types returns the device type registry.
func (r *Registry) Types() *TypeRegistry {
	return r.types
}

// Add creates a device without a profile. Each call creates a new device
// with a fresh ID, even for identical arguments.
func (r *Registry) Add(ctx context.Context, name, description, ownerID string, typeID TypeID) (*Device, error) {
	d, err := r.newDevice(name, description, ownerID, typeID)
	if err != nil {
		return nil, err
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}

	r.logger.Info("device added", "device_id", d.ID, "owner_id", d.OwnerID, "type_id", int(d.TypeID))
	return d, nil
}

// AddProfile attaches p to its device. The device must exist, have no
// profile yet, and be of a type whose variant matches p.
func (r *Registry) AddProfile(ctx context.Context, p Profile) error {
	if err := r.repo.AddProfile(ctx, p); err != nil {
		return fmt.Errorf("adding %s profile: %w", p.Variant(), err)
	}

	r.logger.Info("device profile added", "device_id", p.DeviceID(), "variant", string(p.Variant()))
	return nil
}

// AddRF attaches RF codes to an existing RF device.
func (r *Registry) AddRF(ctx context.Context, deviceID string, onCode, offCode, pulseLength int) (*RFDevice, error) {
	rf := &RFDevice{
		DeviceRef:   deviceID,
		OnCode:      onCode,
		OffCode:     offCode,
		PulseLength: pulseLength,
	}
	if err := rf.Validate(); err != nil {
		return nil, err
	}
	if err := r.AddProfile(ctx, rf); err != nil {
		return nil, err
	}
	return rf, nil
}

// AddDevice creates a device and its type-specific profile in one unit of
// work. If the profile cannot be stored, no device is left behind.
func (r *Registry) AddDevice(ctx context.Context, nd NewDevice) (*Device, Profile, error) {
	d, err := r.newDevice(nd.Name, nd.Description, nd.OwnerID, nd.TypeID)
	if err != nil {
		return nil, nil, err
	}

	pt, err := r.types.profileType(nd.TypeID)
	if err != nil {
		return nil, nil, err
	}
	profile, err := pt.Decode(d.ID, nd.Params)
	if err != nil {
		return nil, nil, err
	}

	if err := r.repo.CreateWithProfile(ctx, d, profile); err != nil {
		return nil, nil, fmt.Errorf("creating device: %w", err)
	}

	r.logger.Info("device added",
		"device_id", d.ID,
		"owner_id", d.OwnerID,
		"variant", string(profile.Variant()),
	)
	return d, profile, nil
}

// AttachProfile decodes params into the profile variant of the device's
// type and attaches it. Only the owner may attach a profile.
func (r *Registry) AttachProfile(ctx context.Context, requesterID, deviceID string, params []byte) (Profile, error) {
	d, err := r.Get(ctx, requesterID, deviceID)
	if err != nil {
		return nil, err
	}

	pt, err := r.types.profileType(d.TypeID)
	if err != nil {
		return nil, err
	}
	profile, err := pt.Decode(d.ID, params)
	if err != nil {
		return nil, err
	}

	if err := r.AddProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Get returns the device if requesterID owns it.
func (r *Registry) Get(ctx context.Context, requesterID, deviceID string) (*Device, error) {
	d, err := r.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !d.OwnedBy(requesterID) {
		return nil, ErrUnauthorized
	}
	return d, nil
}

// ListDevices returns the devices owned by ownerID.
func (r *Registry) ListDevices(ctx context.Context, ownerID string) ([]Device, error) {
	return r.repo.ListByOwner(ctx, ownerID)
}

// SpecificDevice returns the device's profile. A missing device yields
// ErrDeviceNotFound; a device without a profile yields ErrProfileNotFound.
func (r *Registry) SpecificDevice(ctx context.Context, deviceID string) (Profile, error) {
	return r.repo.GetProfile(ctx, deviceID)
}

// DataAttributes returns the device profile rendered as ordered data
// attributes.
func (r *Registry) DataAttributes(ctx context.Context, deviceID string) ([]Attribute, error) {
	p, err := r.SpecificDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return DataAttributes(p), nil
}

// UserOwns reports whether userID owns deviceID. See OwnershipGuard.
func (r *Registry) UserOwns(ctx context.Context, userID, deviceID string) (bool, error) {
	return r.guard.UserOwns(ctx, userID, deviceID)
}

// Delete removes a device owned by requesterID together with its profile.
func (r *Registry) Delete(ctx context.Context, requesterID, deviceID string) error {
	if _, err := r.Get(ctx, requesterID, deviceID); err != nil {
		return err
	}

	if err := r.repo.Delete(ctx, deviceID); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return err
		}
		return fmt.Errorf("deleting device: %w", err)
	}

	r.logger.Info("device deleted", "device_id", deviceID, "owner_id", requesterID)
	return nil
}

// newDevice validates the fields and builds an unsaved device. The name is
// stored trimmed, as it was validated.
func (r *Registry) newDevice(name, description, ownerID string, typeID TypeID) (*Device, error) {
	name = strings.TrimSpace(name)
	if err := validateNew(name, description, ownerID); err != nil {
		return nil, err
	}
	if !r.types.IsRegistered(typeID) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDeviceType, typeID)
	}

	return &Device{
		ID:          GenerateID(),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		TypeID:      typeID,
	}, nil
}
