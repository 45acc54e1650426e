package device

import (
	"context"
	"errors"
)

// deviceFinder is the lookup OwnershipGuard needs.
type deviceFinder interface {
	GetByID(ctx context.Context, id string) (*Device, error)
}

// OwnershipGuard answers whether a user owns a device. Ownership is never
// cached: every call reads current storage state.
type OwnershipGuard struct {
	devices deviceFinder
}

// NewOwnershipGuard creates a guard backed by repo.
func NewOwnershipGuard(repo Repository) *OwnershipGuard {
	return &OwnershipGuard{devices: repo}
}

// UserOwns reports whether a device with deviceID exists and is owned by
// userID. A missing device yields false with no error, so "not yours" and
// "does not exist" look the same to callers. Storage failures are returned.
func (g *OwnershipGuard) UserOwns(ctx context.Context, userID, deviceID string) (bool, error) {
	if userID == "" || deviceID == "" {
		return false, nil
	}

	d, err := g.devices.GetByID(ctx, deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return d.OwnedBy(userID), nil
}
