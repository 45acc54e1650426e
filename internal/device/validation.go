package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
	maxOwnerIDLength     = 128
	deviceIDPrefix       = "dev-"
)

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// validateNew checks the generic device fields. Type registration is
// checked separately against a TypeRegistry.
func validateNew(name, description, ownerID string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if len(description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidDevice, maxDescriptionLength)
	}
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidDevice)
	}
	if len(ownerID) > maxOwnerIDLength {
		return fmt.Errorf("%w: owner exceeds %d characters", ErrInvalidDevice, maxOwnerIDLength)
	}
	return nil
}

// GenerateID returns a new unique device identifier.
func GenerateID() string {
	return deviceIDPrefix + uuid.NewString()
}
