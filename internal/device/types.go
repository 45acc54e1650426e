package device

import "time"

// TypeID identifies a device type. Each registered type maps to exactly one
// profile variant in a TypeRegistry.
type TypeID int

// TypeRF is the device type for appliances switched by a 433MHz RF socket.
const TypeRF TypeID = 1

// Device is the generic, user-owned record for one controllable appliance.
//
// Hardware parameters live in a separate Profile keyed by the device ID;
// a Device without a profile is valid but cannot be actuated.
type Device struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	TypeID      TypeID    `json:"type_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnedBy reports whether userID owns the device.
func (d *Device) OwnedBy(userID string) bool {
	return d != nil && userID != "" && d.OwnerID == userID
}

// NewDevice holds the caller-supplied fields for adding a device together
// with its type-specific parameters.
type NewDevice struct {
	Name        string
	Description string
	OwnerID     string
	TypeID      TypeID

	// Params is the JSON encoding of the type-specific profile parameters,
	// e.g. {"on_code":101,"off_code":202,"pulse_length":300} for TypeRF.
	Params []byte
}
