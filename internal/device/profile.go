package device

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Variant names a family of specific device profiles (e.g. "rf").
// It is also the variant segment of the command topic.
type Variant string

// Field is one named hardware parameter of a profile.
type Field struct {
	Name  string
	Value int
}

// Profile is the hardware-specific parameter set attached 1:1 to a Device.
type Profile interface {
	Variant() Variant
	DeviceID() string

	// Fields returns the parameters in declaration order. The order is part
	// of the contract; DataAttributes and any renderer rely on it.
	Fields() []Field

	// Command builds the JSON-encodable payload that tells the transmitter
	// to perform action with this profile's parameters.
	Command(action string) any
}

// Attribute is a rendered (name, value) pair for a profile field.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

const attributePrefix = "data-device-"

// DataAttributes renders a profile's fields as ordered data attributes,
// e.g. on_code=101 becomes data-device-on-code="101".
func DataAttributes(p Profile) []Attribute {
	fields := p.Fields()
	attrs := make([]Attribute, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, Attribute{
			Name:  attributePrefix + strings.ReplaceAll(f.Name, "_", "-"),
			Value: strconv.Itoa(f.Value),
		})
	}
	return attrs
}

// Querier is the subset of *sql.DB and *sql.Tx that profile stores use,
// so the same code runs inside and outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ProfileType plugs one profile variant into the registry: how to decode
// its parameters and how to store it. Adding a hardware family means
// implementing ProfileType and registering it; dispatch code is unchanged.
type ProfileType interface {
	Variant() Variant

	// Decode builds a profile for deviceID from JSON parameters.
	Decode(deviceID string, params []byte) (Profile, error)

	// Load returns ErrProfileNotFound when the device has no profile row.
	Load(ctx context.Context, q Querier, deviceID string) (Profile, error)

	// Insert returns ErrProfileExists when the device already has a profile.
	Insert(ctx context.Context, q Querier, p Profile) error

	// DeleteByDevice removes the device's profile, if any.
	DeleteByDevice(ctx context.Context, q Querier, deviceID string) error
}
