package device

import (
	"fmt"
	"sort"
	"sync"
)

// TypeRegistry maps device type IDs to the profile variant that implements
// them. It is safe for concurrent use.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[TypeID]ProfileType
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[TypeID]ProfileType)}
}

// DefaultTypeRegistry returns a registry with the built-in RF type.
func DefaultTypeRegistry() *TypeRegistry {
	r := NewTypeRegistry()
	r.MustRegister(TypeRF, RFProfileType{})
	return r
}

// Register maps id to pt. A type ID can only be registered once.
func (r *TypeRegistry) Register(id TypeID, pt ProfileType) error {
	if pt == nil {
		return fmt.Errorf("%w: nil profile type for %d", ErrUnknownDeviceType, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.types[id]; ok {
		return fmt.Errorf("device type %d already registered as %s", id, existing.Variant())
	}
	r.types[id] = pt
	return nil
}

// MustRegister is Register for package-level setup; it panics on error.
func (r *TypeRegistry) MustRegister(id TypeID, pt ProfileType) {
	if err := r.Register(id, pt); err != nil {
		panic(err)
	}
}

// Resolve returns the profile variant for id, or ErrUnknownDeviceType.
func (r *TypeRegistry) Resolve(id TypeID) (Variant, error) {
	pt, err := r.profileType(id)
	if err != nil {
		return "", err
	}
	return pt.Variant(), nil
}

// IsRegistered reports whether id has a profile variant.
func (r *TypeRegistry) IsRegistered(id TypeID) bool {
	_, err := r.profileType(id)
	return err == nil
}

// IDs returns the registered type IDs in ascending order.
func (r *TypeRegistry) IDs() []TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]TypeID, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *TypeRegistry) profileType(id TypeID) (ProfileType, error) {
	r.mu.RLock()
	pt, ok := r.types[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDeviceType, id)
	}
	return pt, nil
}
