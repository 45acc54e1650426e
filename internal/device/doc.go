// Package device owns the device data model: generic user-owned devices,
// the type-specific hardware profiles attached to them, and the ownership
// check that gates every operation on a device.
//
// # Model
//
// A Device is created by its owner and has at most one Profile. The profile
// variant is chosen by the device's TypeID through a TypeRegistry:
//
//	types := device.DefaultTypeRegistry() // TypeRF -> RFProfileType
//	repo := device.NewSQLiteRepository(db.DB, types)
//	registry := device.NewRegistry(repo, types)
//
//	lamp, rf, err := registry.AddDevice(ctx, device.NewDevice{
//	    Name:    "Lamp",
//	    OwnerID: userID,
//	    TypeID:  device.TypeRF,
//	    Params:  []byte(`{"on_code":101,"off_code":202,"pulse_length":300}`),
//	})
//
// New hardware families implement ProfileType and are registered under a
// new TypeID; nothing else in the package changes.
//
// # Deletion
//
// Deleting a device removes its profile in the same transaction. The
// rf_devices foreign key has no ON DELETE CASCADE, so the repository is
// the only place that enforces this.
//
// # Ownership
//
// OwnershipGuard.UserOwns returns false for devices that do not exist, so
// callers cannot use it to discover device IDs. Registry methods that take
// a requester ID return ErrUnauthorized for devices owned by someone else;
// transports must render that exactly like ErrDeviceNotFound.
package device
