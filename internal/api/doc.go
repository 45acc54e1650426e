// Package api implements the HTTP REST API for the RF control core.
//
// This package provides:
//   - Device endpoints scoped to the authenticated requester
//   - Control dispatch (POST /api/v1/devices/{id}/{action})
//   - JWT bearer authentication; the token subject is the requester ID
//   - Middleware stack (request ID, logging, recovery, body limit)
//   - Prometheus scrape endpoint at /metrics
//
// # Security
//
// A device that belongs to another user answers exactly like a device that
// does not exist (404 not_found), so device IDs cannot be enumerated.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
