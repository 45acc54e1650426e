// Package auth issues and verifies the access tokens that carry a
// requester's identity.
//
// Sessions and user accounts live outside this service. A token's subject
// is the opaque user ID that device ownership is compared against; this
// package makes no authorisation decisions of its own.
package auth
