// Package repository holds the relay's data access layer: the Redis-backed
// pairing code store and the MySQL repositories for pairings and guardian
// accounts. Sentinel errors defined here let handlers map storage outcomes
// onto the pairing error taxonomy without inspecting driver errors.
package repository

import "errors"

// ErrCodeNotFound is returned when a pairing code does not exist or its
// record has aged out entirely. Handlers translate this into NOT_FOUND.
var ErrCodeNotFound = errors.New("pairing code not found")

// ErrCodeExpired is returned when a code is redeemed after its expiresAt.
// Handlers translate this into EXPIRED.
var ErrCodeExpired = errors.New("pairing code expired")

// ErrCodeConsumed is returned when a code has already been redeemed once.
// Handlers translate this into ALREADY_CONSUMED.
var ErrCodeConsumed = errors.New("pairing code already consumed")

// ErrNotFound is returned when a pairing or guardian row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a guardian registers with an email that
// is already taken. Handlers translate this into HTTP 409.
var ErrDuplicateEmail = errors.New("email already registered")
