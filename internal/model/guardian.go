package model

import "time"

// Guardian is a caregiver account registered through the HTTP surface.
// The password is stored only as a bcrypt hash.
type Guardian struct {
	ID           string    // guardians.id ("grd_" prefixed)
	Name         string    // guardians.name
	Email        string    // guardians.email (unique, lower-cased)
	PasswordHash string    // guardians.password_hash
	CreatedAt    time.Time // guardians.created_at
}
