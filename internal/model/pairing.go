package model

import "time"

// PairingCode is a short-lived one-time code an elder displays so a guardian
// can pair with it.
//
// Fields:
//  Code      – 6-digit numeric code shown to the elder.
//  ElderID   – elder the code binds to.
//  IssuedAt  – creation timestamp (UTC).
//  ExpiresAt – IssuedAt plus the configured TTL; source of truth for expiry.
//  Consumed  – set on redemption; a consumed code can never be redeemed
//              again, even before it expires.
type PairingCode struct {
	Code      string    // 6-digit numeric string
	ElderID   string    // owning elder device id
	IssuedAt  time.Time // when the code was generated
	ExpiresAt time.Time // when the code stops being redeemable
	Consumed  bool      // single-use flag
}

// Pairing links a guardian to an elder. Unique per (ElderID, GuardianID);
// redeeming a second code for the same pair refreshes PairedAt instead of
// duplicating the record.
type Pairing struct {
	ElderID      string    // pairings.elder_id
	GuardianID   string    // pairings.guardian_id
	GuardianName string    // pairings.guardian_name
	PairedAt     time.Time // pairings.paired_at
}
