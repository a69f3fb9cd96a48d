package utils // package utils provides helper functions for token creation and hashing

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GuardianToken represents a signed JWT issued to a guardian account along
// with its expiry. The Token field contains the JWT string; it is sent in
// the Authorization header when calling protected pairing endpoints.
type GuardianToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewGuardianToken builds and signs an HS256 JWT for a guardian. It takes
// the signing secret, the guardian id and display name, and a TTL in
// minutes. The claims carry the guardian id as subject plus a name claim so
// handlers can attribute actions without a database read.
func NewGuardianToken(secret, guardianID, name string, ttlMin int) (GuardianToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  guardianID,
		"name": name,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return GuardianToken{}, err
	}
	return GuardianToken{Token: signed, Exp: exp}, nil
}
