package token

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors for platform-token verification.
var (
	// ErrSignatureInvalid is returned when a platform token fails HMAC
	// verification against its domain secret.
	ErrSignatureInvalid = errors.New("platform token signature invalid")
	// ErrMalformed is returned for structurally broken platform tokens.
	ErrMalformed = errors.New("platform token malformed")
)

// Domain names the trust scope of a platform token.
type Domain string

const (
	DomainUser  Domain = "user"
	DomainGuest Domain = "guest"
)

// ParseDomain validates and converts a stored domain string.
func ParseDomain(s string) (Domain, error) {
	switch Domain(s) {
	case DomainUser, DomainGuest:
		return Domain(s), nil
	}
	return "", fmt.Errorf("%w: unknown session domain %q", ErrMalformed, s)
}

// UnmarshalJSON rejects unknown domain values.
func (d *Domain) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDomain(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GuestToken is the broker's identity assertion for a guest joining a room.
type GuestToken struct {
	ID          string `json:"id"`
	Domain      Domain `json:"domain"`
	RedirectURL string `json:"redirectUrl"`
	Name        string `json:"name"`
	RoomID      string `json:"roomId"`
	Instance    string `json:"instance"`
}

// HostToken is a host's claim of authority over a room.
type HostToken struct {
	ID       string `json:"id"`
	Domain   Domain `json:"domain"`
	RoomID   string `json:"roomId"`
	Instance string `json:"instance"`
}

type guestTokenClaims struct {
	jwt.RegisteredClaims
	Payload *GuestToken `json:"payload"`
}

type hostTokenClaims struct {
	jwt.RegisteredClaims
	Payload *HostToken `json:"payload"`
}

// ParseGuestToken verifies a guest platform token with the guest domain
// secret and returns the embedded identity claim.
func ParseGuestToken(raw string, secret []byte) (*GuestToken, error) {
	var claims guestTokenClaims
	if err := parsePlatformToken(raw, secret, &claims); err != nil {
		return nil, err
	}
	if claims.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload claim", ErrMalformed)
	}
	return claims.Payload, nil
}

// ParseHostToken verifies a host platform token with the host domain
// secret and returns the embedded authority claim.
func ParseHostToken(raw string, secret []byte) (*HostToken, error) {
	var claims hostTokenClaims
	if err := parsePlatformToken(raw, secret, &claims); err != nil {
		return nil, err
	}
	if claims.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload claim", ErrMalformed)
	}
	return claims.Payload, nil
}

// parsePlatformToken verifies raw against the domain secret (HS256
// only) and deserializes its claims. The embedded payload must not be
// trusted before this returns nil.
func parsePlatformToken(raw string, secret []byte, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return fmt.Errorf("verify platform token: %w", err)
	}
	return nil
}
