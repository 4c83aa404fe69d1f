// Package credentials assembles verified guest attributes for a host:
// it decrypts the attribute bundles registered on a room's sessions and
// renders them as JSON or HTML.
package credentials

import (
	"context"
	"crypto"
	"sort"

	"commauth/internal/session/repository"
	"commauth/internal/token"
)

// GuestAuthResult pairs a guest's display information with the raw
// attribute bundle registered for their session. AuthResult is empty
// while the guest has not completed authentication.
type GuestAuthResult struct {
	Name       string
	Purpose    string
	AuthResult string
}

// Credentials are the verified attributes of one guest.
type Credentials struct {
	Name       string            `json:"name"`
	Purpose    string            `json:"purpose"`
	Attributes map[string]string `json:"attributes"`
}

// Attribute is a single key/value pair in display order.
type Attribute struct {
	Key   string
	Value string
}

// Sorted is Credentials with the attribute map flattened into pairs
// ordered by key, for deterministic rendering.
type Sorted struct {
	Name       string
	Purpose    string
	Attributes []Attribute
}

// Sorted flattens the attribute map into key-ordered pairs.
func (c Credentials) Sorted() Sorted {
	attrs := make([]Attribute, 0, len(c.Attributes))
	for k, v := range c.Attributes {
		attrs = append(attrs, Attribute{Key: k, Value: v})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	return Sorted{Name: c.Name, Purpose: c.Purpose, Attributes: attrs}
}

// Collect decrypts each guest's attribute bundle and keeps the ones
// that carry attributes. Guests without a registered result, and
// results without attributes, are skipped; a bundle that fails to
// decrypt or verify aborts the whole collection.
func Collect(results []GuestAuthResult, verifier crypto.PublicKey, decrypter crypto.PrivateKey) ([]Credentials, error) {
	creds := make([]Credentials, 0, len(results))
	for _, r := range results {
		if r.AuthResult == "" {
			continue
		}
		out, err := token.DecryptVerifyAuthResult(r.AuthResult, verifier, decrypter)
		if err != nil {
			return nil, err
		}
		if len(out.Attributes) == 0 {
			continue
		}
		creds = append(creds, Credentials{
			Name:       r.Name,
			Purpose:    r.Purpose,
			Attributes: out.Attributes,
		})
	}
	return creds, nil
}

// ForHost verifies a host token and assembles credentials for every
// guest in the host's room. The lookup refreshes the room's sessions
// as a keepalive.
func ForHost(ctx context.Context, rawHostToken string, keys *token.KeyRing, repo repository.Repository) ([]Credentials, error) {
	host, err := token.ParseHostToken(rawHostToken, keys.HostSecret)
	if err != nil {
		return nil, err
	}
	sessions, err := repo.FindByRoomID(ctx, host.RoomID)
	if err != nil {
		return nil, err
	}
	results := make([]GuestAuthResult, 0, len(sessions))
	for _, sess := range sessions {
		results = append(results, GuestAuthResult{
			Name:       sess.GuestToken.Name,
			Purpose:    sess.Purpose,
			AuthResult: sess.AuthResult,
		})
	}
	return Collect(results, keys.AttributeVerifier, keys.AttributeDecrypter)
}
