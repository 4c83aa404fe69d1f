// Package token is the boundary to the cryptographic primitives: it
// signs outbound widget and start-authentication tokens, verifies
// inbound platform tokens per trust domain, and opens signed-then-
// encrypted attribute bundles. The primitives themselves live in
// go-jose and golang-jwt; this package only orchestrates trust around
// them.
package token

import (
	"crypto"
	"errors"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"commauth/internal/security"
)

// validity is the fixed lifetime of every token issued by this plugin.
// Verifiers enforce it at parse time.
const validity = 5 * time.Minute

// ErrUnsupportedKey is returned when a signing key is neither RSA nor ECDSA.
var ErrUnsupportedKey = errors.New("unsupported signing key type")

// Signer issues compact signed tokens for one trust domain. Every
// issued token carries issued-at and a fixed 5-minute expiry.
type Signer interface {
	Sign(subject string, claims map[string]any) (string, error)
}

// KeyRing holds the per-trust-domain key handles. It is built once at
// configuration-load time and read-only afterwards.
type KeyRing struct {
	// AttributeVerifier checks the signature of decrypted attribute bundles.
	AttributeVerifier crypto.PublicKey
	// AttributeDecrypter opens attribute bundle JWEs.
	AttributeDecrypter crypto.PrivateKey
	// WidgetSigner signs auth-select widget parameters.
	WidgetSigner Signer
	// StartAuthSigner signs start-authentication requests for the broker
	// core; its tokens carry the configured key id.
	StartAuthSigner Signer
	// GuestSecret and HostSecret verify platform tokens per domain.
	GuestSecret []byte
	HostSecret  []byte
}

type joseSigner struct {
	signer jose.Signer
}

// NewSigner returns a Signer for the given private key (RS256 or ES256).
func NewSigner(key crypto.Signer) (Signer, error) {
	return newSigner(key, "")
}

// NewSignerWithKeyID returns a Signer whose tokens carry the given key
// id in their header.
func NewSignerWithKeyID(key crypto.Signer, keyID string) (Signer, error) {
	return newSigner(key, keyID)
}

func newSigner(key crypto.Signer, keyID string) (Signer, error) {
	alg := security.SignatureAlg(key.Public())
	if alg == "" {
		return nil, ErrUnsupportedKey
	}
	opts := (&jose.SignerOptions{}).WithType("JWT")
	if keyID != "" {
		opts = opts.WithHeader(jose.HeaderKey("kid"), keyID)
	}
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.SignatureAlgorithm(alg), Key: key}, opts)
	if err != nil {
		return nil, err
	}
	return &joseSigner{signer: sig}, nil
}

func (s *joseSigner) Sign(subject string, claims map[string]any) (string, error) {
	now := time.Now()
	builder := jwt.Signed(s.signer).Claims(jwt.Claims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(validity)),
	})
	if len(claims) > 0 {
		builder = builder.Claims(claims)
	}
	return builder.Serialize()
}

// widgetParamsSubject tags widget-parameter tokens so the widget can
// reject tokens minted for another purpose.
const widgetParamsSubject = "id-contact-widget-params"

// AuthSelectParams are the parameters expected by the auth-select widget.
type AuthSelectParams struct {
	// Purpose is the session purpose.
	Purpose string `json:"purpose"`
	// StartURL is where the widget sends the user on authentication success.
	StartURL string `json:"start_url"`
	// DisplayName is the communication method's display name.
	DisplayName string `json:"display_name"`
}

// SignAuthSelectParams serializes and signs params for the auth-select menu.
func SignAuthSelectParams(params AuthSelectParams, signer Signer) (string, error) {
	return signer.Sign(widgetParamsSubject, map[string]any{
		"purpose":      params.Purpose,
		"start_url":    params.StartURL,
		"display_name": params.DisplayName,
	})
}

// StartAuthRequest asks the broker core to run an authentication-only
// flow and deliver the result to AttrURL.
type StartAuthRequest struct {
	Purpose    string `json:"purpose"`
	AuthMethod string `json:"auth_method"`
	CommURL    string `json:"comm_url"`
	AttrURL    string `json:"attr_url,omitempty"`
}

// SignStartAuthRequest signs a start-authentication request with the
// start-auth trust domain key.
func SignStartAuthRequest(request StartAuthRequest, signer Signer) (string, error) {
	return signer.Sign("", map[string]any{"request": request})
}
