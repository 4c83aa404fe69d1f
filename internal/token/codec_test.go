package token

import (
	"crypto"
	"io"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"commauth/internal/security"
)

func newTestSigner(t *testing.T, keyID string) Signer {
	t.Helper()
	key, err := security.ParsePrivateKey(security.TestECPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	var s Signer
	if keyID == "" {
		s, err = NewSigner(key)
	} else {
		s, err = NewSignerWithKeyID(key, keyID)
	}
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func verifyKey(t *testing.T) any {
	t.Helper()
	pub, err := security.ParsePublicKey(security.TestECPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	return pub
}

func TestSignAuthSelectParams(t *testing.T) {
	signer := newTestSigner(t, "")
	raw, err := SignAuthSelectParams(AuthSelectParams{
		Purpose:     "test_purpose",
		StartURL:    "https://example.com/start",
		DisplayName: "Phone call",
	}, signer)
	if err != nil {
		t.Fatalf("SignAuthSelectParams: %v", err)
	}

	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		t.Fatalf("ParseSigned: %v", err)
	}
	var claims struct {
		jwt.Claims
		Purpose     string `json:"purpose"`
		StartURL    string `json:"start_url"`
		DisplayName string `json:"display_name"`
	}
	if err := tok.Claims(verifyKey(t), &claims); err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if claims.Subject != "id-contact-widget-params" {
		t.Errorf("sub = %q, want id-contact-widget-params", claims.Subject)
	}
	if claims.Purpose != "test_purpose" || claims.StartURL != "https://example.com/start" || claims.DisplayName != "Phone call" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.IssuedAt == nil || claims.Expiry == nil {
		t.Fatal("iat or exp missing")
	}
	if got := claims.Expiry.Time().Sub(claims.IssuedAt.Time()); got != 5*time.Minute {
		t.Errorf("validity = %v, want 5m", got)
	}
}

func TestSignStartAuthRequest_KeyID(t *testing.T) {
	signer := newTestSigner(t, "key-2024")
	raw, err := SignStartAuthRequest(StartAuthRequest{
		Purpose:    "test_purpose",
		AuthMethod: "digid",
		CommURL:    "https://comm.example.com",
		AttrURL:    "https://comm.example.com/auth_result/abc",
	}, signer)
	if err != nil {
		t.Fatalf("SignStartAuthRequest: %v", err)
	}

	jws, err := jose.ParseSigned(raw, []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		t.Fatalf("jose.ParseSigned: %v", err)
	}
	if len(jws.Signatures) != 1 {
		t.Fatalf("signatures = %d, want 1", len(jws.Signatures))
	}
	if kid := jws.Signatures[0].Header.KeyID; kid != "key-2024" {
		t.Errorf("kid = %q, want key-2024", kid)
	}

	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		t.Fatalf("ParseSigned: %v", err)
	}
	var claims struct {
		jwt.Claims
		Request StartAuthRequest `json:"request"`
	}
	if err := tok.Claims(verifyKey(t), &claims); err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if claims.Request.AuthMethod != "digid" {
		t.Errorf("request.auth_method = %q, want digid", claims.Request.AuthMethod)
	}
	if claims.Request.AttrURL != "https://comm.example.com/auth_result/abc" {
		t.Errorf("request.attr_url = %q", claims.Request.AttrURL)
	}
}

func TestNewSigner_UnsupportedKey(t *testing.T) {
	if _, err := NewSigner(unsupportedSigner{}); err != ErrUnsupportedKey {
		t.Errorf("NewSigner: want ErrUnsupportedKey, got %v", err)
	}
}

type unsupportedSigner struct{}

func (unsupportedSigner) Public() crypto.PublicKey { return struct{}{} }

func (unsupportedSigner) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	return nil, nil
}
