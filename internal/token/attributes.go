package token

import (
	"crypto"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// StatusSuccess marks an attribute bundle produced by a completed
// authentication.
const StatusSuccess = "success"

// AuthResult is the decrypted payload of an attribute bundle.
type AuthResult struct {
	Status     string            `json:"status"`
	Attributes map[string]string `json:"attributes,omitempty"`
	SessionURL string            `json:"session_url,omitempty"`
}

// Algorithms the broker core is allowed to use for attribute bundles.
var (
	bundleKeyAlgorithms      = []jose.KeyAlgorithm{jose.ECDH_ES, jose.ECDH_ES_A256KW, jose.RSA_OAEP_256}
	bundleContentEncryptions = []jose.ContentEncryption{jose.A128CBC_HS256, jose.A256GCM}
	bundleSignatureAlgs      = []jose.SignatureAlgorithm{jose.ES256, jose.RS256}
)

// DecryptVerifyAuthResult decrypts an attribute bundle and checks the
// signature of the nested token.
//
// Token expiry is deliberately not enforced: a host may poll for
// results long after the bundle's nominal lifetime, and correctness
// depends only on signature and ciphertext integrity, not freshness.
// Do not add an expiry check here.
func DecryptVerifyAuthResult(blob string, verifier crypto.PublicKey, decrypter crypto.PrivateKey) (*AuthResult, error) {
	nested, err := jwt.ParseSignedAndEncrypted(blob, bundleKeyAlgorithms, bundleContentEncryptions, bundleSignatureAlgs)
	if err != nil {
		return nil, fmt.Errorf("parse attribute bundle: %w", err)
	}
	inner, err := nested.Decrypt(decrypter)
	if err != nil {
		return nil, fmt.Errorf("decrypt attribute bundle: %w", err)
	}
	var result AuthResult
	if err := inner.Claims(verifier, &result); err != nil {
		return nil, fmt.Errorf("verify attribute bundle: %w", err)
	}
	return &result, nil
}
