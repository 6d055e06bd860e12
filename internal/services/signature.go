package services

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/url"

	"github.com/skyrent/backend/internal/config"
)

var (
	ErrMissingSignature = errors.New("notification is not signed")
	ErrInvalidSignature = errors.New("signature mismatch")
)

// SignatureField is the body field carrying the processor signature. It is
// excluded from the signed payload.
const SignatureField = "signature"

// SignatureVerifier authenticates inbound processor notifications. The
// processor signs the notification fields (minus the signature field itself)
// sorted by key and encoded as a query string, with HMAC-SHA1 over the
// shared secret.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(cfg config.ProcessorConfig) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(cfg.Secret)}
}

// Verify checks the claimed signature against the recomputed one using a
// constant-time comparison. Unsigned notifications are always rejected.
func (v *SignatureVerifier) Verify(fields map[string]string, claimed string) error {
	if claimed == "" {
		return ErrMissingSignature
	}

	expected := v.Sign(fields)
	if !hmac.Equal([]byte(expected), []byte(claimed)) {
		return ErrInvalidSignature
	}

	return nil
}

// Sign computes the canonical hex signature for a set of notification
// fields. url.Values.Encode sorts keys, which matches the processor's
// canonicalization.
func (v *SignatureVerifier) Sign(fields map[string]string) string {
	params := url.Values{}
	for key, value := range fields {
		if key == SignatureField {
			continue
		}
		params.Set(key, value)
	}

	h := hmac.New(sha1.New, v.secret)
	h.Write([]byte(params.Encode()))
	return hex.EncodeToString(h.Sum(nil))
}
