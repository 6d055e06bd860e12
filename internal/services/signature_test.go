package services

import (
	"testing"

	"github.com/skyrent/backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSignatureVerifier_Verify(t *testing.T) {
	verifier := NewSignatureVerifier(config.ProcessorConfig{Secret: "test-secret"})

	fields := map[string]string{
		"transaction_id":  "T1",
		"status":          "success",
		"amount":          "100",
		"source_amount":   "0.002",
		"source_currency": "BTC",
	}

	t.Run("valid signature", func(t *testing.T) {
		sig := verifier.Sign(fields)
		assert.NoError(t, verifier.Verify(fields, sig))
	})

	t.Run("signature field excluded from canonicalization", func(t *testing.T) {
		sig := verifier.Sign(fields)

		withSig := map[string]string{}
		for k, v := range fields {
			withSig[k] = v
		}
		withSig[SignatureField] = sig

		assert.NoError(t, verifier.Verify(withSig, sig))
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		err := verifier.Verify(fields, "")
		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("tampered signature rejected", func(t *testing.T) {
		sig := []byte(verifier.Sign(fields))
		if sig[0] == 'a' {
			sig[0] = 'b'
		} else {
			sig[0] = 'a'
		}

		err := verifier.Verify(fields, string(sig))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		sig := verifier.Sign(fields)

		tampered := map[string]string{}
		for k, v := range fields {
			tampered[k] = v
		}
		tampered["amount"] = "101"

		err := verifier.Verify(tampered, sig)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("different secrets produce different signatures", func(t *testing.T) {
		other := NewSignatureVerifier(config.ProcessorConfig{Secret: "other-secret"})
		assert.NotEqual(t, verifier.Sign(fields), other.Sign(fields))
	})
}
