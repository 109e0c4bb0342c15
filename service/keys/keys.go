// Package keys loads the process signing identity from its textual form.
//
// Two encodings are accepted: a base58 string of the 64-byte ed25519 secret
// key (the format wallets export) and a JSON array of 64 integers (the format
// written by solana-keygen). The first 32 bytes are the seed, the last 32 the
// public key; a key whose halves disagree is rejected.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// KeySize is the length of an encoded ed25519 secret key.
const KeySize = ed25519.PrivateKeySize

var (
	ErrEmpty       = errors.New("no private key provided")
	ErrKeyLength   = errors.New("private key must be 64 bytes")
	ErrKeyMismatch = errors.New("private key public half does not match its seed")
)

// Signer is the signing identity. It is immutable once built.
type Signer struct {
	key solanago.PrivateKey
	pub solanago.PublicKey
}

// Parse decodes raw into a Signer.
func Parse(raw string) (*Signer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmpty
	}

	var (
		b   []byte
		err error
	)
	if strings.HasPrefix(raw, "[") {
		b, err = decodeJSONArray(raw)
	} else {
		b, err = decodeBase58(raw)
	}
	if err != nil {
		return nil, err
	}

	return fromBytes(b)
}

// FromPrivateKey wraps an already decoded key, applying the same checks as Parse.
func FromPrivateKey(key solanago.PrivateKey) (*Signer, error) {
	return fromBytes(key)
}

// Load is Parse for startup: failures are logged and yield nil, which the
// rest of the service treats as "signing disabled".
func Load(raw string, logger *slog.Logger) *Signer {
	signer, err := Parse(raw)
	if errors.Is(err, ErrEmpty) {
		logger.Warn("PRIVATE_KEY not set, signing disabled")
		return nil
	}
	if err != nil {
		// never log raw: it is the secret
		logger.Error("failed to load PRIVATE_KEY, signing disabled", "error", err)
		return nil
	}

	logger.Info("signing key loaded", "public_key", signer.PublicKey().String())
	return signer
}

// PublicKey returns the signer's address.
func (s *Signer) PublicKey() solanago.PublicKey {
	return s.pub
}

// Sign adds the signer's signature to tx. It fails if tx requires a
// signature from any other account.
func (s *Signer) Sign(tx *solanago.Transaction) error {
	_, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(s.pub) {
			k := make(solanago.PrivateKey, len(s.key))
			copy(k, s.key)
			return &k
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// String never reveals key material.
func (s *Signer) String() string {
	return "Signer(" + s.pub.String() + ")"
}

func fromBytes(b []byte) (*Signer, error) {
	if len(b) != KeySize {
		return nil, fmt.Errorf("%w, got %d", ErrKeyLength, len(b))
	}

	derived := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		return nil, ErrKeyMismatch
	}

	key := make(solanago.PrivateKey, KeySize)
	copy(key, b)
	return &Signer{
		key: key,
		pub: solanago.PublicKeyFromBytes(b[ed25519.SeedSize:]),
	}, nil
}

func decodeJSONArray(raw string) ([]byte, error) {
	var ints []int
	if err := json.Unmarshal([]byte(raw), &ints); err != nil {
		return nil, fmt.Errorf("invalid JSON key array: %w", err)
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("invalid JSON key array: element %d out of byte range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func decodeBase58(raw string) ([]byte, error) {
	b, err := base58.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 key: %w", err)
	}
	return b, nil
}
