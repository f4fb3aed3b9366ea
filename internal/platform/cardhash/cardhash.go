package cardhash

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 4096
	keyLength  = 32
)

// Service turns physical card serials into salted one-way hashes. Only the
// hash is ever stored or matched; the raw serial must not leave the process.
type Service struct {
	salt []byte
}

func New(secret string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("card hash secret is required")
	}
	decoded, err := decodeSecret(secret)
	if err != nil {
		return nil, err
	}
	if len(decoded) < 16 {
		return nil, fmt.Errorf("card hash secret must decode to at least 16 bytes")
	}
	return &Service{salt: decoded}, nil
}

// Hash is deterministic for a given secret, so the hash itself is the lookup
// key for a card.
func (s *Service) Hash(serial string) string {
	derived := pbkdf2.Key([]byte(serial), s.salt, iterations, keyLength, sha256.New)
	return hex.EncodeToString(derived)
}

func decodeSecret(raw string) ([]byte, error) {
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded, nil
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	return []byte(raw), nil
}
