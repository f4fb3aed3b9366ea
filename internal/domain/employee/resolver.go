package employee

import (
	"context"
	"fmt"
	"strings"

	"kintai/internal/platform/cardhash"
)

const (
	minSerialLen = 8
	maxSerialLen = 32
)

// Resolver maps a raw card serial to its one active employee. The raw
// serial is hashed immediately and never stored, logged or returned.
type Resolver struct {
	hasher *cardhash.Service
	store  Store
}

func NewResolver(hasher *cardhash.Service, store Store) *Resolver {
	return &Resolver{hasher: hasher, store: store}
}

// Normalize strips separators readers commonly insert and upper-cases the
// hex serial. Malformed serials are rejected before any hashing happens.
func Normalize(raw string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.NewReplacer(" ", "", "-", "", ":", "").Replace(cleaned)
	if len(cleaned) < minSerialLen || len(cleaned) > maxSerialLen || len(cleaned)%2 != 0 {
		return "", fmt.Errorf("%w: bad length %d", ErrInvalidFormat, len(cleaned))
	}
	for _, r := range cleaned {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return "", fmt.Errorf("%w: non-hex character", ErrInvalidFormat)
		}
	}
	return cleaned, nil
}

// HashSerial normalizes and hashes a raw serial without resolving it. The
// offline path uses this so queued entries carry only the hash.
func (r *Resolver) HashSerial(raw string) (string, error) {
	serial, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	return r.hasher.Hash(serial), nil
}

// Resolve returns the single active employee owning the card.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Employee, error) {
	hash, err := r.HashSerial(raw)
	if err != nil {
		return nil, err
	}
	return r.ResolveHash(ctx, hash)
}

// ResolveHash looks up an already-hashed card, as stored in queue entries.
func (r *Resolver) ResolveHash(ctx context.Context, hash string) (*Employee, error) {
	emp, err := r.store.GetActiveByCardHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, ErrNotRegistered
	}
	return emp, nil
}
