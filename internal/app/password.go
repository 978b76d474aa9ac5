package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Supported password hashing schemes.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// MinBcryptCost is the lowest bcrypt cost the hasher accepts.
const MinBcryptCost = 12

// bcryptMaxBytes is the longest input bcrypt uses; longer passwords are
// clipped to it before hashing and verifying.
const bcryptMaxBytes = 72

// PasswordHasher produces salted one-way password hashes and verifies them.
// Hashing is CPU bound, so at most a fixed number of hashes run at once;
// callers waiting for a slot give up when their context is done.
type PasswordHasher struct {
	algorithm  string
	bcryptCost int
	argon      argon2.Config
	slots      *semaphore.Weighted
}

// HasherOption configures a PasswordHasher.
type HasherOption func(*PasswordHasher)

// WithAlgorithm selects the scheme used for new hashes.
func WithAlgorithm(name string) HasherOption {
	return func(h *PasswordHasher) { h.algorithm = name }
}

// WithBcryptCost overrides the bcrypt cost. Values below MinBcryptCost are raised.
func WithBcryptCost(cost int) HasherOption {
	return func(h *PasswordHasher) { h.bcryptCost = max(cost, MinBcryptCost) }
}

// WithConcurrency bounds the number of hashes computed in parallel.
func WithConcurrency(n int) HasherOption {
	return func(h *PasswordHasher) {
		if n > 0 {
			h.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewPasswordHasher returns a bcrypt hasher at MinBcryptCost unless
// configured otherwise.
func NewPasswordHasher(opts ...HasherOption) (*PasswordHasher, error) {
	h := &PasswordHasher{
		algorithm:  AlgorithmBcrypt,
		bcryptCost: MinBcryptCost,
		argon:      argon2.DefaultConfig(),
		slots:      semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.algorithm != AlgorithmBcrypt && h.algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("unknown password algorithm %q", h.algorithm)
	}
	return h, nil
}

// Hash returns an encoded hash of raw using the configured scheme.
func (h *PasswordHasher) Hash(ctx context.Context, raw string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	switch h.algorithm {
	case AlgorithmArgon2id:
		encoded, err := h.argon.HashEncoded([]byte(raw))
		if err != nil {
			return "", fmt.Errorf("argon2 hash: %w", err)
		}
		return string(encoded), nil
	default:
		b, err := bcrypt.GenerateFromPassword(bcryptInput(raw), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt hash: %w", err)
		}
		return string(b), nil
	}
}

// Verify reports whether raw matches the encoded hash. The scheme is taken
// from the hash itself, so hashes written under a previous setting still
// verify. A mismatch is (false, nil); only a malformed hash is an error.
func (h *PasswordHasher) Verify(ctx context.Context, raw, encoded string) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.slots.Release(1)

	if strings.HasPrefix(encoded, "$argon2") {
		ok, err := argon2.VerifyEncoded([]byte(raw), []byte(encoded))
		if err != nil {
			return false, fmt.Errorf("argon2 verify: %w", err)
		}
		return ok, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(encoded), bcryptInput(raw))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt verify: %w", err)
	}
}

func bcryptInput(raw string) []byte {
	b := []byte(raw)
	if len(b) > bcryptMaxBytes {
		b = b[:bcryptMaxBytes]
	}
	return b
}

func (h *PasswordHasher) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.slots.Acquire(ctx, 1)
}
