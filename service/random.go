package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// RandomSource produces the uniform draws used to pick winning tickets
type RandomSource interface {
	// Int63n returns a uniform value in [0, n). n must be positive.
	Int63n(n int64) (int64, error)
}

// CryptoRandom draws from the operating system's CSPRNG
type CryptoRandom struct{}

// NewCryptoRandom creates a random source backed by crypto/rand
func NewCryptoRandom() *CryptoRandom {
	return &CryptoRandom{}
}

func (CryptoRandom) Int63n(n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("random range must be positive, got %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return v.Int64(), nil
}

// SeededRandom is a reproducible source for simulations and tests
type SeededRandom struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededRandom creates a PCG-backed source from a fixed seed
func NewSeededRandom(seed uint64) *SeededRandom {
	return &SeededRandom{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *SeededRandom) Int63n(n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("random range must be positive, got %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int64N(n), nil
}
