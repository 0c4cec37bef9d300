package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ChallengeTTL is how long an issued nonce stays valid
const ChallengeTTL = 5 * time.Minute

const challengeMessagePrefix = "Sign this message to authenticate with LuckyStake: "

// Challenge is a single-use nonce handed to a wallet for signing
type Challenge struct {
	Nonce     string    `json:"nonce"`
	PublicKey string    `json:"publicKey"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"-"`
}

// ChallengeStore keeps outstanding challenges in memory
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	ttl        time.Duration
	now        func() time.Time
}

// NewChallengeStore creates an empty store. A non-positive ttl uses ChallengeTTL.
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = ChallengeTTL
	}
	return &ChallengeStore{
		challenges: make(map[string]*Challenge),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue creates a fresh challenge for publicKey
func (s *ChallengeStore) Issue(publicKey string) (*Challenge, error) {
	publicKey = strings.TrimSpace(publicKey)
	if err := ValidatePublicKey(publicKey); err != nil {
		return nil, err
	}

	nonce := uuid.NewString()
	c := &Challenge{
		Nonce:     nonce,
		PublicKey: publicKey,
		Message:   challengeMessagePrefix + nonce,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.challenges[nonce] = c
	s.mu.Unlock()

	issued := *c
	return &issued, nil
}

// Consume marks the challenge used. It fails if the nonce is unknown, already
// used, issued to another key, or expired.
func (s *ChallengeStore) Consume(publicKey, nonce string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[nonce]
	switch {
	case !ok:
		return nil, &ChallengeError{Reason: ReasonInvalid}
	case c.Used:
		return nil, &ChallengeError{Reason: ReasonUsed}
	case c.PublicKey != publicKey:
		return nil, &ChallengeError{Reason: ReasonMismatch}
	case !s.now().Before(c.ExpiresAt):
		delete(s.challenges, nonce)
		return nil, &ChallengeError{Reason: ReasonExpired}
	}

	c.Used = true
	consumed := *c
	return &consumed, nil
}

// Len returns the number of tracked challenges
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// Sweep drops used and expired challenges and returns how many were removed
func (s *ChallengeStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for nonce, c := range s.challenges {
		if c.Used || !now.Before(c.ExpiresAt) {
			delete(s.challenges, nonce)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled
func (s *ChallengeStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					log.WithField("removed", removed).Debug("Swept auth challenges")
				}
			}
		}
	}()
}

const stellarKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// ValidatePublicKey checks the shape of a Stellar account id: 56 base32
// characters starting with G. The checksum is not verified.
func ValidatePublicKey(publicKey string) error {
	if publicKey == "" {
		return &InvalidPublicKeyError{Reason: "publicKey required"}
	}
	if len(publicKey) != 56 || publicKey[0] != 'G' {
		return &InvalidPublicKeyError{Reason: "must be a 56 character account id starting with G"}
	}
	for _, r := range publicKey {
		if !strings.ContainsRune(stellarKeyAlphabet, r) {
			return &InvalidPublicKeyError{Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return nil
}
