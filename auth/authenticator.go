package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"luckystake/models"

	log "github.com/sirupsen/logrus"
)

// SignatureVerifier checks the wallet's signature over a challenge
type SignatureVerifier interface {
	Verify(ctx context.Context, challenge *Challenge, signature string) error
}

// NonceOnlyVerifier accepts possession of a live nonce as proof of identity
type NonceOnlyVerifier struct{}

func (NonceOnlyVerifier) Verify(ctx context.Context, challenge *Challenge, signature string) error {
	if signature != "" {
		log.WithField("publicKey", challenge.PublicKey).Debug("Wallet signature supplied but not checked")
	}
	return nil
}

// LoginRecorder creates the account on first login and stamps the login time
type LoginRecorder interface {
	RecordLogin(ctx context.Context, accountID string) (*models.Account, error)
}

// Session is the result of a successful login
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	ExpiresIn string          `json:"expiresIn"`
	Account   *models.Account `json:"user"`
}

// Authenticator runs the challenge/verify login flow
type Authenticator struct {
	challenges *ChallengeStore
	verifier   SignatureVerifier
	tokens     *TokenIssuer
	accounts   LoginRecorder
}

// NewAuthenticator wires the login flow. A nil verifier uses NonceOnlyVerifier.
func NewAuthenticator(challenges *ChallengeStore, verifier SignatureVerifier, tokens *TokenIssuer, accounts LoginRecorder) *Authenticator {
	if verifier == nil {
		verifier = NonceOnlyVerifier{}
	}
	return &Authenticator{
		challenges: challenges,
		verifier:   verifier,
		tokens:     tokens,
		accounts:   accounts,
	}
}

// Challenge issues a nonce for publicKey
func (a *Authenticator) Challenge(publicKey string) (*Challenge, error) {
	return a.challenges.Issue(publicKey)
}

// Verify redeems the nonce, records the login and issues a session token
func (a *Authenticator) Verify(ctx context.Context, publicKey, nonce, signature string) (*Session, error) {
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" || nonce == "" {
		return nil, &InvalidPublicKeyError{Reason: "publicKey and nonce required"}
	}

	challenge, err := a.challenges.Consume(publicKey, nonce)
	if err != nil {
		return nil, err
	}

	if err := a.verifier.Verify(ctx, challenge, signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureRejected, err)
	}

	account, err := a.accounts.RecordLogin(ctx, publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	token, expiresAt, err := a.tokens.Issue(publicKey)
	if err != nil {
		return nil, err
	}

	log.WithField("publicKey", publicKey).Info("Account authenticated")

	return &Session{
		Token:     token,
		ExpiresAt: expiresAt,
		ExpiresIn: formatExpiry(a.tokens.Expiry()),
		Account:   account,
	}, nil
}

// Authenticate resolves a bearer token to the account id it was issued for
func (a *Authenticator) Authenticate(token string) (string, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.PublicKey, nil
}

// formatExpiry renders whole-day lifetimes as "7d" and anything else as a Go duration
func formatExpiry(d time.Duration) string {
	day := 24 * time.Hour
	if d >= day && d%day == 0 {
		return fmt.Sprintf("%dd", d/day)
	}
	return d.String()
}
