package auth

import "errors"

// ChallengeReason names why a challenge was rejected
type ChallengeReason string

const (
	ReasonInvalid  ChallengeReason = "invalid challenge"
	ReasonUsed     ChallengeReason = "challenge already used"
	ReasonMismatch ChallengeReason = "challenge public key mismatch"
	ReasonExpired  ChallengeReason = "challenge expired"
)

// ChallengeError reports a nonce that cannot be redeemed
type ChallengeError struct {
	Reason ChallengeReason
}

func (e *ChallengeError) Error() string {
	return string(e.Reason)
}

// InvalidPublicKeyError reports a malformed account id
type InvalidPublicKeyError struct {
	Reason string
}

func (e *InvalidPublicKeyError) Error() string {
	return "invalid publicKey: " + e.Reason
}

var (
	// ErrTokenExpired is returned by Parse for a well-formed token past its expiry
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other token failure
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSignatureRejected is returned when a wallet signature does not check out
	ErrSignatureRejected = errors.New("signature verification failed")
)
