package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"luckystake/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "GAXKQ7TQ2WQ4JX6E5HM6C3R7T6RBSD2K5ZMQDC6BQPBRJBNJBU4BYLAA"
	walletB = "GBZH7S5RKUBAOGWJ3QVW4HM3B5TLFU3ILQW7YIHXGXH6Q6NVV7BJPXQK"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type mockLoginRecorder struct {
	mock.Mock
}

func (m *mockLoginRecorder) RecordLogin(ctx context.Context, accountID string) (*models.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func TestValidatePublicKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"valid", walletA, true},
		{"empty", "", false},
		{"too short", "GABC", false},
		{"wrong prefix", "S" + walletA[1:], false},
		{"lowercase", strings.ToLower(walletA), false},
		{"digit outside alphabet", walletA[:55] + "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePublicKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var target *InvalidPublicKeyError
			assert.True(t, errors.As(err, &target))
		})
	}
}

func TestChallengeStore_IssueAndConsume(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := NewChallengeStore(0)
	store.now = clock.Now

	c, err := store.Issue(walletA)
	require.NoError(t, err)
	assert.Equal(t, walletA, c.PublicKey)
	assert.Equal(t, challengeMessagePrefix+c.Nonce, c.Message)
	assert.Equal(t, clock.t.Add(ChallengeTTL), c.ExpiresAt)

	consumed, err := store.Consume(walletA, c.Nonce)
	require.NoError(t, err)
	assert.True(t, consumed.Used)

	_, err = store.Consume(walletA, c.Nonce)
	var target *ChallengeError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, ReasonUsed, target.Reason)
}

func TestChallengeStore_Rejections(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := NewChallengeStore(time.Minute)
	store.now = clock.Now

	c, err := store.Issue(walletA)
	require.NoError(t, err)

	tests := []struct {
		name      string
		publicKey string
		nonce     string
		advance   time.Duration
		reason    ChallengeReason
	}{
		{"unknown nonce", walletA, "not-a-nonce", 0, ReasonInvalid},
		{"other key", walletB, c.Nonce, 0, ReasonMismatch},
		{"expired", walletA, c.Nonce, time.Minute, ReasonExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)
			_, err := store.Consume(tt.publicKey, tt.nonce)

			var target *ChallengeError
			require.True(t, errors.As(err, &target))
			assert.Equal(t, tt.reason, target.Reason)
		})
	}

	assert.Equal(t, 0, store.Len(), "expired challenge is dropped on use")
}

func TestChallengeStore_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := NewChallengeStore(time.Minute)
	store.now = clock.Now

	used, err := store.Issue(walletA)
	require.NoError(t, err)
	_, err = store.Consume(walletA, used.Nonce)
	require.NoError(t, err)

	_, err = store.Issue(walletB)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", 0)
	assert.Equal(t, DefaultTokenExpiry, issuer.Expiry())

	token, expiresAt, err := issuer.Issue(walletA)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenExpiry), expiresAt, time.Minute)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, walletA, claims.PublicKey)
	assert.Equal(t, walletA, claims.Subject)
}

func TestTokenIssuer_Parse_Failures(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	t.Run("expired", func(t *testing.T) {
		past := NewTokenIssuer("secret", time.Hour)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := past.Issue(walletA)
		require.NoError(t, err)

		_, err = issuer.Parse(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewTokenIssuer("other", time.Hour).Issue(walletA)
		require.NoError(t, err)

		_, err = issuer.Parse(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{PublicKey: walletA}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = issuer.Parse(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("subject only", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   walletB,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		claims, err := issuer.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, walletB, claims.PublicKey)
	})
}

func TestAuthenticator_Verify(t *testing.T) {
	ctx := context.Background()
	accounts := new(mockLoginRecorder)
	accounts.On("RecordLogin", ctx, walletA).Return(&models.Account{ID: walletA}, nil).Once()

	a := NewAuthenticator(NewChallengeStore(0), nil, NewTokenIssuer("secret", 0), accounts)

	c, err := a.Challenge(walletA)
	require.NoError(t, err)

	session, err := a.Verify(ctx, walletA, c.Nonce, "")
	require.NoError(t, err)
	assert.Equal(t, "7d", session.ExpiresIn)
	assert.Equal(t, walletA, session.Account.ID)

	accountID, err := a.Authenticate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, walletA, accountID)

	_, err = a.Verify(ctx, walletA, c.Nonce, "")
	var target *ChallengeError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, ReasonUsed, target.Reason)

	accounts.AssertExpectations(t)
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(ctx context.Context, challenge *Challenge, signature string) error {
	return errors.New("bad signature")
}

func TestAuthenticator_Verify_SignatureRejected(t *testing.T) {
	accounts := new(mockLoginRecorder)
	a := NewAuthenticator(NewChallengeStore(0), rejectingVerifier{}, NewTokenIssuer("secret", 0), accounts)

	c, err := a.Challenge(walletA)
	require.NoError(t, err)

	_, err = a.Verify(context.Background(), walletA, c.Nonce, "AAAA")
	assert.ErrorIs(t, err, ErrSignatureRejected)
	accounts.AssertNotCalled(t, "RecordLogin", mock.Anything, mock.Anything)
}

func TestAuthenticator_Verify_MissingFields(t *testing.T) {
	a := NewAuthenticator(NewChallengeStore(0), nil, NewTokenIssuer("secret", 0), new(mockLoginRecorder))

	_, err := a.Verify(context.Background(), walletA, "", "")
	var target *InvalidPublicKeyError
	assert.True(t, errors.As(err, &target))
}

func TestFormatExpiry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "7d", formatExpiry(7*24*time.Hour))
	assert.Equal(t, "1h0m0s", formatExpiry(time.Hour))
	assert.Equal(t, "36h0m0s", formatExpiry(36*time.Hour))
}
