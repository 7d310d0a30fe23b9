package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndAuthenticate(t *testing.T) {
	a, err := NewAuthenticator("secret", time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("u1")
	require.NoError(t, err)

	userID, err := a.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, "u1", userID)
}

func TestAuthenticateRejectsTamperedToken(t *testing.T) {
	a, err := NewAuthenticator("secret", time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("u1")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	sig[0] = map[bool]byte{true: 'B', false: 'A'}[sig[0] == 'A']
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = a.Authenticate(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewAuthenticator("other-secret", time.Hour)
	require.NoError(t, err)
	_, err = other.Authenticate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Authenticate("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	a, err := NewAuthenticator("secret", time.Minute)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := a.Issue("u1")
	require.NoError(t, err)

	_, err = a.Authenticate(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator("", time.Hour)
	require.Error(t, err)
}

func TestAnimalSequence(t *testing.T) {
	hash, err := HashSequence([]string{"Cat", " dog ", "OWL"})
	require.NoError(t, err)

	require.NoError(t, CompareSequence(hash, []string{"cat", "dog", "owl"}))
	require.ErrorIs(t, CompareSequence(hash, []string{"dog", "cat", "owl"}), ErrSequenceMismatch)
	require.ErrorIs(t, CompareSequence(hash, []string{"cat", "dog"}), ErrSequenceMismatch)
}

func TestNormalizeSequence(t *testing.T) {
	seq, err := NormalizeSequence([]string{"Lion", "tiger", "bear"})
	require.NoError(t, err)
	require.Equal(t, "lion-tiger-bear", seq)

	_, err = NormalizeSequence([]string{"lion", "tiger"})
	require.Error(t, err)

	_, err = NormalizeSequence([]string{"lion", "tiger", "dragon"})
	require.Error(t, err)
}
