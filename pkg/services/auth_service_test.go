package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dskvich/polychat/pkg/domain"
)

func TestRegisterAndLogin(t *testing.T) {
	store := newMemStore()
	svc := NewAuthService(store, fakeTokens{}, 5000)
	svc.newID = func() string { return "u1" }
	ctx := context.Background()

	user, token, err := svc.Register(ctx, " Ann ", []string{"Fox", "owl", "cat"})
	require.NoError(t, err)
	require.Equal(t, "Ann", user.Name)
	require.Equal(t, int64(5000), user.TokenBalance)
	require.Equal(t, "token-u1", token)
	require.NotEmpty(t, user.AnimalHash)

	token, err = svc.Login(ctx, "u1", []string{"fox", "owl", "cat"})
	require.NoError(t, err)
	require.Equal(t, "token-u1", token)

	_, err = svc.Login(ctx, "u1", []string{"owl", "fox", "cat"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody", []string{"fox", "owl", "cat"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	got, err := svc.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Ann", got.Name)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAuthService(newMemStore(), fakeTokens{}, 0)

	_, _, err := svc.Register(context.Background(), "", []string{"fox", "owl", "cat"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = svc.Register(context.Background(), "Ann", []string{"fox", "owl"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = svc.Register(context.Background(), "Ann", []string{"fox", "owl", "unicorn"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
