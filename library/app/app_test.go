package app

import (
	"context"
	"testing"
	"time"

	"github.com/Astemirdum/library-management/library/config"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Auth:    config.Auth{JWTSecret: "secret", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost},
		Storage: config.Storage{Driver: config.StorageMemory},
	}
}

func TestBuild_Memory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, err := build(ctx, memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.svc.RegisterUser(ctx, model.RegisterRequest{Email: "a@b.io", Password: "secret1", Name: "Ann"})
	require.NoError(t, err)
	claims, err := c.tokens.Parse(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID.String(), claims.Profile.UserID)

	n, err := c.sweeper.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSweep_Memory(t *testing.T) {
	t.Parallel()
	n, err := Sweep(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = MarkOverdue(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCreateAdmin_Memory(t *testing.T) {
	t.Parallel()
	id, err := CreateAdmin(context.Background(), memoryConfig(), zap.NewNop(), "Root@Example.com", "secret1", "Root")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = CreateAdmin(context.Background(), memoryConfig(), zap.NewNop(), "not-an-email", "secret1", "Root")
	require.Error(t, err)
}
