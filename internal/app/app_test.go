package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sundayezeilo/linksnap/internal/blob"
	"github.com/sundayezeilo/linksnap/internal/config"
	"github.com/sundayezeilo/linksnap/internal/shortener"
	"github.com/sundayezeilo/linksnap/internal/users"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.AppConfig{Environment: "production", LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger(config.AppConfig{Environment: "development", LogLevel: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(config.AppConfig{Environment: "test", LogLevel: "loud"})
	assert.Error(t, err)
}

func TestOpenStores_Bolt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "linksnap.db")
	cfg := &config.Config{Store: config.StoreConfig{Driver: config.DriverBolt, BoltPath: path}}

	stores, err := OpenStores(ctx, cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = stores.Links.Create(ctx, shortener.Link{ShortCode: "kept", OriginalURL: "https://example.com", OwnerID: "u1", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, err = stores.Users.Create(ctx, users.User{ID: "u1", Email: "a@x.com", Username: "abc", PasswordHash: "h"})
	require.NoError(t, err)
	require.NoError(t, stores.Blobs.Put(ctx, blob.Object{ID: "b1", Filename: "f"}, []byte("x")))
	require.NoError(t, stores.Close())

	// Reopening the same file sees the data.
	stores, err = OpenStores(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	link, err := stores.Links.GetByCode(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "u1", link.OwnerID)

	u, err := stores.Users.FindByLogin(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, data, err := stores.Blobs.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestOpenStores_Memory(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: config.DriverMemory}}
	stores, err := OpenStores(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, stores.Links)
	assert.NotNil(t, stores.Users)
	assert.NotNil(t, stores.Blobs)
	assert.NoError(t, stores.Close())
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "sheets"}}
	_, err := OpenStores(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
