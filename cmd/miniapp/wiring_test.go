package main

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/botadmin/internal/config"
	"github.com/spec-kit/botadmin/internal/miniapp/fingerprint"
	"github.com/spec-kit/botadmin/internal/miniapp/session"
)

func TestPayloadFromInitData(t *testing.T) {
	values := url.Values{}
	values.Set("user", `{"id":9,"first_name":"Anna","username":"anna"}`)
	values.Set("hash", "00")

	payload := payloadFromInitData(values.Encode(), zap.NewNop())
	assert.Equal(t, values.Encode(), payload.InitData)
	require.NotNil(t, payload.User)
	assert.Equal(t, int64(9), payload.User.ID)
	assert.Equal(t, "anna", payload.User.Username)

	payload = payloadFromInitData("user=%7Bbroken", zap.NewNop())
	assert.Nil(t, payload.User)
	assert.NotEmpty(t, payload.InitData)
}

func TestHostLocator(t *testing.T) {
	_, ok := hostLocator("", zap.NewNop())()
	assert.False(t, ok)

	host, ok := hostLocator("auth_date=1&hash=00", zap.NewNop())()
	require.True(t, ok)
	assert.Equal(t, "auth_date=1&hash=00", host.InitData())
}

func TestNewStorage(t *testing.T) {
	cfg := &config.Config{MiniApp: config.MiniAppConfig{StorageKind: "memory"}}
	storage, closeFn, err := newStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &session.MemoryStorage{}, storage)

	cfg.MiniApp.StorageKind = "file"
	cfg.MiniApp.StoragePath = t.TempDir() + "/s.json"
	storage, _, err = newStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &session.FileStorage{}, storage)

	cfg.MiniApp.StorageKind = "cookie"
	_, _, err = newStorage(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestProcessEnvironmentFallbackIsStable(t *testing.T) {
	env := processEnvironment{storagePath: "x.json"}
	gen := fingerprint.NewGenerator(fingerprint.Options{Env: env})

	first := gen.Generate(context.Background())
	assert.NotEmpty(t, first)
	assert.Equal(t, first, gen.Generate(context.Background()))
}

func TestNewFingerprintsPrefersDeviceID(t *testing.T) {
	cfg := &config.Config{MiniApp: config.MiniAppConfig{DeviceID: " device-42 ", StoragePath: "x.json"}}
	cache := fingerprint.NewCache()

	assert.Equal(t, "device-42", newFingerprints(cfg, cache, zap.NewNop()).Generate(context.Background()))

	// the cache is owned by the caller and shared across generators
	cfg.MiniApp.DeviceID = "device-43"
	assert.Equal(t, "device-42", newFingerprints(cfg, cache, zap.NewNop()).Generate(context.Background()))
}

func TestNewFingerprintsFallsBackWithoutDeviceID(t *testing.T) {
	cfg := &config.Config{MiniApp: config.MiniAppConfig{StoragePath: "x.json"}}
	env := processEnvironment{storagePath: "x.json"}

	got := newFingerprints(cfg, fingerprint.NewCache(), zap.NewNop()).Generate(context.Background())
	assert.Equal(t, fingerprint.Fallback(fingerprint.ReadInputs(env)), got)
}
