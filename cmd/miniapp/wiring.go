package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/botadmin/internal/config"
	"github.com/spec-kit/botadmin/internal/initdata"
	"github.com/spec-kit/botadmin/internal/miniapp/client"
	"github.com/spec-kit/botadmin/internal/miniapp/fingerprint"
	"github.com/spec-kit/botadmin/internal/miniapp/session"
	"github.com/spec-kit/botadmin/internal/miniapp/telegram"
	"github.com/spec-kit/botadmin/internal/miniapp/verification"
	"github.com/spec-kit/botadmin/internal/persistence"
)

func newStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Storage, func(), error) {
	switch cfg.MiniApp.StorageKind {
	case "memory":
		return session.NewMemoryStorage(), func() {}, nil
	case "file", "":
		return session.NewFileStorage(cfg.MiniApp.StoragePath), func() {}, nil
	case "redis":
		r := persistence.NewRedis(ctx, cfg.Redis, logger)
		return session.NewRedisStorage(r.Universal(), "miniapp:"), r.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown MINI_APP_STORAGE %q", cfg.MiniApp.StorageKind)
	}
}

func newFlow(cfg *config.Config, api *client.Client, storage session.Storage, initData string, logger *zap.Logger) *verification.Flow {
	adapter := telegram.NewAdapter(telegram.AdapterOptions{
		Locator:   hostLocator(initData, logger),
		Photos:    api,
		InitDelay: cfg.MiniApp.InitDelay(),
		Logger:    logger,
	})
	sessions := session.NewStore(storage, session.Options{
		Key:    cfg.MiniApp.SessionKey,
		TTL:    cfg.MiniApp.SessionTTL(),
		Logger: logger,
	})
	return verification.New(verification.Options{
		Handshake: adapter,
		Sessions:  sessions,
		Backend:   api,
		Navigator: verification.NavigatorFunc(func(url string) error {
			logger.Info("navigate", zap.String("url", url))
			return nil
		}),
		ExitURL:       cfg.MiniApp.ExitURL,
		RedirectDelay: cfg.MiniApp.RedirectDelay(),
		Logger:        logger,
	})
}

var errNoDeviceID = errors.New("MINI_APP_DEVICE_ID not set")

// newFingerprints builds the dashboard fingerprint generator. The configured
// device ID is the primary source; without it the process fallback hash is used.
func newFingerprints(cfg *config.Config, cache *fingerprint.Cache, logger *zap.Logger) *fingerprint.Generator {
	deviceID := strings.TrimSpace(cfg.MiniApp.DeviceID)
	return fingerprint.NewGenerator(fingerprint.Options{
		Collector: fingerprint.CollectorFunc(func(context.Context) (string, error) {
			if deviceID == "" {
				return "", errNoDeviceID
			}
			return deviceID, nil
		}),
		Env:     processEnvironment{storagePath: cfg.MiniApp.StoragePath},
		Cache:   cache,
		Timeout: cfg.MiniApp.FingerprintTimeout(),
		Logger:  logger,
	})
}

// payloadFromInitData builds the host payload the way the Telegram client
// would inject it. The user object is read without checking the signature;
// the gateway does that.
func payloadFromInitData(raw string, logger *zap.Logger) telegram.Payload {
	payload := telegram.Payload{InitData: raw, ColorScheme: telegram.ColorSchemeLight}
	data, err := initdata.Parse(raw)
	if err != nil {
		logger.Warn("unreadable init data", zap.Error(err))
		return payload
	}
	if u := data.User; u != nil {
		payload.User = &telegram.UserData{
			ID:           u.ID,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Username:     u.Username,
			LanguageCode: u.LanguageCode,
			IsPremium:    u.IsPremium,
			IsBot:        u.IsBot,
			PhotoURL:     u.PhotoURL,
		}
	}
	return payload
}

// processEnvironment feeds the fallback fingerprint from the process.
type processEnvironment struct {
	storagePath string
}

func (processEnvironment) UserAgent() string {
	return fmt.Sprintf("botadmin-miniapp (%s; %s) %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func (processEnvironment) Language() string {
	if lang := os.Getenv("LANG"); lang != "" {
		return lang
	}
	return "en"
}

func (processEnvironment) ScreenSize() (int, int) { return 0, 0 }

func (processEnvironment) TimezoneOffset() int {
	_, offset := time.Now().Zone()
	return -offset / 60
}

func (e processEnvironment) StorageFlags() fingerprint.StorageFlags {
	return fingerprint.StorageFlags{LocalStorage: e.storagePath != ""}
}

func (processEnvironment) CanvasSnapshot() (string, error) {
	return "", fmt.Errorf("canvas unavailable in %s", runtime.GOOS)
}
