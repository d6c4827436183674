package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/botadmin/internal/auth"
	"github.com/spec-kit/botadmin/internal/config"
	"github.com/spec-kit/botadmin/internal/domain"
	"github.com/spec-kit/botadmin/internal/events"
	"github.com/spec-kit/botadmin/internal/initdata"
)

const testBotToken = "123456:TEST"

func newMiniAppFixture(t *testing.T) (*MiniAppService, *memoryTelegramUsers, *auth.TokenManager, *recordingDispatcher) {
	t.Helper()
	cfg := config.Config{Telegram: config.TelegramConfig{
		BotToken:            testBotToken,
		InitDataMaxAgeHours: 24,
		MiniAppTokenTTLMins: 120,
	}}
	users := newMemoryTelegramUsers()
	tokens := auth.NewTokenManager("test-secret", 60)
	dispatcher := &recordingDispatcher{}
	svc := NewMiniAppService(cfg, MiniAppDependencies{UserRepo: users, Tokens: tokens, Dispatcher: dispatcher})
	return svc, users, tokens, dispatcher
}

func signedInitData(t *testing.T, user *initdata.User, authDate time.Time) string {
	t.Helper()
	values := url.Values{}
	values.Set("query_id", "AAH")
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	if user != nil {
		raw, err := json.Marshal(user)
		require.NoError(t, err)
		values.Set("user", string(raw))
	}
	return initdata.Sign(values, testBotToken)
}

func TestVerifyAcceptsSignedInitData(t *testing.T) {
	svc, users, tokens, dispatcher := newMiniAppFixture(t)

	raw := signedInitData(t, &initdata.User{ID: 777, FirstName: "Ivan", Username: "ivan", PhotoURL: "https://t.me/i/777.jpg"}, time.Now())
	res, err := svc.Verify(context.Background(), raw)
	require.NoError(t, err)
	require.True(t, res.Verified)
	assert.Equal(t, int64(777), res.User.ID)
	assert.NotEmpty(t, res.Token)

	claims, err := tokens.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.SubjectTypeMiniApp, claims.Subject)
	assert.Equal(t, "777", claims.SubjectID)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	stored, err := users.GetByID(context.Background(), 777)
	require.NoError(t, err)
	assert.Equal(t, "ivan", stored.Username)
	assert.Equal(t, []events.EventType{events.EventMiniAppUserVerified}, dispatcher.types())
}

func TestVerifyRejectsTamperedAndStaleData(t *testing.T) {
	svc, _, _, dispatcher := newMiniAppFixture(t)
	ctx := context.Background()

	raw := signedInitData(t, &initdata.User{ID: 1, FirstName: "A"}, time.Now())
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	values.Set("user", `{"id":2,"first_name":"B"}`)

	res, err := svc.Verify(ctx, values.Encode())
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Empty(t, res.Token)

	res, err = svc.Verify(ctx, signedInitData(t, &initdata.User{ID: 1}, time.Now().Add(-48*time.Hour)))
	require.NoError(t, err)
	assert.False(t, res.Verified)

	res, err = svc.Verify(ctx, signedInitData(t, nil, time.Now()))
	require.NoError(t, err)
	assert.False(t, res.Verified)

	assert.Equal(t, []events.EventType{
		events.EventMiniAppUserRejected,
		events.EventMiniAppUserRejected,
		events.EventMiniAppUserRejected,
	}, dispatcher.types())
}

func TestVerifyRequiresInitData(t *testing.T) {
	svc, _, _, _ := newMiniAppFixture(t)
	_, err := svc.Verify(context.Background(), "  ")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestSearch(t *testing.T) {
	svc, users, _, _ := newMiniAppFixture(t)
	ctx := context.Background()
	for i, name := range []string{"ivan", "ivanka", "olga"} {
		require.NoError(t, users.Upsert(ctx, &domain.TelegramUser{ID: int64(i + 1), Username: name}))
	}

	_, err := svc.Search(ctx, 1, " i ", 10, 0)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	res, err := svc.Search(ctx, 1, "iva", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Len(t, res.Users, 2)
	assert.Equal(t, defaultPageSize, res.Limit)

	res, err = svc.Search(ctx, 1, "zz", 500, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Equal(t, maxPageSize, res.Limit)
}

func TestPhotoURL(t *testing.T) {
	svc, users, _, _ := newMiniAppFixture(t)
	ctx := context.Background()
	require.NoError(t, users.Upsert(ctx, &domain.TelegramUser{ID: 1, PhotoURL: "https://t.me/i/1.jpg"}))
	require.NoError(t, users.Upsert(ctx, &domain.TelegramUser{ID: 2}))

	photo, err := svc.PhotoURL(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/i/1.jpg", photo)

	_, err = svc.PhotoURL(ctx, 2)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
	_, err = svc.PhotoURL(ctx, 3)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}
