package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/botadmin/internal/auth"
	"github.com/spec-kit/botadmin/internal/config"
	"github.com/spec-kit/botadmin/internal/domain"
	"github.com/spec-kit/botadmin/internal/events"
	"github.com/spec-kit/botadmin/internal/initdata"
	"github.com/spec-kit/botadmin/internal/repository"
	apperrors "github.com/spec-kit/botadmin/pkg/util/errorutil"
)

// MinSearchQueryLength is the shortest accepted search query, in runes.
const MinSearchQueryLength = 2

const (
	messageVerified = "user verified"
	messageRejected = "init data rejected"
)

// VerifyResult is the outcome of a Mini App verification request.
type VerifyResult struct {
	Verified bool
	User     *domain.TelegramUser
	Token    string
	Message  string
}

// SearchResult is one page of Telegram users.
type SearchResult struct {
	Users  []domain.TelegramUser
	Total  int
	Limit  int
	Offset int
}

// MiniAppService validates Mini App identities and serves user lookups.
type MiniAppService struct {
	users      repository.TelegramUserRepository
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	botToken   string
	maxAge     time.Duration
	tokenTTL   time.Duration
	now        func() time.Time
}

// MiniAppDependencies encapsulates collaborators for the Mini App service.
type MiniAppDependencies struct {
	UserRepo   repository.TelegramUserRepository
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewMiniAppService builds the service.
func NewMiniAppService(cfg config.Config, deps MiniAppDependencies) *MiniAppService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MiniAppService{
		users:      deps.UserRepo,
		tokenMgr:   deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		botToken:   cfg.Telegram.BotToken,
		maxAge:     cfg.Telegram.InitDataMaxAge(),
		tokenTTL:   time.Duration(cfg.Telegram.MiniAppTokenTTLMins) * time.Minute,
		now:        time.Now,
	}
}

// Verify checks the init data signature, records the user and issues a Mini
// App token. A bad signature is a normal unverified result, not an error.
func (s *MiniAppService) Verify(ctx context.Context, rawInitData string) (*VerifyResult, error) {
	if strings.TrimSpace(rawInitData) == "" {
		return nil, apperrors.NewValidationError("init_data is required", nil)
	}
	if s.botToken == "" {
		return nil, apperrors.NewInternalError(errors.New("telegram bot token is not configured"))
	}

	data, err := initdata.Validate(rawInitData, s.botToken, s.maxAge, s.now())
	if err == nil && data.User == nil {
		err = initdata.ErrUserMissing
	}
	if err != nil {
		s.logger.Info("mini app verification rejected", zap.Error(err))
		s.publish(ctx, events.Event{
			Type:    events.EventMiniAppUserRejected,
			Actor:   events.Actor{Type: domain.SubjectTypeMiniApp},
			Payload: events.MiniAppVerificationPayload{Reason: err.Error()},
		})
		return &VerifyResult{Verified: false, Message: messageRejected}, nil
	}

	user := &domain.TelegramUser{
		ID:           data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		LanguageCode: data.User.LanguageCode,
		IsPremium:    data.User.IsPremium,
		IsBot:        data.User.IsBot,
		PhotoURL:     data.User.PhotoURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, err
	}

	token, _, err := s.tokenMgr.GenerateToken(auth.TokenRequest{
		SubjectID: strconv.FormatInt(user.ID, 10),
		Subject:   domain.SubjectTypeMiniApp,
		TTL:       s.tokenTTL,
	})
	if err != nil {
		return nil, err
	}

	userID := user.ID
	s.publish(ctx, events.Event{
		Type:    events.EventMiniAppUserVerified,
		Actor:   events.Actor{Type: domain.SubjectTypeMiniApp, TelegramUserID: &userID},
		Payload: events.MiniAppVerificationPayload{TelegramUserID: user.ID, Username: user.Username},
	})

	return &VerifyResult{Verified: true, User: user, Token: token, Message: messageVerified}, nil
}

// Search looks users up by name, username or exact ID.
func (s *MiniAppService) Search(ctx context.Context, callerID int64, query string, limit, offset int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchQueryLength {
		return nil, apperrors.NewValidationError("query is too short", map[string]any{"min_length": MinSearchQueryLength})
	}
	limit, offset = normalizePage(limit, offset)

	users, total, err := s.users.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:    events.EventMiniAppSearchPerformed,
		Actor:   events.Actor{Type: domain.SubjectTypeMiniApp, TelegramUserID: &callerID},
		Payload: events.MiniAppSearchPayload{Query: query, Results: len(users), Total: total},
	})
	return &SearchResult{Users: users, Total: total, Limit: limit, Offset: offset}, nil
}

// PhotoURL returns the stored avatar URL of a Telegram user.
func (s *MiniAppService) PhotoURL(ctx context.Context, id int64) (string, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("user photo", map[string]any{"id": id})
		}
		return "", err
	}
	if user.PhotoURL == "" {
		return "", apperrors.NewNotFound("user photo", map[string]any{"id": id})
	}
	return user.PhotoURL, nil
}

func (s *MiniAppService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
