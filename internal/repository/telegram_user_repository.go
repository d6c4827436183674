package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/botadmin/internal/domain"
)

// TelegramUserRepository persists Telegram users seen by the Mini App.
type TelegramUserRepository interface {
	Upsert(ctx context.Context, user *domain.TelegramUser) error
	GetByID(ctx context.Context, id int64) (*domain.TelegramUser, error)
	Search(ctx context.Context, query string, limit, offset int) ([]domain.TelegramUser, int, error)
}

type telegramUserRepository struct {
	pool *pgxpool.Pool
}

// NewTelegramUserRepository returns a Postgres-backed implementation.
func NewTelegramUserRepository(pool *pgxpool.Pool) TelegramUserRepository {
	return &telegramUserRepository{pool: pool}
}

const telegramUserColumns = `id, username, first_name, last_name, language_code, is_premium, is_bot, photo_url, verified_at, created_at, updated_at`

// Upsert inserts the user or refreshes its profile. An empty photo URL keeps the stored one.
func (r *telegramUserRepository) Upsert(ctx context.Context, user *domain.TelegramUser) error {
	const query = `
        INSERT INTO telegram_users (id, username, first_name, last_name, language_code, is_premium, is_bot, photo_url, verified_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
        ON CONFLICT (id) DO UPDATE SET
            username=EXCLUDED.username,
            first_name=EXCLUDED.first_name,
            last_name=EXCLUDED.last_name,
            language_code=EXCLUDED.language_code,
            is_premium=EXCLUDED.is_premium,
            is_bot=EXCLUDED.is_bot,
            photo_url=COALESCE(NULLIF(EXCLUDED.photo_url, ''), telegram_users.photo_url),
            verified_at=NOW(),
            updated_at=NOW()
        RETURNING verified_at, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.LanguageCode,
		user.IsPremium,
		user.IsBot,
		user.PhotoURL,
	).Scan(&user.VerifiedAt, &user.CreatedAt, &user.UpdatedAt)
}

func (r *telegramUserRepository) GetByID(ctx context.Context, id int64) (*domain.TelegramUser, error) {
	query := `SELECT ` + telegramUserColumns + ` FROM telegram_users WHERE id=$1`
	return scanTelegramUser(r.pool.QueryRow(ctx, query, id))
}

// Search matches username, first or last name case-insensitively, or the
// numeric ID exactly, and returns one page plus the total match count.
func (r *telegramUserRepository) Search(ctx context.Context, query string, limit, offset int) ([]domain.TelegramUser, int, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	const where = `
        WHERE lower(username) LIKE $1
           OR lower(first_name) LIKE $1
           OR lower(last_name) LIKE $1
           OR id::text = $2`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM telegram_users`+where, pattern, query).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+telegramUserColumns+` FROM telegram_users`+where+` ORDER BY verified_at DESC LIMIT $3 OFFSET $4`,
		pattern, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]domain.TelegramUser, 0, limit)
	for rows.Next() {
		user, err := scanTelegramUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

func scanTelegramUser(row pgx.Row) (*domain.TelegramUser, error) {
	var user domain.TelegramUser
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.LanguageCode,
		&user.IsPremium,
		&user.IsBot,
		&user.PhotoURL,
		&user.VerifiedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
