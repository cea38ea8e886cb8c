package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Immellstorn/balance-app/internal/models"
	sharedredis "github.com/Immellstorn/balance-app/internal/redis"
	goredis "github.com/redis/go-redis/v9"
)

const userViewKeyPrefix = "user:view:"

// UserRepository resolves ids against the user directory. The ledger never
// writes users; lookups are read-only and positive hits are cached in Redis
// for a short period.
type UserRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.User]
}

func NewUserRepository(db *sql.DB, redisClient *goredis.Client) *UserRepository {
	return &UserRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.User](redisClient, 5*time.Minute),
	}
}

// GetByID returns a user by attempting Redis first, then PostgreSQL.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	cacheKey := fmt.Sprintf("%s%d", userViewKeyPrefix, userID)
	if user, ok := r.cache.Get(ctx, cacheKey); ok {
		return user, nil
	}

	const query = `SELECT id, name, email, created_at FROM users WHERE id = $1`

	var user models.User
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &user.Name, &user.Email, &user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	r.cache.Set(ctx, cacheKey, &user)
	return &user, nil
}

// Exists reports whether userID resolves to a user record.
func (r *UserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	_, err := r.GetByID(ctx, userID)
	if err == models.ErrUserNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
