package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/Immellstorn/balance-app/internal/storage"
	"github.com/shopspring/decimal"
)

const balanceViewKeyPrefix = "balance:view:"

// BalanceViewCache holds the balance read model, one view per key.
// Satisfied by redis.ViewCache[models.BalanceView] in production.
type BalanceViewCache interface {
	Get(ctx context.Context, key string) (*models.BalanceView, bool)
	Set(ctx context.Context, key string, view *models.BalanceView)
}

// BalanceReadRepository serves balance reads. It uses the view cache as the
// primary read store, falling back to the ledger store on a miss. It never
// participates in funds checks — those always go through a locked read inside
// the atomic unit.
type BalanceReadRepository struct {
	store storage.LedgerStore
	cache BalanceViewCache
}

func NewBalanceReadRepository(store storage.LedgerStore, cache BalanceViewCache) *BalanceReadRepository {
	return &BalanceReadRepository{store: store, cache: cache}
}

// GetBalance returns the current balance for userID, zero when no balance
// record exists yet. A cache miss is warmed from the ledger store.
func (r *BalanceReadRepository) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	cacheKey := balanceViewKey(userID)
	if view, ok := r.cache.Get(ctx, cacheKey); ok {
		return view.Balance, nil
	}

	amount, err := r.store.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	r.CacheBalanceView(ctx, &models.BalanceView{
		UserID:    userID,
		Balance:   amount,
		UpdatedAt: time.Now().UTC(),
	})
	return amount, nil
}

// CacheBalanceView stores the read model for a balance in Redis. Called by
// the command service after each commit and by the projector on every
// balance.updated event.
func (r *BalanceReadRepository) CacheBalanceView(ctx context.Context, view *models.BalanceView) {
	r.cache.Set(ctx, balanceViewKey(view.UserID), view)
}

func balanceViewKey(userID int64) string {
	return fmt.Sprintf("%s%d", balanceViewKeyPrefix, userID)
}
