package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Immellstorn/balance-app/internal/events"
	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/Immellstorn/balance-app/internal/repository"
)

// BalanceProjector rebuilds the Redis balance views from balance.updated
// events. The command service already writes the view synchronously after
// each commit; the projector replays the same data from the stream, which
// keeps every instance's cache warm and repairs views lost to Redis restarts.
type BalanceProjector struct {
	readRepo *repository.BalanceReadRepository
}

func NewBalanceProjector(readRepo *repository.BalanceReadRepository) *BalanceProjector {
	return &BalanceProjector{readRepo: readRepo}
}

// HandleBalanceEvent reacts to balance.updated events by rewriting the view.
// Idempotent: replaying an event overwrites the view with the same state.
func (p *BalanceProjector) HandleBalanceEvent(ctx context.Context, event events.Event) error {
	if event.Type != events.BalanceUpdated {
		return nil
	}
	dataBytes, _ := json.Marshal(event.Data)
	var data events.BalanceUpdatedEvent
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return fmt.Errorf("failed to unmarshal balance.updated event: %w", err)
	}
	p.readRepo.CacheBalanceView(ctx, &models.BalanceView{
		UserID:    data.UserID,
		Balance:   data.NewBalance,
		UpdatedAt: event.Timestamp,
	})
	return nil
}
