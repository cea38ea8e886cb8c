package command

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Immellstorn/balance-app/internal/cqrs"
	"github.com/Immellstorn/balance-app/internal/events"
	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/Immellstorn/balance-app/internal/storage"
	"github.com/Immellstorn/balance-app/internal/utils"
	"github.com/shopspring/decimal"
)

// minUnit is the smallest accepted amount. Amounts below it, or not a whole
// number of minor units, are invalid.
var minUnit = decimal.New(1, -2)

// UserDirectory resolves user ids. Users are external to the ledger.
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// BalanceViewCacher refreshes the read model after a commit.
type BalanceViewCacher interface {
	CacheBalanceView(ctx context.Context, view *models.BalanceView)
}

// EventPublisher emits domain events after a commit.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// BalanceCommandService is the write-side balance engine. Every mutation runs
// as one atomic unit against the ledger store: the balance writes and the
// transaction-log appends commit together or not at all. Funds checks use
// locked reads inside that unit, so concurrent withdrawals against the same
// user cannot both spend the same money.
type BalanceCommandService struct {
	store     storage.LedgerStore
	users     UserDirectory
	readRepo  BalanceViewCacher
	publisher EventPublisher
}

func NewBalanceCommandService(
	store storage.LedgerStore,
	users UserDirectory,
	readRepo BalanceViewCacher,
	publisher EventPublisher,
) *BalanceCommandService {
	return &BalanceCommandService{
		store:     store,
		users:     users,
		readRepo:  readRepo,
		publisher: publisher,
	}
}

// Deposit adds cmd.Amount to the user's balance, creating the balance record
// on first use, and appends a deposit transaction.
func (s *BalanceCommandService) Deposit(cmd cqrs.DepositCommand) (*models.OperationResult, error) {
	ctx := context.Background()
	if err := s.ensureUserExists(ctx, cmd.UserID, models.ErrUserNotFound); err != nil {
		return nil, err
	}
	if err := validateAmount(cmd.Amount); err != nil {
		return nil, err
	}

	var (
		newBalance decimal.Decimal
		tran       *models.Transaction
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.EnsureBalance(ctx, cmd.UserID); err != nil {
			return err
		}
		balance, err := tx.AddToBalance(ctx, cmd.UserID, cmd.Amount)
		if err != nil {
			return err
		}
		newBalance = balance
		tran = newTransaction(cmd.UserID, models.TypeDeposit, cmd.Amount, cmd.Comment, nil)
		return tx.AppendTransaction(ctx, tran)
	})
	if err != nil {
		return nil, err
	}

	s.syncBalanceView(ctx, cmd.UserID, newBalance, cmd.Amount)
	s.publishTransactionCreated(ctx, tran)

	return &models.OperationResult{
		UserID:  cmd.UserID,
		Balance: newBalance,
		Message: "Deposit successful",
	}, nil
}

// Withdraw subtracts cmd.Amount from the user's balance and appends a
// withdraw transaction. A missing balance record counts as zero, which is
// insufficient for any valid amount.
func (s *BalanceCommandService) Withdraw(cmd cqrs.WithdrawCommand) (*models.OperationResult, error) {
	ctx := context.Background()
	if err := s.ensureUserExists(ctx, cmd.UserID, models.ErrUserNotFound); err != nil {
		return nil, err
	}
	if err := validateAmount(cmd.Amount); err != nil {
		return nil, err
	}

	var (
		newBalance decimal.Decimal
		tran       *models.Transaction
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		balance, exists, err := tx.BalanceForUpdate(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if !exists || balance.LessThan(cmd.Amount) {
			return models.ErrInsufficientFunds
		}
		newBalance, err = tx.AddToBalance(ctx, cmd.UserID, cmd.Amount.Neg())
		if err != nil {
			return err
		}
		tran = newTransaction(cmd.UserID, models.TypeWithdraw, cmd.Amount, cmd.Comment, nil)
		return tx.AppendTransaction(ctx, tran)
	})
	if err != nil {
		return nil, err
	}

	s.syncBalanceView(ctx, cmd.UserID, newBalance, cmd.Amount.Neg())
	s.publishTransactionCreated(ctx, tran)

	return &models.OperationResult{
		UserID:  cmd.UserID,
		Balance: newBalance,
		Message: "Withdrawal successful",
	}, nil
}

// Transfer moves cmd.Amount from one user to another, creating the
// receiver's balance record if needed, and appends a transfer_out/transfer_in
// pair in the same atomic unit. The sum of the two balances is unchanged.
//
// Preconditions are checked in a fixed order so error responses are
// deterministic: same-user, sender exists, receiver exists, amount, funds.
func (s *BalanceCommandService) Transfer(cmd cqrs.TransferCommand) (*models.TransferResult, error) {
	ctx := context.Background()
	if cmd.FromUserID == cmd.ToUserID {
		return nil, models.ErrSameUser
	}
	if err := s.ensureUserExists(ctx, cmd.FromUserID, models.ErrFromUserNotFound); err != nil {
		return nil, err
	}
	if err := s.ensureUserExists(ctx, cmd.ToUserID, models.ErrToUserNotFound); err != nil {
		return nil, err
	}
	if err := validateAmount(cmd.Amount); err != nil {
		return nil, err
	}

	var (
		fromBalance, toBalance decimal.Decimal
		outTran, inTran        *models.Transaction
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		// Lock both rows in ascending user-id order to avoid deadlocks
		// between opposing transfers. The receiver's row is only inserted
		// after the ordered locks are held: inserting first would take the
		// receiver's lock out of order.
		var senderBalance decimal.Decimal
		var senderExists bool
		for _, userID := range lockOrder(cmd.FromUserID, cmd.ToUserID) {
			balance, exists, err := tx.BalanceForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			if userID == cmd.FromUserID {
				senderBalance, senderExists = balance, exists
			}
		}
		if !senderExists || senderBalance.LessThan(cmd.Amount) {
			return models.ErrInsufficientFunds
		}
		if err := tx.EnsureBalance(ctx, cmd.ToUserID); err != nil {
			return err
		}

		var err error
		fromBalance, err = tx.AddToBalance(ctx, cmd.FromUserID, cmd.Amount.Neg())
		if err != nil {
			return err
		}
		toBalance, err = tx.AddToBalance(ctx, cmd.ToUserID, cmd.Amount)
		if err != nil {
			return err
		}

		outTran = newTransaction(cmd.FromUserID, models.TypeTransferOut, cmd.Amount, cmd.Comment, &cmd.ToUserID)
		if err := tx.AppendTransaction(ctx, outTran); err != nil {
			return err
		}
		inTran = newTransaction(cmd.ToUserID, models.TypeTransferIn, cmd.Amount, cmd.Comment, &cmd.FromUserID)
		return tx.AppendTransaction(ctx, inTran)
	})
	if err != nil {
		return nil, err
	}

	s.syncBalanceView(ctx, cmd.FromUserID, fromBalance, cmd.Amount.Neg())
	s.syncBalanceView(ctx, cmd.ToUserID, toBalance, cmd.Amount)
	s.publishTransactionCreated(ctx, outTran)
	s.publishTransactionCreated(ctx, inTran)

	return &models.TransferResult{
		FromUserID:      cmd.FromUserID,
		ToUserID:        cmd.ToUserID,
		Amount:          cmd.Amount,
		FromUserBalance: fromBalance,
		ToUserBalance:   toBalance,
		Message:         "Transfer successful",
	}, nil
}

func (s *BalanceCommandService) ensureUserExists(ctx context.Context, userID int64, notFound error) error {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to look up user %d: %w", userID, err)
	}
	if !exists {
		return notFound
	}
	return nil
}

// syncBalanceView rewrites the Redis read model and emits balance.updated.
// Both are best-effort: the mutation has already committed.
func (s *BalanceCommandService) syncBalanceView(ctx context.Context, userID int64, newBalance, change decimal.Decimal) {
	s.readRepo.CacheBalanceView(ctx, &models.BalanceView{
		UserID:    userID,
		Balance:   newBalance,
		UpdatedAt: time.Now().UTC(),
	})
	if err := s.publisher.Publish(ctx, events.BalanceEventsStream, events.BalanceUpdated, events.BalanceUpdatedEvent{
		UserID:     userID,
		NewBalance: newBalance,
		Change:     change,
	}); err != nil {
		log.Printf("Failed to publish balance.updated event: %v", err)
	}
}

func (s *BalanceCommandService) publishTransactionCreated(ctx context.Context, tran *models.Transaction) {
	if err := s.publisher.Publish(ctx, events.TransactionEventsStream, events.TransactionCreated, events.TransactionCreatedEvent{
		TransactionID: tran.ID,
		UserID:        tran.UserID,
		Type:          string(tran.Type),
		Amount:        tran.Amount,
		RelatedUserID: tran.RelatedUserID,
	}); err != nil {
		log.Printf("Failed to publish transaction.created event: %v", err)
	}
}

func validateAmount(amount decimal.Decimal) error {
	if amount.LessThan(minUnit) || !amount.Mod(minUnit).IsZero() {
		return models.ErrInvalidAmount
	}
	return nil
}

func newTransaction(userID int64, tranType models.TransactionType, amount decimal.Decimal, comment string, relatedUserID *int64) *models.Transaction {
	return &models.Transaction{
		ID:            utils.GenerateID("txn"),
		UserID:        userID,
		Type:          tranType,
		Amount:        amount,
		Comment:       comment,
		RelatedUserID: relatedUserID,
		CreatedAt:     time.Now().UTC(),
	}
}

func lockOrder(a, b int64) [2]int64 {
	if a < b {
		return [2]int64{a, b}
	}
	return [2]int64{b, a}
}
