package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Immellstorn/balance-app/internal/cqrs"
	"github.com/Immellstorn/balance-app/internal/models"
	"github.com/Immellstorn/balance-app/internal/storage/memory"
	"github.com/shopspring/decimal"
)

// ---- fakes ----

type stubUserDirectory struct {
	users map[int64]bool
}

func (s *stubUserDirectory) Exists(ctx context.Context, userID int64) (bool, error) {
	return s.users[userID], nil
}

type nopViewCacher struct{}

func (nopViewCacher) CacheBalanceView(ctx context.Context, view *models.BalanceView) {}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	return nil
}

// ---- helpers ----

func newTestService(userIDs ...int64) (*BalanceCommandService, *memory.LedgerStore) {
	users := make(map[int64]bool)
	for _, id := range userIDs {
		users[id] = true
	}
	store := memory.NewLedgerStore()
	svc := NewBalanceCommandService(store, &stubUserDirectory{users: users}, nopViewCacher{}, nopPublisher{})
	return svc, store
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func mustDeposit(t *testing.T, svc *BalanceCommandService, userID int64, amount string) {
	t.Helper()
	if _, err := svc.Deposit(cqrs.DepositCommand{UserID: userID, Amount: dec(t, amount)}); err != nil {
		t.Fatalf("seed deposit for user %d failed: %v", userID, err)
	}
}

func transactionsFor(store *memory.LedgerStore, userID int64) []models.Transaction {
	var result []models.Transaction
	for _, tran := range store.Transactions() {
		if tran.UserID == userID {
			result = append(result, tran)
		}
	}
	return result
}

// ---- tests ----

func TestDeposit(t *testing.T) {
	svc, store := newTestService(1)

	result, err := svc.Deposit(cqrs.DepositCommand{UserID: 1, Amount: dec(t, "100.00"), Comment: "salary"})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if !result.Balance.Equal(dec(t, "100.00")) {
		t.Errorf("expected balance 100.00 got %s", result.Balance)
	}
	if result.Message != "Deposit successful" {
		t.Errorf("unexpected message %q", result.Message)
	}

	// second deposit accumulates
	result, err = svc.Deposit(cqrs.DepositCommand{UserID: 1, Amount: dec(t, "0.01")})
	if err != nil {
		t.Fatalf("second deposit failed: %v", err)
	}
	if !result.Balance.Equal(dec(t, "100.01")) {
		t.Errorf("expected balance 100.01 got %s", result.Balance)
	}

	trans := transactionsFor(store, 1)
	if len(trans) != 2 {
		t.Fatalf("expected 2 transactions got %d", len(trans))
	}
	if trans[0].Type != models.TypeDeposit || !trans[0].Amount.Equal(dec(t, "100.00")) {
		t.Errorf("unexpected first transaction: %+v", trans[0])
	}
	if trans[0].Comment != "salary" {
		t.Errorf("expected comment to be recorded, got %q", trans[0].Comment)
	}
	if trans[0].RelatedUserID != nil {
		t.Errorf("deposit must not carry a related user")
	}
}

func TestDepositValidation(t *testing.T) {
	tests := []struct {
		name    string
		userID  int64
		amount  string
		wantErr error
	}{
		{name: "unknown user", userID: 99, amount: "10.00", wantErr: models.ErrUserNotFound},
		{name: "zero amount", userID: 1, amount: "0", wantErr: models.ErrInvalidAmount},
		{name: "negative amount", userID: 1, amount: "-5.00", wantErr: models.ErrInvalidAmount},
		{name: "below minor unit", userID: 1, amount: "0.005", wantErr: models.ErrInvalidAmount},
		{name: "fractional minor units", userID: 1, amount: "1.005", wantErr: models.ErrInvalidAmount},
		// existence is checked before the amount
		{name: "unknown user with zero amount", userID: 99, amount: "0", wantErr: models.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(1)
			_, err := svc.Deposit(cqrs.DepositCommand{UserID: tt.userID, Amount: dec(t, tt.amount)})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v got %v", tt.wantErr, err)
			}
			if len(store.Transactions()) != 0 {
				t.Errorf("failed deposit must not append transactions")
			}
		})
	}

	// smallest unit is accepted
	svc, _ := newTestService(1)
	if _, err := svc.Deposit(cqrs.DepositCommand{UserID: 1, Amount: dec(t, "0.01")}); err != nil {
		t.Errorf("deposit of 0.01 should succeed, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	svc, store := newTestService(1)
	mustDeposit(t, svc, 1, "100.00")

	result, err := svc.Withdraw(cqrs.WithdrawCommand{UserID: 1, Amount: dec(t, "30.00"), Comment: "rent"})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if !result.Balance.Equal(dec(t, "70.00")) {
		t.Errorf("expected balance 70.00 got %s", result.Balance)
	}
	if result.Message != "Withdrawal successful" {
		t.Errorf("unexpected message %q", result.Message)
	}

	trans := transactionsFor(store, 1)
	if len(trans) != 2 {
		t.Fatalf("expected deposit + withdraw transactions, got %d", len(trans))
	}
	if trans[1].Type != models.TypeWithdraw || !trans[1].Amount.Equal(dec(t, "30.00")) {
		t.Errorf("unexpected withdraw transaction: %+v", trans[1])
	}

	// withdrawing the exact remaining balance empties it
	result, err = svc.Withdraw(cqrs.WithdrawCommand{UserID: 1, Amount: dec(t, "70.00")})
	if err != nil {
		t.Fatalf("exact withdraw failed: %v", err)
	}
	if !result.Balance.IsZero() {
		t.Errorf("expected zero balance got %s", result.Balance)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	svc, store := newTestService(1, 2)
	mustDeposit(t, svc, 1, "20.00")

	_, err := svc.Withdraw(cqrs.WithdrawCommand{UserID: 1, Amount: dec(t, "1000.00")})
	if !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds got %v", err)
	}

	// balance unchanged, no transaction appended
	balance, err := store.GetBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if !balance.Equal(dec(t, "20.00")) {
		t.Errorf("balance changed after failed withdrawal: %s", balance)
	}
	if len(transactionsFor(store, 1)) != 1 {
		t.Errorf("failed withdrawal must not append transactions")
	}

	// a user with no balance record is always insufficient
	_, err = svc.Withdraw(cqrs.WithdrawCommand{UserID: 2, Amount: dec(t, "0.01")})
	if !errors.Is(err, models.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds for absent record got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	svc, store := newTestService(1, 2)
	mustDeposit(t, svc, 1, "70.00")

	result, err := svc.Transfer(cqrs.TransferCommand{
		FromUserID: 1, ToUserID: 2, Amount: dec(t, "50.00"), Comment: "gift",
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !result.FromUserBalance.Equal(dec(t, "20.00")) {
		t.Errorf("expected sender balance 20.00 got %s", result.FromUserBalance)
	}
	if !result.ToUserBalance.Equal(dec(t, "50.00")) {
		t.Errorf("expected receiver balance 50.00 got %s", result.ToUserBalance)
	}
	if result.Message != "Transfer successful" {
		t.Errorf("unexpected message %q", result.Message)
	}

	// conservation: sum of balances unchanged
	total := result.FromUserBalance.Add(result.ToUserBalance)
	if !total.Equal(dec(t, "70.00")) {
		t.Errorf("transfer did not conserve money: total %s", total)
	}

	// one transfer_out/transfer_in pair with swapped user references
	outTrans := transactionsFor(store, 1)
	inTrans := transactionsFor(store, 2)
	if len(outTrans) != 2 || len(inTrans) != 1 {
		t.Fatalf("expected deposit+transfer_out for sender and transfer_in for receiver, got %d/%d", len(outTrans), len(inTrans))
	}
	out, in := outTrans[1], inTrans[0]
	if out.Type != models.TypeTransferOut || in.Type != models.TypeTransferIn {
		t.Errorf("unexpected pair types: %s/%s", out.Type, in.Type)
	}
	if !out.Amount.Equal(in.Amount) {
		t.Errorf("pair amounts differ: %s vs %s", out.Amount, in.Amount)
	}
	if out.RelatedUserID == nil || *out.RelatedUserID != 2 {
		t.Errorf("transfer_out must reference the receiver")
	}
	if in.RelatedUserID == nil || *in.RelatedUserID != 1 {
		t.Errorf("transfer_in must reference the sender")
	}
	if out.Comment != "gift" || in.Comment != "gift" {
		t.Errorf("both pair rows must carry the comment")
	}
}

func TestTransferValidation(t *testing.T) {
	tests := []struct {
		name    string
		from    int64
		to      int64
		amount  string
		wantErr error
	}{
		// same-user is checked first, even when the user does not exist
		{name: "same user", from: 99, to: 99, amount: "10.00", wantErr: models.ErrSameUser},
		{name: "from user missing", from: 99, to: 2, amount: "10.00", wantErr: models.ErrFromUserNotFound},
		{name: "to user missing", from: 1, to: 99, amount: "10.00", wantErr: models.ErrToUserNotFound},
		{name: "zero amount", from: 1, to: 2, amount: "0", wantErr: models.ErrInvalidAmount},
		{name: "insufficient funds", from: 1, to: 2, amount: "500.00", wantErr: models.ErrInsufficientFunds},
		{name: "no sender balance record", from: 2, to: 1, amount: "0.01", wantErr: models.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(1, 2)
			mustDeposit(t, svc, 1, "100.00")
			before := len(store.Transactions())

			_, err := svc.Transfer(cqrs.TransferCommand{FromUserID: tt.from, ToUserID: tt.to, Amount: dec(t, tt.amount)})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v got %v", tt.wantErr, err)
			}
			if len(store.Transactions()) != before {
				t.Errorf("failed transfer must not append transactions")
			}
		})
	}
}

// Opposing concurrent transfers between the same pair of users must all
// complete (locks are taken in ascending user-id order, so the two directions
// cannot wait on each other) and the total across both balances is conserved.
func TestConcurrentOpposingTransfers(t *testing.T) {
	const n = 10
	amount := dec(t, "1.00")

	svc, store := newTestService(1, 2)
	mustDeposit(t, svc, 1, "100.00")
	mustDeposit(t, svc, 2, "100.00")

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.Transfer(cqrs.TransferCommand{FromUserID: 1, ToUserID: 2, Amount: amount}); err != nil {
				t.Errorf("transfer 1->2 failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.Transfer(cqrs.TransferCommand{FromUserID: 2, ToUserID: 1, Amount: amount}); err != nil {
				t.Errorf("transfer 2->1 failed: %v", err)
			}
		}()
	}
	wg.Wait()

	b1, err := store.GetBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	b2, err := store.GetBalance(context.Background(), 2)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	// equal counts in both directions: each user ends where it started
	if !b1.Equal(dec(t, "100.00")) || !b2.Equal(dec(t, "100.00")) {
		t.Errorf("expected both balances back at 100.00, got %s/%s", b1, b2)
	}
	if !b1.Add(b2).Equal(dec(t, "200.00")) {
		t.Errorf("transfers did not conserve money: total %s", b1.Add(b2))
	}
}

// With a balance of exactly (N-1)*A, N concurrent withdrawals of A must yield
// exactly N-1 successes and one insufficient-funds failure.
func TestConcurrentWithdrawals(t *testing.T) {
	const n = 8
	amount := dec(t, "10.00")

	svc, store := newTestService(1)
	mustDeposit(t, svc, 1, "70.00") // (n-1) * 10.00

	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(cqrs.WithdrawCommand{UserID: 1, Amount: amount})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, models.ErrInsufficientFunds):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != n-1 || insufficient != 1 {
		t.Errorf("expected %d successes and 1 failure, got %d/%d", n-1, successes, insufficient)
	}

	balance, err := store.GetBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("expected zero balance after drain, got %s", balance)
	}

	withdrawals := 0
	for _, tran := range transactionsFor(store, 1) {
		if tran.Type == models.TypeWithdraw {
			withdrawals++
		}
	}
	if withdrawals != n-1 {
		t.Errorf("expected %d withdraw transactions got %d", n-1, withdrawals)
	}
}
