package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	balances := `
CREATE TABLE IF NOT EXISTS account_balances (
  user_id TEXT PRIMARY KEY,
  balance INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS token_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  kind TEXT NOT NULL,
  description TEXT,
  metadata TEXT,
  created_at DATETIME
);`
	for _, stmt := range []string{balances, transactions} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func TestRepository_CreditUpsertAccumulates(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	if err := repo.CreditUpsert(ctx, userID, 100); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if err := repo.CreditUpsert(ctx, userID, 50); err != nil {
		t.Fatalf("second credit: %v", err)
	}

	got, err := repo.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if got != 150 {
		t.Fatalf("expected 150, got %d", got)
	}
}

func TestRepository_DebitIfSufficientRefusesOverdraft(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	if err := repo.CreditUpsert(ctx, userID, 10); err != nil {
		t.Fatalf("credit: %v", err)
	}

	ok, err := repo.DebitIfSufficient(ctx, userID, 25)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if ok {
		t.Fatal("overdraft must be refused")
	}

	ok, err = repo.DebitIfSufficient(ctx, userID, 10)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !ok {
		t.Fatal("exact-balance debit must succeed")
	}

	got, err := repo.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestRepository_DebitUnknownUserRefused(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)

	ok, err := repo.DebitIfSufficient(context.Background(), uuid.New(), 1)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if ok {
		t.Fatal("debit against missing row must be refused")
	}
}

func TestRepository_TransactionSumMatchesBalance(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	steps := []struct {
		credit bool
		amount int64
		kind   enums.TransactionKind
	}{
		{credit: true, amount: 200, kind: enums.TransactionKindPurchase},
		{credit: false, amount: 40, kind: enums.TransactionKindUsage},
		{credit: true, amount: 25, kind: enums.TransactionKindBonus},
		{credit: false, amount: 60, kind: enums.TransactionKindUsage},
	}

	for _, step := range steps {
		if step.credit {
			if err := repo.CreditUpsert(ctx, userID, step.amount); err != nil {
				t.Fatalf("credit: %v", err)
			}
			if err := repo.AppendTransaction(ctx, &models.TokenTransaction{
				ID: uuid.New(), UserID: userID, Amount: step.amount, Kind: step.kind,
			}); err != nil {
				t.Fatalf("append: %v", err)
			}
			continue
		}
		ok, err := repo.DebitIfSufficient(ctx, userID, step.amount)
		if err != nil || !ok {
			t.Fatalf("debit failed: ok=%v err=%v", ok, err)
		}
		if err := repo.AppendTransaction(ctx, &models.TokenTransaction{
			ID: uuid.New(), UserID: userID, Amount: -step.amount, Kind: step.kind,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	balance, err := repo.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}

	txns, err := repo.ListTransactions(ctx, userID, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	var sum int64
	for _, txn := range txns {
		sum += txn.Amount
	}
	if sum != balance {
		t.Fatalf("transaction sum %d does not match balance %d", sum, balance)
	}
	if balance != 125 {
		t.Fatalf("expected balance 125, got %d", balance)
	}
}
