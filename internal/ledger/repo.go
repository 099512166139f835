package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
)

// Repository manages persistence for balances and token transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	DebitIfSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)
	CreditUpsert(ctx context.Context, userID uuid.UUID, amount int64) error
	AppendTransaction(ctx context.Context, txn *models.TokenTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.TokenTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var row models.AccountBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return row.Balance, nil
}

// DebitIfSufficient decrements the balance only when the row holds at least
// amount. The single conditional UPDATE is the atomicity guarantee; no row
// is ever left negative.
func (r *repository) DebitIfSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.AccountBalance{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreditUpsert(ctx context.Context, userID uuid.UUID, amount int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance": gorm.Expr("account_balances.balance + ?", amount),
			}),
		}).
		Create(&models.AccountBalance{UserID: userID, Balance: amount}).Error
}

func (r *repository) AppendTransaction(ctx context.Context, txn *models.TokenTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.TokenTransaction, error) {
	var txns []models.TokenTransaction
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
