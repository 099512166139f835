package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	apperrors "github.com/lumora-ai/companion-backend/pkg/errors"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

// Service defines the token ledger operations.
type Service interface {
	Debit(ctx context.Context, input DebitInput) error
	Credit(ctx context.Context, input CreditInput) error
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.TokenTransaction, error)
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// DebitInput describes a balance deduction.
type DebitInput struct {
	UserID      uuid.UUID
	Amount      int64
	Description string
	Metadata    json.RawMessage
}

// CreditInput describes a balance grant.
type CreditInput struct {
	UserID      uuid.UUID
	Amount      int64
	Kind        enums.TransactionKind
	Description string
	Metadata    json.RawMessage
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("ledger repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

// Debit deducts tokens from the user's balance. The deduction happens as a
// single conditional UPDATE so the balance can never go negative under
// concurrency. If recording the usage transaction fails afterwards, the
// deduction is compensated before the error is returned.
func (s *service) Debit(ctx context.Context, input DebitInput) error {
	if input.UserID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	if input.Amount <= 0 {
		return fmt.Errorf("debit amount must be positive")
	}

	ok, err := s.repo.DebitIfSufficient(ctx, input.UserID, input.Amount)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "debiting balance")
	}
	if !ok {
		return apperrors.New(apperrors.CodeInsufficientFunds, "balance below requested amount").
			WithDetails(map[string]any{"requested": input.Amount})
	}

	txn := &models.TokenTransaction{
		UserID:      input.UserID,
		Amount:      -input.Amount,
		Kind:        enums.TransactionKindUsage,
		Description: input.Description,
		Metadata:    input.Metadata,
	}
	if err := s.repo.AppendTransaction(ctx, txn); err != nil {
		if compErr := s.repo.CreditUpsert(ctx, input.UserID, input.Amount); compErr != nil {
			ctx = s.logg.WithUserID(ctx, input.UserID.String())
			s.logg.Error(ctx, "ledger compensation failed after debit", compErr)
		}
		return apperrors.Wrap(apperrors.CodeDependency, err, "recording usage transaction")
	}
	return nil
}

// Credit grants tokens, creating the balance row if it does not exist. A
// failed transaction append is logged but not rolled back: the user keeping
// tokens without an audit row is preferable to clawing back a paid credit.
func (s *service) Credit(ctx context.Context, input CreditInput) error {
	if input.UserID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	if input.Amount <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	if !input.Kind.IsValid() || !input.Kind.IsCredit() {
		return fmt.Errorf("invalid credit kind %q", input.Kind)
	}

	if err := s.repo.CreditUpsert(ctx, input.UserID, input.Amount); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "crediting balance")
	}

	txn := &models.TokenTransaction{
		UserID:      input.UserID,
		Amount:      input.Amount,
		Kind:        input.Kind,
		Description: input.Description,
		Metadata:    input.Metadata,
	}
	if err := s.repo.AppendTransaction(ctx, txn); err != nil {
		ctx = s.logg.WithUserID(ctx, input.UserID.String())
		s.logg.Error(ctx, "credit applied but transaction record failed", err)
	}
	return nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("user id is required")
	}
	return s.repo.GetBalance(ctx, userID)
}

func (s *service) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.TokenTransaction, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListTransactions(ctx, userID, limit)
}
