package controllers

import (
	"net/http"
	"time"

	"github.com/lumora-ai/companion-backend/api/responses"
	"github.com/lumora-ai/companion-backend/api/validators"
	"github.com/lumora-ai/companion-backend/internal/ledger"
	"github.com/lumora-ai/companion-backend/internal/plans"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

type transactionView struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// AccountBalance reports the caller's current premium token balance.
func AccountBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"balance": balance})
	}
}

// AccountTransactions lists the caller's ledger history, newest first.
func AccountTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactions, err := svc.Transactions(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]transactionView, 0, len(transactions))
		for _, tx := range transactions {
			views = append(views, transactionView{
				ID:          tx.ID.String(),
				Amount:      tx.Amount,
				Kind:        string(tx.Kind),
				Description: tx.Description,
				CreatedAt:   tx.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		responses.WriteSuccess(w, map[string]any{"transactions": views})
	}
}

// AccountPlan reports the caller's resolved plan tier and restrictions.
func AccountPlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resolution, err := svc.Resolve(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolution)
	}
}
