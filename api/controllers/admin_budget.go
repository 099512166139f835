package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/api/responses"
	"github.com/lumora-ai/companion-backend/api/validators"
	"github.com/lumora-ai/companion-backend/internal/budget"
	"github.com/lumora-ai/companion-backend/internal/ledger"
	"github.com/lumora-ai/companion-backend/internal/plans"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	pkgerrors "github.com/lumora-ai/companion-backend/pkg/errors"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

type ledgerCreditBody struct {
	UserID      string `json:"user_id" validate:"required,uuid4"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Kind        string `json:"kind" validate:"required"`
	Description string `json:"description" validate:"omitempty,max=500"`
}

type planAssignBody struct {
	UserID    string `json:"user_id" validate:"required,uuid4"`
	PlanType  string `json:"plan_type" validate:"required"`
	PeriodEnd string `json:"period_end" validate:"omitempty"`
}

// AdminBudgetStatus reports the month-to-date provider spend against caps.
func AdminBudgetStatus(svc budget.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// AdminBudgetProjection estimates month-end spend at the current burn rate.
func AdminBudgetProjection(svc budget.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projection, err := svc.Project(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projection)
	}
}

// AdminLedgerCredit grants premium tokens to a user outside the payment flow.
func AdminLedgerCredit(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ledgerCreditBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := uuid.Parse(body.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}
		kind, err := enums.ParseTransactionKind(body.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction kind"))
			return
		}

		metadata, _ := json.Marshal(map[string]string{"source": "admin"})
		if err := svc.Credit(r.Context(), ledger.CreditInput{
			UserID:      userID,
			Amount:      body.Amount,
			Kind:        kind,
			Description: validators.SanitizeString(body.Description, 500),
			Metadata:    metadata,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"credited": true})
	}
}

// AdminPlanAssign sets a user's plan tier directly, bypassing payments.
func AdminPlanAssign(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body planAssignBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := uuid.Parse(body.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}
		planType, err := enums.ParsePlanType(body.PlanType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan type"))
			return
		}

		var periodEnd *time.Time
		if body.PeriodEnd != "" {
			parsed, err := time.Parse(time.RFC3339, body.PeriodEnd)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid period end"))
				return
			}
			periodEnd = &parsed
		}

		if err := svc.Assign(r.Context(), plans.AssignInput{
			UserID:    userID,
			PlanType:  planType,
			PeriodEnd: periodEnd,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"assigned": true})
	}
}
