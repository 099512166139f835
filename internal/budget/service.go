package budget

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumora-ai/companion-backend/pkg/config"
	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	"github.com/lumora-ai/companion-backend/pkg/logger"
	"github.com/lumora-ai/companion-backend/pkg/metrics"
)

// Decision is the outcome of one budget evaluation.
type Decision struct {
	Allowed bool            `json:"allowed"`
	Warning bool            `json:"warning"`
	Reason  string          `json:"reason,omitempty"`
	Ratio   decimal.Decimal `json:"ratio"`
}

// Status is the month-to-date spend snapshot for operators.
type Status struct {
	CostMonthToDate decimal.Decimal `json:"cost_month_to_date"`
	CostCeiling     decimal.Decimal `json:"cost_ceiling"`
	Messages        int64           `json:"messages"`
	MessageCap      int64           `json:"message_cap"`
	Images          int64           `json:"images"`
	ImageCap        int64           `json:"image_cap"`
}

// Projection estimates where the month will land at the current burn rate.
type Projection struct {
	MonthToDate   decimal.Decimal `json:"month_to_date"`
	DailyRate     decimal.Decimal `json:"daily_rate"`
	Projected     decimal.Decimal `json:"projected"`
	DaysElapsed   int             `json:"days_elapsed"`
	DaysRemaining int             `json:"days_remaining"`
	OverBudget    bool            `json:"over_budget"`
}

// RecordInput describes one unit of real provider spend.
type RecordInput struct {
	Action     enums.CostAction
	TokensUsed int64
	APICost    decimal.Decimal
	UserID     *uuid.UUID
}

// Service guards global spend against monthly ceilings.
type Service interface {
	Check(ctx context.Context, action enums.CostAction) (Decision, error)
	Record(ctx context.Context, input RecordInput)
	Status(ctx context.Context) (Status, error)
	Project(ctx context.Context) (Projection, error)
}

// ServiceParams groups dependencies for the budget service.
type ServiceParams struct {
	Repo    Repository
	Config  config.BudgetConfig
	Logger  *logger.Logger
	Metrics *metrics.GenerationMetrics
	Now     func() time.Time
}

type service struct {
	repo        Repository
	costCeiling decimal.Decimal
	messageCap  int64
	imageCap    int64
	warnRatio   decimal.Decimal
	logg        *logger.Logger
	metr        *metrics.GenerationMetrics
	now         func() time.Time
}

// NewService wires a budget service from configuration. An unparsable cost
// ceiling falls back to the documented default of 1000.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("budget repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}

	ceiling, err := decimal.NewFromString(params.Config.MonthlyCostCeiling)
	if err != nil || ceiling.LessThanOrEqual(decimal.Zero) {
		ceiling = decimal.NewFromInt(1000)
	}
	messageCap := params.Config.MonthlyMessageCap
	if messageCap <= 0 {
		messageCap = 50000
	}
	imageCap := params.Config.MonthlyImageCap
	if imageCap <= 0 {
		imageCap = 2000
	}
	warnRatio := decimal.NewFromFloat(params.Config.WarningRatio)
	if warnRatio.LessThanOrEqual(decimal.Zero) || warnRatio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		warnRatio = decimal.NewFromFloat(0.8)
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &service{
		repo:        params.Repo,
		costCeiling: ceiling,
		messageCap:  messageCap,
		imageCap:    imageCap,
		warnRatio:   warnRatio,
		logg:        params.Logger,
		metr:        params.Metrics,
		now:         now,
	}, nil
}

// Check compares all three month-to-date aggregates (cost, messages,
// images) against their ceilings on every call. Hitting any ceiling denies
// with a reason naming it; the warning flag trips when the highest of the
// three utilization ratios crosses the warning threshold. The action only
// labels the metrics, it does not narrow the evaluation.
func (s *service) Check(ctx context.Context, action enums.CostAction) (Decision, error) {
	monthStart := s.monthStart()

	spent, err := s.repo.SumCosts(ctx, monthStart)
	if err != nil {
		return Decision{}, err
	}
	messages, err := s.repo.CountActions(ctx, enums.CostActionMessage, monthStart)
	if err != nil {
		return Decision{}, err
	}
	images, err := s.repo.CountActions(ctx, enums.CostActionImage, monthStart)
	if err != nil {
		return Decision{}, err
	}

	ratio := maxRatio(
		utilization(spent, s.costCeiling),
		utilization(decimal.NewFromInt(messages), decimal.NewFromInt(s.messageCap)),
		utilization(decimal.NewFromInt(images), decimal.NewFromInt(s.imageCap)),
	)

	switch {
	case spent.GreaterThanOrEqual(s.costCeiling):
		s.metr.IncBudgetDecision("cost", "deny")
		return Decision{Allowed: false, Reason: "monthly cost ceiling reached", Ratio: ratio}, nil
	case messages >= s.messageCap:
		s.metr.IncBudgetDecision("messages", "deny")
		return Decision{Allowed: false, Reason: "monthly message cap reached", Ratio: ratio}, nil
	case images >= s.imageCap:
		s.metr.IncBudgetDecision("images", "deny")
		return Decision{Allowed: false, Reason: "monthly image cap reached", Ratio: ratio}, nil
	}

	decision := Decision{Allowed: true, Ratio: ratio}
	if ratio.GreaterThanOrEqual(s.warnRatio) {
		decision.Warning = true
		s.metr.IncBudgetDecision(string(action), "warn")
		s.logg.Warn(s.logg.WithField(ctx, "budget_ratio", ratio.StringFixed(3)), "monthly budget warning threshold crossed")
	} else {
		s.metr.IncBudgetDecision(string(action), "allow")
	}
	return decision, nil
}

// Record persists one spend entry. Failures are logged and swallowed; the
// generation has already been delivered.
func (s *service) Record(ctx context.Context, input RecordInput) {
	if !input.Action.IsValid() {
		return
	}
	entry := &models.CostEntry{
		Action:     input.Action,
		TokensUsed: input.TokensUsed,
		APICost:    input.APICost,
		UserID:     input.UserID,
	}
	if err := s.repo.RecordCost(ctx, entry); err != nil {
		s.logg.Error(ctx, "cost entry record failed", err)
	}
}

func (s *service) Status(ctx context.Context) (Status, error) {
	monthStart := s.monthStart()

	spent, err := s.repo.SumCosts(ctx, monthStart)
	if err != nil {
		return Status{}, err
	}
	messages, err := s.repo.CountActions(ctx, enums.CostActionMessage, monthStart)
	if err != nil {
		return Status{}, err
	}
	images, err := s.repo.CountActions(ctx, enums.CostActionImage, monthStart)
	if err != nil {
		return Status{}, err
	}

	return Status{
		CostMonthToDate: spent,
		CostCeiling:     s.costCeiling,
		Messages:        messages,
		MessageCap:      s.messageCap,
		Images:          images,
		ImageCap:        s.imageCap,
	}, nil
}

// Project extrapolates the month-to-date spend to a full month. On the
// first day of the month no days have elapsed yet, so the daily rate and
// projection are zero rather than a guess from partial data.
func (s *service) Project(ctx context.Context) (Projection, error) {
	monthStart := s.monthStart()

	spent, err := s.repo.SumCosts(ctx, monthStart)
	if err != nil {
		return Projection{}, err
	}

	now := s.now().UTC()
	daysElapsed := now.Day() - 1
	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()

	dailyRate := decimal.Zero
	if daysElapsed > 0 {
		dailyRate = spent.Div(decimal.NewFromInt(int64(daysElapsed)))
	}
	projected := dailyRate.Mul(decimal.NewFromInt(int64(daysInMonth)))

	return Projection{
		MonthToDate:   spent,
		DailyRate:     dailyRate,
		Projected:     projected,
		DaysElapsed:   daysElapsed,
		DaysRemaining: daysInMonth - daysElapsed,
		OverBudget:    projected.GreaterThan(s.costCeiling),
	}, nil
}

func utilization(current, ceiling decimal.Decimal) decimal.Decimal {
	if ceiling.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return current.Div(ceiling)
}

func maxRatio(ratios ...decimal.Decimal) decimal.Decimal {
	max := decimal.Zero
	for _, ratio := range ratios {
		if ratio.GreaterThan(max) {
			max = ratio
		}
	}
	return max
}

func (s *service) monthStart() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
