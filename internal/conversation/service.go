package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumora-ai/companion-backend/internal/budget"
	"github.com/lumora-ai/companion-backend/internal/characters"
	"github.com/lumora-ai/companion-backend/internal/generation"
	"github.com/lumora-ai/companion-backend/internal/imagejobs"
	"github.com/lumora-ai/companion-backend/internal/ledger"
	"github.com/lumora-ai/companion-backend/internal/plans"
	"github.com/lumora-ai/companion-backend/internal/usage"
	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	apperrors "github.com/lumora-ai/companion-backend/pkg/errors"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

const (
	defaultHistoryWindow = 20
	defaultMaxTokens     = 600

	defaultTokensPerMessage = 1
	defaultTokensPerImage   = 10

	placeholderImageText = "Generating your image, one moment..."
	fallbackReplyText    = "I'm having trouble connecting right now. Give me a moment and try again."
)

// memory level 1 is the free-sized window; 2 and 3 widen it for premium.
var memoryLevelWindows = map[int]int{
	1: 20,
	2: 100,
	3: 400,
}

// estimated blended provider price per 1K tokens, used for the budget log.
var costPerThousandTokens = decimal.RequireFromString("0.002")

// Generator produces a completion from an ordered provider chain.
type Generator interface {
	Generate(ctx context.Context, req generation.CompletionRequest, premium bool) (generation.CompletionResult, error)
}

// ImageJobs is the slice of the tracker the pipeline drives.
type ImageJobs interface {
	Submit(ctx context.Context, input imagejobs.SubmitInput) (uuid.UUID, error)
	Cancel(sessionID uuid.UUID) bool
}

// Service is the conversation pipeline: every inbound message passes its
// gates in order before any provider call happens.
type Service interface {
	Send(ctx context.Context, input SendInput) (*SendResult, error)
	ClearHistory(ctx context.Context, userID, characterID uuid.UUID) error
	History(ctx context.Context, userID, characterID uuid.UUID, limit int) ([]models.ChatMessage, error)
}

// ServiceParams groups dependencies for the conversation service.
type ServiceParams struct {
	Repo       Repository
	Characters characters.Service
	Plans      plans.Service
	Usage      usage.Service
	Ledger     ledger.Service
	Budget     budget.Service
	Generator  Generator
	ImageJobs  ImageJobs
	Logger     *logger.Logger
}

// SendInput is one inbound user message.
type SendInput struct {
	UserID      uuid.UUID
	CharacterID uuid.UUID
	Text        string
	Privileged  bool
}

// SendResult is what the caller renders. For the image branch the reply
// arrives later through the job tracker; Message is the placeholder.
type SendResult struct {
	SessionID uuid.UUID
	Message   *models.ChatMessage
	Text      string
	IsImage   bool
	JobID     uuid.UUID
	Fallback  bool
}

type service struct {
	repo   Repository
	chars  characters.Service
	plans  plans.Service
	usage  usage.Service
	ledger ledger.Service
	budget budget.Service
	gen    Generator
	jobs   ImageJobs
	logg   *logger.Logger
}

// NewService wires the conversation pipeline.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("conversation repository required")
	}
	if params.Characters == nil {
		return nil, errors.New("characters service required")
	}
	if params.Plans == nil {
		return nil, errors.New("plans service required")
	}
	if params.Usage == nil {
		return nil, errors.New("usage service required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service required")
	}
	if params.Budget == nil {
		return nil, errors.New("budget service required")
	}
	if params.Generator == nil {
		return nil, errors.New("generator required")
	}
	if params.ImageJobs == nil {
		return nil, errors.New("image jobs required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		repo:   params.Repo,
		chars:  params.Characters,
		plans:  params.Plans,
		usage:  params.Usage,
		ledger: params.Ledger,
		budget: params.Budget,
		gen:    params.Generator,
		jobs:   params.ImageJobs,
		logg:   params.Logger,
	}, nil
}

// Send runs the gate sequence: plan resolve, usage check, premium debit,
// budget check, session resolve, persist, then the text or image branch.
// A failed gate short-circuits without touching later state. The premium
// debit is not refunded when a later step fails; refunds are a deliberate
// separate operation.
func (s *service) Send(ctx context.Context, input SendInput) (*SendResult, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "message text is required")
	}
	ctx = s.logg.WithUserID(ctx, input.UserID.String())
	ctx = s.logg.WithCharacterID(ctx, input.CharacterID.String())

	character, err := s.chars.Get(ctx, input.UserID, input.CharacterID)
	if err != nil {
		return nil, err
	}

	resolution, err := s.plans.Resolve(ctx, input.UserID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "plan resolution failed")
	}
	premium := resolution.IsPremium()
	isImage := IsImageRequest(text)

	if err := s.checkUsageGate(ctx, input, resolution, isImage); err != nil {
		return nil, err
	}
	if premium {
		if err := s.debitGate(ctx, input, resolution, isImage); err != nil {
			return nil, err
		}
	}
	if err := s.budgetGate(ctx, isImage); err != nil {
		return nil, err
	}

	session, err := s.repo.GetOrCreateActiveSession(ctx, input.UserID, input.CharacterID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "session resolution failed")
	}
	ctx = s.logg.WithSessionID(ctx, session.ID.String())

	userMessage := &models.ChatMessage{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      enums.MessageRoleUser,
		Content:   text,
	}
	if err := s.repo.AppendMessage(ctx, userMessage); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "persisting user message failed")
	}

	if isImage {
		return s.imageBranch(ctx, input, session, text)
	}
	return s.textBranch(ctx, input, session, character, resolution, premium)
}

// checkUsageGate enforces the daily message cap, plus the image gate when
// the message is an image request. The image gate forks by tier: free
// accounts count against the weekly image window, premium accounts are
// checked against the token balance instead of a counter.
func (s *service) checkUsageGate(ctx context.Context, input SendInput, resolution *plans.Resolution, isImage bool) error {
	limit, bounded := resolution.Limit(plans.KeyDailyMessageLimit)
	result, err := s.usage.Check(ctx, usage.CheckInput{
		UserID:     input.UserID,
		UsageType:  enums.UsageTypeMessages,
		Limit:      limit,
		Bounded:    bounded,
		Privileged: input.Privileged,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "usage check failed")
	}
	if !result.Allowed {
		return apperrors.New(apperrors.CodeLimitReached, "daily message limit reached").
			WithDetails(map[string]any{"limit": limit, "used": result.Current})
	}

	if !isImage {
		return nil
	}
	if resolution.IsPremium() {
		return s.checkImageBalance(ctx, input, resolution)
	}

	imageLimit, imageBounded := resolution.Limit(plans.KeyWeeklyImageLimit)
	imageResult, err := s.usage.Check(ctx, usage.CheckInput{
		UserID:     input.UserID,
		UsageType:  enums.UsageTypeImages,
		Limit:      imageLimit,
		Bounded:    imageBounded,
		Privileged: input.Privileged,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "usage check failed")
	}
	if !imageResult.Allowed {
		return apperrors.New(apperrors.CodeLimitReached, "weekly image limit reached").
			WithDetails(map[string]any{"limit": imageLimit, "used": imageResult.Current})
	}
	return nil
}

// checkImageBalance is the premium half of the image gate: the balance must
// cover the image price before the job is accepted. The actual debit still
// happens in the debit gate.
func (s *service) checkImageBalance(ctx context.Context, input SendInput, resolution *plans.Resolution) error {
	if input.Privileged {
		return nil
	}
	price, _ := resolution.LimitOrDefault(plans.KeyTokensPerImage, defaultTokensPerImage)
	if price <= 0 {
		return nil
	}
	balance, err := s.ledger.Balance(ctx, input.UserID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "balance check failed")
	}
	if balance < price {
		return apperrors.New(apperrors.CodeInsufficientFunds, "token balance too low for an image").
			WithDetails(map[string]any{"required": price, "balance": balance})
	}
	return nil
}

// debitGate charges the premium token price for the request up front.
func (s *service) debitGate(ctx context.Context, input SendInput, resolution *plans.Resolution, isImage bool) error {
	amount, _ := resolution.LimitOrDefault(plans.KeyTokensPerMessage, defaultTokensPerMessage)
	description := "chat message"
	if isImage {
		amount, _ = resolution.LimitOrDefault(plans.KeyTokensPerImage, defaultTokensPerImage)
		description = "image generation"
	}
	if amount <= 0 {
		return nil
	}
	err := s.ledger.Debit(ctx, ledger.DebitInput{
		UserID:      input.UserID,
		Amount:      amount,
		Description: description,
	})
	if err == nil {
		return nil
	}
	if typed := apperrors.As(err); typed != nil && typed.Code() == apperrors.CodeInsufficientFunds {
		return err
	}
	return apperrors.Wrap(apperrors.CodeInternal, err, "token debit failed")
}

// budgetGate refuses work once the month's global ceilings are hit. The
// public message stays generic; ceiling numbers are operator-only.
func (s *service) budgetGate(ctx context.Context, isImage bool) error {
	action := enums.CostActionMessage
	if isImage {
		action = enums.CostActionImage
	}
	decision, err := s.budget.Check(ctx, action)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "budget check failed")
	}
	if !decision.Allowed {
		s.logg.Warn(s.logg.WithField(ctx, "reason", decision.Reason), "budget guard refused request")
		return apperrors.New(apperrors.CodeBudgetExceeded, decision.Reason)
	}
	return nil
}

// imageBranch hands the prompt to the async tracker and answers immediately
// with a placeholder. The real image lands in the session later through the
// tracker's message sink.
func (s *service) imageBranch(ctx context.Context, input SendInput, session *models.ChatSession, prompt string) (*SendResult, error) {
	jobID, err := s.jobs.Submit(ctx, imagejobs.SubmitInput{
		SessionID: session.ID,
		UserID:    input.UserID,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, err
	}

	placeholder := &models.ChatMessage{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      enums.MessageRoleAssistant,
		Content:   placeholderImageText,
		IsImage:   true,
	}
	if err := s.repo.AppendMessage(ctx, placeholder); err != nil {
		s.logg.Error(ctx, "persisting image placeholder failed", err)
	}

	go s.recordOutcome(input.UserID, enums.UsageTypeImages, enums.CostActionImage, 0)

	return &SendResult{
		SessionID: session.ID,
		Message:   placeholder,
		Text:      placeholder.Content,
		IsImage:   true,
		JobID:     jobID,
	}, nil
}

// textBranch replays the windowed history to the provider chain and persists
// the reply. Total provider failure degrades to a canned fallback string
// instead of surfacing the upstream error.
func (s *service) textBranch(ctx context.Context, input SendInput, session *models.ChatSession, character *models.Character, resolution *plans.Resolution, premium bool) (*SendResult, error) {
	window := s.historyWindow(character, resolution, premium)
	history, err := s.repo.ListRecentMessages(ctx, session.ID, window)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading history failed")
	}

	req := generation.CompletionRequest{
		System:    systemEnvelope(character, premium),
		Messages:  toProviderMessages(history),
		MaxTokens: defaultMaxTokens,
	}
	result, err := s.gen.Generate(ctx, req, premium)
	if err != nil {
		s.logg.Error(ctx, "all providers failed, returning fallback reply", err)
		return &SendResult{SessionID: session.ID, Text: fallbackReplyText, Fallback: true}, nil
	}

	assistantMessage := &models.ChatMessage{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      enums.MessageRoleAssistant,
		Content:   result.Text,
	}
	if err := s.repo.AppendMessage(ctx, assistantMessage); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "persisting assistant message failed")
	}

	go s.recordOutcome(input.UserID, enums.UsageTypeMessages, enums.CostActionMessage, result.TokensUsed)

	return &SendResult{
		SessionID: session.ID,
		Message:   assistantMessage,
		Text:      result.Text,
	}, nil
}

// ClearHistory archives the active session. Any in-flight image job for it
// is cancelled so its result cannot land in a closed session.
func (s *service) ClearHistory(ctx context.Context, userID, characterID uuid.UUID) error {
	session, err := s.repo.GetActiveSession(ctx, userID, characterID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "looking up session failed")
	}
	if session == nil {
		return nil
	}
	s.jobs.Cancel(session.ID)
	if _, err := s.repo.ArchiveActiveSession(ctx, userID, characterID); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "archiving session failed")
	}
	return nil
}

// History lists the active session's messages oldest first. No active
// session means an empty history, not an error.
func (s *service) History(ctx context.Context, userID, characterID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	session, err := s.repo.GetActiveSession(ctx, userID, characterID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "looking up session failed")
	}
	if session == nil {
		return []models.ChatMessage{}, nil
	}
	messages, err := s.repo.ListSessionMessages(ctx, session.ID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing messages failed")
	}
	return messages, nil
}

// recordOutcome increments the usage counter and logs cost after the
// response is already on its way. Both are best effort. Image counters roll
// weekly, message counters daily.
func (s *service) recordOutcome(userID uuid.UUID, usageType enums.UsageType, action enums.CostAction, tokensUsed int64) {
	ctx := context.Background()
	window := enums.UsageWindowDaily
	if usageType == enums.UsageTypeImages {
		window = enums.UsageWindowWeekly
	}
	s.usage.Increment(ctx, userID, usageType, window)
	s.budget.Record(ctx, budget.RecordInput{
		Action:     action,
		TokensUsed: tokensUsed,
		APICost:    estimateCost(tokensUsed),
		UserID:     &userID,
	})
}

func (s *service) historyWindow(character *models.Character, resolution *plans.Resolution, premium bool) int {
	if !premium {
		window, _ := resolution.LimitOrDefault(plans.KeyHistoryWindow, defaultHistoryWindow)
		if window <= 0 {
			return defaultHistoryWindow
		}
		return int(window)
	}
	if window, ok := memoryLevelWindows[character.MemoryLevel]; ok {
		return window
	}
	return defaultHistoryWindow
}

func estimateCost(tokensUsed int64) decimal.Decimal {
	if tokensUsed <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(tokensUsed).
		Div(decimal.NewFromInt(1000)).
		Mul(costPerThousandTokens)
}

// systemEnvelope renders the policy prompt. Premium characters speak in an
// unrestricted romantic register; free ones get the safety-constrained one.
func systemEnvelope(character *models.Character, premium bool) string {
	if premium {
		return fmt.Sprintf(
			"You are %s. Stay fully in character. Persona: %s. "+
				"You may be affectionate, romantic, and flirtatious without restraint. "+
				"Never mention being an AI or break character.",
			character.Name, character.Persona,
		)
	}
	return fmt.Sprintf(
		"You are %s. Stay in character. Persona: %s. "+
			"Keep the conversation warm but family-friendly: no explicit or adult content. "+
			"Never mention being an AI or break character.",
		character.Name, character.Persona,
	)
}

func toProviderMessages(history []models.ChatMessage) []generation.Message {
	messages := make([]generation.Message, 0, len(history))
	for _, m := range history {
		if m.IsImage {
			continue
		}
		messages = append(messages, generation.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}
