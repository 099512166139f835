package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

// Restriction keys shared with the seeded plan_restrictions rows.
const (
	KeyDailyMessageLimit = "daily_message_limit"
	KeyWeeklyImageLimit  = "weekly_image_limit"
	KeyHistoryWindow     = "history_window"
	KeyTokensPerMessage  = "tokens_per_message"
	KeyTokensPerImage    = "tokens_per_image"
	KeyCompanionLimit    = "active_companions_limit"
)

// Cache is the subset of the redis client used for plan resolutions.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	PlanCacheKey(userID string) string
}

// Resolution is the effective plan for one user at one point in time.
// Restrictions holds the raw restriction values keyed by name.
type Resolution struct {
	PlanType     enums.PlanType    `json:"plan_type"`
	Restrictions map[string]string `json:"restrictions"`
}

// IsPremium reports whether the resolved plan is the premium tier.
func (r *Resolution) IsPremium() bool {
	return r != nil && r.PlanType == enums.PlanTypePremium
}

// Limit parses the named restriction. A missing key, the literal "null",
// a non-numeric value, or anything <= 0 all mean unlimited.
func (r *Resolution) Limit(key string) (int64, bool) {
	if r == nil {
		return 0, false
	}
	raw, ok := r.Restrictions[key]
	if !ok {
		return 0, false
	}
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, false
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// LimitOrDefault parses the named restriction, substituting fallback when the
// key is absent. The unlimited sentinel still wins over the fallback.
func (r *Resolution) LimitOrDefault(key string, fallback int64) (int64, bool) {
	if r == nil {
		return fallback, fallback > 0
	}
	if _, ok := r.Restrictions[key]; !ok {
		return fallback, fallback > 0
	}
	return r.Limit(key)
}

// Service resolves effective plans with a short-lived cache in front of the
// database.
type Service interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*Resolution, error)
	Invalidate(ctx context.Context, userID uuid.UUID) error
	Assign(ctx context.Context, input AssignInput) error
}

// ServiceParams groups dependencies for the plans service.
type ServiceParams struct {
	Repo     Repository
	Cache    Cache
	CacheTTL time.Duration
	Logger   *logger.Logger
}

// AssignInput describes a plan change for one user.
type AssignInput struct {
	UserID    uuid.UUID
	PlanType  enums.PlanType
	PeriodEnd *time.Time
}

type service struct {
	repo     Repository
	cache    Cache
	cacheTTL time.Duration
	logg     *logger.Logger
}

const defaultCacheTTL = 5 * time.Minute

// NewService wires a plans service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("plans repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &service{
		repo:     params.Repo,
		cache:    params.Cache,
		cacheTTL: ttl,
		logg:     params.Logger,
	}, nil
}

// Resolve returns the user's effective plan. Cache errors fall through to
// the database; only a database failure surfaces to the caller. Users with
// no assignment, a non-active assignment, or an elapsed period resolve to
// the free tier.
func (s *service) Resolve(ctx context.Context, userID uuid.UUID) (*Resolution, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}

	if cached := s.fromCache(ctx, userID); cached != nil {
		return cached, nil
	}

	planType := enums.PlanTypeFree
	assignment, err := s.repo.GetAssignment(ctx, userID)
	if err != nil {
		return nil, err
	}
	if assignment != nil && s.assignmentActive(assignment) {
		planType = assignment.PlanType
	}

	restrictions, err := s.repo.ListRestrictions(ctx, planType)
	if err != nil {
		return nil, err
	}

	resolution := &Resolution{
		PlanType:     planType,
		Restrictions: make(map[string]string, len(restrictions)),
	}
	for _, restriction := range restrictions {
		resolution.Restrictions[restriction.Key] = restriction.Value
	}

	s.toCache(ctx, userID, resolution)
	return resolution, nil
}

func (s *service) assignmentActive(assignment *models.PlanAssignment) bool {
	if assignment.Status != enums.PlanAssignmentStatusActive {
		return false
	}
	if assignment.PeriodEnd != nil && assignment.PeriodEnd.Before(time.Now().UTC()) {
		return false
	}
	return true
}

// Invalidate drops the cached resolution so the next Resolve hits the
// database.
func (s *service) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if s.cache == nil || userID == uuid.Nil {
		return nil
	}
	return s.cache.Del(ctx, s.cache.PlanCacheKey(userID.String()))
}

// Assign upserts the user's plan assignment and invalidates the cache.
func (s *service) Assign(ctx context.Context, input AssignInput) error {
	if input.UserID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	if !input.PlanType.IsValid() {
		return fmt.Errorf("invalid plan type %q", input.PlanType)
	}

	assignment := &models.PlanAssignment{
		UserID:    input.UserID,
		PlanType:  input.PlanType,
		Status:    enums.PlanAssignmentStatusActive,
		PeriodEnd: input.PeriodEnd,
	}
	if err := s.repo.UpsertAssignment(ctx, assignment); err != nil {
		return err
	}
	if err := s.Invalidate(ctx, input.UserID); err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, input.UserID.String()), "plan cache invalidation failed")
	}
	return nil
}

func (s *service) fromCache(ctx context.Context, userID uuid.UUID) *Resolution {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cache.PlanCacheKey(userID.String()))
	if err != nil || raw == "" {
		return nil
	}
	var resolution Resolution
	if err := json.Unmarshal([]byte(raw), &resolution); err != nil {
		return nil
	}
	if !resolution.PlanType.IsValid() {
		return nil
	}
	return &resolution
}

func (s *service) toCache(ctx context.Context, userID uuid.UUID, resolution *Resolution) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(resolution)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.PlanCacheKey(userID.String()), string(payload), s.cacheTTL); err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "plan cache write failed")
	}
}
