package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

type fakeRepo struct {
	counter   *models.UsageCounter
	getErr    error
	increErr  error
	increment int
	lastReset time.Time
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) GetActive(ctx context.Context, userID uuid.UUID, usageType enums.UsageType, now time.Time) (*models.UsageCounter, error) {
	return f.counter, f.getErr
}

func (f *fakeRepo) Increment(ctx context.Context, userID uuid.UUID, usageType enums.UsageType, now, resetAt time.Time) error {
	if f.increErr != nil {
		return f.increErr
	}
	f.increment++
	f.lastReset = resetAt
	return nil
}

func (f *fakeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func newTestService(t *testing.T, repo Repository, now func() time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Logger: testLogger(), Now: now})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestCheck_UnderLimitAllowed(t *testing.T) {
	repo := &fakeRepo{counter: &models.UsageCounter{Count: 49}}
	svc := newTestService(t, repo, nil)

	res, err := svc.Check(context.Background(), CheckInput{
		UserID:    uuid.New(),
		UsageType: enums.UsageTypeMessages,
		Limit:     50,
		Bounded:   true,
	})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !res.Allowed || res.Remaining != 1 {
		t.Fatalf("expected one remaining, got %+v", res)
	}
}

func TestCheck_AtLimitDenied(t *testing.T) {
	repo := &fakeRepo{counter: &models.UsageCounter{Count: 50}}
	svc := newTestService(t, repo, nil)

	res, err := svc.Check(context.Background(), CheckInput{
		UserID:    uuid.New(),
		UsageType: enums.UsageTypeMessages,
		Limit:     50,
		Bounded:   true,
	})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected denial at the boundary, got %+v", res)
	}
}

func TestCheck_UnboundedAndPrivilegedBypass(t *testing.T) {
	repo := &fakeRepo{counter: &models.UsageCounter{Count: 9999}}
	svc := newTestService(t, repo, nil)

	for _, input := range []CheckInput{
		{UserID: uuid.New(), UsageType: enums.UsageTypeMessages, Bounded: false},
		{UserID: uuid.New(), UsageType: enums.UsageTypeImages, Limit: 1, Bounded: true, Privileged: true},
	} {
		res, err := svc.Check(context.Background(), input)
		if err != nil {
			t.Fatalf("Check error: %v", err)
		}
		if !res.Allowed || res.Remaining != -1 {
			t.Fatalf("expected bypass, got %+v", res)
		}
	}
}

func TestCheck_StoreErrorFailsOpen(t *testing.T) {
	repo := &fakeRepo{getErr: errors.New("table missing")}
	svc := newTestService(t, repo, nil)

	res, err := svc.Check(context.Background(), CheckInput{
		UserID:    uuid.New(),
		UsageType: enums.UsageTypeMessages,
		Limit:     1,
		Bounded:   true,
	})
	if err != nil {
		t.Fatalf("store error must not surface: %v", err)
	}
	if !res.Allowed {
		t.Fatal("store error must fail open")
	}
}

func TestIncrement_DailyResetsAtNextUTCMidnight(t *testing.T) {
	repo := &fakeRepo{}
	fixed := time.Date(2026, 3, 14, 22, 45, 0, 0, time.UTC)
	svc := newTestService(t, repo, func() time.Time { return fixed })

	svc.Increment(context.Background(), uuid.New(), enums.UsageTypeMessages, enums.UsageWindowDaily)

	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if repo.increment != 1 || !repo.lastReset.Equal(want) {
		t.Fatalf("expected reset at %v, got %v (calls %d)", want, repo.lastReset, repo.increment)
	}
}

func TestIncrement_WeeklyWindow(t *testing.T) {
	repo := &fakeRepo{}
	fixed := time.Date(2026, 3, 14, 22, 45, 0, 0, time.UTC)
	svc := newTestService(t, repo, func() time.Time { return fixed })

	svc.Increment(context.Background(), uuid.New(), enums.UsageTypeImages, enums.UsageWindowWeekly)

	want := fixed.Add(7 * 24 * time.Hour)
	if !repo.lastReset.Equal(want) {
		t.Fatalf("expected reset at %v, got %v", want, repo.lastReset)
	}
}

func TestIncrement_ErrorSwallowed(t *testing.T) {
	repo := &fakeRepo{increErr: errors.New("down")}
	svc := newTestService(t, repo, nil)

	// must not panic or surface anything
	svc.Increment(context.Background(), uuid.New(), enums.UsageTypeMessages, enums.UsageWindowDaily)
}
