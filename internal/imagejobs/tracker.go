package imagejobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumora-ai/companion-backend/internal/generation"
	apperrors "github.com/lumora-ai/companion-backend/pkg/errors"
	"github.com/lumora-ai/companion-backend/pkg/logger"
	"github.com/lumora-ai/companion-backend/pkg/metrics"
)

// JobState is the tracker-side lifecycle of one image job.
type JobState string

const (
	JobStateIdle       JobState = "idle"
	JobStateSubmitting JobState = "submitting"
	JobStatePolling    JobState = "polling"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
)

// MessageSink receives exactly one terminal message per completed job.
type MessageSink interface {
	DeliverImageResult(ctx context.Context, result Result) error
}

// Result is the terminal outcome handed to the sink.
type Result struct {
	JobID     uuid.UUID
	SessionID uuid.UUID
	UserID    uuid.UUID
	Succeeded bool
	URLs      []string
	FailMsg   string
}

// Status is a point-in-time snapshot of a session's job.
type Status struct {
	JobID    uuid.UUID `json:"job_id"`
	State    JobState  `json:"state"`
	Attempts int       `json:"attempts"`
}

// SubmitInput describes one image generation request.
type SubmitInput struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	Prompt    string
}

type job struct {
	id        uuid.UUID
	sessionID uuid.UUID
	userID    uuid.UUID
	client    generation.ImageClient
	state     JobState
	attempts  int
	canceled  bool
	timer     CancelTimer
}

// Tracker runs async image jobs with at most one live job per session.
// Job state is held in memory only; a restart forgets in-flight jobs and
// the provider-side task simply expires. Clients are tried in order on
// submit; the job polls whichever client accepted the task.
type Tracker struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*job

	clients      []generation.ImageClient
	sink         MessageSink
	scheduler    Scheduler
	pollInterval time.Duration
	maxAttempts  int
	logg         *logger.Logger
	metr         *metrics.GenerationMetrics
}

// TrackerParams groups dependencies for the tracker. Clients is the ordered
// provider preference: the first entry is the full-fidelity backend, later
// entries are fallbacks.
type TrackerParams struct {
	Clients      []generation.ImageClient
	Sink         MessageSink
	Scheduler    Scheduler
	PollInterval time.Duration
	MaxAttempts  int
	Logger       *logger.Logger
	Metrics      *metrics.GenerationMetrics
}

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 90
)

// NewTracker wires an image job tracker.
func NewTracker(params TrackerParams) (*Tracker, error) {
	if len(params.Clients) == 0 {
		return nil, errors.New("at least one image client required")
	}
	for _, client := range params.Clients {
		if client == nil {
			return nil, errors.New("nil image client in list")
		}
	}
	if params.Sink == nil {
		return nil, errors.New("message sink required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	scheduler := params.Scheduler
	if scheduler == nil {
		scheduler = NewScheduler()
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Tracker{
		jobs:         map[uuid.UUID]*job{},
		clients:      params.Clients,
		sink:         params.Sink,
		scheduler:    scheduler,
		pollInterval: interval,
		maxAttempts:  maxAttempts,
		logg:         params.Logger,
		metr:         params.Metrics,
	}, nil
}

// Submit starts a job for the session. A session with a live job refuses
// further submissions until the running one reaches a terminal state.
func (t *Tracker) Submit(ctx context.Context, input SubmitInput) (uuid.UUID, error) {
	if input.SessionID == uuid.Nil || input.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("session and user ids are required")
	}
	if input.Prompt == "" {
		return uuid.Nil, apperrors.New(apperrors.CodeValidation, "prompt is required")
	}

	t.mu.Lock()
	if existing, ok := t.jobs[input.SessionID]; ok && existing.live() {
		t.mu.Unlock()
		return uuid.Nil, apperrors.New(apperrors.CodeConflict, "image job already in progress for session")
	}
	j := &job{
		id:        uuid.New(),
		sessionID: input.SessionID,
		userID:    input.UserID,
		state:     JobStateSubmitting,
	}
	t.jobs[input.SessionID] = j
	t.mu.Unlock()

	// walk the provider order until one accepts the task; when every
	// provider refuses, the failure surfaces to the caller directly and no
	// terminal message is owed for a job that never started polling
	taskID, client, err := t.submitWithFallback(ctx, input.Prompt)
	if err != nil {
		t.discard(j)
		return uuid.Nil, err
	}

	t.mu.Lock()
	if j.canceled {
		t.mu.Unlock()
		t.discard(j)
		return j.id, nil
	}
	j.client = client
	j.state = JobStatePolling
	t.mu.Unlock()

	t.scheduleNext(j, taskID)
	return j.id, nil
}

// submitWithFallback tries each client in order and returns the first
// accepted task handle along with the client that owns it. The last error
// is returned when all providers refuse.
func (t *Tracker) submitWithFallback(ctx context.Context, prompt string) (string, generation.ImageClient, error) {
	var lastErr error
	for i, client := range t.clients {
		taskID, err := client.SubmitTask(ctx, prompt)
		if err == nil {
			return taskID, client, nil
		}
		lastErr = err
		if i+1 < len(t.clients) {
			next := t.clients[i+1]
			t.metr.IncFallback(client.Name(), next.Name())
			fields := map[string]any{"from": client.Name(), "to": next.Name()}
			t.logg.Warn(t.logg.WithFields(ctx, fields), "image submit failed, trying fallback provider")
		}
	}
	return "", nil, lastErr
}

// Cancel abandons the session's live job. No terminal message is delivered
// for a canceled job.
func (t *Tracker) Cancel(sessionID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[sessionID]
	if !ok || !j.live() {
		return false
	}
	j.canceled = true
	if j.timer != nil {
		j.timer.Stop()
	}
	j.state = JobStateIdle
	delete(t.jobs, sessionID)
	return true
}

// Status reports the session's current job, if any.
func (t *Tracker) Status(sessionID uuid.UUID) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[sessionID]
	if !ok {
		return Status{State: JobStateIdle}, false
	}
	return Status{JobID: j.id, State: j.state, Attempts: j.attempts}, true
}

func (t *Tracker) scheduleNext(j *job, taskID string) {
	t.mu.Lock()
	if j.canceled {
		t.mu.Unlock()
		return
	}
	j.timer = t.scheduler.AfterFunc(t.pollInterval, func() {
		t.poll(j, taskID)
	})
	t.mu.Unlock()
}

func (t *Tracker) poll(j *job, taskID string) {
	t.mu.Lock()
	if j.canceled {
		t.mu.Unlock()
		return
	}
	j.attempts++
	attempts := j.attempts
	t.mu.Unlock()

	ctx := context.Background()
	status, err := j.client.TaskStatus(ctx, taskID)

	t.mu.Lock()
	if j.canceled {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	switch {
	case err != nil:
		typed := apperrors.As(err)
		if typed != nil && !apperrors.MetadataFor(typed.Code()).Retryable {
			t.finalize(ctx, j, Result{
				JobID: j.id, SessionID: j.sessionID, UserID: j.userID,
				FailMsg: publicFailure(err),
			})
			return
		}
		if attempts >= t.maxAttempts {
			t.finalize(ctx, j, Result{
				JobID: j.id, SessionID: j.sessionID, UserID: j.userID,
				FailMsg: "image generation timed out",
			})
			return
		}
		t.scheduleNext(j, taskID)

	case status.State == generation.TaskStateSuccess:
		t.finalize(ctx, j, Result{
			JobID: j.id, SessionID: j.sessionID, UserID: j.userID,
			Succeeded: true, URLs: status.URLs,
		})

	case status.State == generation.TaskStateFail:
		msg := status.FailMsg
		if msg == "" {
			msg = "image generation failed"
		}
		t.finalize(ctx, j, Result{
			JobID: j.id, SessionID: j.sessionID, UserID: j.userID,
			FailMsg: msg,
		})

	case attempts >= t.maxAttempts:
		t.finalize(ctx, j, Result{
			JobID: j.id, SessionID: j.sessionID, UserID: j.userID,
			FailMsg: "image generation timed out",
		})

	default:
		t.scheduleNext(j, taskID)
	}
}

// finalize moves the job to a terminal state, delivers the single terminal
// message, and frees the session slot.
func (t *Tracker) finalize(ctx context.Context, j *job, result Result) {
	t.mu.Lock()
	if j.canceled {
		t.mu.Unlock()
		return
	}
	if result.Succeeded {
		j.state = JobStateSucceeded
	} else {
		j.state = JobStateFailed
	}
	delete(t.jobs, j.sessionID)
	t.mu.Unlock()

	t.metr.IncImageJobTerminal(string(j.state))

	if err := t.sink.DeliverImageResult(ctx, result); err != nil {
		fields := map[string]any{"job_id": j.id.String(), "session_id": j.sessionID.String()}
		t.logg.Error(t.logg.WithFields(ctx, fields), "image result delivery failed", err)
	}
}

func (t *Tracker) discard(j *job) {
	t.mu.Lock()
	if t.jobs[j.sessionID] == j {
		delete(t.jobs, j.sessionID)
	}
	t.mu.Unlock()
}

func (j *job) live() bool {
	return j.state == JobStateSubmitting || j.state == JobStatePolling
}

// publicFailure converts a provider error into a user-safe message.
func publicFailure(err error) string {
	if typed := apperrors.As(err); typed != nil {
		return apperrors.MetadataFor(typed.Code()).PublicMessage
	}
	return "image generation failed"
}
