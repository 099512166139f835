package conversation

import (
	"context"

	"github.com/lib/pq"

	"github.com/lumora-ai/companion-backend/internal/imagejobs"
	"github.com/lumora-ai/companion-backend/pkg/db/models"
	"github.com/lumora-ai/companion-backend/pkg/enums"
	"github.com/lumora-ai/companion-backend/pkg/logger"
)

const imageFailureApology = "I couldn't finish that image. Let's try again in a bit."

type messageSink struct {
	repo Repository
	logg *logger.Logger
}

// NewMessageSink persists image job outcomes as assistant messages in the
// owning session.
func NewMessageSink(repo Repository, logg *logger.Logger) imagejobs.MessageSink {
	return &messageSink{repo: repo, logg: logg}
}

func (s *messageSink) DeliverImageResult(ctx context.Context, result imagejobs.Result) error {
	message := &models.ChatMessage{
		SessionID: result.SessionID,
		UserID:    result.UserID,
		Role:      enums.MessageRoleAssistant,
		IsImage:   true,
	}
	if result.Succeeded {
		message.Content = "Here you go."
		message.ImageURLs = pq.StringArray(result.URLs)
	} else {
		message.Content = imageFailureApology
		if result.FailMsg != "" {
			message.Content = result.FailMsg
		}
	}
	if err := s.repo.AppendMessage(ctx, message); err != nil {
		s.logg.Error(s.logg.WithSessionID(ctx, result.SessionID.String()), "persisting image result failed", err)
		return err
	}
	return nil
}
