package pubflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LinkMediaStore is a MediaStore that records asset references without
// fetching anything: the attachment URL is the source URL itself. It is the
// default store and suits deployments where media is hosted externally.
type LinkMediaStore struct{}

// NewLinkMediaStore creates a reference-only media store.
func NewLinkMediaStore() *LinkMediaStore { return &LinkMediaStore{} }

func (s *LinkMediaStore) CreateFromURL(ctx context.Context, srcURL string) (*Attachment, error) {
	return &Attachment{ID: uuid.New(), URL: srcURL}, nil
}

func (s *LinkMediaStore) AttachmentURL(a Attachment, width, height int) string {
	return a.URL
}

func (s *LinkMediaStore) Delete(ctx context.Context, a Attachment) error {
	return nil
}

// LogMailer is a Mailer that logs messages instead of delivering them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that writes to the given logger.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body, from string) error {
	m.logger.Info("mail (not delivered)", "to", to, "from", from, "subject", subject)
	return nil
}
