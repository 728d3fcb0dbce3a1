package pubflow

import (
	"context"
	"fmt"
	"log/slog"
)

// WorkflowConfig carries the instance-level moderation settings.
type WorkflowConfig struct {
	// NotifyOnWaiting queues a notification to every principal with a
	// modify-or-delete capability when an entity enters the waiting state.
	NotifyOnWaiting bool

	// NotifyAuthor queues a notification to the entity author when someone
	// else changes the publication status.
	NotifyAuthor bool

	AppName  string
	BaseURL  string
	MailFrom string
}

// Workflow is the publication state machine. Apply runs during the
// pre-persist phase of a save; NotifyStatusChange after a successful
// persist, off the save's critical path.
type Workflow struct {
	cfg       WorkflowConfig
	mailer    Mailer
	directory Directory
	logger    *slog.Logger
}

// NewWorkflow builds a state machine over the given collaborators.
func NewWorkflow(cfg WorkflowConfig, mailer Mailer, directory Directory, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{cfg: cfg, mailer: mailer, directory: directory, logger: logger}
}

// Apply validates the entity status against the type's status set, records
// prev as PrevStatus and enforces the moderation guard: a principal without
// the type-scoped bypass capability setting an entity to published gets the
// status silently downgraded to waiting instead of an error.
func (w *Workflow) Apply(typ *TypeDescriptor, c *Content, prev Status, principal Principal) error {
	if c.Status == "" {
		c.Status = typ.DefaultStatus()
	}
	if !typ.HasStatus(c.Status) {
		return fmt.Errorf("%w: %q for type %q", ErrInvalidStatus, c.Status, typ.Name)
	}

	c.PrevStatus = prev

	if c.Status == StatusPublished && typ.HasStatus(StatusWaiting) {
		if principal == nil || !principal.HasCapability(CapBypassModeration(typ.Name)) {
			c.Status = StatusWaiting
		}
	}

	return nil
}

// NotifyStatusChange fires the post-persist notification side effects when
// the persisted status differs from PrevStatus. Delivery failures are
// logged, never propagated.
func (w *Workflow) NotifyStatusChange(ctx context.Context, typ *TypeDescriptor, c *Content, principal Principal) {
	if c.Status == c.PrevStatus {
		return
	}

	if c.Status == StatusWaiting && w.cfg.NotifyOnWaiting {
		w.notifyModerators(ctx, typ, c)
	}

	if w.cfg.NotifyAuthor && principal != nil && principal.ID() != c.AuthorID {
		w.notifyAuthor(ctx, c)
	}
}

func (w *Workflow) notifyModerators(ctx context.Context, typ *TypeDescriptor, c *Content) {
	moderators, err := w.directory.PrincipalsWithAnyCapability(ctx, CapModify(typ.Name), CapDelete(typ.Name))
	if err != nil {
		w.logger.Error("failed to resolve moderators", "type", typ.Name, "error", err)
		return
	}

	subject := fmt.Sprintf("%s: content is awaiting moderation", w.cfg.AppName)
	body := fmt.Sprintf("%q (%s) has been proposed for publication.\n%s\n", c.Title, typ.Name, w.entityURL(c))

	for _, m := range moderators {
		if m.Email() == "" {
			continue
		}
		if err := w.mailer.Send(ctx, m.Email(), subject, body, w.cfg.MailFrom); err != nil {
			w.logger.Error("failed to send moderation notification",
				"content_id", c.ID, "to", m.Email(), "error", err)
		}
	}
}

func (w *Workflow) notifyAuthor(ctx context.Context, c *Content) {
	author, err := w.directory.GetPrincipal(ctx, c.AuthorID)
	if err != nil {
		w.logger.Error("failed to resolve author", "content_id", c.ID, "author_id", c.AuthorID, "error", err)
		return
	}
	if author.Email() == "" {
		return
	}

	subject := fmt.Sprintf("%s: publication status of %q changed", w.cfg.AppName, c.Title)
	body := fmt.Sprintf("The publication status of %q is now %q.\n%s\n", c.Title, c.Status, w.entityURL(c))

	if err := w.mailer.Send(ctx, author.Email(), subject, body, w.cfg.MailFrom); err != nil {
		w.logger.Error("failed to send author notification",
			"content_id", c.ID, "to", author.Email(), "error", err)
	}
}

func (w *Workflow) entityURL(c *Content) string {
	return w.cfg.BaseURL + "/" + AliasTarget(c.Type, c.ID)
}
