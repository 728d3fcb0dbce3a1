package pubflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	media      MediaStore
	mailer     Mailer
	directory  Directory
	registry   *Registry
	hooks      *Hooks
	logger     *slog.Logger
	now        func() time.Time

	codec    *Codec
	workflow *Workflow
	alias    *AliasManager
	sitemap  *SitemapJob
	feeds    *FeedJob

	languages       []string
	defaultLanguage string
	defaultPerPage  int
	baseURL         string
	outputDir       string
	shardSize       int
	feedLength      int
	workflowCfg     WorkflowConfig
	syncSideEffects bool
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the persistence collaborator.
func WithRepository(repo Repository) Option {
	return func(s *service) { s.repository = repo }
}

// WithMediaStore sets the media storage collaborator.
func WithMediaStore(store MediaStore) Option {
	return func(s *service) { s.media = store }
}

// WithMailer sets the mail transport used for workflow notifications.
func WithMailer(mailer Mailer) Option {
	return func(s *service) { s.mailer = mailer }
}

// WithDirectory sets the principal directory used for notifications.
func WithDirectory(d Directory) Option {
	return func(s *service) { s.directory = d }
}

// WithRegistry sets the content type registry.
func WithRegistry(r *Registry) Option {
	return func(s *service) { s.registry = r }
}

// WithHooks attaches lifecycle hooks.
func WithHooks(h *Hooks) Option {
	return func(s *service) { s.hooks = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *service) { s.logger = l }
}

// WithLanguages sets the supported language set. The first entry is the
// default language.
func WithLanguages(languages ...string) Option {
	return func(s *service) {
		if len(languages) > 0 {
			s.languages = languages
			s.defaultLanguage = languages[0]
		}
	}
}

// WithBaseURL sets the public base URL used in sitemaps, feeds and
// notification mail.
func WithBaseURL(u string) Option {
	return func(s *service) { s.baseURL = u }
}

// WithOutputDir sets the directory for generated sitemap and feed files.
func WithOutputDir(dir string) Option {
	return func(s *service) { s.outputDir = dir }
}

// WithSitemapShardSize overrides the per-shard entry ceiling.
func WithSitemapShardSize(n int) Option {
	return func(s *service) { s.shardSize = n }
}

// WithFeedLength overrides the per-feed item cap.
func WithFeedLength(n int) Option {
	return func(s *service) { s.feedLength = n }
}

// WithNotifications sets the instance-level notification flags.
func WithNotifications(onWaiting, author bool) Option {
	return func(s *service) {
		s.workflowCfg.NotifyOnWaiting = onWaiting
		s.workflowCfg.NotifyAuthor = author
	}
}

// WithMailIdentity sets the application name and sender address used in
// notification mail.
func WithMailIdentity(appName, mailFrom string) Option {
	return func(s *service) {
		s.workflowCfg.AppName = appName
		s.workflowCfg.MailFrom = mailFrom
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithSynchronousSideEffects runs notifications and orphan sweeps inline
// instead of off the save path. Intended for tests.
func WithSynchronousSideEffects() Option {
	return func(s *service) { s.syncSideEffects = true }
}

// New creates a service instance with the given options. A repository and
// a registry are required; every other collaborator has a working default.
func New(options ...Option) (Service, error) {
	s := &service{
		languages:       []string{"en"},
		defaultLanguage: "en",
		defaultPerPage:  10,
		feedLength:      DefaultFeedLength,
		shardSize:       DefaultSitemapShardSize,
		outputDir:       "static",
		now:             time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.registry == nil {
		return nil, fmt.Errorf("content type registry is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.media == nil {
		s.media = NewLinkMediaStore()
	}
	if s.mailer == nil {
		s.mailer = NewLogMailer(s.logger)
	}
	if s.directory == nil {
		s.directory = &StaticDirectory{}
	}
	s.workflowCfg.BaseURL = s.baseURL

	s.codec = NewCodec(s.media)
	s.workflow = NewWorkflow(s.workflowCfg, s.mailer, s.directory, s.logger)
	s.alias = NewAliasManager(s.repository, s.logger)
	s.alias.now = s.now
	s.sitemap = NewSitemapJob(s.repository, s.registry, SitemapConfig{
		BaseURL:   s.baseURL,
		OutputDir: s.outputDir + "/sitemap",
		ShardSize: s.shardSize,
		Languages: s.languages,
	}, s.logger)
	s.sitemap.now = s.now
	s.feeds = NewFeedJob(s.repository, s.registry, s.media, s.directory, FeedConfig{
		BaseURL:   s.baseURL,
		OutputDir: s.outputDir + "/feed",
		Length:    s.feedLength,
		Languages: s.languages,
	}, s.logger)
	s.feeds.now = s.now

	return s, nil
}

func (s *service) Registry() *Registry { return s.registry }

// SaveContent runs the full pre-persist pipeline (codec normalization,
// hooks, moderation guard, alias binding), persists the entity and then
// finalizes the alias and dispatches notifications off the critical path.
func (s *service) SaveContent(ctx context.Context, principal Principal, req SaveContentRequest) (*Content, error) {
	typ, err := s.registry.Get(req.Type)
	if err != nil {
		return nil, err
	}

	firstSave := req.ID == uuid.Nil
	var c *Content
	var prev Status

	if firstSave {
		c = &Content{Type: req.Type}
	} else {
		c, err = s.repository.GetContent(ctx, req.ID)
		if err != nil {
			return nil, &ContentError{ContentID: req.ID, Op: "save", Err: err}
		}
		if c.Type != req.Type {
			return nil, &ContentError{ContentID: req.ID, Op: "save",
				Err: fmt.Errorf("entity is of type %q, not %q", c.Type, req.Type)}
		}
		prev = c.Status
	}

	if err := s.applyFields(typ, c, principal, req); err != nil {
		return nil, err
	}
	if typ.HasField(FieldPublishTime) && c.PublishTime == nil {
		t := s.now().UTC()
		c.PublishTime = &t
	}

	// Codec pass: harvest literal media out of freshly authored input.
	if typ.HasField(FieldBody) {
		if typ.HasField(FieldImages) {
			body, images, err := s.codec.ExtractImages(ctx, c.Body, len(c.Images))
			if err != nil {
				return nil, &ContentError{ContentID: c.ID, Op: "extract_images", Err: err}
			}
			c.Body = body
			c.Images = append(c.Images, images...)
		}
		if typ.HasField(FieldVideoLinks) {
			body, links := ExtractVideoLinks(c.Body, len(c.VideoLinks))
			c.Body = body
			c.VideoLinks = appendUniqueLinks(c.VideoLinks, links)
		}
	}

	if err := s.hooks.executeBeforeSave(ctx, c); err != nil {
		return nil, &ContentError{ContentID: c.ID, Op: "before_save_hook", Err: err}
	}

	if typ.HasField(FieldStatus) {
		if err := s.workflow.Apply(typ, c, prev, principal); err != nil {
			return nil, err
		}
	}

	if typ.HasField(FieldAlias) {
		// An explicit alias rebinding, or the initial automatic binding.
		if req.Alias != "" || (c.AliasID == uuid.Nil && c.PendingAlias == "") {
			if err := s.alias.Bind(ctx, typ, c, req.Alias); err != nil {
				return nil, err
			}
		}
	}

	now := s.now().UTC()
	c.UpdatedAt = now
	if firstSave {
		c.ID = uuid.New()
		c.CreatedAt = now
		if err := s.repository.CreateContent(ctx, c); err != nil {
			return nil, &ContentError{ContentID: c.ID, Op: "create", Err: err}
		}
	} else {
		if err := s.repository.UpdateContent(ctx, c); err != nil {
			return nil, &ContentError{ContentID: c.ID, Op: "update", Err: err}
		}
	}

	if typ.HasField(FieldAlias) {
		changed, err := s.alias.FinalizeAfterPersist(ctx, typ, c)
		if err != nil {
			return nil, err
		}
		if changed {
			if err := s.repository.UpdateContent(ctx, c); err != nil {
				return nil, &ContentError{ContentID: c.ID, Op: "update_alias_ref", Err: err}
			}
		}
		if firstSave {
			s.runSideEffect(ctx, "alias_sweep", func(ctx context.Context) {
				if _, err := s.alias.SweepOrphans(ctx, OrphanGracePeriod); err != nil {
					s.logger.Error("orphan alias sweep failed", "error", err)
				}
			})
		}
	}

	if typ.HasField(FieldStatus) {
		entity := *c
		s.runSideEffect(ctx, "status_notifications", func(ctx context.Context) {
			s.workflow.NotifyStatusChange(ctx, typ, &entity, principal)
		})
	}

	if err := s.hooks.executeAfterSave(ctx, c, firstSave); err != nil {
		return nil, &ContentError{ContentID: c.ID, Op: "after_save_hook", Err: err}
	}

	return c, nil
}

// applyFields copies request fields onto the entity, consulting the type
// descriptor for enabled field groups and validating language and author.
func (s *service) applyFields(typ *TypeDescriptor, c *Content, principal Principal, req SaveContentRequest) error {
	if typ.HasField(FieldTitle) && req.Title != "" {
		c.Title = StripHTML(req.Title)
	}
	if typ.HasField(FieldDescription) {
		c.Description = StripHTML(req.Description)
	}
	if typ.HasField(FieldBody) {
		c.Body = req.Body
	}
	if typ.HasField(FieldSection) {
		c.Section = req.Section
	}
	if typ.HasField(FieldTags) && req.Tags != nil {
		c.Tags = req.Tags
	}
	if typ.HasField(FieldPublishTime) && req.PublishTime != nil {
		t := req.PublishTime.UTC()
		c.PublishTime = &t
	}
	if req.Options != nil {
		c.Options = req.Options
	}

	lang := req.Language
	if lang == "" {
		lang = c.Language
	}
	if lang == "" {
		lang = s.defaultLanguage
	}
	if !s.supportedLanguage(lang) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	c.Language = lang

	if typ.HasField(FieldVideoLinks) && len(req.VideoLinks) > 0 {
		c.VideoLinks = appendUniqueLinks(c.VideoLinks, req.VideoLinks)
	}

	if typ.HasField(FieldStatus) && req.Status != "" {
		c.Status = req.Status
	}

	if typ.HasField(FieldAuthor) {
		if req.AuthorID != uuid.Nil {
			c.AuthorID = req.AuthorID
		}
		if c.AuthorID == uuid.Nil {
			if principal == nil || principal.Anonymous() {
				return ErrAnonymousAuthor
			}
			c.AuthorID = principal.ID()
		}
	}

	return nil
}

func (s *service) supportedLanguage(lang string) bool {
	for _, l := range s.languages {
		if l == lang {
			return true
		}
	}
	return false
}

func appendUniqueLinks(existing, links []string) []string {
	for _, l := range links {
		dup := false
		for _, e := range existing {
			if e == l {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, l)
		}
	}
	return existing
}

// runSideEffect executes fn off the save's critical path. Failures inside
// fn are logged, never propagated to the save caller.
func (s *service) runSideEffect(ctx context.Context, name string, fn func(ctx context.Context)) {
	if s.syncSideEffects {
		fn(ctx)
		return
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("side effect panicked", "side_effect", name, "panic", r)
			}
		}()
		fn(bg)
	}()
}

func (s *service) GetContent(ctx context.Context, id uuid.UUID) (*Content, error) {
	return s.repository.GetContent(ctx, id)
}

// GetContentByPath resolves a canonical path to its entity through the
// alias binding.
func (s *service) GetContentByPath(ctx context.Context, path, language string) (*Content, error) {
	if language == "" {
		language = s.defaultLanguage
	}

	binding, err := s.repository.GetAliasByPath(ctx, path, language)
	if err != nil {
		if errors.Is(err, ErrAliasNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}

	_, id, err := ParseAliasTarget(binding.Target)
	if err != nil {
		return nil, ErrContentNotFound
	}

	return s.repository.GetContent(ctx, id)
}

// DeleteContent removes the entity with cascading attachment and alias
// cleanup. Collaborator races (entity or binding already gone) count as
// success.
func (s *service) DeleteContent(ctx context.Context, principal Principal, id uuid.UUID) error {
	c, err := s.repository.GetContent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrContentNotFound) {
			return nil
		}
		return &ContentError{ContentID: id, Op: "delete", Err: err}
	}

	typ, err := s.registry.Get(c.Type)
	if err != nil {
		return err
	}

	if principal != nil && !principal.HasCapability(CapDelete(typ.Name)) && principal.ID() != c.AuthorID {
		return fmt.Errorf("%w: deleting %s content", ErrPermissionDenied, typ.Name)
	}

	if err := s.hooks.executeBeforeDelete(ctx, c); err != nil {
		return &ContentError{ContentID: id, Op: "before_delete_hook", Err: err}
	}

	for _, img := range c.Images {
		if err := s.media.Delete(ctx, img); err != nil {
			s.logger.Error("failed to delete attachment", "content_id", id, "attachment_id", img.ID, "error", err)
		}
	}

	if typ.HasField(FieldAlias) {
		if err := s.alias.Release(ctx, c); err != nil {
			return err
		}
	}

	if err := s.repository.DeleteContent(ctx, id); err != nil && !errors.Is(err, ErrContentNotFound) {
		return &ContentError{ContentID: id, Op: "delete", Err: err}
	}

	if err := s.hooks.executeAfterDelete(ctx, id); err != nil {
		return &ContentError{ContentID: id, Op: "after_delete_hook", Err: err}
	}

	return nil
}

// ListContent returns one page of entities, filtered the way public
// listings are: published status and elapsed publish time unless the
// request widens the filter.
func (s *service) ListContent(ctx context.Context, req ListContentRequest) (*ContentPage, error) {
	if !s.registry.Has(req.Type) {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotRegistered, req.Type)
	}

	q := ContentQuery{Type: &req.Type}

	lang := req.Language
	if lang == "" {
		lang = s.defaultLanguage
	}
	if lang != "*" {
		q.Language = &lang
	}

	statusStr := req.Status
	if statusStr == "" {
		statusStr = string(StatusPublished)
	}
	if statusStr != "*" {
		status := Status(statusStr)
		typ, _ := s.registry.Get(req.Type)
		if !typ.HasStatus(status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, statusStr)
		}
		q.Status = &status
	}

	if !req.IncludeScheduled {
		now := s.now().UTC()
		q.PublishedBefore = &now
	}

	q.AuthorID = req.AuthorID

	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 {
		perPage = s.defaultPerPage
	}
	offset := (page - 1) * perPage
	q.Limit = &perPage
	q.Offset = &offset

	total, err := s.repository.CountContent(ctx, q)
	if err != nil {
		return nil, err
	}

	var items []*Content
	if req.Query != "" {
		items, err = s.repository.SearchContent(ctx, q, req.Query)
	} else {
		items, err = s.repository.ListContent(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	return &ContentPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// RenderBody expands the entity's placeholder tokens into presentational
// markup.
func (s *service) RenderBody(c *Content, opts RenderOptions) string {
	if opts.Alt == "" {
		opts.Alt = c.Title
	}
	return s.codec.Render(c.Body, c.Images, c.VideoLinks, opts)
}

// PlainBody returns the body with all placeholder tokens removed.
func (s *service) PlainBody(c *Content) string {
	return Strip(c.Body)
}

func (s *service) GenerateSitemap(ctx context.Context) error {
	return s.sitemap.Run(ctx)
}

func (s *service) GenerateFeeds(ctx context.Context) error {
	return s.feeds.Run(ctx)
}

func (s *service) SweepOrphanAliases(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.alias.SweepOrphans(ctx, olderThan)
}
