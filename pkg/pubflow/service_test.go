package pubflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pubflow/pubflow/pkg/pubflow"
	"github.com/pubflow/pubflow/pkg/pubflow/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *pubflow.Registry {
	t.Helper()
	r, err := pubflow.NewRegistry(
		pubflow.TypeDescriptor{
			Name: "article",
			Fields: []pubflow.Field{
				pubflow.FieldTitle, pubflow.FieldDescription, pubflow.FieldBody,
				pubflow.FieldImages, pubflow.FieldVideoLinks, pubflow.FieldStatus,
				pubflow.FieldAlias, pubflow.FieldPublishTime, pubflow.FieldAuthor,
				pubflow.FieldSection, pubflow.FieldTags,
			},
			Sitemap:   true,
			Feed:      true,
			FeedTitle: "Articles",
		},
		pubflow.TypeDescriptor{
			Name:     "page",
			Statuses: []pubflow.Status{pubflow.StatusUnpublished, pubflow.StatusPublished},
			Fields: []pubflow.Field{
				pubflow.FieldTitle, pubflow.FieldBody, pubflow.FieldStatus,
				pubflow.FieldAlias, pubflow.FieldAuthor, pubflow.FieldPublishTime,
			},
		},
	)
	require.NoError(t, err)
	return r
}

func newTestService(t *testing.T, options ...pubflow.Option) pubflow.Service {
	t.Helper()
	base := []pubflow.Option{
		pubflow.WithRepository(memory.New()),
		pubflow.WithRegistry(newTestRegistry(t)),
		pubflow.WithLanguages("en", "ru"),
		pubflow.WithBaseURL("https://site.test"),
		pubflow.WithOutputDir(t.TempDir()),
		pubflow.WithSynchronousSideEffects(),
	}
	svc, err := pubflow.New(append(base, options...)...)
	require.NoError(t, err)
	return svc
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     func(t *testing.T) []pubflow.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     func(t *testing.T) []pubflow.Option { return nil },
			expectError: true,
		},
		{
			name: "repository without registry should fail",
			options: func(t *testing.T) []pubflow.Option {
				return []pubflow.Option{pubflow.WithRepository(memory.New())}
			},
			expectError: true,
		},
		{
			name: "repository and registry should succeed",
			options: func(t *testing.T) []pubflow.Option {
				return []pubflow.Option{
					pubflow.WithRepository(memory.New()),
					pubflow.WithRegistry(newTestRegistry(t)),
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := pubflow.New(tt.options(t)...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestSaveContentFirstSave(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	editor := &pubflow.User{UID: uuid.New(), Mail: "editor@test"}

	body := `<p>Intro</p><img src="https://src.test/pic.jpg">` +
		`<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ" frameborder="0"></iframe>`

	c, err := svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{
		Type:   "article",
		Title:  "Hello <b>World</b>",
		Body:   body,
		Status: pubflow.StatusPublished,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, c.ID)

	// Title is stored HTML-stripped, the body normalized to placeholders.
	assert.Equal(t, "Hello World", c.Title)
	assert.Equal(t, "<p>Intro</p>[img:1][vid:1]", c.Body)
	require.Len(t, c.Images, 1)
	assert.Equal(t, "https://src.test/pic.jpg", c.Images[0].URL)
	assert.Equal(t, []string{"https://youtu.be/dQw4w9WgXcQ"}, c.VideoLinks)

	// No bypass capability: published was downgraded to waiting.
	assert.Equal(t, pubflow.StatusWaiting, c.Status)
	assert.Equal(t, editor.UID, c.AuthorID)
	assert.Equal(t, "en", c.Language)
	require.NotNil(t, c.PublishTime)
	require.NotEqual(t, uuid.Nil, c.AliasID)

	got, err := svc.GetContentByPath(ctx, "article/Hello World", "")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestSaveContentPublishWithBypass(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	chief := &pubflow.User{
		UID:  uuid.New(),
		Caps: []string{pubflow.CapBypassModeration("article")},
	}

	c, err := svc.SaveContent(ctx, chief, pubflow.SaveContentRequest{
		Type:   "article",
		Title:  "Straight out",
		Status: pubflow.StatusPublished,
	})
	require.NoError(t, err)
	assert.Equal(t, pubflow.StatusPublished, c.Status)
}

func TestSaveContentUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	editor := &pubflow.User{UID: uuid.New()}

	c, err := svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{
		Type:  "article",
		Title: "Original",
	})
	require.NoError(t, err)
	created := c.CreatedAt
	aliasID := c.AliasID

	c2, err := svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{
		ID:    c.ID,
		Type:  "article",
		Title: "Renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, c2.ID)
	assert.Equal(t, created, c2.CreatedAt)
	assert.Equal(t, "Renamed", c2.Title)

	// Without an explicit alias in the request the binding stays put.
	assert.Equal(t, aliasID, c2.AliasID)
	_, err = svc.GetContentByPath(ctx, "article/Original", "en")
	assert.NoError(t, err)

	// An explicit alias rebinding moves the path.
	_, err = svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{
		ID:    c.ID,
		Type:  "article",
		Alias: "custom/renamed",
	})
	require.NoError(t, err)

	_, err = svc.GetContentByPath(ctx, "article/Original", "en")
	assert.ErrorIs(t, err, pubflow.ErrContentNotFound)
	got, err := svc.GetContentByPath(ctx, "custom/renamed", "en")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestSaveContentValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	editor := &pubflow.User{UID: uuid.New()}

	_, err := svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{Type: "banner", Title: "X"})
	assert.ErrorIs(t, err, pubflow.ErrTypeNotRegistered)

	_, err = svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{
		Type: "article", Title: "X", Language: "de",
	})
	assert.ErrorIs(t, err, pubflow.ErrUnsupportedLanguage)

	_, err = svc.SaveContent(ctx, pubflow.Anonymous(), pubflow.SaveContentRequest{
		Type: "article", Title: "X",
	})
	assert.ErrorIs(t, err, pubflow.ErrAnonymousAuthor)

	_, err = svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{
		Type: "article", Title: "X", Status: pubflow.Status("archived"),
	})
	assert.ErrorIs(t, err, pubflow.ErrInvalidStatus)

	// Cross-type saves against an existing entity are rejected.
	c, err := svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{Type: "article", Title: "X"})
	require.NoError(t, err)
	_, err = svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{ID: c.ID, Type: "page", Title: "X"})
	assert.Error(t, err)
}

func TestSaveContentNotifiesModerators(t *testing.T) {
	ctx := context.Background()
	mailer := &recordingMailer{}
	moderator := &pubflow.User{
		UID:  uuid.New(),
		Mail: "mod@test",
		Caps: []string{pubflow.CapModify("article")},
	}
	svc := newTestService(t,
		pubflow.WithMailer(mailer),
		pubflow.WithDirectory(&pubflow.StaticDirectory{Users: []*pubflow.User{moderator}}),
		pubflow.WithNotifications(true, true),
		pubflow.WithMailIdentity("Newsroom", "noreply@test"),
	)

	editor := &pubflow.User{UID: uuid.New(), Mail: "editor@test"}
	_, err := svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{
		Type:   "article",
		Title:  "Needs review",
		Status: pubflow.StatusPublished,
	})
	require.NoError(t, err)

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "mod@test", sent[0].to)
	assert.Contains(t, sent[0].subject, "Newsroom")
}

// trackingMediaStore records deleted attachments.
type trackingMediaStore struct {
	pubflow.LinkMediaStore
	mu      sync.Mutex
	deleted []uuid.UUID
}

func (s *trackingMediaStore) Delete(ctx context.Context, a pubflow.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, a.ID)
	return nil
}

func TestDeleteContentCascade(t *testing.T) {
	ctx := context.Background()
	media := &trackingMediaStore{}
	svc := newTestService(t, pubflow.WithMediaStore(media))
	editor := &pubflow.User{UID: uuid.New()}

	c, err := svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{
		Type:  "article",
		Title: "Doomed",
		Body:  `<img src="https://src.test/pic.jpg">`,
	})
	require.NoError(t, err)
	require.Len(t, c.Images, 1)

	require.NoError(t, svc.DeleteContent(ctx, editor, c.ID))

	_, err = svc.GetContent(ctx, c.ID)
	assert.ErrorIs(t, err, pubflow.ErrContentNotFound)
	_, err = svc.GetContentByPath(ctx, "article/Doomed", "en")
	assert.ErrorIs(t, err, pubflow.ErrContentNotFound)
	assert.Equal(t, []uuid.UUID{c.Images[0].ID}, media.deleted)

	// Deleting an already-deleted entity counts as success.
	assert.NoError(t, svc.DeleteContent(ctx, editor, c.ID))
}

func TestDeleteContentPermissions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	author := &pubflow.User{UID: uuid.New()}
	stranger := &pubflow.User{UID: uuid.New()}
	moderator := &pubflow.User{UID: uuid.New(), Caps: []string{pubflow.CapDelete("article")}}

	c, err := svc.SaveContent(ctx, author, pubflow.SaveContentRequest{Type: "article", Title: "Mine"})
	require.NoError(t, err)

	err = svc.DeleteContent(ctx, stranger, c.ID)
	assert.ErrorIs(t, err, pubflow.ErrPermissionDenied)

	assert.NoError(t, svc.DeleteContent(ctx, moderator, c.ID))
}

func TestListContent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	chief := &pubflow.User{UID: uuid.New(), Caps: []string{pubflow.CapBypassModeration("article")}}

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	_, err := svc.SaveContent(ctx, chief, pubflow.SaveContentRequest{
		Type: "article", Title: "Live", Status: pubflow.StatusPublished, PublishTime: &past,
	})
	require.NoError(t, err)
	_, err = svc.SaveContent(ctx, chief, pubflow.SaveContentRequest{
		Type: "article", Title: "Scheduled", Status: pubflow.StatusPublished, PublishTime: &future,
	})
	require.NoError(t, err)
	_, err = svc.SaveContent(ctx, chief, pubflow.SaveContentRequest{
		Type: "article", Title: "Draft", Status: pubflow.StatusUnpublished,
	})
	require.NoError(t, err)
	_, err = svc.SaveContent(ctx, chief, pubflow.SaveContentRequest{
		Type: "article", Title: "Russian", Language: "ru", Status: pubflow.StatusPublished, PublishTime: &past,
	})
	require.NoError(t, err)

	t.Run("default lists published elapsed entities in the default language", func(t *testing.T) {
		page, err := svc.ListContent(ctx, pubflow.ListContentRequest{Type: "article"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Live", page.Items[0].Title)
		assert.Equal(t, int64(1), page.Total)
	})

	t.Run("scheduled entities appear on request", func(t *testing.T) {
		page, err := svc.ListContent(ctx, pubflow.ListContentRequest{Type: "article", IncludeScheduled: true})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
	})

	t.Run("status wildcard widens the filter", func(t *testing.T) {
		page, err := svc.ListContent(ctx, pubflow.ListContentRequest{Type: "article", Status: "*"})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2) // Live and Draft; Scheduled is still in the future
	})

	t.Run("language wildcard crosses languages", func(t *testing.T) {
		page, err := svc.ListContent(ctx, pubflow.ListContentRequest{Type: "article", Language: "*"})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2) // Live and Russian
	})

	t.Run("full-text query narrows the listing", func(t *testing.T) {
		page, err := svc.ListContent(ctx, pubflow.ListContentRequest{Type: "article", Query: "live"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Live", page.Items[0].Title)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := svc.ListContent(ctx, pubflow.ListContentRequest{Type: "banner"})
		assert.ErrorIs(t, err, pubflow.ErrTypeNotRegistered)
	})

	t.Run("status outside the type set rejected", func(t *testing.T) {
		_, err := svc.ListContent(ctx, pubflow.ListContentRequest{Type: "article", Status: "archived"})
		assert.ErrorIs(t, err, pubflow.ErrInvalidStatus)
	})
}

func TestListContentPagination(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	chief := &pubflow.User{UID: uuid.New(), Caps: []string{pubflow.CapBypassModeration("article")}}

	base := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < 5; i++ {
		pt := base.Add(time.Duration(i) * time.Hour)
		_, err := svc.SaveContent(ctx, chief, pubflow.SaveContentRequest{
			Type:        "article",
			Title:       "Item",
			Alias:       uuid.NewString(),
			Status:      pubflow.StatusPublished,
			PublishTime: &pt,
		})
		require.NoError(t, err)
	}

	page, err := svc.ListContent(ctx, pubflow.ListContentRequest{Type: "article", Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 2, page.Page)

	last, err := svc.ListContent(ctx, pubflow.ListContentRequest{Type: "article", Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)
}

func TestRenderAndPlainBody(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	editor := &pubflow.User{UID: uuid.New()}

	c, err := svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{
		Type:  "article",
		Title: "Render me",
		Body:  `Look: <img src="https://src.test/pic.jpg"> done`,
	})
	require.NoError(t, err)

	rendered := svc.RenderBody(c, pubflow.RenderOptions{})
	assert.Contains(t, rendered, `src="https://src.test/pic.jpg"`)
	assert.Contains(t, rendered, `alt="Render me"`)
	assert.NotContains(t, rendered, "[img:1]")

	assert.Equal(t, "Look:  done", svc.PlainBody(c))
}

func TestSweepOrphanAliasesThroughService(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := newTestService(t, pubflow.WithRepository(repo))

	require.NoError(t, repo.CreateAlias(ctx, &pubflow.AliasBinding{
		ID:        uuid.New(),
		Alias:     "article/abandoned",
		Target:    pubflow.AliasTargetUnbound,
		Language:  "en",
		CreatedAt: time.Now().UTC().Add(-25 * time.Hour),
	}))

	n, err := svc.SweepOrphanAliases(ctx, pubflow.OrphanGracePeriod)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHooksRunAroundSave(t *testing.T) {
	ctx := context.Background()

	var order []string
	hooks := &pubflow.Hooks{}
	hooks.BeforeSave = append(hooks.BeforeSave, func(hc *pubflow.HookContext, c *pubflow.Content) error {
		order = append(order, "before")
		return nil
	})
	hooks.AfterSave = append(hooks.AfterSave, func(hc *pubflow.HookContext, c *pubflow.Content, firstSave bool) error {
		order = append(order, "after")
		assert.True(t, firstSave)
		return nil
	})

	svc := newTestService(t, pubflow.WithHooks(hooks))
	editor := &pubflow.User{UID: uuid.New()}

	_, err := svc.SaveContent(ctx, editor, pubflow.SaveContentRequest{Type: "article", Title: "Hooked"})
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, order)
}
