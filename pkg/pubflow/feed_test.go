package pubflow_test

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pubflow/pubflow/pkg/pubflow"
	"github.com/pubflow/pubflow/pkg/pubflow/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rssDoc struct {
	Version string `xml:"version,attr"`
	Channel struct {
		Title       string `xml:"title"`
		Link        string `xml:"link"`
		Description string `xml:"description"`
		Language    string `xml:"language"`
		Items       []struct {
			Title      string   `xml:"title"`
			Link       string   `xml:"link"`
			PubDate    string   `xml:"pubDate"`
			Author     string   `xml:"author"`
			GUID       string   `xml:"guid"`
			Categories []string `xml:"category"`
			Enclosures []struct {
				URL    string `xml:"url,attr"`
				Length int64  `xml:"length,attr"`
				Type   string `xml:"type,attr"`
			} `xml:"enclosure"`
			Players []struct {
				URL string `xml:"url,attr"`
			} `xml:"player"`
		} `xml:"item"`
	} `xml:"channel"`
}

func feedRegistry(t *testing.T, feedTitle string) *pubflow.Registry {
	t.Helper()
	r, err := pubflow.NewRegistry(pubflow.TypeDescriptor{
		Name:            "article",
		Fields:          []pubflow.Field{pubflow.FieldTitle, pubflow.FieldStatus, pubflow.FieldAlias, pubflow.FieldPublishTime},
		Feed:            true,
		FeedTitle:       feedTitle,
		FeedDescription: "Latest articles",
	})
	require.NoError(t, err)
	return r
}

func readFeed(t *testing.T, dir, name string) rssDoc {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	var doc rssDoc
	require.NoError(t, xml.Unmarshal(raw, &doc))
	return doc
}

func TestFeedGeneration(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	author := &pubflow.User{UID: uuid.New(), Mail: "writer@test", FullName: "Writer"}
	directory := &pubflow.StaticDirectory{Users: []*pubflow.User{author}}

	pt := time.Now().UTC().Add(-time.Hour)
	id := uuid.New()
	binding := &pubflow.AliasBinding{
		ID:       uuid.New(),
		Alias:    "article/with-media",
		Target:   pubflow.AliasTarget("article", id),
		Language: "en",
	}
	require.NoError(t, repo.CreateAlias(ctx, binding))
	require.NoError(t, repo.CreateContent(ctx, &pubflow.Content{
		ID:          id,
		Type:        "article",
		Title:       "With media",
		Description: "Has an image and a video",
		Language:    "en",
		Status:      pubflow.StatusPublished,
		AuthorID:    author.UID,
		AliasID:     binding.ID,
		Section:     "news",
		Tags:        []string{"go", "rss"},
		Images: []pubflow.Attachment{{
			ID:       uuid.New(),
			URL:      "https://cdn.test/pic.jpg",
			MimeType: "image/jpeg",
			Size:     2048,
		}},
		VideoLinks:  []string{"https://youtu.be/dQw4w9WgXcQ"},
		PublishTime: &pt,
	}))

	// A scheduled entity must not leak into the feed.
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, repo.CreateContent(ctx, &pubflow.Content{
		ID: uuid.New(), Type: "article", Title: "Scheduled", Language: "en",
		Status: pubflow.StatusPublished, PublishTime: &future,
	}))

	dir := t.TempDir()
	job := pubflow.NewFeedJob(repo, feedRegistry(t, "Newsroom"), pubflow.NewLinkMediaStore(), directory, pubflow.FeedConfig{
		BaseURL:   "https://site.test",
		OutputDir: dir,
		Languages: []string{"en"},
	}, nil)

	require.NoError(t, job.Run(ctx))

	doc := readFeed(t, dir, "rss-article-en.xml")
	assert.Equal(t, "2.0", doc.Version)
	assert.Equal(t, "Newsroom", doc.Channel.Title)
	assert.Equal(t, "Latest articles", doc.Channel.Description)
	assert.Equal(t, "en", doc.Channel.Language)

	require.Len(t, doc.Channel.Items, 1)
	item := doc.Channel.Items[0]
	assert.Equal(t, "With media", item.Title)
	assert.Equal(t, "https://site.test/article/with-media", item.Link)
	assert.Equal(t, item.Link, item.GUID)
	assert.Equal(t, pt.Format(time.RFC1123Z), item.PubDate)
	assert.Equal(t, "writer@test (Writer)", item.Author)
	assert.Equal(t, []string{"news", "go", "rss"}, item.Categories)

	require.Len(t, item.Enclosures, 1)
	assert.Equal(t, "https://cdn.test/pic.jpg", item.Enclosures[0].URL)
	assert.Equal(t, int64(2048), item.Enclosures[0].Length)
	assert.Equal(t, "image/jpeg", item.Enclosures[0].Type)

	require.Len(t, item.Players, 1)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", item.Players[0].URL)
}

func TestFeedTitleFallbackAndEmptyFeed(t *testing.T) {
	dir := t.TempDir()
	job := pubflow.NewFeedJob(memory.New(), feedRegistry(t, ""), pubflow.NewLinkMediaStore(), nil, pubflow.FeedConfig{
		BaseURL:   "https://site.test",
		OutputDir: dir,
		Languages: []string{"en"},
	}, nil)

	require.NoError(t, job.Run(context.Background()))

	doc := readFeed(t, dir, "rss-article-en.xml")
	assert.Equal(t, "UNTITLED", doc.Channel.Title)
	assert.Empty(t, doc.Channel.Items)
}

func TestFeedLengthCap(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	base := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < 5; i++ {
		pt := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.CreateContent(ctx, &pubflow.Content{
			ID:          uuid.New(),
			Type:        "article",
			Title:       fmt.Sprintf("Item %d", i),
			Language:    "en",
			Status:      pubflow.StatusPublished,
			PublishTime: &pt,
		}))
	}

	dir := t.TempDir()
	job := pubflow.NewFeedJob(repo, feedRegistry(t, "Newsroom"), pubflow.NewLinkMediaStore(), nil, pubflow.FeedConfig{
		BaseURL:   "https://site.test",
		OutputDir: dir,
		Length:    3,
		Languages: []string{"en"},
	}, nil)
	require.NoError(t, job.Run(ctx))

	doc := readFeed(t, dir, "rss-article-en.xml")
	require.Len(t, doc.Channel.Items, 3)
	// Newest first.
	assert.Equal(t, "Item 4", doc.Channel.Items[0].Title)
	assert.Equal(t, "Item 2", doc.Channel.Items[2].Title)
}
