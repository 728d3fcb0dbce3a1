package pubflow

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DefaultFeedLength is the per-feed item cap.
const DefaultFeedLength = 20

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	MediaNS string     `xml:"xmlns:media,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string          `xml:"title"`
	Link        string          `xml:"link"`
	Description string          `xml:"description"`
	PubDate     string          `xml:"pubDate,omitempty"`
	Author      string          `xml:"author,omitempty"`
	GUID        string          `xml:"guid,omitempty"`
	Categories  []string        `xml:"category,omitempty"`
	Enclosures  []rssEnclosure  `xml:"enclosure"`
	Players     []rssMediaEmbed `xml:"media:player"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type rssMediaEmbed struct {
	URL string `xml:"url,attr"`
}

// FeedConfig configures the feed job.
type FeedConfig struct {
	BaseURL   string
	OutputDir string
	Length    int // zero means DefaultFeedLength
	Languages []string
}

// FeedJob regenerates one RSS feed file per feed-eligible (contentType,
// language) pair. Each file is fully rewritten on every run and written
// atomically, so concurrent readers never observe a partial feed.
type FeedJob struct {
	repo      Repository
	registry  *Registry
	media     MediaStore
	directory Directory
	cfg       FeedConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewFeedJob creates a feed job. The directory may be nil; item authors are
// then omitted.
func NewFeedJob(repo Repository, registry *Registry, media MediaStore, directory Directory, cfg FeedConfig, logger *slog.Logger) *FeedJob {
	if cfg.Length <= 0 {
		cfg.Length = DefaultFeedLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedJob{repo: repo, registry: registry, media: media, directory: directory, cfg: cfg, logger: logger, now: time.Now}
}

// Run regenerates every configured feed.
func (j *FeedJob) Run(ctx context.Context) error {
	if err := os.MkdirAll(j.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create feed output dir: %w", err)
	}

	for _, lang := range j.cfg.Languages {
		for _, typeName := range j.registry.Names() {
			typ, _ := j.registry.Get(typeName)
			if !typ.Feed {
				continue
			}
			if err := j.Generate(ctx, typ, lang); err != nil {
				return err
			}
		}
	}
	return nil
}

// Generate writes the feed for one (contentType, language) pair.
func (j *FeedJob) Generate(ctx context.Context, typ *TypeDescriptor, lang string) error {
	status := StatusPublished
	now := j.now().UTC()
	limit := j.cfg.Length
	sortBy := "publish_time"

	entities, err := j.repo.ListContent(ctx, ContentQuery{
		Type:            &typ.Name,
		Language:        &lang,
		Status:          &status,
		PublishedBefore: &now,
		SortBy:          &sortBy,
		Limit:           &limit,
	})
	if err != nil {
		return fmt.Errorf("list %s content for feed: %w", typ.Name, err)
	}

	title := typ.FeedTitle
	if title == "" {
		title = "UNTITLED"
	}

	channel := rssChannel{
		Title:       title,
		Link:        j.cfg.BaseURL,
		Description: typ.FeedDescription,
		Language:    lang,
		Items:       make([]rssItem, 0, len(entities)),
	}

	for _, c := range entities {
		channel.Items = append(channel.Items, j.buildItem(ctx, c))
	}

	doc := rssXML{
		Version: "2.0",
		MediaNS: "http://search.yahoo.com/mrss/",
		Channel: channel,
	}

	name := fmt.Sprintf("rss-%s-%s.xml", typ.Name, lang)
	if err := writeXMLFileAtomic(j.cfg.OutputDir, name, doc); err != nil {
		return err
	}

	j.logger.Info("feed written", "type", typ.Name, "language", lang, "items", len(channel.Items))
	return nil
}

func (j *FeedJob) buildItem(ctx context.Context, c *Content) rssItem {
	link := j.entityLink(ctx, c)

	description := c.Description
	if description == "" {
		description = c.Title
	}

	item := rssItem{
		Title:       c.Title,
		Link:        link,
		Description: description,
		GUID:        link,
	}

	if c.PublishTime != nil {
		item.PubDate = c.PublishTime.UTC().Format(time.RFC1123Z)
	}

	if j.directory != nil && c.AuthorID != uuid.Nil {
		if author, err := j.directory.GetPrincipal(ctx, c.AuthorID); err == nil {
			item.Author = fmt.Sprintf("%s (%s)", author.Email(), author.DisplayName())
		}
	}

	if c.Section != "" {
		item.Categories = append(item.Categories, c.Section)
	}
	item.Categories = append(item.Categories, c.Tags...)

	for _, img := range c.Images {
		item.Enclosures = append(item.Enclosures, rssEnclosure{
			URL:    j.media.AttachmentURL(img, 0, 0),
			Length: img.Size,
			Type:   img.MimeType,
		})
	}

	for _, link := range c.VideoLinks {
		item.Players = append(item.Players, rssMediaEmbed{URL: link})
	}

	return item
}

func (j *FeedJob) entityLink(ctx context.Context, c *Content) string {
	if c.AliasID != uuid.Nil {
		if binding, err := j.repo.GetAlias(ctx, c.AliasID); err == nil {
			return j.cfg.BaseURL + "/" + binding.Alias
		}
	}
	return j.cfg.BaseURL + "/" + AliasTarget(c.Type, c.ID)
}

// writeXMLFileAtomic writes doc to a temp file in dir and renames it to
// name, so readers never see a partially written feed.
func writeXMLFileAtomic(dir, name string, doc any) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp feed file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(xml.Header); err != nil {
		tmp.Close()
		return err
	}
	enc := xml.NewEncoder(tmp)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encode feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
