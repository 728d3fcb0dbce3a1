package pubflow

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultSitemapShardSize is the per-file entry ceiling accepted by sitemap
// consumers.
const DefaultSitemapShardSize = 50000

const sitemapXMLNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type sitemapIndexSet struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	XMLNS    string            `xml:"xmlns,attr"`
	Sitemaps []sitemapIndexRef `xml:"sitemap"`
}

type sitemapIndexRef struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// SitemapConfig configures the sitemap job.
type SitemapConfig struct {
	BaseURL   string
	OutputDir string
	ShardSize int // zero means DefaultSitemapShardSize
	Languages []string
	PageSize  int // repository page size; zero means 500
}

// SitemapJob streams sitemap-eligible entities into size-bounded shard
// files plus an index. The job is explicitly non-reentrant: a second Run
// while one is active fails fast with ErrAlreadyRunning.
type SitemapJob struct {
	repo     Repository
	registry *Registry
	cfg      SitemapConfig
	logger   *slog.Logger
	now      func() time.Time

	running atomic.Bool
}

// NewSitemapJob creates a sitemap job.
func NewSitemapJob(repo Repository, registry *Registry, cfg SitemapConfig, logger *slog.Logger) *SitemapJob {
	if cfg.ShardSize <= 0 {
		cfg.ShardSize = DefaultSitemapShardSize
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapJob{repo: repo, registry: registry, cfg: cfg, logger: logger, now: time.Now}
}

// Run regenerates the full sitemap: numbered shard files capped at the
// configured size and an index referencing them. Only the current shard is
// held in memory.
func (j *SitemapJob) Run(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer j.running.Store(false)

	j.logger.Info("sitemap generation start")

	if err := os.RemoveAll(j.cfg.OutputDir); err != nil {
		return fmt.Errorf("clean sitemap output dir: %w", err)
	}
	if err := os.MkdirAll(j.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create sitemap output dir: %w", err)
	}

	index := sitemapIndexSet{XMLNS: sitemapXMLNS}
	shard := make([]sitemapURL, 0, j.cfg.ShardSize)
	shardNum := 1

	flush := func() error {
		if len(shard) == 0 {
			return nil
		}
		name := fmt.Sprintf("data-%02d.xml", shardNum)
		path := filepath.Join(j.cfg.OutputDir, name)
		if err := writeXMLFile(path, sitemapURLSet{XMLNS: sitemapXMLNS, URLs: shard}); err != nil {
			return err
		}
		j.logger.Info("sitemap shard written", "path", path, "links", len(shard))
		index.Sitemaps = append(index.Sitemaps, sitemapIndexRef{
			Loc:     j.cfg.BaseURL + "/sitemap/" + name,
			LastMod: j.now().UTC().Format("2006-01-02"),
		})
		shardNum++
		shard = shard[:0]
		return nil
	}

	for _, lang := range j.cfg.Languages {
		for _, typeName := range j.registry.Names() {
			typ, _ := j.registry.Get(typeName)
			if !typ.Sitemap {
				continue
			}
			if err := j.emitType(ctx, typ, lang, &shard, flush); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	if len(index.Sitemaps) > 0 {
		path := filepath.Join(j.cfg.OutputDir, "index.xml")
		if err := writeXMLFile(path, index); err != nil {
			return err
		}
		j.logger.Info("sitemap index written", "path", path, "shards", len(index.Sitemaps))
	}

	j.logger.Info("sitemap generation stop")
	return nil
}

func (j *SitemapJob) emitType(ctx context.Context, typ *TypeDescriptor, lang string, shard *[]sitemapURL, flush func() error) error {
	j.logger.Info("sitemap generation started for type", "type", typ.Name, "language", lang)

	status := StatusPublished
	offset := 0
	for {
		limit := j.cfg.PageSize
		off := offset
		batch, err := j.repo.ListContent(ctx, ContentQuery{
			Type:     &typ.Name,
			Language: &lang,
			Status:   &status,
			Limit:    &limit,
			Offset:   &off,
		})
		if err != nil {
			return fmt.Errorf("list %s content: %w", typ.Name, err)
		}

		for _, c := range batch {
			if c.AliasID == uuid.Nil || c.PublishTime == nil {
				continue
			}
			binding, err := j.repo.GetAlias(ctx, c.AliasID)
			if err != nil {
				j.logger.Warn("skipping entity without resolvable alias", "content_id", c.ID, "error", err)
				continue
			}
			*shard = append(*shard, sitemapURL{
				Loc:        j.cfg.BaseURL + "/" + binding.Alias,
				LastMod:    c.PublishTime.UTC().Format("2006-01-02"),
				ChangeFreq: "weekly",
				Priority:   "0.5",
			})
			if len(*shard) >= j.cfg.ShardSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		if len(batch) < j.cfg.PageSize {
			return nil
		}
		offset += j.cfg.PageSize
	}
}

func writeXMLFile(path string, doc any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
