package pubflow

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	imgTagRe = regexp.MustCompile(`\[img:(\d+)([^\]]*)\]`)
	vidTagRe = regexp.MustCompile(`\[vid:(\d+)\]`)

	inlineImgRe     = regexp.MustCompile(`(?is)<img[^>]*?src\s*=\s*["']([^"']+)["'][^>]*>`)
	youtubeEmbedRe  = regexp.MustCompile(`(?is)<iframe[^>]*?src=["']?https?://www\.youtube\.com/embed/([a-zA-Z0-9_-]{11})[^"']*["']?[^>]*>.*?</iframe>`)
	facebookEmbedRe = regexp.MustCompile(`(?is)<iframe[^>]*?src=["']?https?://www\.facebook\.com/plugins/video\.php\?href=([^"']+?)["'][^>]*>.*?</iframe>`)

	fbQueryTailRe = regexp.MustCompile(`&.+$`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
)

// Codec translates between the stored body form and its derived views, and
// lifts literal embedded media out of freshly authored input.
type Codec struct {
	media MediaStore
}

// NewCodec returns a codec backed by the given media store.
func NewCodec(media MediaStore) *Codec {
	return &Codec{media: media}
}

// RenderOptions control placeholder expansion. Images render responsive by
// default; explicit dimensions in a placeholder or in the options switch
// that placeholder to pixel sizing.
type RenderOptions struct {
	// DisableResponsive forces fixed rendering for every image placeholder.
	DisableResponsive bool

	// ImagesWidth, when non-zero, forces fixed-width rendering at the given
	// width for every image placeholder.
	ImagesWidth int

	// Alt is the fallback alt text, typically the entity title.
	Alt string
}

// imgTagOpts are the recognized inline options of an [img:N] placeholder.
// Malformed values degrade to defaults, never to an error.
type imgTagOpts struct {
	linkOrig   bool
	linkTarget string
	linkClass  string
	class      string
	alt        string
	enlarge    bool
	width      int
	height     int
	responsive bool
}

func parseImgTagOpts(raw string, defaults RenderOptions) imgTagOpts {
	o := imgTagOpts{
		linkTarget: "_blank",
		alt:        defaults.Alt,
		enlarge:    true,
		responsive: !defaults.DisableResponsive,
	}

	for _, arg := range strings.Split(raw, ":") {
		arg = strings.TrimSpace(arg)
		switch {
		case arg == "link_orig" || arg == "link":
			o.linkOrig = true
		case strings.HasPrefix(arg, "link_target="):
			o.linkTarget = strings.TrimPrefix(arg, "link_target=")
		case strings.HasPrefix(arg, "link_class="):
			o.linkClass = strings.TrimPrefix(arg, "link_class=")
		case arg == "no_enlarge" || arg == "skip_enlarge":
			o.enlarge = false
		case strings.HasPrefix(arg, "class="):
			o.class = strings.TrimPrefix(arg, "class=")
		case strings.HasPrefix(arg, "alt="):
			o.alt = strings.TrimPrefix(arg, "alt=")
		case strings.HasPrefix(arg, "width="):
			o.responsive = false
			o.width, _ = strconv.Atoi(strings.TrimPrefix(arg, "width="))
		case strings.HasPrefix(arg, "height="):
			o.responsive = false
			o.height, _ = strconv.Atoi(strings.TrimPrefix(arg, "height="))
		}
	}

	if defaults.ImagesWidth > 0 {
		o.responsive = false
		o.width = defaults.ImagesWidth
	}

	return o
}

// Render expands every [img:N] and [vid:N] placeholder in body into
// presentational markup. Placeholders with out-of-range ordinals render as
// an empty string; the rest of the body still renders.
func (c *Codec) Render(body string, images []Attachment, videoLinks []string, opts RenderOptions) string {
	out := imgTagRe.ReplaceAllStringFunc(body, func(tag string) string {
		m := imgTagRe.FindStringSubmatch(tag)
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > len(images) {
			return ""
		}
		return c.renderImage(images[idx-1], parseImgTagOpts(m[2], opts))
	})

	out = vidTagRe.ReplaceAllStringFunc(out, func(tag string) string {
		m := vidTagRe.FindStringSubmatch(tag)
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > len(videoLinks) {
			return ""
		}
		return renderVideoPlayer(idx, videoLinks[idx-1])
	})

	return out
}

func (c *Codec) renderImage(img Attachment, o imgTagOpts) string {
	var b strings.Builder

	if o.responsive {
		b.WriteString(`<img src="` + html.EscapeString(c.media.AttachmentURL(img, 0, 0)) + `"`)
		css := "img-responsive"
		if o.class != "" {
			css += " " + o.class
		}
		b.WriteString(` class="` + html.EscapeString(css) + `"`)
	} else {
		b.WriteString(`<img src="` + html.EscapeString(c.media.AttachmentURL(img, o.width, o.height)) + `"`)
		if o.class != "" {
			b.WriteString(` class="` + html.EscapeString(o.class) + `"`)
		}
		if o.width > 0 {
			b.WriteString(` width="` + strconv.Itoa(o.width) + `"`)
		}
		if o.height > 0 {
			b.WriteString(` height="` + strconv.Itoa(o.height) + `"`)
		}
	}

	b.WriteString(` alt="` + html.EscapeString(o.alt) + `"`)
	if o.enlarge {
		b.WriteString(` data-enlarge="true"`)
	}
	b.WriteString(`>`)

	r := b.String()
	if o.linkOrig {
		link := `<a href="` + html.EscapeString(c.media.AttachmentURL(img, 0, 0)) + `"` +
			` target="` + html.EscapeString(o.linkTarget) + `"` +
			` title="` + html.EscapeString(o.alt) + `"`
		if o.linkClass != "" {
			link += ` class="` + html.EscapeString(o.linkClass) + `"`
		}
		r = link + `>` + r + `</a>`
	}

	return r
}

func renderVideoPlayer(index int, link string) string {
	var src string
	switch {
	case strings.HasPrefix(link, "https://youtu.be/"):
		src = "https://www.youtube.com/embed/" + strings.TrimPrefix(link, "https://youtu.be/")
	case strings.Contains(link, "facebook.com"):
		src = "https://www.facebook.com/plugins/video.php?href=" + url.QueryEscape(link)
	default:
		src = link
	}

	return fmt.Sprintf(`<iframe id="content-video-%d" class="content-video" src="%s" frameborder="0" allowfullscreen></iframe>`,
		index, html.EscapeString(src))
}

// Strip removes all placeholder tokens from body, leaving the surrounding
// prose as-is. Used for summaries and feeds.
func Strip(body string) string {
	body = imgTagRe.ReplaceAllString(body, "")
	body = vidTagRe.ReplaceAllString(body, "")
	return body
}

// ExtractImages scans body for literal inline <img> elements, registers each
// referenced asset with the media store and replaces the element with the
// next sequential [img:N] placeholder, continuing numbering after existing
// attachments. Idempotent on input without literal image markup.
func (c *Codec) ExtractImages(ctx context.Context, body string, existing int) (string, []Attachment, error) {
	matches := inlineImgRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return body, nil, nil
	}

	attachments := make([]Attachment, 0, len(matches))
	for _, m := range matches {
		a, err := c.media.CreateFromURL(ctx, m[1])
		if err != nil {
			return body, nil, fmt.Errorf("create attachment from %q: %w", m[1], err)
		}
		attachments = append(attachments, *a)
	}

	idx := existing
	newBody := inlineImgRe.ReplaceAllStringFunc(body, func(string) string {
		idx++
		return fmt.Sprintf("[img:%d]", idx)
	})

	return newBody, attachments, nil
}

// ExtractVideoLinks scans body for known embedded video players, normalizes
// each to a canonical short URL and replaces the embed with the next
// sequential [vid:N] placeholder. Embeds of unrecognized providers are left
// untouched.
func ExtractVideoLinks(body string, existing int) (string, []string) {
	idx := existing
	var links []string

	body = youtubeEmbedRe.ReplaceAllStringFunc(body, func(tag string) string {
		m := youtubeEmbedRe.FindStringSubmatch(tag)
		idx++
		links = append(links, "https://youtu.be/"+m[1])
		return fmt.Sprintf("[vid:%d]", idx)
	})

	body = facebookEmbedRe.ReplaceAllStringFunc(body, func(tag string) string {
		m := facebookEmbedRe.FindStringSubmatch(tag)
		idx++
		link, err := url.QueryUnescape(m[1])
		if err != nil {
			link = m[1]
		}
		// The embed widget appends its own query parameters after the href.
		links = append(links, fbQueryTailRe.ReplaceAllString(link, ""))
		return fmt.Sprintf("[vid:%d]", idx)
	})

	return body, links
}

// StripHTML removes markup tags from s. Title and description fields are
// stored HTML-stripped.
func StripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(s, "")))
}
