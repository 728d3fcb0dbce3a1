package pubflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pubflow/pubflow/pkg/pubflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAttachments(urls ...string) []pubflow.Attachment {
	out := make([]pubflow.Attachment, 0, len(urls))
	for _, u := range urls {
		out = append(out, pubflow.Attachment{ID: uuid.New(), URL: u})
	}
	return out
}

func TestRenderImagePlaceholders(t *testing.T) {
	codec := pubflow.NewCodec(pubflow.NewLinkMediaStore())
	images := testAttachments("https://cdn.test/a.jpg", "https://cdn.test/b.jpg")

	tests := []struct {
		name string
		body string
		opts pubflow.RenderOptions
		want string
	}{
		{
			name: "responsive by default",
			body: "[img:1]",
			opts: pubflow.RenderOptions{Alt: "First"},
			want: `<img src="https://cdn.test/a.jpg" class="img-responsive" alt="First" data-enlarge="true">`,
		},
		{
			name: "explicit width switches to fixed",
			body: "[img:1:width=320]",
			opts: pubflow.RenderOptions{Alt: "First"},
			want: `<img src="https://cdn.test/a.jpg" width="320" alt="First" data-enlarge="true">`,
		},
		{
			name: "malformed width degrades to zero",
			body: "[img:1:width=abc]",
			opts: pubflow.RenderOptions{Alt: "First"},
			want: `<img src="https://cdn.test/a.jpg" alt="First" data-enlarge="true">`,
		},
		{
			name: "custom class joins responsive class",
			body: "[img:2:class=hero:no_enlarge]",
			opts: pubflow.RenderOptions{Alt: "Second"},
			want: `<img src="https://cdn.test/b.jpg" class="img-responsive hero" alt="Second">`,
		},
		{
			name: "inline alt wins over fallback",
			body: "[img:1:alt=Override]",
			opts: pubflow.RenderOptions{Alt: "Fallback"},
			want: `<img src="https://cdn.test/a.jpg" class="img-responsive" alt="Override" data-enlarge="true">`,
		},
		{
			name: "link_orig wraps in an anchor",
			body: "[img:1:link_orig:link_class=zoom]",
			opts: pubflow.RenderOptions{Alt: "First"},
			want: `<a href="https://cdn.test/a.jpg" target="_blank" title="First" class="zoom">` +
				`<img src="https://cdn.test/a.jpg" class="img-responsive" alt="First" data-enlarge="true"></a>`,
		},
		{
			name: "global width forces fixed rendering",
			body: "[img:1]",
			opts: pubflow.RenderOptions{Alt: "First", ImagesWidth: 640},
			want: `<img src="https://cdn.test/a.jpg" width="640" alt="First" data-enlarge="true">`,
		},
		{
			name: "out of range ordinal renders empty",
			body: "before [img:3] after",
			opts: pubflow.RenderOptions{},
			want: "before  after",
		},
		{
			name: "zero ordinal renders empty",
			body: "[img:0]",
			opts: pubflow.RenderOptions{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := codec.Render(tt.body, images, nil, tt.opts)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderVideoPlaceholders(t *testing.T) {
	codec := pubflow.NewCodec(pubflow.NewLinkMediaStore())
	links := []string{
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.facebook.com/user/videos/123/",
	}

	out := codec.Render("[vid:1]\n[vid:2]\n[vid:3]", nil, links, pubflow.RenderOptions{})

	assert.Contains(t, out, `id="content-video-1"`)
	assert.Contains(t, out, `src="https://www.youtube.com/embed/dQw4w9WgXcQ"`)
	assert.Contains(t, out, `id="content-video-2"`)
	assert.Contains(t, out, "facebook.com/plugins/video.php?href=")
	assert.NotContains(t, out, "[vid:1]")
	assert.NotContains(t, out, "[vid:2]")
	assert.NotContains(t, out, "[vid:3]")
	assert.NotContains(t, out, "content-video-3")
}

func TestStrip(t *testing.T) {
	body := "Intro [img:1:link_orig] middle [vid:2] outro"
	assert.Equal(t, "Intro  middle  outro", pubflow.Strip(body))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello & World", pubflow.StripHTML("  <b>Hello</b> &amp; <i>World</i>  "))
}

func TestExtractImages(t *testing.T) {
	codec := pubflow.NewCodec(pubflow.NewLinkMediaStore())

	body := `<p>first</p><img src="https://src.test/a.jpg" alt="x"> middle ` +
		`<IMG class="big" SRC='https://src.test/b.png'> end`

	newBody, attachments, err := codec.ExtractImages(context.Background(), body, 1)
	require.NoError(t, err)

	assert.Equal(t, "<p>first</p>[img:2] middle [img:3] end", newBody)
	require.Len(t, attachments, 2)
	assert.Equal(t, "https://src.test/a.jpg", attachments[0].URL)
	assert.Equal(t, "https://src.test/b.png", attachments[1].URL)
}

func TestExtractImagesIdempotent(t *testing.T) {
	codec := pubflow.NewCodec(pubflow.NewLinkMediaStore())

	body := "already normalized [img:1] body"
	newBody, attachments, err := codec.ExtractImages(context.Background(), body, 1)
	require.NoError(t, err)
	assert.Equal(t, body, newBody)
	assert.Empty(t, attachments)
}

type failingMediaStore struct {
	pubflow.LinkMediaStore
}

func (s *failingMediaStore) CreateFromURL(ctx context.Context, srcURL string) (*pubflow.Attachment, error) {
	return nil, errors.New("fetch failed")
}

func TestExtractImagesFetchFailureKeepsBody(t *testing.T) {
	codec := pubflow.NewCodec(&failingMediaStore{})

	body := `prose <img src="https://src.test/a.jpg"> prose`
	newBody, attachments, err := codec.ExtractImages(context.Background(), body, 0)

	require.Error(t, err)
	assert.Equal(t, body, newBody)
	assert.Empty(t, attachments)
}

func TestExtractVideoLinks(t *testing.T) {
	body := `intro <iframe width="560" height="315" src="https://www.youtube.com/embed/dQw4w9WgXcQ?rel=0" frameborder="0" allowfullscreen></iframe>` +
		` middle <iframe src="https://www.facebook.com/plugins/video.php?href=https%3A%2F%2Fwww.facebook.com%2Fuser%2Fvideos%2F123%2F&show_text=0&width=560" frameborder="0"></iframe> outro`

	newBody, links := pubflow.ExtractVideoLinks(body, 1)

	assert.Equal(t, "intro [vid:2] middle [vid:3] outro", newBody)
	require.Len(t, links, 2)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", links[0])
	assert.Equal(t, "https://www.facebook.com/user/videos/123/", links[1])
}

func TestExtractVideoLinksIgnoresUnknownProviders(t *testing.T) {
	body := `<iframe src="https://player.vimeo.com/video/123"></iframe>`
	newBody, links := pubflow.ExtractVideoLinks(body, 0)
	assert.Equal(t, body, newBody)
	assert.Empty(t, links)
}
