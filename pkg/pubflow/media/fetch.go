// Package media provides MediaStore backends that localize remote assets
// referenced from content bodies.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
)

// DefaultMaxFetchSize caps how much a backend will download for a single
// asset.
const DefaultMaxFetchSize = 32 << 20

// RemoteAsset is a remote file opened for download. Close the body after
// reading.
type RemoteAsset struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64 // -1 when the origin does not announce one
	FileName    string
}

// FetchURL opens srcURL for download. The returned body is limited to
// maxSize bytes; a response that announces a larger size fails up front.
func FetchURL(ctx context.Context, client *http.Client, srcURL string, maxSize int64) (*RemoteAsset, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFetchSize
	}

	u, err := url.Parse(srcURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported source url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", srcURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", srcURL, resp.Status)
	}
	if resp.ContentLength > maxSize {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: asset larger than %d bytes", srcURL, maxSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = ""
	}

	return &RemoteAsset{
		Body:        &limitedBody{rc: resp.Body, remaining: maxSize},
		ContentType: contentType,
		Size:        resp.ContentLength,
		FileName:    name,
	}, nil
}

// limitedBody fails the read instead of silently truncating when the
// origin sends more than allowed.
type limitedBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, errors.New("asset exceeds configured size limit")
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.rc.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errors.New("asset exceeds configured size limit")
	}
	return n, err
}

func (l *limitedBody) Close() error { return l.rc.Close() }

// SizedURL appends resize hints to an attachment URL. Zero dimensions pass
// the URL through untouched; the serving layer interprets the hints.
func SizedURL(rawURL string, width, height int) string {
	if width <= 0 && height <= 0 {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if width > 0 {
		q.Set("w", strconv.Itoa(width))
	}
	if height > 0 {
		q.Set("h", strconv.Itoa(height))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
