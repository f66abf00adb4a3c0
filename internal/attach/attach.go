// Package attach implements the attachment storage layout and file
// transfer. Attachments live under a fixed root relative to the entity
// document, in a class-specific subdirectory, then one subdirectory per
// owning object id, then the plain file name taken from the source URL.
package attach

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
)

// Root is the attachment directory next to an entity document.
const Root = "attachments"

// FileName extracts the plain file name from an attachment URL: the final
// path segment, query and fragment stripped.
func FileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	name := rawURL
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// LocalPath returns the on-disk location for an attachment of the object
// (class, id), relative to baseDir (the directory of the entity document).
func LocalPath(baseDir string, c tcms.Class, id int64, rawURL string) string {
	return filepath.Join(baseDir, Root, tcms.AttachmentDir(c), fmt.Sprintf("%d", id), FileName(rawURL))
}

// Downloader fetches attachment files over HTTP.
type Downloader struct {
	client *resty.Client
}

// NewDownloader returns a Downloader. The token, when non-empty, is sent as
// the server's token authorization header so protected attachments resolve.
func NewDownloader(token string) *Downloader {
	client := resty.New()
	if token != "" {
		client.SetHeader("Authorization", "Token "+token)
	}
	return &Downloader{client: client}
}

// Fetch downloads rawURL to dest, creating parent directories. An existing
// file at dest is left untouched.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dest, err)
	}
	resp, err := d.client.R().SetContext(ctx).SetOutput(dest).Get(rawURL)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	if resp.IsError() {
		os.Remove(dest)
		return fmt.Errorf("downloading %s: server returned %s", rawURL, resp.Status())
	}
	return nil
}
