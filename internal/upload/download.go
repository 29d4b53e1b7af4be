package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// maxUploadBytes caps a single sound download. Discord caps regular
// attachments well below this; anything larger is rejected.
const maxUploadBytes = 25 << 20

// Downloader fetches an attachment URL into a local file. The bot uses
// [HTTPDownloader]; tests substitute their own.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// HTTPDownloader downloads attachments over HTTP.
type HTTPDownloader struct {
	// Client is the HTTP client to use. Defaults to http.DefaultClient.
	Client *http.Client
}

// Download fetches url into dest, creating or truncating the file.
// Downloads larger than maxUploadBytes fail and remove the partial file.
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("upload: create download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload: download attachment: unexpected status %s", resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("upload: create temp file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxUploadBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(dest)
		return fmt.Errorf("upload: write temp file: %w", err)
	case closeErr != nil:
		os.Remove(dest)
		return fmt.Errorf("upload: close temp file: %w", closeErr)
	case n > maxUploadBytes:
		os.Remove(dest)
		return fmt.Errorf("upload: attachment exceeds %d bytes", maxUploadBytes)
	}
	return nil
}
