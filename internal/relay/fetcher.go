package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"tgrelay/internal/domain"
	"tgrelay/internal/metrics"
)

const (
	defaultMaxFileBytes = 50 * 1024 * 1024
	defaultVideoExt     = ".mp4"
)

// FetcherConfig configures the Fetcher.
type FetcherConfig struct {
	Resolver domain.FileResolver
	Client   *http.Client
	Dir      string // staging directory (default: os.TempDir())
	MaxBytes int64  // size cap per file (default: 50MB)
	Metrics  *metrics.Collector
	Logger   *slog.Logger
	Now      func() time.Time
}

// Fetcher resolves a platform file id and streams the file to local storage.
type Fetcher struct {
	resolver domain.FileResolver
	client   *http.Client
	dir      string
	maxBytes int64
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxFileBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Fetcher{
		resolver: cfg.Resolver,
		client:   cfg.Client,
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Fetch stages the file ref points at. On error no file is left on disk and
// no handle is returned; all errors are *domain.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, ref *domain.VideoRef, relayID string) (*StagedFile, error) {
	fileID := ref.FileID
	link, err := f.resolver.FileURL(ctx, fileID)
	if err != nil {
		return nil, &domain.FetchError{Op: "lookup", FileID: fileID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, &domain.FetchError{Op: "download", FileID: fileID, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Op: "download", FileID: fileID, Err: redactURLError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{
			Op:     "download",
			FileID: fileID,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if resp.ContentLength > f.maxBytes {
		return nil, &domain.FetchError{Op: "download", FileID: fileID, Err: domain.ErrFileTooLarge}
	}

	localPath := filepath.Join(f.dir, f.stagedName(relayID, extensionOf(link, ref)))
	out, err := os.OpenFile(localPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, &domain.FetchError{Op: "write", FileID: fileID, Err: err}
	}

	written, err := io.Copy(out, io.LimitReader(resp.Body, f.maxBytes+1))
	closeErr := out.Close()
	switch {
	case err != nil:
		f.discard(localPath)
		return nil, &domain.FetchError{Op: "write", FileID: fileID, Err: err}
	case closeErr != nil:
		f.discard(localPath)
		return nil, &domain.FetchError{Op: "write", FileID: fileID, Err: closeErr}
	case written > f.maxBytes:
		f.discard(localPath)
		return nil, &domain.FetchError{Op: "write", FileID: fileID, Err: domain.ErrFileTooLarge}
	}

	f.metrics.ObserveStagedBytes(written)
	f.logger.Info("file staged",
		"relay_id", relayID,
		"file_id", fileID,
		"path", localPath,
		"size", written,
	)
	return newStagedFile(localPath, relayID, written, f.logger), nil
}

// stagedName builds input_<unix-ms>_<relay>.ext. The relay id keeps names
// unique when two downloads start in the same millisecond.
func (f *Fetcher) stagedName(relayID, ext string) string {
	short := strings.ReplaceAll(relayID, "-", "")
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("input_%d_%s%s", f.now().UnixMilli(), short, ext)
}

func (f *Fetcher) discard(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Error("failed to remove partial download", "path", p, "err", err)
	}
}

// extensionOf picks the staged file extension: the remote path first, then
// the original file name, then the declared MIME type.
func extensionOf(link string, ref *domain.VideoRef) string {
	if u, err := url.Parse(link); err == nil {
		if ext := cleanExt(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}
	if ext := cleanExt(filepath.Ext(ref.FileName)); ext != "" {
		return ext
	}
	if ref.MimeType != "" {
		if m := mimetype.Lookup(ref.MimeType); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}
	return defaultVideoExt
}

func cleanExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	return ext
}

// redactURLError drops the request URL from transport errors: Telegram file
// links embed the bot token.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
