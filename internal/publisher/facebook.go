// Package publisher posts staged videos to their destination.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"tgrelay/internal/transport"
)

const (
	defaultGraphBase  = "https://graph-video.facebook.com"
	defaultAPIVersion = "v19.0"
	maxResponseBytes  = 64 << 10
)

// FacebookConfig configures the Page video publisher.
type FacebookConfig struct {
	PageID      string
	AccessToken string
	GraphBase   string // default: https://graph-video.facebook.com
	APIVersion  string // default: v19.0
	Client      *http.Client

	// BreakerFailures consecutive failures open the breaker for
	// BreakerCooldown; zero disables it.
	BreakerFailures int
	BreakerCooldown time.Duration

	Logger *slog.Logger
}

// GraphError is an error object returned by the Graph API.
type GraphError struct {
	Status  int
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api %d: %s (type=%s code=%d)", e.Status, e.Message, e.Type, e.Code)
}

// Facebook uploads videos to a Facebook Page through the Graph API.
type Facebook struct {
	endpoint    string
	accessToken string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[string]
	logger      *slog.Logger
}

// NewFacebook creates a publisher for one page.
func NewFacebook(cfg FacebookConfig) (*Facebook, error) {
	if cfg.PageID == "" || cfg.AccessToken == "" {
		return nil, errors.New("facebook publisher: page ID and access token are required")
	}
	if cfg.GraphBase == "" {
		cfg.GraphBase = defaultGraphBase
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Client == nil {
		cfg.Client = transport.SharedHTTPClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f := &Facebook{
		endpoint:    fmt.Sprintf("%s/%s/%s/videos", strings.TrimRight(cfg.GraphBase, "/"), cfg.APIVersion, cfg.PageID),
		accessToken: cfg.AccessToken,
		client:      cfg.Client,
		logger:      cfg.Logger,
	}

	if cfg.BreakerFailures > 0 {
		threshold := uint32(cfg.BreakerFailures)
		f.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "facebook",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// A cancelled relay says nothing about the destination's health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				cfg.Logger.Warn("publisher circuit breaker state change",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return f, nil
}

// Publish uploads the file at path with caption as the video description.
func (f *Facebook) Publish(ctx context.Context, path, caption string) error {
	upload := func() (string, error) { return f.upload(ctx, path, caption) }

	var (
		id  string
		err error
	)
	if f.breaker != nil {
		id, err = f.breaker.Execute(upload)
	} else {
		id, err = upload()
	}
	if err != nil {
		return fmt.Errorf("facebook publish: %w", err)
	}
	f.logger.Info("video published", "video_id", id, "file", filepath.Base(path))
	return nil
}

// upload streams a multipart form to the Graph API without buffering the
// video in memory.
func (f *Facebook) upload(ctx context.Context, path, caption string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, file, f.accessToken, caption))
	}()
	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result struct {
		ID    string      `json:"id"`
		Error *GraphError `json:"error"`
	}
	if jsonErr := json.Unmarshal(body, &result); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decode response: %w", jsonErr)
	}
	if result.Error != nil {
		result.Error.Status = resp.StatusCode
		return "", result.Error
	}
	if resp.StatusCode != http.StatusOK {
		return "", &GraphError{Status: resp.StatusCode, Message: truncate(string(body), 200)}
	}
	if result.ID == "" {
		return "", errors.New("graph api response has no video id")
	}
	return result.ID, nil
}

func writeForm(mw *multipart.Writer, file *os.File, accessToken, caption string) error {
	if err := mw.WriteField("access_token", accessToken); err != nil {
		return err
	}
	if err := mw.WriteField("description", caption); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("source", filepath.Base(file.Name()))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return mw.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
