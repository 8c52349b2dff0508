package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/pkg/logger"

	"github.com/mmcdole/gofeed"
)

// maxPageBytes caps how much of a transcript page is read.
const maxPageBytes = 20 << 20

// TranscriptSourceRepository fetches transcript pages and feeds from the web.
type TranscriptSourceRepository interface {
	FetchPage(ctx context.Context, url string) (string, error)
	FetchFeed(ctx context.Context, url string) (*gofeed.Feed, error)
}

// NewTranscriptSourceRepository creates a new HTTP-based transcript source.
func NewTranscriptSourceRepository(cfg *config.Config, log *logger.Logger) TranscriptSourceRepository {
	return &transcriptSourceRepository{
		client: &http.Client{Timeout: cfg.Source.Timeout},
		cfg:    cfg,
		logger: log,
	}
}

type transcriptSourceRepository struct {
	client *http.Client
	cfg    *config.Config
	logger *logger.Logger
}

// FetchPage downloads an HTML page and returns its body.
func (r *transcriptSourceRepository) FetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.Source.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("Failed to fetch transcript page", logger.ErrorField(err), logger.StringField("url", url))
		return "", fmt.Errorf("failed to fetch transcript page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Error("Transcript page returned non-200 status", logger.IntField("status", resp.StatusCode), logger.StringField("url", url))
		return "", fmt.Errorf("failed to fetch transcript page, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

// FetchFeed downloads and parses an RSS or Atom feed.
func (r *transcriptSourceRepository) FetchFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = r.cfg.Source.UserAgent
	fp.Client = r.client

	feed, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		r.logger.Error("Failed to parse feed", logger.ErrorField(err), logger.StringField("url", url))
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}
