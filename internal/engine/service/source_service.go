package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/internal/ingestion"
	"earnings-call-engine/pkg/logger"
	"earnings-call-engine/pkg/utils"

	"github.com/patrickmn/go-cache"
)

const (
	defaultFeedMaxItems = 10
	defaultSeenLinksTTL = 24 * time.Hour
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SourceService ingests transcripts from uploads, web pages and feeds.
type SourceService interface {
	IngestURL(ctx context.Context, req *dto.IngestURLRequest) (*dto.DocumentResponse, error)
	IngestFile(ctx context.Context, req *dto.IngestFileRequest) (*dto.DocumentResponse, error)
	IngestFeed(ctx context.Context, req *dto.IngestFeedRequest) ([]dto.IngestFeedResult, error)
}

// NewSourceService creates a new source service.
func NewSourceService(
	cfg *config.Config,
	sourceRepo repository.TranscriptSourceRepository,
	ingestionService IngestionService,
	log *logger.Logger,
) SourceService {
	ttl := cfg.Source.SeenLinksTTL
	if ttl <= 0 {
		ttl = defaultSeenLinksTTL
	}
	return &sourceService{
		sourceRepo:       sourceRepo,
		ingestionService: ingestionService,
		seenLinks:        cache.New(ttl, time.Hour),
		logger:           log,
	}
}

type sourceService struct {
	sourceRepo       repository.TranscriptSourceRepository
	ingestionService IngestionService
	seenLinks        *cache.Cache
	logger           *logger.Logger
}

// IngestURL fetches an HTML transcript page and ingests its readable text.
func (s *sourceService) IngestURL(ctx context.Context, req *dto.IngestURLRequest) (*dto.DocumentResponse, error) {
	if err := validateHTTPURL(req.URL); err != nil {
		return nil, err
	}

	html, err := s.sourceRepo.FetchPage(ctx, req.URL)
	if err != nil {
		s.logger.Error("Failed to fetch transcript page", logger.ErrorField(err), logger.StringField("url", req.URL))
		return nil, err
	}
	text, err := ingestion.ExtractTranscriptText(html)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	return s.ingestionService.Ingest(ctx, &dto.IngestRequest{
		Ticker:   req.Ticker,
		Quarter:  req.Quarter,
		CallDate: req.CallDate,
		RawText:  dto.RawText(text),
	})
}

// IngestFile ingests an uploaded UTF-8 transcript. HTML files are reduced to their text first.
func (s *sourceService) IngestFile(ctx context.Context, req *dto.IngestFileRequest) (*dto.DocumentResponse, error) {
	content := bytes.TrimPrefix(req.Content, utf8BOM)
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: file must be UTF-8 encoded text", ErrInvalidRequest)
	}

	text := string(content)
	switch strings.ToLower(filepath.Ext(req.Filename)) {
	case ".html", ".htm":
		extracted, err := ingestion.ExtractTranscriptText(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
		}
		text = extracted
	}

	return s.ingestionService.Ingest(ctx, &dto.IngestRequest{
		Ticker:   req.Ticker,
		Quarter:  req.Quarter,
		CallDate: req.CallDate,
		RawText:  dto.RawText(text),
	})
}

// IngestFeed scans a feed for transcripts of one ticker and ingests every item whose title
// names a fiscal quarter. Items seen within the last TTL are skipped.
func (s *sourceService) IngestFeed(ctx context.Context, req *dto.IngestFeedRequest) ([]dto.IngestFeedResult, error) {
	if err := validateHTTPURL(req.FeedURL); err != nil {
		return nil, err
	}
	ticker := utils.NormalizeLabel(req.Ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
	}
	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = defaultFeedMaxItems
	}

	feed, err := s.sourceRepo.FetchFeed(ctx, req.FeedURL)
	if err != nil {
		s.logger.Error("Failed to fetch feed", logger.ErrorField(err), logger.StringField("feed_url", req.FeedURL))
		return nil, err
	}

	results := make([]dto.IngestFeedResult, 0)
	for _, item := range feed.Items {
		if len(results) >= maxItems {
			break
		}
		if item == nil || !ingestion.MentionsTicker(item.Title, ticker) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := dto.IngestFeedResult{Title: item.Title, Link: item.Link}
		quarter, ok := ingestion.QuarterFromTitle(item.Title)
		if !ok {
			res.Status = dto.FeedItemSkipped
			res.Error = "no fiscal quarter in title"
			results = append(results, res)
			continue
		}
		res.Quarter = quarter

		if _, seen := s.seenLinks.Get(item.Link); seen {
			res.Status = dto.FeedItemSkipped
			res.Error = "link seen recently"
			results = append(results, res)
			continue
		}

		callDate := ""
		if item.PublishedParsed != nil {
			callDate = utils.FormatDate(item.PublishedParsed)
		}

		doc, err := s.IngestURL(ctx, &dto.IngestURLRequest{
			Ticker:   ticker,
			Quarter:  quarter,
			CallDate: callDate,
			URL:      item.Link,
		})
		switch {
		case err == nil:
			res.Status = dto.FeedItemIngested
			res.DocumentID = &doc.ID
			s.seenLinks.SetDefault(item.Link, struct{}{})
		case errors.Is(err, repository.ErrDocumentExists):
			res.Status = dto.FeedItemExists
			s.seenLinks.SetDefault(item.Link, struct{}{})
		default:
			res.Status = dto.FeedItemFailed
			res.Error = err.Error()
			s.logger.Warn("Failed to ingest feed item", logger.ErrorField(err), logger.StringField("link", item.Link))
		}
		results = append(results, res)
	}

	s.logger.Info("Feed processed",
		logger.StringField("feed_url", req.FeedURL),
		logger.StringField("ticker", ticker),
		logger.IntField("items", len(results)),
	)
	return results, nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidRequest)
	}
	return nil
}
