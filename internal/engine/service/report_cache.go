package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"earnings-call-engine/internal/engine/config"
	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/engine/repository"
	"earnings-call-engine/internal/entity"
	"earnings-call-engine/pkg/logger"

	"github.com/lib/pq"
	"github.com/patrickmn/go-cache"
	"gorm.io/datatypes"
)

const defaultReportCacheTTL = 30 * time.Minute

// ComputeFunc produces a report on a cache miss.
type ComputeFunc func(ctx context.Context) (*dto.GeneratedReport, error)

// ReportCache stores one report per normalized (ticker, quarter, prev_quarter) key.
type ReportCache interface {
	// GetOrCompute returns the stored payload for key, or runs compute and stores its result.
	// The boolean is true when the payload came from storage.
	GetOrCompute(ctx context.Context, key dto.ReportKey, compute ComputeFunc) (map[string]any, bool, error)
}

// NewReportCache creates a report cache backed by the report repository with an in-process front.
func NewReportCache(cfg *config.Config, reportRepo repository.ReportRepository, log *logger.Logger) ReportCache {
	ttl := cfg.Report.CacheTTL
	if ttl <= 0 {
		ttl = defaultReportCacheTTL
	}
	return &reportCache{
		reportRepo: reportRepo,
		local:      cache.New(ttl, 2*ttl),
		logger:     log,
	}
}

type reportCache struct {
	reportRepo repository.ReportRepository
	local      *cache.Cache
	logger     *logger.Logger
}

func (c *reportCache) GetOrCompute(ctx context.Context, key dto.ReportKey, compute ComputeFunc) (map[string]any, bool, error) {
	localKey := cacheKey(key)
	if v, ok := c.local.Get(localKey); ok {
		return v.(map[string]any), true, nil
	}

	data, found, err := c.load(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		c.local.SetDefault(localKey, data)
		return data, true, nil
	}

	generated, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}

	raw, err := json.Marshal(generated.Data)
	if err != nil {
		return nil, false, err
	}
	created, err := c.reportRepo.CreateIfAbsent(ctx, &entity.Report{
		Ticker:          key.Ticker,
		Quarter:         key.Quarter,
		PrevQuarter:     key.PrevQuarter,
		ReportData:      datatypes.JSON(raw),
		ContextChunkIDs: pq.StringArray(generated.ContextChunkIDs),
		Model:           generated.Model,
	})
	if err != nil {
		c.logger.Error("Failed to store report", logger.ErrorField(err), logger.StringField("key", localKey))
		return nil, false, err
	}
	if created {
		c.local.SetDefault(localKey, generated.Data)
		return generated.Data, false, nil
	}

	// Another writer stored the key first; its row wins.
	c.logger.Info("Report key stored concurrently, serving stored row", logger.StringField("key", localKey))
	winner, found, err := c.load(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return generated.Data, false, nil
	}
	c.local.SetDefault(localKey, winner)
	return winner, true, nil
}

func (c *reportCache) load(ctx context.Context, key dto.ReportKey) (map[string]any, bool, error) {
	report, err := c.reportRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if report == nil {
		return nil, false, nil
	}

	var data map[string]any
	if err := json.Unmarshal(report.ReportData, &data); err != nil {
		return nil, false, fmt.Errorf("decode stored report %s: %w", report.ID, err)
	}
	return data, true, nil
}

func cacheKey(key dto.ReportKey) string {
	return key.Ticker + "|" + key.Quarter + "|" + key.PrevQuarter
}
