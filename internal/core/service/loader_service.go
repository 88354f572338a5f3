package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-replenishment/internal/config"
	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/metrics"
	"github.com/rl1809/stock-replenishment/internal/port"
	"github.com/rl1809/stock-replenishment/internal/retry"
)

// LoaderService performs the one-time drop-and-replace import of the
// products, stores and inventory collections.
type LoaderService struct {
	loader    port.BulkLoader
	chunkSize int
	delay     time.Duration
	attempts  uint
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewLoaderService(loader port.BulkLoader, cfg config.LoaderConfig, m *metrics.Metrics, logger *zap.Logger) *LoaderService {
	return &LoaderService{
		loader:    loader,
		chunkSize: max(cfg.ChunkSize, 1),
		delay:     cfg.ChunkDelay,
		attempts:  max(cfg.MaxAttempts, 1),
		metrics:   m,
		logger:    logger.Named("loader"),
	}
}

// Load imports every non-empty collection of ds in order. Only a failing
// reset or a canceled context aborts the load; failed batches are counted
// in the report.
func (s *LoaderService) Load(ctx context.Context, ds domain.Dataset) ([]domain.LoadReport, error) {
	s.logger.Info("starting initial data load",
		zap.Int("chunk_size", s.chunkSize),
		zap.Duration("chunk_delay", s.delay),
		zap.Uint("max_attempts", s.attempts))

	steps := []struct {
		collection domain.Collection
		n          int
		insert     func(ctx context.Context, from, to int) error
	}{
		{domain.CollectionProducts, len(ds.Products), func(ctx context.Context, from, to int) error {
			return s.loader.InsertProducts(ctx, ds.Products[from:to])
		}},
		{domain.CollectionStores, len(ds.Stores), func(ctx context.Context, from, to int) error {
			return s.loader.InsertStores(ctx, ds.Stores[from:to])
		}},
		{domain.CollectionInventory, len(ds.Inventory), func(ctx context.Context, from, to int) error {
			return s.loader.InsertInventory(ctx, ds.Inventory[from:to])
		}},
	}

	reports := make([]domain.LoadReport, 0, len(steps))
	for _, step := range steps {
		report, err := s.loadCollection(ctx, step.collection, step.n, step.insert)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}

	s.logger.Info("initial data load complete")
	return reports, nil
}

func (s *LoaderService) loadCollection(ctx context.Context, collection domain.Collection, n int, insert func(ctx context.Context, from, to int) error) (domain.LoadReport, error) {
	report := domain.LoadReport{Collection: collection, Read: n}
	log := s.logger.With(zap.String("collection", string(collection)))

	if n == 0 {
		log.Info("no items to load, skipping")
		return report, nil
	}

	log.Info("dropping existing collection for clean import", zap.Int("read", n))
	if err := s.loader.Reset(ctx, collection); err != nil {
		return report, fmt.Errorf("reset %s: %w", collection, err)
	}

	limiter := newChunkLimiter(s.delay)
	policy := retry.Policy{
		MaxAttempts: s.attempts,
		BaseDelay:   s.delay,
		Multiplier:  2,
		Retryable:   func(err error) bool { return errors.Is(err, domain.ErrConnection) },
		OnRetry: func(err error, attempt int, wait time.Duration) {
			log.Warn("connection failure during insert, retrying",
				zap.Int("attempt", attempt),
				zap.Uint("max_attempts", s.attempts),
				zap.Duration("wait", wait),
				zap.Error(err))
		},
	}

	for from := 0; from < n; from += s.chunkSize {
		to := min(from+s.chunkSize, n)
		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}

		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			return insert(ctx, from, to)
		})
		s.record(log, &report, err, from, to)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
	}

	if report.Inserted < report.Read {
		log.Warn("some items were skipped due to errors",
			zap.Int("inserted", report.Inserted),
			zap.Int("read", report.Read))
	}
	log.Info("finished loading collection", zap.Int("inserted", report.Inserted))
	return report, nil
}

func (s *LoaderService) record(log *zap.Logger, report *domain.LoadReport, err error, from, to int) {
	var bulkErr *domain.BulkWriteError
	switch {
	case err == nil:
		report.Inserted += to - from
		s.metrics.LoaderBatches.WithLabelValues(string(report.Collection), "ok").Inc()
		log.Debug("inserted batch", zap.Int("count", to-from), zap.Int("total", report.Inserted))
	case errors.As(err, &bulkErr):
		report.Inserted += bulkErr.Applied
		report.FailedBatches++
		s.metrics.LoaderBatches.WithLabelValues(string(report.Collection), "partial").Inc()
		log.Warn("batch partially inserted",
			zap.Int("applied", bulkErr.Applied),
			zap.Int("failed", bulkErr.Failed),
			zap.Error(bulkErr.Cause))
	default:
		report.FailedBatches++
		s.metrics.LoaderBatches.WithLabelValues(string(report.Collection), resultLabel(err)).Inc()
		log.Error("failed to insert batch, skipping its items",
			zap.Int("from", from),
			zap.Int("to", to),
			zap.Error(err))
	}
}
