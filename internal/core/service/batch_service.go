package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rl1809/stock-replenishment/internal/config"
	"github.com/rl1809/stock-replenishment/internal/core/domain"
	"github.com/rl1809/stock-replenishment/internal/metrics"
	"github.com/rl1809/stock-replenishment/internal/port"
	"github.com/rl1809/stock-replenishment/internal/retry"
)

const (
	msgInvalidQuantity   = "Invalid quantity format."
	msgNonPositive       = "Quantity must be positive."
	msgMissingKey        = "store_id and product_id are required."
	msgSaleApplied       = "Processed in batch (stock checked)"
	msgReceiptApplied    = "Processed in batch"
	msgPartialFailure    = "See backend logs for details"
	msgSaleNotMatched    = "Insufficient stock or inventory not found."
	batchRetryBaseDelay  = 100 * time.Millisecond
	releaseTimeout       = 2 * time.Second
	idempotencyKeyPrefix = "batch"
)

// BatchService applies uploaded sale and receipt rows in chunked bulk
// writes. Row problems are reported per row and never fail the call.
type BatchService struct {
	store     port.InventoryStore
	cache     port.CacheRepository
	chunkSize int
	attempts  uint
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewBatchService builds the processor. cache may be nil, which disables
// request id deduplication. The chunk limiter is shared by all requests so
// the delay bounds total write throughput against the store.
func NewBatchService(store port.InventoryStore, cache port.CacheRepository, cfg config.BatchConfig, m *metrics.Metrics, logger *zap.Logger) *BatchService {
	return &BatchService{
		store:     store,
		cache:     cache,
		chunkSize: max(cfg.ChunkSize, 1),
		attempts:  max(cfg.MaxAttempts, 1),
		limiter:   newChunkLimiter(cfg.ChunkDelay),
		metrics:   m,
		logger:    logger.Named("batch"),
	}
}

func (s *BatchService) ProcessSales(ctx context.Context, requestID string, rows []domain.BatchRow) ([]domain.RowOutcome, error) {
	return s.process(ctx, domain.OpSale, requestID, rows)
}

func (s *BatchService) ProcessReceipts(ctx context.Context, requestID string, rows []domain.BatchRow) ([]domain.RowOutcome, error) {
	return s.process(ctx, domain.OpReceipt, requestID, rows)
}

type pendingOp struct {
	row int
	op  domain.StockOp
}

func (s *BatchService) process(ctx context.Context, kind domain.OpKind, requestID string, rows []domain.BatchRow) ([]domain.RowOutcome, error) {
	key, err := s.claim(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RowOutcome, 0, len(rows))
	var pending []pendingOp
	for _, r := range rows {
		op, reason := parseRow(kind, r)
		if reason != "" {
			results = append(results, domain.RowOutcome{
				Row:       r.Row,
				Status:    domain.RowFailed,
				Error:     reason,
				StoreID:   r.StoreID,
				ProductID: r.ProductID,
			})
			continue
		}
		pending = append(pending, pendingOp{row: r.Row, op: op})
	}

	for i, c := range chunk(pending, s.chunkSize) {
		if err := s.limiter.Wait(ctx); err != nil {
			results = append(results, outcomes(c, domain.RowFailed, "", err.Error())...)
			continue
		}
		results = append(results, s.applyChunk(ctx, kind, i, c)...)
	}

	slices.SortStableFunc(results, func(a, b domain.RowOutcome) int {
		return cmp.Compare(a.Row, b.Row)
	})
	if key != "" && !anyApplied(results) {
		s.release(ctx, key)
	}
	for _, r := range results {
		s.metrics.BatchRows.WithLabelValues(string(kind), string(r.Status)).Inc()
	}
	return results, nil
}

// claim records requestID so a repeated upload is rejected and returns the
// claimed key, or "" when nothing was claimed. A cache outage does not block
// the batch.
func (s *BatchService) claim(ctx context.Context, kind domain.OpKind, requestID string) (string, error) {
	if requestID == "" || s.cache == nil {
		return "", nil
	}

	key := fmt.Sprintf("%s:%s:%s", idempotencyKeyPrefix, kind, requestID)
	fresh, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		s.logger.Warn("idempotency check unavailable, processing batch anyway",
			zap.String("request_id", requestID),
			zap.Error(err))
		return "", nil
	}
	if !fresh {
		return "", fmt.Errorf("%w: batch %s already processed", domain.ErrDuplicateRequest, requestID)
	}
	return key, nil
}

// release frees a claim whose batch changed no stock, so the client can
// retry with the same request id. It runs even when ctx is done.
func (s *BatchService) release(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.cache.ReleaseIdempotency(ctx, key); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// anyApplied reports whether any row may have changed stock. Partial
// failures count, since some of their chunk committed.
func anyApplied(results []domain.RowOutcome) bool {
	return slices.ContainsFunc(results, func(r domain.RowOutcome) bool {
		return r.Status != domain.RowFailed
	})
}

func parseRow(kind domain.OpKind, r domain.BatchRow) (domain.StockOp, string) {
	qty, err := strconv.Atoi(strings.TrimSpace(r.Quantity))
	if err != nil {
		return domain.StockOp{}, msgInvalidQuantity
	}
	if qty <= 0 {
		return domain.StockOp{}, msgNonPositive
	}
	if r.StoreID == "" || r.ProductID == "" {
		return domain.StockOp{}, msgMissingKey
	}
	return domain.StockOp{Kind: kind, StoreID: r.StoreID, ProductID: r.ProductID, Quantity: qty}, ""
}

func (s *BatchService) applyChunk(ctx context.Context, kind domain.OpKind, index int, c []pendingOp) []domain.RowOutcome {
	ctx, span := tracer.Start(ctx, "BatchService.applyChunk")
	span.SetAttributes(attribute.String("kind", string(kind)), attribute.Int("chunk", index), attribute.Int("ops", len(c)))

	ops := make([]domain.StockOp, len(c))
	for i, p := range c {
		ops[i] = p.op
	}

	// Only connection failures are retried; the store rolls those back
	// before reporting them, so no row is applied twice.
	res, err := retry.Value(ctx, retry.Policy{
		MaxAttempts: s.attempts,
		BaseDelay:   batchRetryBaseDelay,
		Multiplier:  2,
		Retryable:   func(err error) bool { return errors.Is(err, domain.ErrConnection) },
		OnRetry: func(err error, attempt int, wait time.Duration) {
			s.logger.Warn("bulk write connection failure, retrying",
				zap.Int("chunk", index),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		},
	}, func(ctx context.Context) ([]domain.OpResult, error) {
		return s.store.BulkApply(ctx, ops)
	})
	endSpan(span, err)

	var bulkErr *domain.BulkWriteError
	switch {
	case errors.As(err, &bulkErr):
		s.logger.Error("bulk write partially applied",
			zap.String("kind", string(kind)),
			zap.Int("chunk", index),
			zap.Int("first_row", c[0].row),
			zap.Int("last_row", c[len(c)-1].row),
			zap.Int("applied", bulkErr.Applied),
			zap.Int("failed", bulkErr.Failed),
			zap.Error(bulkErr.Cause))
		return outcomes(c, domain.RowPartialFailure, msgPartialFailure, "")
	case err != nil:
		s.logger.Error("bulk write failed",
			zap.String("kind", string(kind)),
			zap.Int("chunk", index),
			zap.Error(err))
		return outcomes(c, domain.RowFailed, "", err.Error())
	}

	out := make([]domain.RowOutcome, 0, len(c))
	for i, p := range c {
		o := domain.RowOutcome{Row: p.row, StoreID: p.op.StoreID, ProductID: p.op.ProductID}
		switch {
		case kind == domain.OpReceipt:
			o.Status, o.Message = domain.RowSuccess, msgReceiptApplied
		case i < len(res) && res[i].Matched:
			o.Status, o.Message = domain.RowSuccess, msgSaleApplied
		default:
			o.Status, o.Error = domain.RowFailed, msgSaleNotMatched
		}
		out = append(out, o)
	}
	return out
}

func outcomes(c []pendingOp, status domain.RowStatus, message, errText string) []domain.RowOutcome {
	out := make([]domain.RowOutcome, 0, len(c))
	for _, p := range c {
		out = append(out, domain.RowOutcome{
			Row:       p.row,
			Status:    status,
			Message:   message,
			Error:     errText,
			StoreID:   p.op.StoreID,
			ProductID: p.op.ProductID,
		})
	}
	return out
}
