// Package service implements the replenishment engines: single-record stock
// transactions, stock alerts, demand forecasting, reorder policy, batch
// transaction processing and the initial bulk load.
package service

import (
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

var tracer = otel.Tracer("github.com/rl1809/stock-replenishment/internal/core/service")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Clock returns the current time. Engines take one so tests can pin "today".
type Clock func() time.Time

func (c Clock) today() time.Time {
	now := time.Now()
	if c != nil {
		now = c()
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// roundHalfEven matches the rounding the demand model's training stack uses.
func roundHalfEven(v float64) int {
	return int(math.RoundToEven(v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// newChunkLimiter spaces chunk submissions delay apart. A zero delay never blocks.
func newChunkLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.Kind(err)
}
