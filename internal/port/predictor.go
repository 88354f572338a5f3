package port

import (
	"context"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

// Predictor is the trained demand model together with its feature
// preprocessing. Implementations are immutable after construction.
type Predictor interface {
	Schema() domain.FeatureSchema
	Predict(ctx context.Context, features domain.FeatureVector) (float64, error)
}
