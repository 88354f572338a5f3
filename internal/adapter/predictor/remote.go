package predictor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

// RemotePredictor calls a model server that owns the trained model and its
// preprocessing. The feature schema is fixed at construction.
type RemotePredictor struct {
	client *resty.Client
	schema domain.FeatureSchema
}

type schemaResponse struct {
	Numerical   []string `json:"numerical"`
	Categorical []string `json:"categorical"`
}

type predictRequest struct {
	Features map[string]any `json:"features"`
}

type predictResponse struct {
	Prediction *float64 `json:"prediction"`
}

// NewRemotePredictor connects to the model server at baseURL. When schema is
// empty it is fetched from the server's /schema endpoint.
func NewRemotePredictor(ctx context.Context, baseURL string, timeout time.Duration, schema domain.FeatureSchema) (*RemotePredictor, error) {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	p := &RemotePredictor{client: client, schema: schema}
	if len(schema) > 0 {
		return p, nil
	}

	var out schemaResponse
	resp, err := client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&out).
		Get("/schema")
	if err != nil {
		return nil, fmt.Errorf("%w: fetch model schema: %w", domain.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: fetch model schema: status %d", domain.ErrUpstream, resp.StatusCode())
	}
	for _, name := range out.Numerical {
		p.schema = append(p.schema, domain.Feature{Name: name, Kind: domain.Numerical})
	}
	for _, name := range out.Categorical {
		p.schema = append(p.schema, domain.Feature{Name: name, Kind: domain.Categorical})
	}
	if len(p.schema) == 0 {
		return nil, fmt.Errorf("%w: model server reported an empty schema", domain.ErrUpstream)
	}
	return p, nil
}

func (p *RemotePredictor) Schema() domain.FeatureSchema {
	return p.schema
}

func (p *RemotePredictor) Predict(ctx context.Context, features domain.FeatureVector) (float64, error) {
	var out predictResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(predictRequest{Features: features.Map()}).
		ForceContentType("application/json").
		SetResult(&out).
		Post("/predict")
	if err != nil {
		return 0, fmt.Errorf("%w: predict: %w", domain.ErrUpstream, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("%w: predict: status %d: %s", domain.ErrUpstream, resp.StatusCode(), resp.String())
	}
	if out.Prediction == nil {
		return 0, fmt.Errorf("%w: predict: response has no prediction", domain.ErrUpstream)
	}
	return *out.Prediction, nil
}
