// Package predictor provides demand model implementations of port.Predictor.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

// LinearModel is a linear demand model over passthrough numerical features
// and one-hot encoded categorical features. Categories not seen in training
// contribute nothing, matching an encoder that ignores unknown values.
type LinearModel struct {
	intercept   float64
	schema      domain.FeatureSchema
	numerical   map[string]float64
	categorical map[string]map[string]float64
}

type linearArtifact struct {
	Intercept   float64           `yaml:"intercept"`
	Numerical   []numericalTerm   `yaml:"numerical"`
	Categorical []categoricalTerm `yaml:"categorical"`
}

type numericalTerm struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

type categoricalTerm struct {
	Name    string             `yaml:"name"`
	Weights map[string]float64 `yaml:"weights"`
}

// LoadLinearModel reads a model artifact from path.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	m, err := ParseLinearModel(data)
	if err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", path, err)
	}
	return m, nil
}

func ParseLinearModel(data []byte) (*LinearModel, error) {
	var a linearArtifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(a.Numerical)+len(a.Categorical) == 0 {
		return nil, errors.New("artifact declares no features")
	}

	m := &LinearModel{
		intercept:   a.Intercept,
		numerical:   make(map[string]float64, len(a.Numerical)),
		categorical: make(map[string]map[string]float64, len(a.Categorical)),
	}
	seen := make(map[string]bool)
	for _, t := range a.Numerical {
		if t.Name == "" || seen[t.Name] {
			return nil, fmt.Errorf("invalid or duplicate feature %q", t.Name)
		}
		seen[t.Name] = true
		m.numerical[t.Name] = t.Weight
		m.schema = append(m.schema, domain.Feature{Name: t.Name, Kind: domain.Numerical})
	}
	for _, t := range a.Categorical {
		if t.Name == "" || seen[t.Name] {
			return nil, fmt.Errorf("invalid or duplicate feature %q", t.Name)
		}
		seen[t.Name] = true
		m.categorical[t.Name] = t.Weights
		m.schema = append(m.schema, domain.Feature{Name: t.Name, Kind: domain.Categorical})
	}
	return m, nil
}

func (m *LinearModel) Schema() domain.FeatureSchema {
	return m.schema
}

func (m *LinearModel) Predict(ctx context.Context, features domain.FeatureVector) (float64, error) {
	y := m.intercept
	for _, f := range features {
		if f.Kind == domain.Categorical {
			y += m.categorical[f.Name][f.Category]
			continue
		}
		y += m.numerical[f.Name] * f.Number
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("%w: linear model produced %v", domain.ErrUpstream, y)
	}
	return y, nil
}
