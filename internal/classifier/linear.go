package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// LinearModel is a multinomial logistic regression exported as JSON:
//
//	{
//	  "feature_names": ["Fever", ...],
//	  "classes": [0, 1, 2, 3],
//	  "coefficients": [[...], ...],
//	  "intercepts": [...]
//	}
//
// coefficients holds one row per class, one column per feature.
type LinearModel struct {
	Features     []string    `json:"feature_names"`
	Classes      []int       `json:"classes"`
	Coefficients [][]float64 `json:"coefficients"`
	Intercepts   []float64   `json:"intercepts"`
}

// LoadLinearModel reads and validates a model artifact.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

func (m *LinearModel) validate() error {
	if len(m.Features) == 0 {
		return errors.New("no feature names")
	}
	if len(m.Classes) == 0 {
		return errors.New("no classes")
	}
	if len(m.Coefficients) != len(m.Classes) || len(m.Intercepts) != len(m.Classes) {
		return errors.New("coefficients and intercepts must have one entry per class")
	}
	for i, row := range m.Coefficients {
		if len(row) != len(m.Features) {
			return fmt.Errorf("coefficient row %d has %d values, want %d", i, len(row), len(m.Features))
		}
	}
	return nil
}

func (m *LinearModel) FeatureNames() []string {
	return append([]string(nil), m.Features...)
}

func (m *LinearModel) Predict(ctx context.Context, row []float64) (int, error) {
	proba, err := m.PredictProba(ctx, row)
	if err != nil {
		return 0, err
	}
	best := 0
	for i, p := range proba {
		if p > proba[best] {
			best = i
		}
	}
	return m.Classes[best], nil
}

// PredictProba returns the softmax of the class scores, in Classes order.
func (m *LinearModel) PredictProba(ctx context.Context, row []float64) ([]float64, error) {
	if len(row) != len(m.Features) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrRowLength, len(row), len(m.Features))
	}

	scores := make([]float64, len(m.Classes))
	highest := math.Inf(-1)
	for k := range m.Classes {
		score := m.Intercepts[k]
		for j, x := range row {
			score += m.Coefficients[k][j] * x
		}
		scores[k] = score
		if score > highest {
			highest = score
		}
	}

	var sum float64
	for k, score := range scores {
		scores[k] = math.Exp(score - highest)
		sum += scores[k]
	}
	for k := range scores {
		scores[k] /= sum
	}
	return scores, nil
}
