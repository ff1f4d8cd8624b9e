// Package classifier loads the pre-trained disease classifier. The model is
// an opaque collaborator: callers hand it a feature row in the order named
// by FeatureNames and get back a class index and the class posteriors.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/diagnoclinic/apiserver/config"
)

var (
	// ErrNoModel is returned by Load when neither a model file nor a
	// remote endpoint is available.
	ErrNoModel = errors.New("no classifier model available")

	// ErrRowLength is returned when a row does not match the schema.
	ErrRowLength = errors.New("feature row length mismatch")
)

// Model is a trained classifier.
type Model interface {
	// FeatureNames returns the column order the model was trained on.
	FeatureNames() []string
	Predict(ctx context.Context, row []float64) (int, error)
	PredictProba(ctx context.Context, row []float64) ([]float64, error)
}

// Load picks the model described by cfg. A remote URL takes precedence over
// a local artifact.
func Load(ctx context.Context, cfg config.ModelConfig) (Model, error) {
	if url := strings.TrimSpace(cfg.URL); url != "" {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return NewHTTPModel(ctx, url, timeout)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, ErrNoModel
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrNoModel, path)
		}
		return nil, err
	}
	return LoadLinearModel(path)
}
