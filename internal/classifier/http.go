package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPModel delegates inference to a model server exposing
//
//	GET  /schema   -> {"feature_names": [...]}
//	POST /predict  {"features": [[...]]} -> {"prediction": [k], "probabilities": [[...]]}
//
// The schema is fetched once when the model is created.
type HTTPModel struct {
	baseURL  string
	client   *http.Client
	features []string
}

type schemaResponse struct {
	FeatureNames []string `json:"feature_names"`
}

type predictRequest struct {
	Features [][]float64 `json:"features"`
}

type predictResponse struct {
	Prediction    []float64   `json:"prediction"`
	Probabilities [][]float64 `json:"probabilities"`
}

func NewHTTPModel(ctx context.Context, baseURL string, timeout time.Duration) (*HTTPModel, error) {
	m := &HTTPModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}

	var schema schemaResponse
	if err := m.do(ctx, http.MethodGet, "/schema", nil, &schema); err != nil {
		return nil, fmt.Errorf("fetch model schema: %w", err)
	}
	if len(schema.FeatureNames) == 0 {
		return nil, errors.New("model schema has no feature names")
	}
	m.features = schema.FeatureNames
	return m, nil
}

func (m *HTTPModel) FeatureNames() []string {
	return append([]string(nil), m.features...)
}

func (m *HTTPModel) Predict(ctx context.Context, row []float64) (int, error) {
	resp, err := m.predict(ctx, row)
	if err != nil {
		return 0, err
	}
	if len(resp.Prediction) == 0 {
		return 0, errors.New("model returned no prediction")
	}
	return int(resp.Prediction[0]), nil
}

func (m *HTTPModel) PredictProba(ctx context.Context, row []float64) ([]float64, error) {
	resp, err := m.predict(ctx, row)
	if err != nil {
		return nil, err
	}
	if len(resp.Probabilities) == 0 || len(resp.Probabilities[0]) == 0 {
		return nil, errors.New("model returned no probabilities")
	}
	return resp.Probabilities[0], nil
}

func (m *HTTPModel) predict(ctx context.Context, row []float64) (predictResponse, error) {
	if len(row) != len(m.features) {
		return predictResponse{}, fmt.Errorf("%w: got %d, want %d", ErrRowLength, len(row), len(m.features))
	}
	var resp predictResponse
	err := m.do(ctx, http.MethodPost, "/predict", predictRequest{Features: [][]float64{row}}, &resp)
	return resp, err
}

func (m *HTTPModel) do(ctx context.Context, method, path string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("model server %s %s: %s: %s", method, path, res.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(res.Body).Decode(dst)
}
