package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/diagnoclinic/apiserver/internal/classifier"
	"github.com/diagnoclinic/apiserver/types"
)

// Form field names of the numeric inputs, in training order.
const (
	FieldFever               = "fever"
	FieldCough               = "cough"
	FieldFatigue             = "fatigue"
	FieldDifficultyBreathing = "difficulty_breathing"
	FieldAge                 = "age"
	FieldGender              = "gender"
	FieldBloodPressure       = "blood_pressure"
	FieldCholesterolLevel    = "cholesterol_level"
)

// OutcomeFeature is a placeholder column the model was trained with. It is
// always sent as zero.
const OutcomeFeature = "Outcome Variable"

var featureColumns = []struct {
	field  string
	column string
}{
	{FieldFever, "Fever"},
	{FieldCough, "Cough"},
	{FieldFatigue, "Fatigue"},
	{FieldDifficultyBreathing, "Difficulty Breathing"},
	{FieldAge, "Age"},
	{FieldGender, "Gender"},
	{FieldBloodPressure, "Blood Pressure"},
	{FieldCholesterolLevel, "Cholesterol Level"},
}

// Prediction is the classifier output mapped onto a disease.
type Prediction struct {
	Class         string
	Disease       types.DiseaseEntry
	Known         bool
	Confidence    float64
	Probabilities []float64
}

// ConfidenceLabel formats the confidence as shown on reports ("87.5%").
func (p Prediction) ConfidenceLabel() string {
	return fmt.Sprintf("%.1f%%", p.Confidence)
}

// Predictor turns submitted form fields into a prediction.
type Predictor struct {
	model   classifier.Model
	mapping *DiseaseMapping
}

// NewPredictor accepts a nil model, in which case every prediction fails
// with ErrModelUnavailable.
func NewPredictor(model classifier.Model, mapping *DiseaseMapping) *Predictor {
	if mapping == nil {
		mapping = DefaultDiseaseMapping()
	}
	return &Predictor{model: model, mapping: mapping}
}

func (p *Predictor) Available() bool {
	return p.model != nil
}

func (p *Predictor) Mapping() *DiseaseMapping {
	return p.mapping
}

func (p *Predictor) Predict(ctx context.Context, fields map[string]string) (Prediction, error) {
	if p.model == nil {
		return Prediction{}, ErrModelUnavailable
	}

	named, err := FeatureRow(fields)
	if err != nil {
		return Prediction{}, err
	}

	names := p.model.FeatureNames()
	row := make([]float64, len(names))
	for i, name := range names {
		value, ok := named[name]
		if !ok {
			return Prediction{}, fmt.Errorf("%w: unknown feature %q", ErrFeatureMismatch, name)
		}
		row[i] = value
	}

	class, err := p.model.Predict(ctx, row)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}
	proba, err := p.model.PredictProba(ctx, row)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict proba: %w", err)
	}

	highest := 0.0
	for _, v := range proba {
		if v > highest {
			highest = v
		}
	}

	classKey := strconv.Itoa(class)
	entry, known := p.mapping.Resolve(classKey)
	return Prediction{
		Class:         classKey,
		Disease:       entry,
		Known:         known,
		Confidence:    math.Round(highest*1000) / 10,
		Probabilities: proba,
	}, nil
}

// FeatureRow coerces the eight numeric form fields into the named feature
// row, placeholder column included. Missing or blank fields count as zero;
// any other non-numeric value is rejected.
func FeatureRow(fields map[string]string) (map[string]float64, error) {
	row := make(map[string]float64, len(featureColumns)+1)
	for _, col := range featureColumns {
		value, err := parseNumber(fields[col.field])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, col.field, err)
		}
		row[col.column] = value
	}
	row[OutcomeFeature] = 0
	return row, nil
}

func parseNumber(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("not a finite number: %q", raw)
	}
	return value, nil
}
