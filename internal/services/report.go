package services

import (
	"time"

	"github.com/diagnoclinic/apiserver/types"
)

// ReportDateLayout is the human-readable date printed on reports.
const ReportDateLayout = "02/01/2006 15:04"

// Form field names of the patient identity inputs.
const (
	FieldLastName  = "LastName"
	FieldFirstName = "FirstName"
	FieldCNE       = "CNE"
)

// ReportInput is the patient part of a diagnosis submission.
type ReportInput struct {
	LastName  string
	FirstName string
	CNE       string
	Age       string

	Gender              float64
	Fever               float64
	Cough               float64
	Fatigue             float64
	DifficultyBreathing float64
}

// ReportInputFromFields reads the patient part of the form. Numeric fields
// follow the same coercion rules as FeatureRow.
func ReportInputFromFields(fields map[string]string) (ReportInput, error) {
	row, err := FeatureRow(fields)
	if err != nil {
		return ReportInput{}, err
	}
	return ReportInput{
		LastName:            fields[FieldLastName],
		FirstName:           fields[FieldFirstName],
		CNE:                 fields[FieldCNE],
		Age:                 fields[FieldAge],
		Gender:              row["Gender"],
		Fever:               row["Fever"],
		Cough:               row["Cough"],
		Fatigue:             row["Fatigue"],
		DifficultyBreathing: row["Difficulty Breathing"],
	}, nil
}

// BuildReport assembles the result record of one diagnosis. Service and
// exams come from the mapping entry, not from the raw prediction. The
// record ID is left empty for the caller to assign.
func BuildReport(input ReportInput, pred Prediction, entry types.DiseaseEntry, doctor types.Physician, now time.Time) types.DiagnosisRecord {
	gender := "Homme"
	if input.Gender == 1 {
		gender = "Femme"
	}

	exams := append([]string(nil), entry.Exams...)
	if len(exams) == 0 {
		exams = append(exams, DefaultExams...)
	}
	service := entry.Service
	if service == "" {
		service = DefaultService
	}

	return types.DiagnosisRecord{
		Patient: types.PatientInfo{
			LastName:  input.LastName,
			FirstName: input.FirstName,
			CNE:       input.CNE,
			Age:       input.Age,
			Gender:    gender,
		},
		Symptoms: types.Symptoms{
			Fever:     yesNo(input.Fever),
			Cough:     yesNo(input.Cough),
			Fatigue:   yesNo(input.Fatigue),
			Breathing: yesNo(input.DifficultyBreathing),
		},
		Diagnostic: types.Diagnostic{
			Disease:    entry.Name,
			Confidence: pred.ConfidenceLabel(),
			Service:    service,
			Exams:      exams,
		},
		Date:      now.Format(ReportDateLayout),
		Timestamp: now.UTC(),
		Physician: doctor,
	}
}

func yesNo(flag float64) string {
	if flag == 1 {
		return "Oui"
	}
	return "Non"
}
