package types

import "time"

// DiagnosisRecord is the flat result of one diagnosis submission.
// It is rendered on screen, exported as PDF, and prepended to the
// patient history. Records are never mutated once created.
type DiagnosisRecord struct {
	// ID uniquely identifies the record in the history.
	ID string `json:"id"`

	// Patient holds the identity fields typed by the physician.
	Patient PatientInfo `json:"patient"`

	// Symptoms holds the boolean symptom flags rendered as "Oui"/"Non".
	Symptoms Symptoms `json:"symptoms"`

	// Diagnostic is the predicted disease with its routing.
	Diagnostic Diagnostic `json:"diagnostic"`

	// Date is the human-readable submission time (dd/mm/yyyy hh:mm).
	Date string `json:"date"`

	// Timestamp is the machine-readable submission time.
	Timestamp time.Time `json:"timestamp"`

	// Physician is the attending doctor.
	Physician Physician `json:"medecin"`
}

// PatientInfo identifies the patient a diagnosis was made for.
type PatientInfo struct {
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	CNE       string `json:"cne"`
	Age       string `json:"age"`
	Gender    string `json:"genre"`
}

// Symptoms lists the symptom flags submitted with the vitals.
type Symptoms struct {
	Fever     string `json:"fievre"`
	Cough     string `json:"toux"`
	Fatigue   string `json:"fatigue"`
	Breathing string `json:"respiration"`
}

// Diagnostic is the classifier outcome mapped to a disease.
type Diagnostic struct {
	// Disease is the display name from the disease mapping.
	Disease string `json:"maladie"`

	// Confidence is the maximum class posterior formatted as "87.5%".
	Confidence string `json:"confiance"`

	// Service is the hospital service the patient should be routed to.
	Service string `json:"service"`

	// Exams are the recommended follow-up examinations.
	Exams []string `json:"examens"`
}

// Physician identifies the doctor who ran the diagnosis.
type Physician struct {
	Username  string `json:"username,omitempty"`
	Name      string `json:"nom"`
	Specialty string `json:"specialite"`
}

// DiseaseEntry is one row of the static disease mapping table.
type DiseaseEntry struct {
	// Class is the classifier output index as a string ("0", "1", ...).
	Class string `json:"class"`

	// Name is the human-readable disease name.
	Name string `json:"name"`

	// Service is the recommended hospital service.
	Service string `json:"service"`

	// Exams is the list of recommended examinations.
	Exams []string `json:"examens"`
}
