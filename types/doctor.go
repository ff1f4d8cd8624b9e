package types

import "strings"

// RoleAdmin is the legacy role value that grants administrator rights.
const RoleAdmin = "admin"

// Doctor represents a physician account in the directory.
// The directory is keyed by Username; the key is not repeated inside
// the persisted record.
type Doctor struct {
	// Username is the internal storage key (e.g. "dr.martin").
	Username string `json:"-"`

	// ID is the short public identifier handed out to physicians
	// (e.g. "DR3FA9C1"). It maps one-to-one onto Username.
	ID string `json:"id,omitempty"`

	// PasswordHash stores the hashed password. Older directory files may
	// still hold werkzeug hashes or plaintext awaiting migration.
	PasswordHash string `json:"password"`

	// Name is the display name (e.g. "Dr. Martin").
	Name string `json:"nom"`

	// Specialty is the medical specialty shown on reports.
	Specialty string `json:"specialite"`

	// Email is used to verify password recovery requests.
	Email string `json:"email,omitempty"`

	// Active is false when an administrator has disabled the account.
	// A missing value in the file means active.
	Active *bool `json:"is_active,omitempty"`

	// IsAdmin grants access to the administration routes.
	IsAdmin bool `json:"is_admin,omitempty"`

	// Role is the legacy role field; "admin" is equivalent to IsAdmin.
	Role string `json:"role,omitempty"`

	// Ordinal is the sequential registration number of the physician.
	Ordinal int `json:"numero_ordre,omitempty"`

	// Signature is the text block printed under reports.
	Signature string `json:"signature,omitempty"`

	// CreatedAt is the ISO-8601 creation time for accounts added at runtime.
	CreatedAt string `json:"created_at,omitempty"`
}

// IsActive reports whether the account may log in.
func (d Doctor) IsActive() bool {
	return d.Active == nil || *d.Active
}

// SetActive stores the active flag explicitly.
func (d *Doctor) SetActive(active bool) {
	d.Active = &active
}

// Admin reports whether the doctor holds administrator rights, from
// either the boolean flag or the legacy role field.
func (d Doctor) Admin() bool {
	return d.IsAdmin || strings.EqualFold(strings.TrimSpace(d.Role), RoleAdmin)
}

// View returns the doctor without credentials, for dashboards and APIs.
func (d Doctor) View() DoctorView {
	return DoctorView{
		Username:  d.Username,
		ID:        d.ID,
		Name:      d.Name,
		Specialty: d.Specialty,
		Email:     d.Email,
		Active:    d.IsActive(),
		Admin:     d.Admin(),
		Ordinal:   d.Ordinal,
		Signature: d.Signature,
	}
}

// DoctorView is the credential-free projection of a Doctor.
type DoctorView struct {
	Username  string `json:"username"`
	ID        string `json:"id"`
	Name      string `json:"nom"`
	Specialty string `json:"specialite"`
	Email     string `json:"email,omitempty"`
	Active    bool   `json:"is_active"`
	Admin     bool   `json:"is_admin"`
	Ordinal   int    `json:"numero_ordre"`
	Signature string `json:"signature,omitempty"`
}
