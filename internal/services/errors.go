package services

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountDisabled      = errors.New("account disabled")
	ErrInvalidInput         = errors.New("invalid input")
	ErrMissingFields        = errors.New("missing required fields")
	ErrModelUnavailable     = errors.New("diagnosis model unavailable")
	ErrFeatureMismatch      = errors.New("model feature schema mismatch")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrDoctorExists         = errors.New("doctor already exists")
	ErrResetRequestRejected = errors.New("password reset request rejected")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
	ErrPasswordMismatch     = errors.New("passwords do not match")
	ErrServiceExists        = errors.New("service already exists")
	ErrServiceNotFound      = errors.New("service not found")
	ErrRecordNotFound       = errors.New("diagnosis record not found")
)
