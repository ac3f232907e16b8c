package usecase

import "errors"

var (
	// ErrValidation covers malformed subjects and missing name or email.
	ErrValidation = errors.New("validation failed")
	// ErrProvisioning covers store inserts that returned nothing or lost a
	// uniqueness race without a readable winner.
	ErrProvisioning = errors.New("profile provisioning failed")
	// ErrSession covers an absent session or an identity provider error at callback entry.
	ErrSession = errors.New("invalid login session")
)
