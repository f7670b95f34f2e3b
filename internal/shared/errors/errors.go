package errors

import "errors"

// Domain errors
var (
	// Target errors
	ErrInvalidDomain = errors.New("invalid domain")
	ErrEmptyTarget   = errors.New("target cannot be empty")

	// Resolution errors
	ErrNXDomain = errors.New("domain does not exist")

	// Estimator errors
	ErrUnknownIndustry  = errors.New("unknown industry")
	ErrInvalidScore     = errors.New("score must be between 0 and 100")
	ErrInvalidHeadcount = errors.New("employee count cannot be negative")

	// Job errors
	ErrJobNotFound = errors.New("job not found")

	// Validation errors
	ErrValidation = errors.New("validation error")
)
