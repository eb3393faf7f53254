package models

import "errors"

var (
	// ErrGenerationFailure means no scenario could be built from the catalog and pools
	ErrGenerationFailure = errors.New("scenario generation failed")
	// ErrExternalCall wraps persona and evaluator failures, timeouts included
	ErrExternalCall = errors.New("external call failed")
	// ErrInvalidState is returned when an operation does not fit the session lifecycle
	ErrInvalidState = errors.New("invalid session state")
	// ErrMalformedEvaluation means no JSON object could be found in the evaluator output
	ErrMalformedEvaluation = errors.New("malformed evaluation")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
