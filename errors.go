package apitest

import "errors"

// Spec errors
var (
	// ErrSpecValidation indicates the run spec is malformed or missing required fields.
	// This error is fatal: no request is sent against a target with an invalid spec.
	ErrSpecValidation = errors.New("spec validation failed")

	// ErrEndpointNotFound indicates a referenced endpoint is not defined in the spec
	ErrEndpointNotFound = errors.New("endpoint not found")
)

// State capture errors
var (
	// ErrStateCapture indicates the balance query failed or returned a malformed body.
	// A capture failure aborts the current phase, not the whole run.
	ErrStateCapture = errors.New("state capture failed")
)

// Setup errors
var (
	// ErrTargetReset indicates the target could not be reset before the suite started
	ErrTargetReset = errors.New("target reset failed")
)

// Config errors
var (
	// ErrInvalidConfig indicates the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
