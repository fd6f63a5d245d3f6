// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/client layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (expected version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrPreconditionRequired indicates a conditional write was sent without a version.
	ErrPreconditionRequired = errors.New("precondition required")

	// ErrUnauthorized indicates failed authentication (missing, expired or rejected token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated principal lacking the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., ISBN taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates rejected input; details are carried by *Error.
	ErrValidation = errors.New("validation failed")

	// ErrMalformedToken indicates a bearer token that cannot be decoded structurally.
	ErrMalformedToken = errors.New("malformed token")

	// ErrLoginFailed indicates the identity provider refused the credentials.
	ErrLoginFailed = errors.New("login failed")

	// ErrUnreachable indicates the remote side could not be contacted.
	ErrUnreachable = errors.New("server unreachable")

	// ErrSuperseded indicates a search result discarded because a newer search was issued.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrNoSession indicates an operation that requires a stored session found none.
	ErrNoSession = errors.New("no session")

	// ErrRouteNotFound indicates a path no route resolves to (or one hidden by a role gate).
	ErrRouteNotFound = errors.New("route not found")
)
