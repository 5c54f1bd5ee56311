package access

import "errors"

var (
	// ErrUnauthorized means the user has no effective role on the entity
	// at all. Distinct from ErrForbidden so callers can tell "not yours"
	// from "yours, but read-only".
	ErrUnauthorized = errors.New("no access to entity")

	// ErrForbidden means the user has a role on the entity, but not one
	// of the roles the operation requires.
	ErrForbidden = errors.New("insufficient role for operation")
)
