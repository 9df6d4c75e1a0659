package rbac

import (
	"errors"
	"flag"
	"fmt"
)

// errForbidden is the only text a caller ever sees for a denial. It is
// intentionally vague: role mismatch, cross-organization access, and
// collaborator failures must be indistinguishable from the outside.
const errForbidden = "rbac: access denied"

// ForbiddenError reports a denied access decision. The internal error and
// decision inputs are kept for logging and must never be echoed to the
// client.
type ForbiddenError struct {
	internal error

	userID       string
	resourceType string
	resourceID   string
}

// Forbidden creates a denial error carrying the internal reason for log
// output only.
func Forbidden(internal error, userID, resourceType, resourceID string) *ForbiddenError {
	return &ForbiddenError{
		internal:     internal,
		userID:       userID,
		resourceType: resourceType,
		resourceID:   resourceID,
	}
}

func (e *ForbiddenError) Error() string {
	if flag.Lookup("test.v") != nil {
		return e.longError()
	}
	return errForbidden
}

func (e *ForbiddenError) longError() string {
	return fmt.Sprintf("%s: (user: %s), (resource: %s/%s), (internal: %v)",
		errForbidden, e.userID, e.resourceType, e.resourceID, e.internal)
}

// Internal returns the hidden reason for logging.
func (e *ForbiddenError) Internal() error {
	return e.internal
}

func (e *ForbiddenError) Unwrap() error {
	return e.internal
}

// IsForbidden is equivalent to errors.As against *ForbiddenError.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}
