package domain

import (
	"errors"
	"fmt"
)

var (
	// business outcomes, surfaced to callers as BusinessError categories
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")

	// remote reference outcomes
	ErrReferenceNotFound = errors.New("referenced entity not found")
	ErrTimeout           = errors.New("remote dependency timed out")
	ErrTransport         = errors.New("remote dependency unavailable")

	// persistence outcomes
	ErrProfileNotFound  = errors.New("dietary profile not found")
	ErrDuplicateProfile = errors.New("dietary profile for athlete already exists")

	ErrInvalidData = errors.New("invalid data provided for dietary profile operations")
	ErrUnhandled   = errors.New("unexpected error")
)

// Category classifies a business failure.
type Category string

const (
	CategoryNotFound           Category = "NOT_FOUND"
	CategoryPreconditionFailed Category = "PRECONDITION_FAILED"
)

// BusinessError is a failure the caller can act on. Message names the
// offending identifier.
type BusinessError struct {
	Category Category
	Message  string
	Cause    error
}

func (e *BusinessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return string(e.Category) + ": " + e.Message
}

func (e *BusinessError) Unwrap() error { return e.Cause }

// Is matches ErrNotFound and ErrPreconditionFailed by category.
func (e *BusinessError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Category == CategoryNotFound
	case ErrPreconditionFailed:
		return e.Category == CategoryPreconditionFailed
	}
	return false
}

func notFound(cause error, format string, args ...any) *BusinessError {
	return &BusinessError{Category: CategoryNotFound, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func preconditionFailed(cause error, format string, args ...any) *BusinessError {
	return &BusinessError{Category: CategoryPreconditionFailed, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AsBusinessError unwraps err into a *BusinessError, if there is one.
func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
