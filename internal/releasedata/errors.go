package releasedata

import (
	"errors"
	"fmt"
)

// InputError reports release input that can never be built, no matter how
// often the build is retried.
type InputError struct {
	// Field is a path to the offending value, e.g. "resources[get_user].proxy.backendID"
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err or any error it wraps is an *InputError
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

func inputErr(field, reason string, err error) *InputError {
	return &InputError{Field: field, Reason: reason, Err: err}
}
