package transcriber

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse means the service answered 2xx with a body that has no
// recognized-text field.
var ErrMalformedResponse = errors.New("malformed transcription response")

// StatusError is returned by adapters when the service answers with a
// non-success HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transcription service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("transcription service returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status suggests a later segment may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

func IsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
