package quota

import "errors"

// DeniedError carries a terminal gate denial across service boundaries. It is
// an expected outcome, not a failure: handlers map it to HTTP 402.
type DeniedError struct {
	Reason DenyReason
}

func (e DeniedError) Error() string {
	return string(e.Reason)
}

func IsDenied(err error) (*DeniedError, bool) {
	var denied DeniedError
	if errors.As(err, &denied) {
		return &denied, true
	}
	return nil, false
}
