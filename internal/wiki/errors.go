package wiki

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrFetch matches any *FetchError.
	ErrFetch = errors.New("wiki: fetch failed")
	// ErrDecode matches any *DecodeError.
	ErrDecode = errors.New("wiki: decode failed")
)

// FetchError reports a failed request to the source API: a transport error
// or a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("wiki: fetch %s: status %d", redactURL(e.URL), e.StatusCode)
	}
	// *url.Error repeats the full request URL; report only its cause.
	cause := e.Err
	var ue *url.Error
	if errors.As(cause, &ue) {
		cause = ue.Err
	}
	return fmt.Sprintf("wiki: fetch %s: %v", redactURL(e.URL), cause)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// DecodeError reports a response that is not the expected
// {"parse":{"text":{"*": ...}}} document.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wiki: decode: %s: %v", e.Reason, e.Err)
	}
	return "wiki: decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
