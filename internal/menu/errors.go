package menu

import "fmt"

// FetchReason classifies why a menu could not be fetched.
type FetchReason string

const (
	ReasonNoMenuURL        FetchReason = "no-menu-url"
	ReasonHTTP             FetchReason = "http"
	ReasonUnsupportedType  FetchReason = "unsupported-content-type"
	ReasonSelectorNotFound FetchReason = "selector-not-found"
)

// FetchError reports menu content that is unavailable or unusable.
type FetchError struct {
	Reason FetchReason
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch menu: %s", e.Reason)
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a failed menu extraction. Any partial output is discarded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse menu: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
