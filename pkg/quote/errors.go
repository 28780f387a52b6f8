package quote

import (
	"errors"
	"fmt"

	"swap-quoter/pkg/client"
	"swap-quoter/pkg/router"
)

// Kind classifies a quote failure
type Kind string

const (
	// KindValidation: the request was rejected before any strategy ran.
	KindValidation Kind = "validation"
	// KindTransport: no response was obtained from the routing service.
	// These are the only failures the retry policy acts on.
	KindTransport Kind = "transport"
	// KindApplication: the routing service answered with an error. Terminal.
	KindApplication Kind = "application"
	// KindLocal: the client-side router failed. Terminal.
	KindLocal Kind = "local"
)

// Strategy names the code path that produced a result
type Strategy string

const (
	StrategyRemote Strategy = "remote"
	StrategyLocal  Strategy = "local"
)

// QuoteError is the single error type surfaced by the resolver.
type QuoteError struct {
	Kind     Kind
	Strategy Strategy
	Attempts int
	Err      error
}

func (e *QuoteError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s quote failed (%s, %d attempts): %v", e.Strategy, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s quote failed (%s): %v", e.Strategy, e.Kind, e.Err)
}

func (e *QuoteError) Unwrap() error { return e.Err }

// APIError returns the routing service's error, if that is what failed.
func (e *QuoteError) APIError() (*client.APIError, bool) {
	var apiErr *client.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNoRoute reports whether err means no route exists for the pair, as
// opposed to the service being unavailable.
func IsNoRoute(err error) bool {
	if errors.Is(err, router.ErrNoRoute) {
		return true
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == "NO_ROUTE"
	}
	return false
}
