package globalping

import "fmt"

// TransportError reports that the provider could not be reached after the
// full retry budget. Err is the last underlying failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("globalping: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError reports a non-success HTTP response from the provider.
// It is not retried.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("globalping: provider returned %d: %s", e.StatusCode, e.Body)
}

// TimeoutError reports that polling exhausted its attempts without the job
// leaving the in-progress state.
type TimeoutError struct {
	ID       string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("globalping: measurement %s still in progress after %d polls", e.ID, e.Attempts)
}
