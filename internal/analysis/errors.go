package analysis

import "fmt"

// ConfigurationError is returned when the gateway has no credential to call
// the completion endpoint with.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "analysis gateway not configured: " + e.Reason
}

// UpstreamError is returned when the completion endpoint could not be reached
// or answered with a non-success status. Status is 0 when no response arrived.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("analysis upstream unreachable: %v", e.Err)
	}
	return fmt.Sprintf("analysis upstream error %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is returned when the endpoint answered successfully
// but the payload does not hold a usable analysis.
type MalformedResponseError struct {
	Content string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("invalid response format from analysis upstream: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
