package llm

import "fmt"

// APICallError reports a failed call to the model provider.
type APICallError struct {
	Model     string
	Message   string
	Retryable bool
	Cause     error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm call to %s failed: %s: %v", e.Model, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm call to %s failed: %s", e.Model, e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}
