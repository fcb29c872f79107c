package task

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/resilience"
)

// RetryPolicy converts the shared retry policy to Temporal's. Temporal has
// no jitter knob, so Randomize is not carried over.
func RetryPolicy(p resilience.Policy) *temporal.RetryPolicy {
	d := resilience.DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	if p.MinTimeout <= 0 {
		p.MinTimeout = d.MinTimeout
	}
	if p.MaxTimeout <= 0 {
		p.MaxTimeout = d.MaxTimeout
	}
	return &temporal.RetryPolicy{
		InitialInterval:        p.MinTimeout,
		BackoffCoefficient:     p.Factor,
		MaximumInterval:        p.MaxTimeout,
		MaximumAttempts:        int32(p.MaxAttempts),
		NonRetryableErrorTypes: []string{ErrTypeInput},
	}
}

// activityError marks input errors non-retryable. Other errors pass through
// and are retried by the activity retry policy.
func activityError(err error) error {
	if err == nil {
		return nil
	}
	var ie *model.InputError
	if errors.As(err, &ie) {
		return temporal.NewNonRetryableApplicationError(ie.Error(), ErrTypeInput, err)
	}
	return err
}

// errorMessage extracts the message an activity failed with.
func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}

// IsInputError reports whether a workflow or activity failed on caller input.
func IsInputError(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() == ErrTypeInput {
		return true
	}
	return model.IsInputError(err)
}
