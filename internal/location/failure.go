package location

import "fmt"

// FailureReason classifies why a location fix could not be obtained.
type FailureReason string

const (
	ReasonPermissionDenied    FailureReason = "permission_denied"
	ReasonPositionUnavailable FailureReason = "position_unavailable"
	ReasonTimeout             FailureReason = "timeout"
	ReasonUnsupported         FailureReason = "unsupported"
)

// Failure is the error returned for any failed fix acquisition. Permission
// denial is the only reason treated as a deliberate user refusal; every
// other reason is a soft failure callers may degrade around.
type Failure struct {
	Reason FailureReason
	Detail string
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("location failure: %s", f.Reason)
	}
	return fmt.Sprintf("location failure: %s: %s", f.Reason, f.Detail)
}

// Soft reports whether the failure allows the caller to proceed without
// location data.
func (f *Failure) Soft() bool {
	return f.Reason != ReasonPermissionDenied
}

// NewFailure builds a Failure with the given reason and optional detail.
func NewFailure(reason FailureReason, detail string) *Failure {
	return &Failure{Reason: reason, Detail: detail}
}

// AsFailure extracts a *Failure from err, or wraps an arbitrary error as a
// position_unavailable failure so callers always see a classified reason.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Failure); ok {
		return f
	}
	return &Failure{Reason: ReasonPositionUnavailable, Detail: err.Error()}
}
