package job

import (
	"fmt"
	"sort"
)

// Trigger is a tagged variant: a Job is triggered by exactly one of a
// pull request or a ref push, never both, never neither. Go has no
// native sum type, so the zero value is deliberately invalid and the
// two constructors below are the only supported way to build one.
type Trigger struct {
	PR  *PullRequestInfo
	Ref string
}

// NewPRTrigger builds a Trigger for a pull-request event. Labels are
// sorted ascending so label-presence checks don't depend on the order
// GitHub happened to report them in.
func NewPRTrigger(pr PullRequestInfo) Trigger {
	if len(pr.Labels) > 1 {
		sorted := make([]string, len(pr.Labels))
		copy(sorted, pr.Labels)
		sort.Strings(sorted)
		pr.Labels = sorted
	}
	return Trigger{PR: &pr}
}

// NewRefTrigger builds a Trigger for a branch/tag push event.
func NewRefTrigger(ref string) Trigger {
	if ref == "" {
		panic("job: NewRefTrigger requires a non-empty ref")
	}
	return Trigger{Ref: ref}
}

// Validate reports an error if the Trigger is neither PR nor Ref, or is
// both — the invariant spec.md §3 requires callers to uphold.
func (t Trigger) Validate() error {
	hasPR := t.PR != nil
	hasRef := t.Ref != ""
	switch {
	case hasPR && hasRef:
		return fmt.Errorf("job: trigger has both PR #%d and ref %q", t.PR.Number, t.Ref)
	case !hasPR && !hasRef:
		return fmt.Errorf("job: trigger has neither PR nor ref")
	default:
		return nil
	}
}
