package workflow

import (
	"fmt"

	"github.com/taskmcp/taskmcp/internal/types"
)

// TransitionErrorKind classifies why a status transition was rejected, per
// spec.md §4.2's seven-rule validation.
type TransitionErrorKind string

const (
	ErrTerminal           TransitionErrorKind = "Terminal"
	ErrNotInFlow          TransitionErrorKind = "NotInFlow"
	ErrBackwardBlocked    TransitionErrorKind = "BackwardBlocked"
	ErrSkipBlocked        TransitionErrorKind = "SkipBlocked"
	ErrPrerequisiteFailed TransitionErrorKind = "PrerequisiteFailed"
)

// TransitionError is the error half of a transition check, naming concrete
// blockers where the rule produces them (SkipBlocked's required
// intermediate, PrerequisiteFailed's blocker list).
type TransitionError struct {
	Kind                 TransitionErrorKind
	Message              string
	RequiredIntermediate types.Status
	Blockers             []string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
