package workflow

import (
	"fmt"
	"sync/atomic"

	"github.com/taskmcp/taskmcp/internal/types"
)

// Engine holds the compiled workflow configuration and validates status
// transitions against it. The configuration is read-only after load;
// Reload publishes a new immutable Snapshot atomically, per spec.md §5 —
// in-flight transition checks never observe a half-updated config.
type Engine struct {
	loader   *Loader
	snapshot atomic.Pointer[Snapshot]
}

// NewEngine builds an Engine and performs the initial Load.
func NewEngine(loader *Loader) (*Engine, error) {
	eng := &Engine{loader: loader}
	snap, err := loader.Load()
	if err != nil {
		return nil, err
	}
	eng.snapshot.Store(snap)
	return eng, nil
}

// Snapshot returns the currently active compiled configuration.
func (eng *Engine) Snapshot() *Snapshot {
	return eng.snapshot.Load()
}

// Reload re-reads the workflow declaration and atomically swaps the active
// snapshot. The previous snapshot is left untouched for any check already
// in flight against it.
func (eng *Engine) Reload() error {
	snap, err := eng.loader.Load()
	if err != nil {
		return err
	}
	eng.snapshot.Store(snap)
	return nil
}

// TransitionCheck is the successful result of a flow-position check: the
// active flow that was consulted and which flow_mappings tags (if any)
// selected it. Prerequisite evaluation (rule 7) is a separate step since it
// requires store access; ValidateTransition only covers rules 1-6.
type TransitionCheck struct {
	Flow        *CompiledFlow
	MatchedTags []string
}

// ValidateTransition checks (current, proposed) for an entity of kind
// carrying tags against the active flow, implementing spec.md §4.2's rules
// 1 through 6. Rule 7 (prerequisites) is evaluated separately by
// EvaluateTaskPrerequisites / EvaluateFeaturePrerequisites since it needs
// store access that the engine itself does not have.
func (eng *Engine) ValidateTransition(kind types.EntityType, tags types.TagSet, current, proposed types.Status) (*TransitionCheck, error) {
	snap := eng.Snapshot()
	entitySnap := snap.For(kind)
	if entitySnap == nil {
		return nil, fmt.Errorf("workflow: unknown entity kind %q", kind)
	}

	flow, matchedTags := entitySnap.ActiveFlow(tags)
	check := &TransitionCheck{Flow: flow, MatchedTags: matchedTags}

	// Rule 1: a terminal destination always proceeds (subject to
	// prerequisites, evaluated by the caller after this check).
	if entitySnap.TerminalStatuses[proposed] {
		return check, nil
	}
	// Rule 2: an emergency transition bypasses flow-position rules entirely
	// when the policy allows it.
	if entitySnap.EmergencyTransitions[proposed] && snap.Validation.AllowEmergency {
		return check, nil
	}
	// Rule 3: nothing leaves a terminal status except via rules 1-2.
	if entitySnap.TerminalStatuses[current] {
		return nil, &TransitionError{
			Kind:    ErrTerminal,
			Message: fmt.Sprintf("%s is a terminal status in flow %q", current, flow.Name),
		}
	}
	// Rule 4: both ends must be positioned in the active flow.
	curPos, curOK := flow.Position[current]
	propPos, propOK := flow.Position[proposed]
	if !curOK || !propOK {
		return nil, &TransitionError{
			Kind:    ErrNotInFlow,
			Message: fmt.Sprintf("%s -> %s is not positioned in active flow %q", current, proposed, flow.Name),
		}
	}
	// Rule 5: backward moves require explicit policy opt-in.
	if propPos < curPos {
		if !snap.Validation.AllowBackward {
			return nil, &TransitionError{
				Kind:    ErrBackwardBlocked,
				Message: fmt.Sprintf("backward transition from %s to %s is not allowed", current, proposed),
			}
		}
		return check, nil
	}
	// Rule 6: forward moves may not skip an intermediate status when
	// sequential enforcement is on.
	if propPos > curPos+1 && snap.Validation.EnforceSequential {
		return nil, &TransitionError{
			Kind:                 ErrSkipBlocked,
			Message:              fmt.Sprintf("cannot skip from %s directly to %s", current, proposed),
			RequiredIntermediate: flow.Sequence[curPos+1],
		}
	}
	return check, nil
}
