package workflow

import "github.com/taskmcp/taskmcp/internal/types"

// RecommendationKind is the discriminant of a next-status recommendation.
type RecommendationKind string

const (
	RecommendationReady    RecommendationKind = "Ready"
	RecommendationBlocked  RecommendationKind = "Blocked"
	RecommendationTerminal RecommendationKind = "Terminal"
)

// Recommendation is the next-status recommendation spec.md §4.2 defines as
// a pure function of (entity, active flow, current status, prerequisites):
// Ready{recommendedStatus,flowSequence,position,matchedTags,reason},
// Blocked{currentStatus,blockers,flowSequence,position}, or
// Terminal{terminalStatus,reason}.
type Recommendation struct {
	Kind              RecommendationKind
	CurrentStatus     types.Status
	RecommendedStatus types.Status
	FlowSequence      []types.Status
	Position          int
	MatchedTags       []string
	Reason            string
	Blockers          []string
}

// Recommend computes the next-status recommendation for an entity currently
// at current, carrying tags, under the active flow selected for kind.
// prerequisiteBlockers should be the result of evaluating rule 7 for the
// candidate next status (via EvaluateTaskPrerequisites /
// EvaluateFeaturePrerequisites); pass nil when the entity has no tasks to
// check or prerequisite validation is disabled.
func (eng *Engine) Recommend(kind types.EntityType, tags types.TagSet, current types.Status, prerequisiteBlockers []string) *Recommendation {
	snap := eng.Snapshot()
	entitySnap := snap.For(kind)
	if entitySnap == nil {
		return &Recommendation{Kind: RecommendationBlocked, CurrentStatus: current, Reason: "unknown entity kind"}
	}
	flow, matchedTags := entitySnap.ActiveFlow(tags)

	if entitySnap.TerminalStatuses[current] {
		return &Recommendation{
			Kind:          RecommendationTerminal,
			CurrentStatus: current,
			Reason:        "already in a terminal status",
		}
	}

	pos, ok := flow.Position[current]
	if !ok {
		return &Recommendation{
			Kind:          RecommendationBlocked,
			CurrentStatus: current,
			FlowSequence:  flow.Sequence,
			Blockers:      []string{"current status is not positioned in the active flow"},
		}
	}

	if pos+1 >= len(flow.Sequence) {
		return &Recommendation{
			Kind:          RecommendationTerminal,
			CurrentStatus: current,
			Reason:        "at the end of the active flow",
		}
	}

	next := flow.Sequence[pos+1]
	if len(prerequisiteBlockers) > 0 {
		return &Recommendation{
			Kind:          RecommendationBlocked,
			CurrentStatus: current,
			FlowSequence:  flow.Sequence,
			Position:      pos,
			Blockers:      prerequisiteBlockers,
		}
	}

	return &Recommendation{
		Kind:              RecommendationReady,
		CurrentStatus:     current,
		RecommendedStatus: next,
		FlowSequence:      flow.Sequence,
		Position:          pos,
		MatchedTags:       matchedTags,
		Reason:            "next status in active flow " + flow.Name,
	}
}
