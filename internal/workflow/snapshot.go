package workflow

import "github.com/taskmcp/taskmcp/internal/types"

// CompiledFlow is a named ordered sequence of statuses with a precomputed
// position index, so transition checks never re-scan the sequence.
type CompiledFlow struct {
	Name     string
	Sequence []types.Status
	Position map[types.Status]int
}

func compileFlow(name string, sequence []types.Status) *CompiledFlow {
	pos := make(map[types.Status]int, len(sequence))
	for i, s := range sequence {
		pos[s] = i
	}
	return &CompiledFlow{Name: name, Sequence: sequence, Position: pos}
}

// FlowMapping is a compiled flow_mappings entry.
type FlowMapping struct {
	Tags types.TagSet
	Flow *CompiledFlow
}

// EntitySnapshot is the compiled status_progression config for one entity
// kind (tasks, features, or projects).
type EntitySnapshot struct {
	Flows                map[string]*CompiledFlow
	DefaultFlow          *CompiledFlow
	FlowMappings         []FlowMapping
	EmergencyTransitions map[types.Status]bool
	TerminalStatuses     map[types.Status]bool
	// CompletionStatuses is the subset of TerminalStatuses reached by
	// finishing a flow rather than by an emergency transition (e.g.
	// "completed" but not "cancelled"). spec.md §4.2 rule 7's
	// summary/blocker/child-terminal predicates gate entry into this set,
	// not into TerminalStatuses generally — cancelling never requires them.
	CompletionStatuses map[types.Status]bool
}

// ActiveFlow selects the flow for an entity carrying tags, per spec.md
// §4.2's "iterate flow_mappings top-to-bottom; the first entry whose tag set
// is a subset of the entity's tags selects the flow" rule.
func (e *EntitySnapshot) ActiveFlow(tags types.TagSet) (*CompiledFlow, []string) {
	for _, m := range e.FlowMappings {
		if types.TagSet(m.Tags).IsSubsetOf(tags) {
			return m.Flow, m.Tags
		}
	}
	return e.DefaultFlow, nil
}

// Snapshot is the compiled, immutable form of the workflow configuration
// held by the engine between reloads.
type Snapshot struct {
	Tasks      EntitySnapshot
	Features   EntitySnapshot
	Projects   EntitySnapshot
	Validation ValidationConfig
}

// For looks up the compiled EntitySnapshot for an entity kind.
func (s *Snapshot) For(kind types.EntityType) *EntitySnapshot {
	switch kind {
	case types.EntityTask:
		return &s.Tasks
	case types.EntityFeature:
		return &s.Features
	case types.EntityProject:
		return &s.Projects
	default:
		return nil
	}
}

func compileEntity(raw RawEntityConfig) (EntitySnapshot, error) {
	flows := make(map[string]*CompiledFlow, len(raw.Flows))
	for name, seq := range raw.Flows {
		flows[name] = compileFlow(name, toStatusSlice(seq))
	}
	defaultFlow := flows[raw.DefaultFlow]
	if defaultFlow == nil {
		return EntitySnapshot{}, newConfigError("default_flow %q is not declared in flows", raw.DefaultFlow)
	}

	mappings := make([]FlowMapping, 0, len(raw.FlowMappings))
	for _, m := range raw.FlowMappings {
		flow, ok := flows[m.Flow]
		if !ok {
			return EntitySnapshot{}, newConfigError("flow_mappings references undeclared flow %q", m.Flow)
		}
		mappings = append(mappings, FlowMapping{Tags: types.TagSet(m.Tags), Flow: flow})
	}

	emergency := make(map[types.Status]bool, len(raw.EmergencyTransitions))
	for _, s := range raw.EmergencyTransitions {
		emergency[types.Status(s)] = true
	}
	terminal := make(map[types.Status]bool, len(raw.TerminalStatuses))
	for _, s := range raw.TerminalStatuses {
		terminal[types.Status(s)] = true
	}
	completion := make(map[types.Status]bool, len(terminal))
	for s := range terminal {
		if !emergency[s] {
			completion[s] = true
		}
	}

	return EntitySnapshot{
		Flows:                flows,
		DefaultFlow:          defaultFlow,
		FlowMappings:         mappings,
		EmergencyTransitions: emergency,
		TerminalStatuses:     terminal,
		CompletionStatuses:   completion,
	}, nil
}

func compileSnapshot(raw *RawConfig) (*Snapshot, error) {
	tasks, err := compileEntity(raw.StatusProgression.Tasks)
	if err != nil {
		return nil, err
	}
	features, err := compileEntity(raw.StatusProgression.Features)
	if err != nil {
		return nil, err
	}
	projects, err := compileEntity(raw.StatusProgression.Projects)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Tasks:      tasks,
		Features:   features,
		Projects:   projects,
		Validation: raw.StatusValidation,
	}, nil
}
