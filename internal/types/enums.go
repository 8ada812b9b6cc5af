package types

import "strings"

// Status is a workflow-state value. Unlike Priority or EntityType, the set
// of valid statuses is not fixed in code: it is whatever the active
// workflow.Snapshot declares for the entity's kind. Status is kept as a
// plain string, stored as given, so the core never has to special-case a
// status it wasn't configured for.
type Status string

// Priority is a fixed three-value enum.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ParsePriority parses a case-insensitive priority token.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PriorityHigh):
		return PriorityHigh, true
	case string(PriorityMedium):
		return PriorityMedium, true
	case string(PriorityLow):
		return PriorityLow, true
	default:
		return "", false
	}
}

// Rank orders priorities for sorting: HIGH first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// EntityType names the kind of entity a Section is attached to.
type EntityType string

const (
	EntityProject  EntityType = "PROJECT"
	EntityFeature  EntityType = "FEATURE"
	EntityTask     EntityType = "TASK"
	EntityTemplate EntityType = "TEMPLATE"
)

// ParseEntityType parses a case-insensitive entity type token.
func ParseEntityType(s string) (EntityType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(EntityProject):
		return EntityProject, true
	case string(EntityFeature):
		return EntityFeature, true
	case string(EntityTask):
		return EntityTask, true
	case string(EntityTemplate):
		return EntityTemplate, true
	default:
		return "", false
	}
}

// ContentFormat determines how a Section's content is rendered to Markdown.
type ContentFormat string

const (
	FormatMarkdown  ContentFormat = "MARKDOWN"
	FormatPlainText ContentFormat = "PLAIN_TEXT"
	FormatJSON      ContentFormat = "JSON"
	FormatCode      ContentFormat = "CODE"
)

// ParseContentFormat parses a case-insensitive content format token.
func ParseContentFormat(s string) (ContentFormat, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(FormatMarkdown):
		return FormatMarkdown, true
	case string(FormatPlainText):
		return FormatPlainText, true
	case string(FormatJSON):
		return FormatJSON, true
	case string(FormatCode):
		return FormatCode, true
	default:
		return "", false
	}
}

// DependencyType names the kind of directed edge between two Tasks.
type DependencyType string

const (
	DepBlocks      DependencyType = "BLOCKS"
	DepRelatesTo   DependencyType = "RELATES_TO"
	DepIsBlockedBy DependencyType = "IS_BLOCKED_BY"
)

// ParseDependencyType parses a case-insensitive dependency type token.
func ParseDependencyType(s string) (DependencyType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(DepBlocks):
		return DepBlocks, true
	case string(DepRelatesTo):
		return DepRelatesTo, true
	case string(DepIsBlockedBy):
		return DepIsBlockedBy, true
	default:
		return "", false
	}
}

// TemplateApplyMode controls duplicate-title handling during template apply.
type TemplateApplyMode string

const (
	ApplySkipDuplicate TemplateApplyMode = "skip-duplicate"
	ApplyOverwrite     TemplateApplyMode = "overwrite"
	ApplyError         TemplateApplyMode = "error"
)

// ParseTemplateApplyMode parses a case-insensitive apply mode token,
// defaulting to ApplySkipDuplicate for an empty string.
func ParseTemplateApplyMode(s string) (TemplateApplyMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ApplySkipDuplicate):
		return ApplySkipDuplicate, true
	case string(ApplyOverwrite):
		return ApplyOverwrite, true
	case string(ApplyError):
		return ApplyError, true
	default:
		return "", false
	}
}
