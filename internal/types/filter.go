package types

import "strings"

// StatusFilter constrains a query to include/exclude statuses. Empty lists
// on a side mean "don't constrain on that side" (spec.md §4.1).
type StatusFilter struct {
	Include []Status
	Exclude []Status
}

// Matches reports whether status passes the filter.
func (f StatusFilter) Matches(status Status) bool {
	if len(f.Include) > 0 {
		found := false
		for _, s := range f.Include {
			if s == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, s := range f.Exclude {
		if s == status {
			return false
		}
	}
	return true
}

// PriorityFilter constrains a query to include/exclude priorities.
type PriorityFilter struct {
	Include []Priority
	Exclude []Priority
}

func (f PriorityFilter) Matches(p Priority) bool {
	if len(f.Include) > 0 {
		found := false
		for _, v := range f.Include {
			if v == p {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, v := range f.Exclude {
		if v == p {
			return false
		}
	}
	return true
}

// ParseStatusFilter parses a comma-joined filter string where a leading "!"
// on a token means "exclude". Mixing include and exclude tokens in one
// string is supported, e.g. "a,!b,c" -> include={a,c}, exclude={b}.
func ParseStatusFilter(s string) StatusFilter {
	inc, exc := parseFilterTokens(s)
	return StatusFilter{Include: toStatuses(inc), Exclude: toStatuses(exc)}
}

// ParsePriorityFilter parses the same "a,!b,c" syntax for priorities.
func ParsePriorityFilter(s string) PriorityFilter {
	inc, exc := parseFilterTokens(s)
	return PriorityFilter{Include: toPriorities(inc), Exclude: toPriorities(exc)}
}

func parseFilterTokens(s string) (include, exclude []string) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.HasPrefix(tok, "!") {
			tok = strings.TrimPrefix(tok, "!")
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			exclude = append(exclude, tok)
		} else {
			include = append(include, tok)
		}
	}
	return include, exclude
}

func toStatuses(ss []string) []Status {
	if ss == nil {
		return nil
	}
	out := make([]Status, len(ss))
	for i, s := range ss {
		out[i] = Status(s)
	}
	return out
}

func toPriorities(ss []string) []Priority {
	if ss == nil {
		return nil
	}
	out := make([]Priority, 0, len(ss))
	for _, s := range ss {
		if p, ok := ParsePriority(s); ok {
			out = append(out, p)
		}
	}
	return out
}

// EmitStatusFilter renders a StatusFilter back to "a,!b,c" syntax, the
// inverse of ParseStatusFilter (round-trip property in spec.md §8).
func EmitStatusFilter(f StatusFilter) string {
	var parts []string
	for _, s := range f.Include {
		parts = append(parts, string(s))
	}
	for _, s := range f.Exclude {
		parts = append(parts, "!"+string(s))
	}
	return strings.Join(parts, ",")
}

// EntityFilter is the composite filter accepted by the store's filtered
// finders (spec.md §4.1).
type EntityFilter struct {
	Status        StatusFilter
	Priority      PriorityFilter
	RequiredTags  []string // AND across tags
	TextQuery     string   // case-insensitive substring on name/title/summary/description
	ProjectID     *ID
	FeatureID     *ID
	Limit         int
}
