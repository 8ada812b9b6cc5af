package export

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taskmcp/taskmcp/internal/types"
)

// codeLanguageLexicon maps a lowercase keyword found in a Section's title or
// tags to a fenced-code-block language tag, per spec.md §4.5.
var codeLanguageLexicon = map[string]string{
	"kotlin": "kotlin", "java": "java", "python": "python", "py": "python",
	"js": "javascript", "javascript": "javascript", "ts": "typescript", "typescript": "typescript",
	"bash": "bash", "sh": "bash", "sql": "sql", "json": "json", "yaml": "yaml", "yml": "yaml",
	"xml": "xml", "md": "markdown", "markdown": "markdown", "dockerfile": "dockerfile",
	"go": "go", "golang": "go", "rust": "rust", "rs": "rust", "cpp": "cpp", "c++": "cpp",
	"csharp": "csharp", "c#": "csharp", "ruby": "ruby", "rb": "ruby", "php": "php",
}

// DefaultCodeLanguage is used when no lexicon keyword is found in a CODE
// section's title or tags.
const DefaultCodeLanguage = "text"

// FrontMatter is the YAML document emitted ahead of a rendered entity, per
// spec.md §4.5.
type FrontMatter struct {
	ID         string   `yaml:"id"`
	Type       string   `yaml:"type"`
	Name       string   `yaml:"name"`
	Status     string   `yaml:"status"`
	Priority   string   `yaml:"priority,omitempty"`
	ProjectID  string   `yaml:"projectId,omitempty"`
	FeatureID  string   `yaml:"featureId,omitempty"`
	Tags       []string `yaml:"tags"`
	CreatedAt  string   `yaml:"created"`
	ModifiedAt string   `yaml:"modified"`
}

const isoSecond = "2006-01-02T15:04:05Z"

// RenderDocument assembles a full Markdown document: YAML front matter,
// "# <name>", the entity summary, then each Section in ascending ordinal.
func RenderDocument(front FrontMatter, summary string, sections []*types.Section, statusTable string) (string, error) {
	fmBytes, err := yaml.Marshal(front)
	if err != nil {
		return "", fmt.Errorf("marshaling front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fmBytes)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", front.Name)
	if summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if statusTable != "" {
		b.WriteString(statusTable)
		b.WriteString("\n\n")
	}
	for _, s := range sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Title)
		b.WriteString(renderSectionContent(s))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func renderSectionContent(s *types.Section) string {
	switch s.ContentFormat {
	case types.FormatMarkdown:
		return normalizeMarkdown(s.Content)
	case types.FormatPlainText:
		return s.Content
	case types.FormatJSON:
		return fenceBlock("json", s.Content)
	case types.FormatCode:
		return fenceBlock(inferCodeLanguage(s), s.Content)
	default:
		return s.Content
	}
}

func fenceBlock(lang, content string) string {
	return "```" + lang + "\n" + strings.TrimRight(content, "\n") + "\n```"
}

func inferCodeLanguage(s *types.Section) string {
	haystack := strings.ToLower(s.Title)
	for _, tag := range s.Tags {
		haystack += " " + strings.ToLower(tag)
	}
	for keyword, lang := range codeLanguageLexicon {
		if strings.Contains(haystack, keyword) {
			return lang
		}
	}
	return DefaultCodeLanguage
}

var headerRE = regexp.MustCompile(`(?m)^(#{1,6})(\s+\S.*)$`)
var mdFenceRE = regexp.MustCompile("(?s)```markdown\\n(.*?)```")
var codeFenceLineRE = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")

// normalizeMarkdown applies spec.md §4.5's two MARKDOWN-specific
// normalizations: header depth pull-back, and fence re-escaping for nested
// markdown-language code blocks.
func normalizeMarkdown(content string) string {
	content = normalizeHeaderDepth(content)
	content = mdFenceRE.ReplaceAllStringFunc(content, func(m string) string {
		inner := mdFenceRE.FindStringSubmatch(m)[1]
		return "````markdown\n" + inner + "````"
	})
	return content
}

// normalizeHeaderDepth ensures a header is never deeper than
// previous+1 relative to the most recent header seen. Lines inside a fenced
// code block (``` or ~~~) are left untouched — a "# comment" inside a
// fenced shell snippet isn't a header, and this pass runs independently of
// (and before) normalizeMarkdown's fence re-escaping.
func normalizeHeaderDepth(content string) string {
	lines := strings.Split(content, "\n")
	previous := 0
	var openFence string
	for i, line := range lines {
		if m := codeFenceLineRE.FindStringSubmatch(line); m != nil {
			marker := m[1]
			switch {
			case openFence == "":
				openFence = marker
			case marker[0] == openFence[0] && len(marker) >= len(openFence):
				openFence = ""
			}
			continue
		}
		if openFence != "" {
			continue
		}
		m := headerRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		depth := len(m[1])
		if previous > 0 && depth > previous+1 {
			depth = previous + 1
		}
		previous = depth
		lines[i] = strings.Repeat("#", depth) + m[2]
	}
	return strings.Join(lines, "\n")
}

// statusGroup buckets a status into the Active/Completed/Cancelled-or-
// Deferred/Archived groups used by status tables, per spec.md §4.5.
func statusGroup(status types.Status, terminalStatuses map[types.Status]bool) string {
	if !terminalStatuses[status] {
		return "Active"
	}
	switch strings.ToLower(string(status)) {
	case "cancelled", "canceled", "deferred":
		return "Cancelled/Deferred"
	case "archived":
		return "Archived"
	default:
		return "Completed"
	}
}

// RenderTaskStatusTable renders a Feature's embedded Task status table,
// grouped Active/Completed/Cancelled-or-Deferred, sorted within each group
// by types.SortTasksDeterministic (HIGH/MEDIUM/LOW priority, then
// complexity, then creation time); no status-based ordering is applied
// within a group.
func RenderTaskStatusTable(tasks []*types.Task, terminalStatuses map[types.Status]bool) string {
	groups := groupAndSortTasks(tasks, terminalStatuses)
	var b strings.Builder
	for _, g := range []string{"Active", "Completed", "Cancelled/Deferred"} {
		rows := groups[g]
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", g)
		b.WriteString("| Task | Status | Priority | Complexity |\n|---|---|---|---|\n")
		for _, t := range rows {
			fmt.Fprintf(&b, "| %s | %s | %s | %d |\n", t.Title, t.Status, t.Priority, t.Complexity)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func groupAndSortTasks(tasks []*types.Task, terminalStatuses map[types.Status]bool) map[string][]*types.Task {
	groups := map[string][]*types.Task{}
	for _, t := range tasks {
		g := statusGroup(t.Status, terminalStatuses)
		groups[g] = append(groups[g], t)
	}
	for _, rows := range groups {
		types.SortTasksDeterministic(rows)
	}
	return groups
}

// RenderFeatureStatusTable renders a Project's embedded Feature status
// table, grouped Active/Completed/Archived.
func RenderFeatureStatusTable(features []*types.Feature, terminalStatuses map[types.Status]bool) string {
	groups := map[string][]*types.Feature{}
	for _, f := range features {
		g := statusGroup(f.Status, terminalStatuses)
		if g == "Cancelled/Deferred" {
			g = "Archived"
		}
		groups[g] = append(groups[g], f)
	}
	for _, rows := range groups {
		sortFeaturesDeterministic(rows)
	}

	var b strings.Builder
	for _, g := range []string{"Active", "Completed", "Archived"} {
		rows := groups[g]
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", g)
		b.WriteString("| Feature | Status | Priority |\n|---|---|---|\n")
		for _, f := range rows {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", f.Name, f.Status, f.Priority)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortFeaturesDeterministic(features []*types.Feature) {
	for i := 1; i < len(features); i++ {
		for j := i; j > 0 && features[j].Priority.Rank() < features[j-1].Priority.Rank(); j-- {
			features[j], features[j-1] = features[j-1], features[j]
		}
	}
}

