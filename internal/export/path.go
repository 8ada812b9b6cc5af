package export

import (
	"path"
	"strings"

	"github.com/taskmcp/taskmcp/internal/types"
)

var reservedWindowsNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

const maxPathComponentLen = 200

// Sanitize makes s safe as a single path component, per spec.md §4.5/§8:
// strips forbidden characters, trims leading/trailing dots and spaces, caps
// length, substitutes "_unnamed" for an empty result, and prefixes "_" to
// any Windows-reserved name (including "NAME.ext" forms).
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if len(out) > maxPathComponentLen {
		out = out[:maxPathComponentLen]
		out = strings.TrimRight(out, ". ")
	}
	if out == "" {
		out = "_unnamed"
	}
	stem := out
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	if reservedWindowsNames[strings.ToUpper(stem)] {
		out = "_" + out
	}
	return out
}

// terminalSubfolder maps a terminal status to the subfolder segment
// inserted under an entity's parent directory, per spec.md §4.5.
func terminalSubfolder(status types.Status) string {
	switch strings.ToLower(string(status)) {
	case "completed", "done":
		return "Completed"
	case "cancelled", "canceled":
		return "Cancelled"
	case "deferred":
		return "Deferred"
	case "archived":
		return "Archived"
	default:
		return "Completed"
	}
}

// buildPath joins parentDir (the containing directory an entity sits
// under), the terminal-status subfolder (when terminal is true), the
// entity's own directory segment (empty for a Task, which has none), and
// its file name.
func buildPath(parentDir string, terminal bool, status types.Status, ownDir, file string) string {
	var segs []string
	if parentDir != "" {
		segs = append(segs, parentDir)
	}
	if terminal {
		segs = append(segs, terminalSubfolder(status))
	}
	if ownDir != "" {
		segs = append(segs, ownDir)
	}
	segs = append(segs, file)
	return path.Join(segs...)
}

// ProjectPath resolves a Project's "_project.md" path.
func ProjectPath(name string, status types.Status, terminal bool) string {
	return buildPath("", terminal, status, Sanitize(name), "_project.md")
}

// FeaturePath resolves a Feature's "_feature.md" path, parented under its
// Project's directory when projectName is non-nil.
func FeaturePath(projectName *string, name string, status types.Status, terminal bool) string {
	parent := ""
	if projectName != nil {
		parent = Sanitize(*projectName)
	}
	return buildPath(parent, terminal, status, Sanitize(name), "_feature.md")
}

// TaskPath resolves a Task's markdown file path, nested under its Feature's
// and/or Project's directory according to which are assigned.
func TaskPath(projectName, featureName *string, title string, status types.Status, terminal bool) string {
	parent := ""
	switch {
	case featureName != nil && projectName != nil:
		parent = path.Join(Sanitize(*projectName), Sanitize(*featureName))
	case featureName != nil:
		parent = Sanitize(*featureName)
	case projectName != nil:
		parent = Sanitize(*projectName)
	}
	return buildPath(parent, terminal, status, "", Sanitize(title)+".md")
}
