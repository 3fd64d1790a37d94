// Package taskdoc parses and serializes checklist-style task documents.
//
// A document is an ordered list of entries, one per line:
//
//	- [ ] 1. Task description
//	- [x] 2. Another task
//	- [ ] 2.1. Sub-task [depends on: 2]
//
// "[ ]" marks an incomplete task, "[x]" a completed one. The id is the dotted
// numeric token following the marker, terminated by ".". An optional trailing
// "[depends on: ...]" annotation declares dependencies; an entry without it has
// an empty dependency set (the numeric parent is not an implicit dependency).
//
// Parsing is all-or-nothing: any malformed line fails the whole document.
// Serialize is the exact inverse, so parse → serialize → parse round-trips.
package taskdoc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/specforge/specforge/pkg/models"
)

var (
	entryPattern      = regexp.MustCompile(`^- \[([ x])\] (\S+?)\. (.+)$`)
	idPattern         = regexp.MustCompile(`^\d+(\.\d+)*$`)
	dependsOnPattern  = regexp.MustCompile(`\s*\[depends on:([^\]]*)\]$`)
	markerComplete    = "x"
	checklistPrefixes = []string{"- [", "-["}
)

// Parse converts a task document into an ordered task sequence. It is a pure
// function: no side effects, and on any error no partial document is returned.
func Parse(text string) ([]*models.Task, error) {
	var tasks []*models.Task

	seen := make(map[string]int)

	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if !isChecklistLine(trimmed) {
			return nil, NewParseError(lineNo, line, "not a checklist entry")
		}

		match := entryPattern.FindStringSubmatch(trimmed)
		if match == nil {
			return nil, NewParseError(lineNo, line, "malformed entry")
		}

		id := match[2]
		if !idPattern.MatchString(id) {
			return nil, NewParseError(lineNo, line, fmt.Sprintf("invalid task id %q", id))
		}

		if prev, ok := seen[id]; ok {
			return nil, NewParseError(lineNo, line, fmt.Sprintf("duplicate task id %q (first seen on line %d)", id, prev))
		}

		seen[id] = lineNo

		description := match[3]

		dependencies, description, err := splitDependencies(description)
		if err != nil {
			return nil, NewParseError(lineNo, line, err.Error())
		}

		if strings.TrimSpace(description) == "" {
			return nil, NewParseError(lineNo, line, "missing description")
		}

		tasks = append(tasks, &models.Task{
			ID:           id,
			Description:  strings.TrimSpace(description),
			Dependencies: dependencies,
			Completed:    match[1] == markerComplete,
		})
	}

	return tasks, nil
}

// Serialize writes tasks back into the document format, preserving order.
func Serialize(tasks []*models.Task) string {
	var b strings.Builder

	for _, task := range tasks {
		marker := " "
		if task.Completed {
			marker = markerComplete
		}

		b.WriteString("- [" + marker + "] " + task.ID + ". " + task.Description)

		if len(task.Dependencies) > 0 {
			b.WriteString(" [depends on: " + strings.Join(task.Dependencies, ", ") + "]")
		}

		b.WriteString("\n")
	}

	return b.String()
}

func isChecklistLine(line string) bool {
	for _, prefix := range checklistPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}

	return false
}

func splitDependencies(description string) ([]string, string, error) {
	match := dependsOnPattern.FindStringSubmatch(description)
	if match == nil {
		return nil, description, nil
	}

	remainder := strings.TrimSuffix(description, match[0])

	// The annotation lists zero or more ids; an empty list is an empty
	// dependency set, same as no annotation at all.
	if strings.TrimSpace(match[1]) == "" {
		return nil, remainder, nil
	}

	var dependencies []string

	for _, raw := range strings.Split(match[1], ",") {
		dep := strings.TrimSpace(raw)
		if !idPattern.MatchString(dep) {
			return nil, "", errInvalidDependencyList
		}

		dependencies = append(dependencies, dep)
	}

	return dependencies, remainder, nil
}
