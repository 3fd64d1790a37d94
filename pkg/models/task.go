// Package models defines the core domain models for the spec-driven task lifecycle engine.
package models

// Task is an atomic unit of work inside a specification's task document.
//
// IDs are dotted hierarchical identifiers ("2", "2.1") unique within a spec.
// Hierarchy is a display convention only: the dependency relation is carried
// exclusively by Dependencies, never inferred from the id shape.
type Task struct {
	ID           string   `json:"id"           validate:"required"`
	Description  string   `json:"description"  validate:"required"`
	Dependencies []string `json:"dependencies,omitempty"`
	Completed    bool     `json:"completed"`
}

// DependsOn reports whether the task declares a direct dependency on id.
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}

	return false
}
