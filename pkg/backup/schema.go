package backup

// JSON Schemas the restore path validates snapshot payloads against. A
// snapshot that does not conform is corrupt and never applied.

const workflowStateSchema = `{
	"type": "object",
	"required": ["id", "spec_name", "status"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"spec_name": {"type": "string", "minLength": 1},
		"status": {
			"type": "string",
			"enum": ["in_progress", "paused", "completed", "failed"]
		},
		"completed_phases": {
			"type": "array",
			"items": {
				"type": "string",
				"enum": [
					"initialization", "spec_creation", "requirements", "design",
					"tasks", "implementation", "testing", "review"
				]
			}
		},
		"failure_reason": {"type": "string"},
		"started_at": {"type": "string"},
		"updated_at": {"type": "string"},
		"completed_at": {"type": ["string", "null"]}
	}
}`

const specSchema = `{
	"type": "object",
	"required": ["name", "stage"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"stage": {
			"type": "string",
			"enum": ["backlog", "scope", "completed", "sandbox", "archived"]
		},
		"tasks": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "description"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"description": {"type": "string", "minLength": 1},
					"dependencies": {"type": "array", "items": {"type": "string"}},
					"completed": {"type": "boolean"}
				}
			}
		},
		"history": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["from", "to"],
				"properties": {
					"from": {"type": "string"},
					"to": {"type": "string"},
					"reason": {"type": "string"},
					"timestamp": {"type": "string"}
				}
			}
		}
	}
}`
