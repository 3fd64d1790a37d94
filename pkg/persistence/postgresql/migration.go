package postgresql

// migrations returns the full schema history keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS specs (
				name TEXT PRIMARY KEY,
				description TEXT NOT NULL DEFAULT '',
				stage TEXT NOT NULL,
				tasks JSONB,
				history JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				spec_name TEXT NOT NULL,
				completed_phases JSONB,
				status TEXT NOT NULL,
				failure_reason TEXT NOT NULL DEFAULT '',
				archived BOOLEAN NOT NULL DEFAULT FALSE,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_spec_name ON workflows (spec_name);
			CREATE INDEX IF NOT EXISTS idx_workflows_archived ON workflows (archived);

			CREATE TABLE IF NOT EXISTS snapshots (
				id TEXT PRIMARY KEY,
				target TEXT NOT NULL,
				target_id TEXT NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				state JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots (created_at DESC);
		`,
	}
}
