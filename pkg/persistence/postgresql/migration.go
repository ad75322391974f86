package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				context_id TEXT,
				frequency VARCHAR(255) NOT NULL DEFAULT '',
				task_templates JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE cycles (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				context_id TEXT,
				title VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(32) NOT NULL CHECK (status IN ('Assigned', 'InProgress', 'Finished', 'Verified', 'Declined')),
				is_current BOOLEAN NOT NULL DEFAULT true,
				tasks JSONB NOT NULL DEFAULT '[]',
				version INTEGER NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_cycles_workflow_id ON cycles(workflow_id, created_at);
		`,
		2: `
			-- Speeds up the current_cycle mapping
			CREATE INDEX idx_cycles_current ON cycles(workflow_id) WHERE is_current;
		`,
	}
}
