package postgres

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flowcharts (
				name VARCHAR(255) PRIMARY KEY,
				document JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE flowchart_backups (
				flowchart VARCHAR(255) NOT NULL,
				id VARCHAR(255) NOT NULL,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (flowchart, id)
			);

			CREATE INDEX idx_flowchart_backups_flowchart ON flowchart_backups(flowchart);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				flowchart VARCHAR(255) NOT NULL,
				record JSONB NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_flowchart ON executions(flowchart);
			CREATE INDEX idx_executions_started_at ON executions(started_at);
		`,
	}
}
