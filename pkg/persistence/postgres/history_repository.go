package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/flowdeck/pkg/persistence"
)

type HistoryRepository struct {
	db *sql.DB
}

func (r *HistoryRepository) SaveExecution(ctx context.Context, record *persistence.ExecutionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return persistence.NewFlowchartError("SaveExecution", record.Flowchart,
			fmt.Errorf("failed to serialize execution: %w", err))
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO executions (id, flowchart, record, started_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record`,
		record.ID, record.Flowchart, data, record.StartedAt)
	if err != nil {
		return persistence.NewFlowchartError("SaveExecution", record.Flowchart, err)
	}

	return nil
}

func (r *HistoryRepository) Execution(ctx context.Context, id string) (*persistence.ExecutionRecord, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT record FROM executions WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowchartError("Execution", "", persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewFlowchartError("Execution", "", err)
	}

	var record persistence.ExecutionRecord

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, persistence.NewFlowchartError("Execution", "",
			fmt.Errorf("failed to parse execution record: %w", err))
	}

	return &record, nil
}

func (r *HistoryRepository) Executions(ctx context.Context, flowchart string) ([]*persistence.ExecutionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT record FROM executions WHERE flowchart = $1 ORDER BY started_at DESC`, flowchart)
	if err != nil {
		return nil, persistence.NewFlowchartError("Executions", flowchart, err)
	}
	defer rows.Close()

	records := make([]*persistence.ExecutionRecord, 0)

	for rows.Next() {
		var data []byte

		if err := rows.Scan(&data); err != nil {
			return nil, persistence.NewFlowchartError("Executions", flowchart, err)
		}

		var record persistence.ExecutionRecord

		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

func (r *HistoryRepository) DeleteExecution(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM executions WHERE id = $1`, id)
	if err != nil {
		return persistence.NewFlowchartError("DeleteExecution", "", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFlowchartError("DeleteExecution", "", err)
	}

	if deleted == 0 {
		return persistence.NewFlowchartError("DeleteExecution", "", persistence.ErrExecutionNotFound)
	}

	return nil
}
