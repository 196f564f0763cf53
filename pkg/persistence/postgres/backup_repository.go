package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
)

const backupIDLayout = "20060102T150405.000000000"

type BackupRepository struct {
	db *sql.DB
}

func (r *BackupRepository) take(ctx context.Context, flowchart string, doc *models.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize backup: %w", err)
	}

	id := time.Now().UTC().Format(backupIDLayout)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO flowchart_backups (flowchart, id, document) VALUES ($1, $2, $3)`,
		flowchart, id, data)

	return err
}

func (r *BackupRepository) Backups(ctx context.Context, flowchart string) ([]persistence.BackupInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, jsonb_array_length(document->'nodes'), created_at
		FROM flowchart_backups WHERE flowchart = $1 ORDER BY id DESC`, flowchart)
	if err != nil {
		return nil, persistence.NewFlowchartError("Backups", flowchart, err)
	}
	defer rows.Close()

	infos := make([]persistence.BackupInfo, 0)

	for rows.Next() {
		info := persistence.BackupInfo{Flowchart: flowchart}

		if err := rows.Scan(&info.ID, &info.NodeCount, &info.CreatedAt); err != nil {
			return nil, persistence.NewFlowchartError("Backups", flowchart, err)
		}

		infos = append(infos, info)
	}

	return infos, rows.Err()
}

func (r *BackupRepository) Backup(ctx context.Context, flowchart, id string) (*models.Document, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT document FROM flowchart_backups WHERE flowchart = $1 AND id = $2`,
		flowchart, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowchartError("Backup", flowchart, persistence.ErrBackupNotFound)
		}

		return nil, persistence.NewFlowchartError("Backup", flowchart, err)
	}

	var doc models.Document

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, persistence.NewFlowchartError("Backup", flowchart,
			fmt.Errorf("failed to parse backup document: %w", err))
	}

	return &doc, nil
}

func (r *BackupRepository) Delete(ctx context.Context, flowchart, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM flowchart_backups WHERE flowchart = $1 AND id = $2`,
		flowchart, id)
	if err != nil {
		return persistence.NewFlowchartError("DeleteBackup", flowchart, err)
	}

	if removed, err := result.RowsAffected(); err == nil && removed == 0 {
		return persistence.NewFlowchartError("DeleteBackup", flowchart, persistence.ErrBackupNotFound)
	}

	return nil
}

func (r *BackupRepository) Prune(ctx context.Context, flowchart string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM flowchart_backups
		WHERE flowchart = $1 AND id NOT IN (
			SELECT id FROM flowchart_backups WHERE flowchart = $1 ORDER BY id DESC LIMIT $2
		)`, flowchart, keep)
	if err != nil {
		return persistence.NewFlowchartError("Prune", flowchart, err)
	}

	return nil
}
