package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
)

type FlowchartRepository struct {
	db      *sql.DB
	backups *BackupRepository
	guard   persistence.DestructiveChangeGuard
}

func (r *FlowchartRepository) List(ctx context.Context) ([]persistence.FlowchartInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, jsonb_array_length(document->'nodes'), updated_at FROM flowcharts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flowcharts: %w", err)
	}
	defer rows.Close()

	infos := make([]persistence.FlowchartInfo, 0)

	for rows.Next() {
		var info persistence.FlowchartInfo

		if err := rows.Scan(&info.Name, &info.NodeCount, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan flowchart row: %w", err)
		}

		infos = append(infos, info)
	}

	return infos, rows.Err()
}

func (r *FlowchartRepository) read(ctx context.Context, name string) (*models.Document, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT document FROM flowcharts WHERE name = $1`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFlowchartNotFound
		}

		return nil, err
	}

	var doc models.Document

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse flowchart document: %w", err)
	}

	return &doc, nil
}

func (r *FlowchartRepository) Get(ctx context.Context, name string) (*models.Document, error) {
	doc, err := r.read(ctx, name)
	if err != nil {
		return nil, persistence.NewFlowchartError("Get", name, err)
	}

	return doc, nil
}

func (r *FlowchartRepository) Create(ctx context.Context, name string) (*models.Document, error) {
	doc := models.NewDocument()

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, persistence.NewFlowchartError("Create", name, err)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO flowcharts (name, document) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, data)
	if err != nil {
		return nil, persistence.NewFlowchartError("Create", name, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, persistence.NewFlowchartError("Create", name, err)
	}

	if inserted == 0 {
		return nil, persistence.NewFlowchartError("Create", name, persistence.ErrFlowchartExists)
	}

	return doc, nil
}

func (r *FlowchartRepository) Save(ctx context.Context, name string, doc *models.Document, opts persistence.SaveOptions) error {
	existing, err := r.read(ctx, name)
	if err != nil && !errors.Is(err, persistence.ErrFlowchartNotFound) {
		return persistence.NewFlowchartError("Save", name, err)
	}

	if existing != nil {
		if !opts.Force {
			if err := r.guard.Check(len(existing.Nodes), len(doc.Nodes)); err != nil {
				return persistence.NewFlowchartError("Save", name, err)
			}
		}

		if !opts.SkipBackup {
			if err := r.backups.take(ctx, name, existing); err != nil {
				return persistence.NewFlowchartError("Save", name, err)
			}
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return persistence.NewFlowchartError("Save", name, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO flowcharts (name, document, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`,
		name, data)
	if err != nil {
		return persistence.NewFlowchartError("Save", name, err)
	}

	return nil
}

func (r *FlowchartRepository) Rename(ctx context.Context, oldName, newName string) error {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM flowcharts WHERE name = $1)`, newName).Scan(&exists)
	if err != nil {
		return persistence.NewFlowchartError("Rename", newName, err)
	}

	if exists {
		return persistence.NewFlowchartError("Rename", newName, persistence.ErrFlowchartExists)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewFlowchartError("Rename", oldName, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE flowcharts SET name = $1 WHERE name = $2`, newName, oldName)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewFlowchartError("Rename", oldName, err)
	}

	renamed, err := result.RowsAffected()
	if err != nil || renamed == 0 {
		_ = tx.Rollback()

		if err == nil {
			err = persistence.ErrFlowchartNotFound
		}

		return persistence.NewFlowchartError("Rename", oldName, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE flowchart_backups SET flowchart = $1 WHERE flowchart = $2`, newName, oldName)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewFlowchartError("Rename", oldName, err)
	}

	if err := tx.Commit(); err != nil {
		return persistence.NewFlowchartError("Rename", oldName, err)
	}

	return nil
}

func (r *FlowchartRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM flowcharts WHERE name = $1`, name)
	if err != nil {
		return persistence.NewFlowchartError("Delete", name, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFlowchartError("Delete", name, err)
	}

	if deleted == 0 {
		return persistence.NewFlowchartError("Delete", name, persistence.ErrFlowchartNotFound)
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM flowchart_backups WHERE flowchart = $1`, name)
	if err != nil {
		return persistence.NewFlowchartError("Delete", name, err)
	}

	return nil
}
