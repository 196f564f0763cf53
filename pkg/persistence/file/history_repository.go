package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dukex/flowdeck/pkg/persistence"
)

// HistoryRepository stores one JSON file per execution under <root>/history.
type HistoryRepository struct {
	dir string
}

func NewHistoryRepository(root string) *HistoryRepository {
	return &HistoryRepository{dir: filepath.Join(root, "history")}
}

func (r *HistoryRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *HistoryRepository) SaveExecution(_ context.Context, record *persistence.ExecutionRecord) error {
	if err := validName(record.ID); err != nil {
		return persistence.NewFlowchartError("SaveExecution", record.Flowchart, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return persistence.NewFlowchartError("SaveExecution", record.Flowchart,
			fmt.Errorf("failed to serialize execution: %w", err))
	}

	if err := os.WriteFile(r.path(record.ID), data, filePerm); err != nil {
		return persistence.NewFlowchartError("SaveExecution", record.Flowchart, err)
	}

	return nil
}

func (r *HistoryRepository) Execution(_ context.Context, id string) (*persistence.ExecutionRecord, error) {
	if err := validName(id); err != nil {
		return nil, persistence.NewFlowchartError("Execution", "", err)
	}

	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewFlowchartError("Execution", "", persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewFlowchartError("Execution", "", err)
	}

	var record persistence.ExecutionRecord

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, persistence.NewFlowchartError("Execution", "",
			fmt.Errorf("failed to parse execution file: %w", err))
	}

	return &record, nil
}

func (r *HistoryRepository) Executions(ctx context.Context, flowchart string) ([]*persistence.ExecutionRecord, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*persistence.ExecutionRecord{}, nil
		}

		return nil, persistence.NewFlowchartError("Executions", flowchart, err)
	}

	records := make([]*persistence.ExecutionRecord, 0)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		record, err := r.Execution(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}

		if flowchart == "" || record.Flowchart == flowchart {
			records = append(records, record)
		}
	}

	// Newest first.
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	return records, nil
}

func (r *HistoryRepository) DeleteExecution(_ context.Context, id string) error {
	if err := validName(id); err != nil {
		return persistence.NewFlowchartError("DeleteExecution", "", err)
	}

	if err := os.Remove(r.path(id)); err != nil {
		if os.IsNotExist(err) {
			return persistence.NewFlowchartError("DeleteExecution", "", persistence.ErrExecutionNotFound)
		}

		return persistence.NewFlowchartError("DeleteExecution", "", err)
	}

	return nil
}
