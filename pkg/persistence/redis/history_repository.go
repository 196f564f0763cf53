package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/flowdeck/pkg/persistence"
)

type HistoryRepository struct {
	client *redis.Client
}

func (r *HistoryRepository) SaveExecution(ctx context.Context, record *persistence.ExecutionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return persistence.NewFlowchartError("SaveExecution", record.Flowchart,
			fmt.Errorf("failed to serialize execution: %w", err))
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, executionKey(record.ID), data, 0)
	pipe.SAdd(ctx, executionsKey(record.Flowchart), record.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewFlowchartError("SaveExecution", record.Flowchart, err)
	}

	return nil
}

func (r *HistoryRepository) Execution(ctx context.Context, id string) (*persistence.ExecutionRecord, error) {
	data, err := r.client.Get(ctx, executionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewFlowchartError("Execution", "", persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewFlowchartError("Execution", "", err)
	}

	var record persistence.ExecutionRecord

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, persistence.NewFlowchartError("Execution", "",
			fmt.Errorf("failed to parse execution data: %w", err))
	}

	return &record, nil
}

func (r *HistoryRepository) Executions(ctx context.Context, flowchart string) ([]*persistence.ExecutionRecord, error) {
	ids, err := r.client.SMembers(ctx, executionsKey(flowchart)).Result()
	if err != nil {
		return nil, persistence.NewFlowchartError("Executions", flowchart, err)
	}

	records := make([]*persistence.ExecutionRecord, 0, len(ids))

	for _, id := range ids {
		record, err := r.Execution(ctx, id)
		if err != nil {
			continue
		}

		records = append(records, record)
	}

	// Newest first.
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	return records, nil
}

func (r *HistoryRepository) DeleteExecution(ctx context.Context, id string) error {
	record, err := r.Execution(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, executionKey(id))
	pipe.SRem(ctx, executionsKey(record.Flowchart), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewFlowchartError("DeleteExecution", record.Flowchart, err)
	}

	return nil
}
