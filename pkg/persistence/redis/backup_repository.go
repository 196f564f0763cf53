package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
)

const backupIDLayout = "20060102T150405.000000000"

// BackupRepository stores snapshots in one hash per flowchart, keyed by a
// UTC-timestamp backup id so lexicographic order is creation order.
type BackupRepository struct {
	client *redis.Client
}

func (r *BackupRepository) take(ctx context.Context, flowchart string, doc *models.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize backup: %w", err)
	}

	id := time.Now().UTC().Format(backupIDLayout)

	return r.client.HSet(ctx, backupsKey(flowchart), id, data).Err()
}

func (r *BackupRepository) Backups(ctx context.Context, flowchart string) ([]persistence.BackupInfo, error) {
	entries, err := r.client.HGetAll(ctx, backupsKey(flowchart)).Result()
	if err != nil {
		return nil, persistence.NewFlowchartError("Backups", flowchart, err)
	}

	infos := make([]persistence.BackupInfo, 0, len(entries))

	for id, data := range entries {
		info := persistence.BackupInfo{ID: id, Flowchart: flowchart}

		if createdAt, err := time.Parse(backupIDLayout, id); err == nil {
			info.CreatedAt = createdAt
		}

		var doc models.Document

		if err := json.Unmarshal([]byte(data), &doc); err == nil {
			info.NodeCount = len(doc.Nodes)
		}

		infos = append(infos, info)
	}

	// Newest first.
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID > infos[j].ID })

	return infos, nil
}

func (r *BackupRepository) Backup(ctx context.Context, flowchart, id string) (*models.Document, error) {
	data, err := r.client.HGet(ctx, backupsKey(flowchart), id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, persistence.NewFlowchartError("Backup", flowchart, persistence.ErrBackupNotFound)
		}

		return nil, persistence.NewFlowchartError("Backup", flowchart, err)
	}

	var doc models.Document

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, persistence.NewFlowchartError("Backup", flowchart,
			fmt.Errorf("failed to parse backup data: %w", err))
	}

	return &doc, nil
}

func (r *BackupRepository) Delete(ctx context.Context, flowchart, id string) error {
	removed, err := r.client.HDel(ctx, backupsKey(flowchart), id).Result()
	if err != nil {
		return persistence.NewFlowchartError("DeleteBackup", flowchart, err)
	}

	if removed == 0 {
		return persistence.NewFlowchartError("DeleteBackup", flowchart, persistence.ErrBackupNotFound)
	}

	return nil
}

func (r *BackupRepository) Prune(ctx context.Context, flowchart string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	infos, err := r.Backups(ctx, flowchart)
	if err != nil {
		return err
	}

	if len(infos) <= keep {
		return nil
	}

	stale := make([]string, 0, len(infos)-keep)
	for _, info := range infos[keep:] {
		stale = append(stale, info.ID)
	}

	if err := r.client.HDel(ctx, backupsKey(flowchart), stale...).Err(); err != nil {
		return persistence.NewFlowchartError("Prune", flowchart, err)
	}

	return nil
}
