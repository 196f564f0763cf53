package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
)

// storedFlowchart wraps the document with the metadata listings need.
type storedFlowchart struct {
	Document  *models.Document `json:"document"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type FlowchartRepository struct {
	client  *redis.Client
	backups *BackupRepository
	guard   persistence.DestructiveChangeGuard
}

func (r *FlowchartRepository) read(ctx context.Context, name string) (*storedFlowchart, error) {
	data, err := r.client.Get(ctx, flowchartKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.ErrFlowchartNotFound
		}

		return nil, err
	}

	var stored storedFlowchart

	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse flowchart data: %w", err)
	}

	return &stored, nil
}

func (r *FlowchartRepository) write(ctx context.Context, name string, doc *models.Document) error {
	data, err := json.Marshal(storedFlowchart{Document: doc, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to serialize flowchart: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, flowchartKey(name), data, 0)
	pipe.SAdd(ctx, flowchartsKey(), name)

	_, err = pipe.Exec(ctx)

	return err
}

func (r *FlowchartRepository) List(ctx context.Context) ([]persistence.FlowchartInfo, error) {
	names, err := r.client.SMembers(ctx, flowchartsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flowcharts: %w", err)
	}

	infos := make([]persistence.FlowchartInfo, 0, len(names))

	for _, name := range names {
		stored, err := r.read(ctx, name)
		if err != nil {
			continue
		}

		infos = append(infos, persistence.FlowchartInfo{
			Name:      name,
			NodeCount: len(stored.Document.Nodes),
			UpdatedAt: stored.UpdatedAt,
		})
	}

	return infos, nil
}

func (r *FlowchartRepository) Get(ctx context.Context, name string) (*models.Document, error) {
	stored, err := r.read(ctx, name)
	if err != nil {
		return nil, persistence.NewFlowchartError("Get", name, err)
	}

	return stored.Document, nil
}

func (r *FlowchartRepository) Create(ctx context.Context, name string) (*models.Document, error) {
	exists, err := r.client.Exists(ctx, flowchartKey(name)).Result()
	if err != nil {
		return nil, persistence.NewFlowchartError("Create", name, err)
	}

	if exists > 0 {
		return nil, persistence.NewFlowchartError("Create", name, persistence.ErrFlowchartExists)
	}

	doc := models.NewDocument()

	if err := r.write(ctx, name, doc); err != nil {
		return nil, persistence.NewFlowchartError("Create", name, err)
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
			if err := r.guard.Check(len(existing.Document.Nodes), len(doc.Nodes)); err != nil {
				return persistence.NewFlowchartError("Save", name, err)
			}
		}

		if !opts.SkipBackup {
			if err := r.backups.take(ctx, name, existing.Document); err != nil {
				return persistence.NewFlowchartError("Save", name, err)
			}
		}
	}

	if err := r.write(ctx, name, doc); err != nil {
		return persistence.NewFlowchartError("Save", name, err)
	}

	return nil
}

func (r *FlowchartRepository) Rename(ctx context.Context, oldName, newName string) error {
	exists, err := r.client.Exists(ctx, flowchartKey(newName)).Result()
	if err != nil {
		return persistence.NewFlowchartError("Rename", newName, err)
	}

	if exists > 0 {
		return persistence.NewFlowchartError("Rename", newName, persistence.ErrFlowchartExists)
	}

	err = r.client.Rename(ctx, flowchartKey(oldName), flowchartKey(newName)).Err()
	if err != nil {
		if redisKeyMissing(err) {
			return persistence.NewFlowchartError("Rename", oldName, persistence.ErrFlowchartNotFound)
		}

		return persistence.NewFlowchartError("Rename", oldName, err)
	}

	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, flowchartsKey(), oldName)
	pipe.SAdd(ctx, flowchartsKey(), newName)
	// Backups follow the flowchart; RenameNX tolerates a missing source.
	pipe.RenameNX(ctx, backupsKey(oldName), backupsKey(newName))

	if _, err := pipe.Exec(ctx); err != nil && !redisKeyMissing(err) {
		return persistence.NewFlowchartError("Rename", oldName, err)
	}

	return nil
}

func (r *FlowchartRepository) Delete(ctx context.Context, name string) error {
	removed, err := r.client.Del(ctx, flowchartKey(name)).Result()
	if err != nil {
		return persistence.NewFlowchartError("Delete", name, err)
	}

	if removed == 0 {
		return persistence.NewFlowchartError("Delete", name, persistence.ErrFlowchartNotFound)
	}

	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, flowchartsKey(), name)
	pipe.Del(ctx, backupsKey(name))

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewFlowchartError("Delete", name, err)
	}

	return nil
}

// redisKeyMissing matches the error redis returns when renaming a key that
// does not exist.
func redisKeyMissing(err error) bool {
	return err != nil && err.Error() == "ERR no such key"
}
