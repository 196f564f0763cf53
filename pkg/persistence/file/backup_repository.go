package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
)

const backupIDLayout = "20060102T150405.000000000"

// BackupRepository stores pre-save snapshots under <root>/backups/<name>.
// Backup ids are UTC timestamps, so lexicographic order is creation order.
type BackupRepository struct {
	dir string
}

func NewBackupRepository(root string) *BackupRepository {
	return &BackupRepository{dir: filepath.Join(root, "backups")}
}

func (r *BackupRepository) flowchartDir(flowchart string) string {
	return filepath.Join(r.dir, flowchart)
}

// take snapshots the document. Called by the flowchart repository right
// before an overwrite.
func (r *BackupRepository) take(flowchart string, doc *models.Document) (string, error) {
	if err := os.MkdirAll(r.flowchartDir(flowchart), dirPerm); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize backup: %w", err)
	}

	id := time.Now().UTC().Format(backupIDLayout)
	path := filepath.Join(r.flowchartDir(flowchart), id+".json")

	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}

	return id, nil
}

func (r *BackupRepository) rename(oldName, newName string) {
	_ = os.Rename(r.flowchartDir(oldName), r.flowchartDir(newName))
}

func (r *BackupRepository) Backups(_ context.Context, flowchart string) ([]persistence.BackupInfo, error) {
	if err := validName(flowchart); err != nil {
		return nil, persistence.NewFlowchartError("Backups", flowchart, err)
	}

	entries, err := os.ReadDir(r.flowchartDir(flowchart))
	if err != nil {
		if os.IsNotExist(err) {
			return []persistence.BackupInfo{}, nil
		}

		return nil, persistence.NewFlowchartError("Backups", flowchart, err)
	}

	infos := make([]persistence.BackupInfo, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		info := persistence.BackupInfo{ID: id, Flowchart: flowchart}

		if createdAt, err := time.Parse(backupIDLayout, id); err == nil {
			info.CreatedAt = createdAt
		}

		if doc, err := r.readBackup(flowchart, id); err == nil {
			info.NodeCount = len(doc.Nodes)
		}

		infos = append(infos, info)
	}

	// Newest first.
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID > infos[j].ID })

	return infos, nil
}

func (r *BackupRepository) readBackup(flowchart, id string) (*models.Document, error) {
	data, err := os.ReadFile(filepath.Join(r.flowchartDir(flowchart), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrBackupNotFound
		}

		return nil, err
	}

	var doc models.Document

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse backup file: %w", err)
	}

	return &doc, nil
}

func (r *BackupRepository) Backup(_ context.Context, flowchart, id string) (*models.Document, error) {
	if err := validName(flowchart); err != nil {
		return nil, persistence.NewFlowchartError("Backup", flowchart, err)
	}

	if err := validName(id); err != nil {
		return nil, persistence.NewFlowchartError("Backup", flowchart, err)
	}

	doc, err := r.readBackup(flowchart, id)
	if err != nil {
		return nil, persistence.NewFlowchartError("Backup", flowchart, err)
	}

	return doc, nil
}

func (r *BackupRepository) Delete(_ context.Context, flowchart, id string) error {
	if err := validName(flowchart); err != nil {
		return persistence.NewFlowchartError("DeleteBackup", flowchart, err)
	}

	if err := validName(id); err != nil {
		return persistence.NewFlowchartError("DeleteBackup", flowchart, err)
	}

	path := filepath.Join(r.flowchartDir(flowchart), id+".json")

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return persistence.NewFlowchartError("DeleteBackup", flowchart, persistence.ErrBackupNotFound)
		}

		return persistence.NewFlowchartError("DeleteBackup", flowchart, err)
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

	for _, info := range infos[min(keep, len(infos)):] {
		path := filepath.Join(r.flowchartDir(flowchart), info.ID+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return persistence.NewFlowchartError("Prune", flowchart, err)
		}
	}

	return nil
}
