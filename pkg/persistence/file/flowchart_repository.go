package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/flowdeck/pkg/models"
	"github.com/dukex/flowdeck/pkg/persistence"
)

const filePerm = 0o644

// FlowchartRepository stores one JSON file per flowchart under
// <root>/flowcharts.
type FlowchartRepository struct {
	dir     string
	backups *BackupRepository
	guard   persistence.DestructiveChangeGuard
}

func NewFlowchartRepository(root string, backups *BackupRepository, guard persistence.DestructiveChangeGuard) *FlowchartRepository {
	return &FlowchartRepository{
		dir:     filepath.Join(root, "flowcharts"),
		backups: backups,
		guard:   guard,
	}
}

func (r *FlowchartRepository) path(name string) string {
	return filepath.Join(r.dir, name+".json")
}

func (r *FlowchartRepository) List(_ context.Context) ([]persistence.FlowchartInfo, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []persistence.FlowchartInfo{}, nil
		}

		return nil, fmt.Errorf("failed to read flowcharts directory: %w", err)
	}

	infos := make([]persistence.FlowchartInfo, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")

		doc, err := r.read(name)
		if err != nil {
			// Unreadable files are skipped, not fatal for a listing.
			continue
		}

		info := persistence.FlowchartInfo{Name: name, NodeCount: len(doc.Nodes)}

		if stat, err := entry.Info(); err == nil {
			info.UpdatedAt = stat.ModTime().UTC()
		}

		infos = append(infos, info)
	}

	return infos, nil
}

func (r *FlowchartRepository) read(name string) (*models.Document, error) {
	data, err := os.ReadFile(r.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrFlowchartNotFound
		}

		return nil, err
	}

	var doc models.Document

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse flowchart file: %w", err)
	}

	return &doc, nil
}

func (r *FlowchartRepository) Get(_ context.Context, name string) (*models.Document, error) {
	if err := validName(name); err != nil {
		return nil, persistence.NewFlowchartError("Get", name, err)
	}

	doc, err := r.read(name)
	if err != nil {
		return nil, persistence.NewFlowchartError("Get", name, err)
	}

	return doc, nil
}

func (r *FlowchartRepository) Create(_ context.Context, name string) (*models.Document, error) {
	if err := validName(name); err != nil {
		return nil, persistence.NewFlowchartError("Create", name, err)
	}

	if _, err := os.Stat(r.path(name)); err == nil {
		return nil, persistence.NewFlowchartError("Create", name, persistence.ErrFlowchartExists)
	}

	doc := models.NewDocument()

	if err := r.write(name, doc); err != nil {
		return nil, persistence.NewFlowchartError("Create", name, err)
	}

	return doc, nil
}

func (r *FlowchartRepository) write(name string, doc *models.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize flowchart: %w", err)
	}

	// Write-then-rename so a crash never leaves a truncated flowchart.
	tmp := r.path(name) + ".tmp"

	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("failed to write flowchart file: %w", err)
	}

	return os.Rename(tmp, r.path(name))
}

func (r *FlowchartRepository) Save(ctx context.Context, name string, doc *models.Document, opts persistence.SaveOptions) error {
	if err := validName(name); err != nil {
		return persistence.NewFlowchartError("Save", name, err)
	}

	existing, err := r.read(name)
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
			if _, err := r.backups.take(name, existing); err != nil {
				return persistence.NewFlowchartError("Save", name, err)
			}
		}
	}

	if err := r.write(name, doc); err != nil {
		return persistence.NewFlowchartError("Save", name, err)
	}

	return nil
}

func (r *FlowchartRepository) Rename(_ context.Context, oldName, newName string) error {
	if err := validName(oldName); err != nil {
		return persistence.NewFlowchartError("Rename", oldName, err)
	}

	if err := validName(newName); err != nil {
		return persistence.NewFlowchartError("Rename", newName, err)
	}

	if _, err := os.Stat(r.path(oldName)); os.IsNotExist(err) {
		return persistence.NewFlowchartError("Rename", oldName, persistence.ErrFlowchartNotFound)
	}

	if _, err := os.Stat(r.path(newName)); err == nil {
		return persistence.NewFlowchartError("Rename", newName, persistence.ErrFlowchartExists)
	}

	if err := os.Rename(r.path(oldName), r.path(newName)); err != nil {
		return persistence.NewFlowchartError("Rename", oldName, err)
	}

	// Backups follow the flowchart so restores keep working.
	r.backups.rename(oldName, newName)

	return nil
}

func (r *FlowchartRepository) Delete(_ context.Context, name string) error {
	if err := validName(name); err != nil {
		return persistence.NewFlowchartError("Delete", name, err)
	}

	if err := os.Remove(r.path(name)); err != nil {
		if os.IsNotExist(err) {
			return persistence.NewFlowchartError("Delete", name, persistence.ErrFlowchartNotFound)
		}

		return persistence.NewFlowchartError("Delete", name, err)
	}

	return nil
}
