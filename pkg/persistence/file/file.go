// Package file provides file-based persistence for flowcharts, execution
// history and backups.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/flowdeck/pkg/persistence"
)

const dirPerm = 0o755

// Persistence implements persistence.Persistence on a directory tree:
//
//	<root>/flowcharts/<name>.json
//	<root>/backups/<name>/<id>.json
//	<root>/history/<id>.json
type Persistence struct {
	root       string
	flowcharts *FlowchartRepository
	history    *HistoryRepository
	backups    *BackupRepository
}

// NewPersistence creates a file-backed provider rooted at the given
// directory, creating it if needed.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	for _, sub := range []string{"flowcharts", "backups", "history"} {
		if err := os.MkdirAll(filepath.Join(cleanRoot, sub), dirPerm); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	backups := NewBackupRepository(cleanRoot)

	return &Persistence{
		root:       cleanRoot,
		flowcharts: NewFlowchartRepository(cleanRoot, backups, persistence.DefaultGuard),
		history:    NewHistoryRepository(cleanRoot),
		backups:    backups,
	}, nil
}

func (fp *Persistence) Flowcharts() persistence.FlowchartRepository {
	return fp.flowcharts
}

func (fp *Persistence) History() persistence.HistoryRepository {
	return fp.history
}

func (fp *Persistence) Backups() persistence.BackupRepository {
	return fp.backups
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// validName rejects names that would escape the storage directory.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("flowchart name is empty")
	}

	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid flowchart name %q", name)
	}

	return nil
}
