// Package postgres provides PostgreSQL persistence for flowcharts, execution
// history and backups.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/dukex/flowdeck/pkg/persistence"
	"github.com/dukex/flowdeck/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL. Documents are
// stored as JSONB blobs; the relational layer only carries the lookup keys.
type Persistence struct {
	db         *sql.DB
	logger     *slog.Logger
	flowcharts *FlowchartRepository
	history    *HistoryRepository
	backups    *BackupRepository
}

// NewPersistence connects to the database and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	backups := &BackupRepository{db: database}

	return &Persistence{
		db:         database,
		logger:     logger,
		flowcharts: &FlowchartRepository{db: database, backups: backups, guard: persistence.DefaultGuard},
		history:    &HistoryRepository{db: database},
		backups:    backups,
	}, nil
}

func (p *Persistence) Flowcharts() persistence.FlowchartRepository {
	return p.flowcharts
}

func (p *Persistence) History() persistence.HistoryRepository {
	return p.history
}

func (p *Persistence) Backups() persistence.BackupRepository {
	return p.backups
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
