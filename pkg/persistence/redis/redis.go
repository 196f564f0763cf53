// Package redis provides redis-backed persistence for flowcharts, execution
// history and backups.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/flowdeck/pkg/persistence"
)

const keyPrefix = "flowdeck"

// Persistence implements persistence.Persistence on a redis instance. All
// keys live under the "flowdeck:" namespace:
//
//	flowdeck:flowchart:<name>        document JSON
//	flowdeck:flowcharts              set of names
//	flowdeck:backups:<name>          hash of backup id to snapshot JSON
//	flowdeck:execution:<id>          execution record JSON
//	flowdeck:executions:<flowchart>  set of execution ids
type Persistence struct {
	client     *redis.Client
	flowcharts *FlowchartRepository
	history    *HistoryRepository
	backups    *BackupRepository
}

// NewPersistence connects to the redis URL, e.g. redis://localhost:6379/0.
func NewPersistence(url string) (*Persistence, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewPersistenceWithClient(redis.NewClient(opts)), nil
}

// NewPersistenceWithClient wraps an existing client. Tests use it with an
// in-process redis.
func NewPersistenceWithClient(client *redis.Client) *Persistence {
	backups := &BackupRepository{client: client}

	return &Persistence{
		client:     client,
		flowcharts: &FlowchartRepository{client: client, backups: backups, guard: persistence.DefaultGuard},
		history:    &HistoryRepository{client: client},
		backups:    backups,
	}
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

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func flowchartKey(name string) string {
	return keyPrefix + ":flowchart:" + name
}

func flowchartsKey() string {
	return keyPrefix + ":flowcharts"
}

func backupsKey(flowchart string) string {
	return keyPrefix + ":backups:" + flowchart
}

func executionKey(id string) string {
	return keyPrefix + ":execution:" + id
}

func executionsKey(flowchart string) string {
	return keyPrefix + ":executions:" + flowchart
}
