// Package redis provides Redis-backed persistence for specs, workflow state
// and backup snapshots. Records are JSON values; membership sets track ids so
// listings avoid SCAN.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
)

const (
	specKeyPrefix     = "specforge:spec:"
	specIndexKey      = "specforge:specs"
	workflowKeyPrefix = "specforge:workflow:"
	workflowIndexKey  = "specforge:workflows"
	archiveKeyPrefix  = "specforge:workflow:archive:"
	archiveIndexKey   = "specforge:workflows:archived"
	snapshotKeyPrefix = "specforge:snapshot:"
	snapshotIndexKey  = "specforge:snapshots"
)

// Persistence implements the persistence.Persistence interface on Redis.
// Individual SET/SETNX commands are atomic, which gives the same no-torn-record
// guarantee the file provider gets from rename.
type Persistence struct {
	client *goredis.Client
}

// NewPersistence connects to Redis using a redis:// URL.
func NewPersistence(url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return &Persistence{client: goredis.NewClient(opts)}, nil
}

// Specs returns every stored specification, sorted by creation time.
func (rp *Persistence) Specs(ctx context.Context) ([]*models.Spec, error) {
	names, err := rp.client.SMembers(ctx, specIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list specs: %w", err)
	}

	specs := make([]*models.Spec, 0, len(names))

	for _, name := range names {
		spec, err := rp.SpecByName(ctx, name)
		if err != nil {
			return nil, err
		}

		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool {
		return specs[i].CreatedAt.Before(specs[j].CreatedAt)
	})

	return specs, nil
}

// SpecByName returns the specification stored under the given name.
func (rp *Persistence) SpecByName(ctx context.Context, name string) (*models.Spec, error) {
	var spec models.Spec
	if err := rp.getJSON(ctx, "SpecByName", specKeyPrefix+name, name, persistence.ErrSpecNotFound, &spec); err != nil {
		return nil, err
	}

	return &spec, nil
}

// SaveSpec persists a specification.
func (rp *Persistence) SaveSpec(ctx context.Context, spec *models.Spec) error {
	touchTimestamps(&spec.CreatedAt, &spec.UpdatedAt)

	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal spec %s: %w", spec.Name, err)
	}

	pipe := rp.client.TxPipeline()
	pipe.Set(ctx, specKeyPrefix+spec.Name, data, 0)
	pipe.SAdd(ctx, specIndexKey, spec.Name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save spec %s: %w", spec.Name, err)
	}

	return nil
}

// Workflows returns every active workflow state.
func (rp *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowState, error) {
	ids, err := rp.client.SMembers(ctx, workflowIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	states := make([]*models.WorkflowState, 0, len(ids))

	for _, id := range ids {
		state, err := rp.WorkflowByID(ctx, id)
		if err != nil {
			return nil, err
		}

		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].StartedAt.Before(states[j].StartedAt)
	})

	return states, nil
}

// WorkflowByID returns the workflow state stored under the given id.
func (rp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	var state models.WorkflowState
	if err := rp.getJSON(ctx, "WorkflowByID", workflowKeyPrefix+id, id, persistence.ErrWorkflowNotFound, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

// SaveWorkflow persists a workflow state.
func (rp *Persistence) SaveWorkflow(ctx context.Context, state *models.WorkflowState) error {
	touchTimestamps(&state.StartedAt, &state.UpdatedAt)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", state.ID, err)
	}

	pipe := rp.client.TxPipeline()
	pipe.Set(ctx, workflowKeyPrefix+state.ID, data, 0)
	pipe.SAdd(ctx, workflowIndexKey, state.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", state.ID, err)
	}

	return nil
}

// ArchiveWorkflow moves the workflow record into the archive keyspace.
func (rp *Persistence) ArchiveWorkflow(ctx context.Context, state *models.WorkflowState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", state.ID, err)
	}

	pipe := rp.client.TxPipeline()
	pipe.Set(ctx, archiveKeyPrefix+state.ID, data, 0)
	pipe.SAdd(ctx, archiveIndexKey, state.ID)
	pipe.Del(ctx, workflowKeyPrefix+state.ID)
	pipe.SRem(ctx, workflowIndexKey, state.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive workflow %s: %w", state.ID, err)
	}

	return nil
}

// Snapshots returns every snapshot, newest first.
func (rp *Persistence) Snapshots(ctx context.Context) ([]*models.BackupSnapshot, error) {
	ids, err := rp.client.SMembers(ctx, snapshotIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots := make([]*models.BackupSnapshot, 0, len(ids))

	for _, id := range ids {
		snapshot, err := rp.SnapshotByID(ctx, id)
		if err != nil {
			return nil, err
		}

		snapshots = append(snapshots, snapshot)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})

	return snapshots, nil
}

// SnapshotByID returns the snapshot stored under the given id.
func (rp *Persistence) SnapshotByID(ctx context.Context, id string) (*models.BackupSnapshot, error) {
	var snapshot models.BackupSnapshot
	if err := rp.getJSON(ctx, "SnapshotByID", snapshotKeyPrefix+id, id, persistence.ErrSnapshotNotFound, &snapshot); err != nil {
		return nil, err
	}

	return &snapshot, nil
}

// SaveSnapshot persists a new snapshot. SETNX enforces immutability: an
// existing record under the same id fails with ErrSnapshotExists.
func (rp *Persistence) SaveSnapshot(ctx context.Context, snapshot *models.BackupSnapshot) error {
	touchTimestamps(&snapshot.CreatedAt, nil)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", snapshot.ID, err)
	}

	created, err := rp.client.SetNX(ctx, snapshotKeyPrefix+snapshot.ID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snapshot.ID, err)
	}

	if !created {
		return persistence.NewStoreError("SaveSnapshot", snapshot.ID, persistence.ErrSnapshotExists)
	}

	if err := rp.client.SAdd(ctx, snapshotIndexKey, snapshot.ID).Err(); err != nil {
		return fmt.Errorf("failed to index snapshot %s: %w", snapshot.ID, err)
	}

	return nil
}

// DeleteSnapshot removes a pruned snapshot record.
func (rp *Persistence) DeleteSnapshot(ctx context.Context, id string) error {
	pipe := rp.client.TxPipeline()
	pipe.Del(ctx, snapshotKeyPrefix+id)
	pipe.SRem(ctx, snapshotIndexKey, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}

	return nil
}

// HealthCheck pings the server.
func (rp *Persistence) HealthCheck(ctx context.Context) error {
	if err := rp.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the client connection.
func (rp *Persistence) Close(_ context.Context) error {
	if err := rp.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

func (rp *Persistence) getJSON(ctx context.Context, op, key, id string, notFound error, out any) error {
	body, err := rp.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return persistence.NewStoreError(op, id, notFound)
		}

		return fmt.Errorf("failed to fetch %s: %w", key, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return persistence.NewStoreError(op, id, persistence.ErrCorruptState)
	}

	return nil
}

// touchTimestamps fills a zero creation time and, when given, bumps the
// updated time.
func touchTimestamps(created, updated *time.Time) {
	now := time.Now().UTC()

	if created.IsZero() {
		*created = now
	}

	if updated != nil {
		*updated = now
	}
}

var _ persistence.Persistence = (*Persistence)(nil)
