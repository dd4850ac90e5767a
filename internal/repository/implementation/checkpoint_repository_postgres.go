package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"site-research-be/internal/model"
	"site-research-be/pkg/agent"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresCheckpointRepository struct {
	db *gorm.DB
}

var _ agent.CheckpointStore = &PostgresCheckpointRepository{}

func NewPostgresCheckpointRepository(db *gorm.DB) *PostgresCheckpointRepository {
	return &PostgresCheckpointRepository{db: db}
}

func (r *PostgresCheckpointRepository) Load(ctx context.Context, threadID string) (*agent.SessionState, error) {
	var row model.Checkpoint
	err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}

	var state agent.SessionState
	if err := json.Unmarshal(row.State, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", threadID, err)
	}
	return &state, nil
}

func (r *PostgresCheckpointRepository) Save(ctx context.Context, threadID string, state *agent.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", threadID, err)
	}

	row := model.Checkpoint{
		ThreadID:   threadID,
		Query:      state.Query,
		Phase:      string(state.Phase),
		Iterations: state.Iterations,
		State:      raw,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thread_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"query", "phase", "iterations", "state", "updated_at"}),
		}).
		Create(&row).Error
}
