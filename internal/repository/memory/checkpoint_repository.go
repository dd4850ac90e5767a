package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"site-research-be/pkg/agent"

	"github.com/patrickmn/go-cache"
)

// CheckpointRepository keeps checkpoints for the life of the process. States
// are stored encoded so callers never share memory with the store.
type CheckpointRepository struct {
	cache *cache.Cache
}

var _ agent.CheckpointStore = &CheckpointRepository{}

func NewCheckpointRepository() *CheckpointRepository {
	return &CheckpointRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *CheckpointRepository) Load(ctx context.Context, threadID string) (*agent.SessionState, error) {
	x, found := r.cache.Get(threadID)
	if !found {
		return nil, nil
	}
	var state agent.SessionState
	if err := json.Unmarshal(x.([]byte), &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", threadID, err)
	}
	return &state, nil
}

func (r *CheckpointRepository) Save(ctx context.Context, threadID string, state *agent.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", threadID, err)
	}
	r.cache.Set(threadID, raw, cache.NoExpiration)
	return nil
}

func (r *CheckpointRepository) Delete(threadID string) {
	r.cache.Delete(threadID)
}

func (r *CheckpointRepository) Count() int {
	return r.cache.ItemCount()
}
