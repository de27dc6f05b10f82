package mealrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/domain/meal"
)

// MemoryRepository is an in-memory AnalysisRepository used for tests/dev.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]meal.Analysis
}

// NewMemoryRepository constructs a repo backed by memory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]meal.Analysis)}
}

// Create implements meal.AnalysisRepository.
func (r *MemoryRepository) Create(_ context.Context, analysis meal.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[analysis.ID] = analysis
	return nil
}

// Get implements meal.AnalysisRepository.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID, userID int64) (meal.Analysis, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.records[id]
	if !ok || analysis.UserID != userID {
		return meal.Analysis{}, false, nil
	}
	return analysis, true, nil
}

// ListByDateRange implements meal.AnalysisRepository.
func (r *MemoryRepository) ListByDateRange(_ context.Context, userID int64, from, to time.Time) ([]meal.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []meal.Analysis
	for _, analysis := range r.records {
		if analysis.UserID != userID {
			continue
		}
		if analysis.CreatedAt.Before(from) || analysis.CreatedAt.After(to) {
			continue
		}
		out = append(out, analysis)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListRecent implements meal.AnalysisRepository.
func (r *MemoryRepository) ListRecent(_ context.Context, userID int64, limit int) ([]meal.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []meal.Analysis
	for _, analysis := range r.records {
		if analysis.UserID == userID {
			out = append(out, analysis)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ meal.AnalysisRepository = (*MemoryRepository)(nil)
