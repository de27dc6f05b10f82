package chatrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/meal-insight/internal/domain/chat"
)

// MemoryRepository is an in-memory ThreadRepository used for tests/dev.
type MemoryRepository struct {
	mu       sync.Mutex
	threads  map[uuid.UUID]*chat.Thread
	byKey    map[threadKey]uuid.UUID
	messages map[uuid.UUID][]chat.Message
}

type threadKey struct {
	analysisID uuid.UUID
	userID     int64
}

// NewMemoryRepository constructs a repo backed by memory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		threads:  make(map[uuid.UUID]*chat.Thread),
		byKey:    make(map[threadKey]uuid.UUID),
		messages: make(map[uuid.UUID][]chat.Message),
	}
}

// CreateOrGet implements chat.ThreadRepository.
func (r *MemoryRepository) CreateOrGet(_ context.Context, analysisID uuid.UUID, userID int64) (chat.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := threadKey{analysisID: analysisID, userID: userID}
	if id, ok := r.byKey[key]; ok {
		return *r.threads[id], nil
	}
	thread := &chat.Thread{
		ID:         uuid.New(),
		AnalysisID: analysisID,
		UserID:     userID,
		UpdatedAt:  time.Now().UTC(),
	}
	r.threads[thread.ID] = thread
	r.byKey[key] = thread.ID
	return *thread, nil
}

// ReserveTurn implements chat.ThreadRepository. The increment happens under
// the repository lock, mirroring the guarded UPDATE of the SQL variant.
func (r *MemoryRepository) ReserveTurn(_ context.Context, threadID uuid.UUID, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[threadID]
	if !ok {
		return false, fmt.Errorf("thread %s not found", threadID)
	}
	if thread.MessageCount >= limit {
		return false, nil
	}
	thread.MessageCount++
	thread.UpdatedAt = time.Now().UTC()
	return true, nil
}

// AppendMessage implements chat.ThreadRepository.
func (r *MemoryRepository) AppendMessage(_ context.Context, msg chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ThreadID] = append(r.messages[msg.ThreadID], msg)
	return nil
}

// ListMessages implements chat.ThreadRepository.
func (r *MemoryRepository) ListMessages(_ context.Context, threadID uuid.UUID) ([]chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]chat.Message(nil), r.messages[threadID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ chat.ThreadRepository = (*MemoryRepository)(nil)
